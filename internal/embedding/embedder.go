// Package embedding turns note text into vectors via a remote or local model,
// with retry of transient failures and an id-keyed cache.
package embedding

import (
	"context"
	"errors"
	"net"
	"strings"
)

var (
	// ErrInvalidInput is returned for empty or whitespace-only text. It is never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmbeddingUnavailable is returned when the model could not produce an embedding
	// within the retry budget.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}

func checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrInvalidInput
	}
	return nil
}

// IsTransient reports whether err is worth retrying: network failures (including a
// single attempt timing out), remote 5xx and 429. Cancellation and invalid input are
// never transient. Whether the caller's own deadline has passed is decided by the caller.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrInvalidInput) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	// context.DeadlineExceeded itself satisfies net.Error; only a transport error counts.
	var netErr net.Error
	return errors.As(err, &netErr) && error(netErr) != context.DeadlineExceeded
}
