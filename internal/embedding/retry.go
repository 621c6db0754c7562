package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hyperjump/notecanvas/internal/metrics"
	"go.uber.org/zap"
)

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Strategy is "constant" (default) or "exponential". Exponential doubles Delay up to MaxDelay.
	Strategy string
	MaxDelay time.Duration
}

// DefaultRetryPolicy is three attempts one second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: time.Second, Strategy: "constant"}
}

// RetryEmbedder wraps an Embedder and retries transient failures a bounded number of times.
// When attempts are exhausted, or the failure is not transient, it returns an error
// wrapping ErrEmbeddingUnavailable and the last underlying error.
type RetryEmbedder struct {
	next    Embedder
	policy  RetryPolicy
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// RetryOption configures a RetryEmbedder.
type RetryOption func(*RetryEmbedder)

// WithLogger sets a logger for retry and failure events.
func WithLogger(l *zap.Logger) RetryOption {
	return func(r *RetryEmbedder) { r.logger = l }
}

// WithMetrics records attempts and outcomes.
func WithMetrics(m *metrics.Metrics) RetryOption {
	return func(r *RetryEmbedder) { r.metrics = m }
}

// NewRetryEmbedder wraps next with the given policy.
func NewRetryEmbedder(next Embedder, policy RetryPolicy, opts ...RetryOption) *RetryEmbedder {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	r := &RetryEmbedder{
		next:   next,
		policy: policy,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RetryEmbedder) newBackOff() backoff.BackOff {
	if r.policy.Strategy == "exponential" {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = r.policy.Delay
		if r.policy.MaxDelay > 0 {
			b.MaxInterval = r.policy.MaxDelay
		}
		b.RandomizationFactor = 0
		b.MaxElapsedTime = 0
		b.Reset()
		return b
	}
	return backoff.NewConstantBackOff(r.policy.Delay)
}

// Embed returns the embedding for text, retrying transient failures.
func (r *RetryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := checkText(text); err != nil {
		r.metrics.ObserveEmbed("invalid", 0)
		return nil, err
	}
	start := time.Now()
	b := r.newBackOff()

	var lastErr error
	attempt := 0
	for attempt < r.policy.MaxAttempts {
		attempt++
		vec, err := r.next.Embed(ctx, text)
		if err == nil {
			r.metrics.ObserveEmbed("ok", time.Since(start))
			return vec, nil
		}
		lastErr = err
		if errors.Is(err, ErrInvalidInput) {
			r.metrics.ObserveEmbed("invalid", time.Since(start))
			return nil, err
		}
		if ctx.Err() != nil {
			lastErr = fmt.Errorf("%w: %w", ctx.Err(), err)
			break
		}
		if !IsTransient(err) || attempt == r.policy.MaxAttempts {
			break
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			break
		}
		r.logger.Debug("embedding attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Int("text_len", len(text)),
			zap.Error(err),
		)
		r.metrics.IncRetry()
		if err := sleepContext(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	r.metrics.ObserveEmbed("unavailable", time.Since(start))
	return nil, fmt.Errorf("%w after %d attempt(s): %w", ErrEmbeddingUnavailable, attempt, lastErr)
}

// Dimensions returns the wrapped embedder's dimension.
func (r *RetryEmbedder) Dimensions() int {
	return r.next.Dimensions()
}

// Close closes the wrapped embedder.
func (r *RetryEmbedder) Close() error {
	return r.next.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
