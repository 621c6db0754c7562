package models

import (
	"fmt"
	"strings"
)

// RelatedQuery is the inbound request for related notes.
// A nil Candidates slice means the field was missing; an empty one is valid.
type RelatedQuery struct {
	SourceText string        `json:"sourceText"`
	Candidates []ContentItem `json:"candidates"`
	K          int           `json:"k,omitempty"`
	UseCache   *bool         `json:"useCache,omitempty"`
}

// Validate checks required fields and clamps K to [1, maxK], using defaultK when unset.
func (q *RelatedQuery) Validate(defaultK, maxK int) error {
	if strings.TrimSpace(q.SourceText) == "" {
		return fmt.Errorf("sourceText cannot be empty")
	}
	if q.Candidates == nil {
		return fmt.Errorf("candidates is required")
	}
	for i, c := range q.Candidates {
		if c.ID == "" {
			return fmt.Errorf("candidates[%d]: id is required", i)
		}
	}
	if q.K < 0 {
		return fmt.Errorf("k cannot be negative")
	}
	if q.K == 0 {
		q.K = defaultK
	}
	if maxK > 0 && q.K > maxK {
		q.K = maxK
	}
	return nil
}

// UseCacheOrDefault returns whether cached candidate embeddings may be reused; defaults to true.
func (q *RelatedQuery) UseCacheOrDefault() bool {
	if q.UseCache != nil {
		return *q.UseCache
	}
	return true
}

// EmbedRequest is the inbound request for batch embedding of notes.
type EmbedRequest struct {
	Notes []ContentItem `json:"notes"`
}
