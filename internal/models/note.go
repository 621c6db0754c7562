// Package models defines core data structures for notes, related-note queries, and results.
package models

import "time"

// ContentItem is a note placed on the canvas. It is immutable once created.
// Embedding is an optional precomputed vector supplied by the caller; it is never stored.
type ContentItem struct {
	ID          string    `json:"id" db:"id"`
	Text        string    `json:"text" db:"text"`
	SourceLabel string    `json:"sourceLabel,omitempty" db:"source_label"`
	Embedding   []float32 `json:"embedding,omitempty" db:"-"`
	CreatedAt   time.Time `json:"createdAt,omitempty" db:"created_at"`
}

// NoteInput is the input for creating a note.
type NoteInput struct {
	ID          string `json:"id,omitempty"`
	Text        string `json:"text"`
	SourceLabel string `json:"sourceLabel,omitempty"`
}
