// Package storage defines the persistence interface for canvas notes.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/notecanvas/internal/models"
)

var (
	// ErrNotFound is returned when a note id does not exist.
	ErrNotFound = errors.New("note not found")
	// ErrAlreadyExists is returned when creating a note whose id is taken.
	ErrAlreadyExists = errors.New("note already exists")
)

// Storage defines note persistence operations. Notes are immutable once created.
type Storage interface {
	CreateNote(ctx context.Context, note *models.ContentItem) error
	GetNote(ctx context.Context, id string) (*models.ContentItem, error)
	DeleteNote(ctx context.Context, id string) error
	ListNotes(ctx context.Context, offset, limit int) ([]*models.ContentItem, error)
	// AllNotes returns every note in creation order, oldest first.
	AllNotes(ctx context.Context) ([]models.ContentItem, error)
	CountNotes(ctx context.Context) (int64, error)

	Close() error
}
