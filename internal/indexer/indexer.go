// Package indexer adds notes to storage and the keyword index.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/notecanvas/internal/embedding"
	"github.com/hyperjump/notecanvas/internal/keyword"
	"github.com/hyperjump/notecanvas/internal/models"
	"github.com/hyperjump/notecanvas/internal/storage"
	"go.uber.org/zap"
)

// Indexer keeps storage and the keyword index in step.
type Indexer struct {
	storage      storage.Storage
	keywordIndex keyword.KeywordIndex
	logger       *zap.Logger // optional; when set, logs debug events
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (note added, note deleted, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(storage storage.Storage, keywordIndex keyword.KeywordIndex, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		storage:      storage,
		keywordIndex: keywordIndex,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// AddNote stores a note and indexes its text. A missing id is filled with a random UUID.
// Text is kept as given; notes whose text is blank are rejected.
func (idx *Indexer) AddNote(ctx context.Context, input *models.NoteInput) (*models.ContentItem, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, fmt.Errorf("%w: note text is empty", embedding.ErrInvalidInput)
	}
	note := &models.ContentItem{
		ID:          input.ID,
		Text:        input.Text,
		SourceLabel: input.SourceLabel,
	}
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if err := idx.storage.CreateNote(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to store note: %w", err)
	}
	if err := idx.keywordIndex.Index(ctx, note); err != nil {
		_ = idx.storage.DeleteNote(ctx, note.ID)
		return nil, fmt.Errorf("failed to index keywords: %w", err)
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer note added", zap.String("id", note.ID), zap.Int("text_len", len(note.Text)))
	}
	return note, nil
}

// DeleteNote removes a note from the keyword index and storage.
func (idx *Indexer) DeleteNote(ctx context.Context, id string) error {
	if idx.logger != nil {
		idx.logger.Debug("indexer deleting note", zap.String("id", id))
	}
	if err := idx.storage.DeleteNote(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if err := idx.keywordIndex.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete from keyword index: %w", err)
	}
	return nil
}

// Reindex rebuilds the keyword index from storage when their counts disagree,
// for example after the index directory was removed. Returns the number of notes indexed.
func (idx *Indexer) Reindex(ctx context.Context) (int, error) {
	stored, err := idx.storage.CountNotes(ctx)
	if err != nil {
		return 0, fmt.Errorf("count notes: %w", err)
	}
	indexed, err := idx.keywordIndex.DocCount()
	if err != nil {
		return 0, fmt.Errorf("count indexed notes: %w", err)
	}
	if uint64(stored) == indexed {
		return 0, nil
	}

	notes, err := idx.storage.AllNotes(ctx)
	if err != nil {
		return 0, fmt.Errorf("load notes: %w", err)
	}
	for i := range notes {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := idx.keywordIndex.Index(ctx, &notes[i]); err != nil {
			return i, fmt.Errorf("index note %s: %w", notes[i].ID, err)
		}
	}
	if idx.logger != nil {
		idx.logger.Info("keyword index rebuilt", zap.Int("notes", len(notes)))
	}
	return len(notes), nil
}
