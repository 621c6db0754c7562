package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/notecanvas/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		text TEXT NOT NULL,
		source_label TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_notes_created_at ON notes(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateNote inserts a note and sets its CreatedAt.
func (s *SQLiteStorage) CreateNote(ctx context.Context, note *models.ContentItem) error {
	note.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, text, source_label, created_at) VALUES (?, ?, ?, ?)`,
		note.ID, note.Text, note.SourceLabel, note.CreatedAt,
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, note.ID)
	}
	return err
}

// GetNote returns a note by ID.
func (s *SQLiteStorage) GetNote(ctx context.Context, id string) (*models.ContentItem, error) {
	var note models.ContentItem
	err := s.db.QueryRowContext(ctx,
		`SELECT id, text, source_label, created_at FROM notes WHERE id = ?`, id,
	).Scan(&note.ID, &note.Text, &note.SourceLabel, &note.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// DeleteNote removes a note by ID.
func (s *SQLiteStorage) DeleteNote(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ListNotes returns notes newest first with offset and limit.
func (s *SQLiteStorage) ListNotes(ctx context.Context, offset, limit int) ([]*models.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, source_label, created_at
		 FROM notes ORDER BY seq DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]*models.ContentItem, 0)
	for rows.Next() {
		var note models.ContentItem
		if err := rows.Scan(&note.ID, &note.Text, &note.SourceLabel, &note.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, &note)
	}
	return notes, rows.Err()
}

// AllNotes returns every note oldest first.
func (s *SQLiteStorage) AllNotes(ctx context.Context) ([]models.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, source_label, created_at FROM notes ORDER BY seq`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []models.ContentItem
	for rows.Next() {
		var note models.ContentItem
		if err := rows.Scan(&note.ID, &note.Text, &note.SourceLabel, &note.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// CountNotes returns the total number of notes.
func (s *SQLiteStorage) CountNotes(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
