package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/notecanvas/internal/embedding"
	"github.com/hyperjump/notecanvas/internal/keyword"
	"github.com/hyperjump/notecanvas/internal/models"
	"github.com/hyperjump/notecanvas/internal/related"
	"github.com/hyperjump/notecanvas/internal/storage"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var query models.RelatedQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := query.Validate(s.config.Related.DefaultK, s.config.Related.MaxK); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("related request",
		zap.Int("source_len", len(query.SourceText)),
		zap.Int("candidates", len(query.Candidates)),
		zap.Int("k", query.K),
	)

	results, err := s.finder.FindRelated(r.Context(), query.SourceText, query.Candidates, related.Options{
		K:        query.K,
		UseCache: query.UseCacheOrDefault(),
	})
	if err != nil {
		s.fail(w, "related search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, &models.RelatedResponse{
		Results:   results,
		QueryTime: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req models.EmbedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Notes == nil {
		s.respondError(w, http.StatusBadRequest, "notes is required")
		return
	}
	for i, n := range req.Notes {
		if n.ID == "" {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("notes[%d]: id is required", i))
			return
		}
	}
	resp := s.finder.EmbedItems(r.Context(), req.Notes)
	s.logger.Debug("embeddings request", zap.Int("embedded", resp.Embedded), zap.Int("failed", resp.Failed))
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var input models.NoteInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	note, err := s.indexer.AddNote(r.Context(), &input)
	if err != nil {
		s.fail(w, "create note failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, note)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := intParam(r, "limit", defaultListLimit)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	ctx := r.Context()
	notes, err := s.storage.ListNotes(ctx, offset, limit)
	if err != nil {
		s.fail(w, "list notes failed", err)
		return
	}
	total, err := s.storage.CountNotes(ctx)
	if err != nil {
		s.fail(w, "count notes failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, &models.NoteList{Notes: notes, Total: total})
}

func (s *Server) handleSearchNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, err := intParam(r, "limit", defaultListLimit)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	opts := &keyword.SearchOptions{FuzzyEnabled: r.URL.Query().Get("fuzzy") == "true"}

	ctx := r.Context()
	hits, err := s.keywordIndex.Search(ctx, q, limit, opts)
	if err != nil {
		s.fail(w, "note search failed", err)
		return
	}
	notes := make([]*models.ContentItem, 0, len(hits))
	for _, hit := range hits {
		note, err := s.storage.GetNote(ctx, hit.ID)
		if err != nil {
			// index can briefly hold a note that was just deleted
			continue
		}
		notes = append(notes, note)
	}
	s.respondJSON(w, http.StatusOK, &models.NoteList{Notes: notes, Total: int64(len(notes))})
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	note, err := s.storage.GetNote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get note failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, note)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.indexer.DeleteNote(r.Context(), id); err != nil {
		s.fail(w, "delete note failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleNoteRelated(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")
	k, err := intParam(r, "k", 0)
	if err != nil || k < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid k")
		return
	}
	query := models.RelatedQuery{K: k}

	ctx := r.Context()
	source, err := s.storage.GetNote(ctx, id)
	if err != nil {
		s.fail(w, "get note failed", err)
		return
	}
	query.SourceText = source.Text
	query.Candidates, err = s.storage.AllNotes(ctx)
	if err != nil {
		s.fail(w, "load notes failed", err)
		return
	}
	if query.Candidates == nil {
		query.Candidates = []models.ContentItem{}
	}
	if err := query.Validate(s.config.Related.DefaultK, s.config.Related.MaxK); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.finder.FindRelated(ctx, query.SourceText, query.Candidates, related.Options{
		K:        query.K,
		UseCache: true,
		SourceID: id,
	})
	if err != nil {
		s.fail(w, "related search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, &models.RelatedResponse{
		Results:   results,
		QueryTime: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.storage.CountNotes(r.Context())
	if err != nil {
		s.fail(w, "status: count notes failed", err)
		return
	}
	cacheEntries := 0
	if s.cache != nil {
		cacheEntries = s.cache.Len()
	}
	s.respondJSON(w, http.StatusOK, &models.StatusResponse{
		Notes:        count,
		CacheEntries: cacheEntries,
		Config: &models.StatusConfig{
			Provider:   s.config.Embedding.Provider,
			Model:      s.config.Embedding.Model,
			Dimensions: s.config.Embedding.Dimensions,
			DefaultK:   s.config.Related.DefaultK,
		},
	})
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, embedding.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, embedding.ErrEmbeddingUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
