// Package server provides the HTTP API for related-note search and the note pool.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hyperjump/notecanvas/internal/config"
	"github.com/hyperjump/notecanvas/internal/embedding"
	"github.com/hyperjump/notecanvas/internal/indexer"
	"github.com/hyperjump/notecanvas/internal/keyword"
	"github.com/hyperjump/notecanvas/internal/related"
	"github.com/hyperjump/notecanvas/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	minRequestTimeout = 60 * time.Second
	// requestTimeoutMargin leaves room to write the response after related.timeout fires.
	requestTimeoutMargin = 5 * time.Second
)

// requestTimeout is the router-level deadline. It always exceeds related.timeout so a
// related search fails with its own timeout error rather than being cut off.
func requestTimeout(cfg *config.Config) time.Duration {
	t := cfg.Related.Timeout + requestTimeoutMargin
	if t < minRequestTimeout {
		t = minRequestTimeout
	}
	return t
}

// Server is the HTTP server for the notecanvas API.
type Server struct {
	finder       *related.Finder
	indexer      *indexer.Indexer
	storage      storage.Storage
	keywordIndex keyword.KeywordIndex
	cache        *embedding.Cache
	gatherer     prometheus.Gatherer
	config       *config.Config
	logger       *zap.Logger
	server       *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithCache exposes the embedding cache size in /api/v1/status.
func WithCache(c *embedding.Cache) Option {
	return func(s *Server) { s.cache = c }
}

// WithGatherer serves metrics from g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	finder *related.Finder,
	idx *indexer.Indexer,
	storage storage.Storage,
	keywordIndex keyword.KeywordIndex,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		finder:       finder,
		indexer:      idx,
		storage:      storage,
		keywordIndex: keywordIndex,
		config:       cfg,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router with all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout(s.config)))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.Server.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/related", s.handleRelated)
		r.Post("/embeddings", s.handleEmbeddings)

		r.Post("/notes", s.handleCreateNote)
		r.Get("/notes", s.handleListNotes)
		r.Get("/notes/search", s.handleSearchNotes)
		r.Get("/notes/{id}", s.handleGetNote)
		r.Delete("/notes/{id}", s.handleDeleteNote)
		r.Get("/notes/{id}/related", s.handleNoteRelated)

		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
