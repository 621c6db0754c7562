// Package related finds the notes most similar to a piece of source text.
package related

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/notecanvas/internal/config"
	"github.com/hyperjump/notecanvas/internal/embedding"
	"github.com/hyperjump/notecanvas/internal/metrics"
	"github.com/hyperjump/notecanvas/internal/models"
	"github.com/hyperjump/notecanvas/internal/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Options are per-request settings for FindRelated.
type Options struct {
	K        int
	UseCache bool
	// SourceID, when set, excludes the candidate with the same id.
	SourceID string
}

// Finder resolves candidate embeddings and ranks them against a source text.
type Finder struct {
	embedder embedding.Embedder
	cache    *embedding.Cache
	config   *config.RelatedConfig
	logger   *zap.Logger
	metrics  *metrics.Metrics
	inflight singleflight.Group
}

// Option configures a Finder.
type Option func(*Finder)

// WithLogger sets the finder's logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Finder) { f.logger = l }
}

// WithMetrics sets the finder's metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Finder) { f.metrics = m }
}

// NewFinder creates a Finder. cache may be nil, in which case nothing is reused between requests.
func NewFinder(embedder embedding.Embedder, cache *embedding.Cache, cfg *config.RelatedConfig, opts ...Option) *Finder {
	f := &Finder{
		embedder: embedder,
		cache:    cache,
		config:   cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FindRelated returns up to opts.K candidates most similar to sourceText, best first.
//
// Candidates whose trimmed text equals the trimmed source are removed before anything is
// embedded. A failure to embed the source fails the call; a candidate that cannot be
// embedded is dropped. Ties in similarity keep the order of candidates.
func (f *Finder) FindRelated(ctx context.Context, sourceText string, candidates []models.ContentItem, opts Options) ([]*models.RankedResult, error) {
	start := time.Now()
	results, err := f.findRelated(ctx, sourceText, candidates, opts)
	f.metrics.ObserveRelated(outcome(err), len(results), time.Since(start))
	return results, err
}

func (f *Finder) findRelated(ctx context.Context, sourceText string, candidates []models.ContentItem, opts Options) ([]*models.RankedResult, error) {
	if strings.TrimSpace(sourceText) == "" {
		return nil, fmt.Errorf("%w: source text is empty", embedding.ErrInvalidInput)
	}
	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	pool := candidates
	if f.config.ExcludeExactTextOrDefault() {
		pool = excludeExactText(sourceText, candidates)
	}
	if len(pool) == 0 {
		return []*models.RankedResult{}, nil
	}

	sourceVec, err := f.embedder.Embed(ctx, sourceText)
	if err != nil {
		f.logger.Warn("source embedding failed", zap.Int("text_len", len(sourceText)), zap.Error(err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("embed source: %w", ctxErr)
		}
		return nil, fmt.Errorf("embed source: %w", err)
	}

	resolved := f.resolveCandidates(ctx, pool, opts.UseCache)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolve candidates: %w", err)
	}

	return vector.Rank(sourceVec, opts.SourceID, resolved, f.rankOptions(opts.K)), nil
}

// resolveCandidates embeds the pool in parallel and returns the successes in pool order.
func (f *Finder) resolveCandidates(ctx context.Context, pool []models.ContentItem, useCache bool) []vector.Candidate {
	vecs := make([][]float32, len(pool))

	var g errgroup.Group
	if f.config.Concurrency > 0 {
		g.SetLimit(f.config.Concurrency)
	}
	for i := range pool {
		c := pool[i]
		g.Go(func() error {
			vec, err := f.candidateVector(ctx, c, useCache)
			if err != nil {
				f.metrics.IncDropped()
				f.logger.Debug("dropping candidate",
					zap.String("id", c.ID),
					zap.Int("text_len", len(c.Text)),
					zap.Error(err),
				)
				return nil
			}
			vecs[i] = vec
			return nil
		})
	}
	_ = g.Wait()

	resolved := make([]vector.Candidate, 0, len(pool))
	for i, c := range pool {
		if vecs[i] == nil {
			continue
		}
		resolved = append(resolved, vector.Candidate{ID: c.ID, Text: c.Text, Vector: vecs[i]})
	}
	return resolved
}

func (f *Finder) candidateVector(ctx context.Context, c models.ContentItem, useCache bool) ([]float32, error) {
	if len(c.Embedding) > 0 {
		return c.Embedding, nil
	}
	if useCache && f.cache != nil {
		if vec, ok := f.cache.Get(c.ID); ok {
			f.metrics.ObserveCache(true)
			return vec, nil
		}
		f.metrics.ObserveCache(false)
	}

	embed := func(ctx context.Context) ([]float32, error) {
		vec, err := f.embedder.Embed(ctx, c.Text)
		if err != nil {
			return nil, err
		}
		if f.cache != nil {
			f.cache.Set(c.ID, vec)
		}
		return vec, nil
	}
	if !f.config.DedupeInflightOrDefault() {
		return embed(ctx)
	}

	// The shared call outlives any single caller; each caller waits on its own ctx.
	ch := f.inflight.DoChan(c.ID+"\x00"+c.Text, func() (interface{}, error) {
		shared := context.WithoutCancel(ctx)
		if f.config.Timeout > 0 {
			var cancel context.CancelFunc
			shared, cancel = context.WithTimeout(shared, f.config.Timeout)
			defer cancel()
		}
		vec, err := embed(shared)
		return vec, err
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]float32), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// EmbedItems embeds each item that has no embedding yet and warms the cache.
// Items that fail are returned without an embedding.
func (f *Finder) EmbedItems(ctx context.Context, items []models.ContentItem) *models.EmbedResponse {
	out := make([]models.ContentItem, len(items))
	copy(out, items)

	var g errgroup.Group
	if f.config.Concurrency > 0 {
		g.SetLimit(f.config.Concurrency)
	}
	for i := range out {
		if len(out[i].Embedding) > 0 {
			continue
		}
		g.Go(func() error {
			vec, err := f.candidateVector(ctx, out[i], false)
			if err != nil {
				f.logger.Debug("embedding note failed", zap.String("id", out[i].ID), zap.Error(err))
				return nil
			}
			out[i].Embedding = vec
			return nil
		})
	}
	_ = g.Wait()

	resp := &models.EmbedResponse{Notes: out}
	for _, item := range out {
		if len(item.Embedding) > 0 {
			resp.Embedded++
		} else {
			resp.Failed++
		}
	}
	return resp
}

func (f *Finder) rankOptions(k int) vector.RankOptions {
	opts := vector.RankOptions{
		K:                    k,
		MaxSimilarity:        f.config.MaxSimilarity,
		FilterNearDuplicates: f.config.NearDuplicateFilterOrDefault(),
		PreviewLength:        f.config.PreviewLength,
		AlwaysEllipsis:       f.config.AlwaysEllipsisOrDefault(),
		OnDegenerate: func(id string, err error) {
			f.logger.Debug("candidate scored 0", zap.String("id", id), zap.Error(err))
		},
	}
	if opts.K == 0 {
		opts.K = f.config.DefaultK
	}
	if opts.MaxSimilarity == 0 {
		opts.MaxSimilarity = vector.DefaultMaxSimilarity
	}
	return opts
}

func excludeExactText(sourceText string, candidates []models.ContentItem) []models.ContentItem {
	src := strings.TrimSpace(sourceText)
	out := make([]models.ContentItem, 0, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c.Text) == src {
			continue
		}
		out = append(out, c)
	}
	return out
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, embedding.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, embedding.ErrEmbeddingUnavailable):
		return "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
