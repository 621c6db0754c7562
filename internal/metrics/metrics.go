// Package metrics provides Prometheus metrics for embedding and related-note search.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	EmbedRequests   *prometheus.CounterVec
	EmbedRetries    prometheus.Counter
	EmbedDuration   prometheus.Histogram
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	CandidatesDrop  prometheus.Counter
	RelatedRequests *prometheus.CounterVec
	RelatedDuration prometheus.Histogram
	RelatedResults  prometheus.Histogram
}

// New creates the collectors and registers them with reg.
// Pass prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EmbedRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notecanvas_embed_requests_total",
			Help: "Embedding calls by outcome (ok, invalid, unavailable)",
		}, []string{"outcome"}),
		EmbedRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "notecanvas_embed_retries_total",
			Help: "Retries of transient embedding failures",
		}),
		EmbedDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "notecanvas_embed_duration_seconds",
			Help:    "Duration of embedding calls including retries",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "notecanvas_embedding_cache_hits_total",
			Help: "Candidate embeddings served from the cache",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "notecanvas_embedding_cache_misses_total",
			Help: "Candidate embeddings computed because the cache had no entry",
		}),
		CandidatesDrop: f.NewCounter(prometheus.CounterOpts{
			Name: "notecanvas_candidates_dropped_total",
			Help: "Candidates excluded because their embedding failed",
		}),
		RelatedRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notecanvas_related_requests_total",
			Help: "Related-note searches by outcome",
		}, []string{"outcome"}),
		RelatedDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "notecanvas_related_duration_seconds",
			Help:    "Duration of related-note searches",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		RelatedResults: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "notecanvas_related_results",
			Help:    "Number of results returned per related-note search",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		}),
	}
}

// ObserveEmbed records one embedding call.
func (m *Metrics) ObserveEmbed(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.EmbedRequests.WithLabelValues(outcome).Inc()
	m.EmbedDuration.Observe(d.Seconds())
}

// IncRetry records one retry attempt.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.EmbedRetries.Inc()
}

// ObserveCache records a cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
		return
	}
	m.CacheMisses.Inc()
}

// IncDropped records a candidate dropped after its embedding failed.
func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.CandidatesDrop.Inc()
}

// ObserveRelated records one related-note search.
func (m *Metrics) ObserveRelated(outcome string, results int, d time.Duration) {
	if m == nil {
		return
	}
	m.RelatedRequests.WithLabelValues(outcome).Inc()
	m.RelatedDuration.Observe(d.Seconds())
	m.RelatedResults.Observe(float64(results))
}
