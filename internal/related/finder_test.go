package related

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/notecanvas/internal/config"
	"github.com/hyperjump/notecanvas/internal/embedding"
	"github.com/hyperjump/notecanvas/internal/metrics"
	"github.com/hyperjump/notecanvas/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var vocab = []string{"fox", "quick", "brown", "fast", "jumps", "cooking", "topic"}

// bowEmbedder embeds text as word counts over vocab. Texts listed in fail return an
// unavailable error; delay slows every call down.
type bowEmbedder struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
	delay time.Duration
}

func newBowEmbedder() *bowEmbedder {
	return &bowEmbedder{calls: make(map[string]int), fail: make(map[string]bool)}
}

func (e *bowEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, embedding.ErrInvalidInput
	}
	e.mu.Lock()
	e.calls[text]++
	fail := e.fail[text]
	e.mu.Unlock()

	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, fmt.Errorf("%w: remote down", embedding.ErrEmbeddingUnavailable)
	}
	vec := make([]float32, len(vocab))
	for _, w := range strings.Fields(strings.ToLower(text)) {
		for i, v := range vocab {
			if w == v {
				vec[i]++
			}
		}
	}
	return vec, nil
}

func (e *bowEmbedder) Dimensions() int { return len(vocab) }
func (e *bowEmbedder) Close() error    { return nil }

func (e *bowEmbedder) totalCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		n += c
	}
	return n
}

func testConfig() *config.RelatedConfig {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return &cfg.Related
}

var foxCandidates = []models.ContentItem{
	{ID: "a", Text: "The quick brown fox"},
	{ID: "b", Text: "A fast fox jumps"},
	{ID: "c", Text: "Completely unrelated topic about cooking"},
}

func TestFindRelated_QuickBrownFox(t *testing.T) {
	emb := newBowEmbedder()
	f := NewFinder(emb, embedding.NewCache(0), testConfig())

	got, err := f.FindRelated(context.Background(), "The quick brown fox", foxCandidates, Options{K: 3, UseCache: true})
	if err != nil {
		t.Fatalf("FindRelated: %v", err)
	}
	if len(got) > 2 {
		t.Fatalf("len=%d, want at most 2", len(got))
	}
	for _, r := range got {
		if r.ID == "a" {
			t.Fatal("exact text match must be excluded")
		}
	}
	if len(got) < 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Fatalf("want b then c, got %+v", got)
	}
	if got[0].Similarity <= got[1].Similarity {
		t.Errorf("b (%v) should score above c (%v)", got[0].Similarity, got[1].Similarity)
	}
	if got[0].Preview != "A fast fox jumps..." {
		t.Errorf("preview=%q", got[0].Preview)
	}
	if emb.calls["The quick brown fox"] != 1 {
		t.Errorf("source should be embedded once and the exact match never, got %d", emb.calls["The quick brown fox"])
	}
}

func TestFindRelated_ExactMatchIgnoresSurroundingSpace(t *testing.T) {
	emb := newBowEmbedder()
	f := NewFinder(emb, nil, testConfig())
	candidates := []models.ContentItem{{ID: "a", Text: "  quick fox \n"}, {ID: "b", Text: "fast fox"}}

	got, err := f.FindRelated(context.Background(), "quick fox", candidates, Options{K: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("got %+v, want only b", got)
	}
}

func TestFindRelated_EmptyCandidates(t *testing.T) {
	emb := newBowEmbedder()
	f := NewFinder(emb, nil, testConfig())

	got, err := f.FindRelated(context.Background(), "quick fox", []models.ContentItem{}, Options{K: 3})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
	if emb.totalCalls() != 0 {
		t.Errorf("no embeddings expected, got %d calls", emb.totalCalls())
	}
}

func TestFindRelated_EmptySource(t *testing.T) {
	f := NewFinder(newBowEmbedder(), nil, testConfig())
	_, err := f.FindRelated(context.Background(), "  ", foxCandidates, Options{K: 3})
	if !errors.Is(err, embedding.ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}

func TestFindRelated_SourceFailureIsFatal(t *testing.T) {
	emb := newBowEmbedder()
	emb.fail["quick fox"] = true
	f := NewFinder(emb, nil, testConfig())

	got, err := f.FindRelated(context.Background(), "quick fox", foxCandidates, Options{K: 3})
	if !errors.Is(err, embedding.ErrEmbeddingUnavailable) {
		t.Fatalf("got %v, want ErrEmbeddingUnavailable", err)
	}
	if got != nil {
		t.Errorf("no partial result expected, got %+v", got)
	}
}

func TestFindRelated_CandidateFailureDropsCandidate(t *testing.T) {
	emb := newBowEmbedder()
	emb.fail["A fast fox jumps"] = true
	m := metrics.New(prometheus.NewRegistry())
	f := NewFinder(emb, embedding.NewCache(0), testConfig(), WithMetrics(m))

	got, err := f.FindRelated(context.Background(), "The quick brown fox", foxCandidates, Options{K: 3, UseCache: true})
	if err != nil {
		t.Fatalf("candidate failure must not fail the request: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c" {
		t.Errorf("got %+v, want only c", got)
	}
	if v := testutil.ToFloat64(m.CandidatesDrop); v != 1 {
		t.Errorf("dropped metric=%v, want 1", v)
	}
}

func TestFindRelated_WarmCache(t *testing.T) {
	emb := newBowEmbedder()
	cache := embedding.NewCache(0)
	f := NewFinder(emb, cache, testConfig())
	ctx := context.Background()

	first, err := f.FindRelated(ctx, "The quick brown fox", foxCandidates, Options{K: 3, UseCache: true})
	if err != nil {
		t.Fatal(err)
	}
	callsAfterFirst := emb.totalCalls()
	if cache.Len() != 2 {
		t.Errorf("cache has %d entries, want 2", cache.Len())
	}

	second, err := f.FindRelated(ctx, "The quick brown fox", foxCandidates, Options{K: 3, UseCache: true})
	if err != nil {
		t.Fatal(err)
	}
	if diff := emb.totalCalls() - callsAfterFirst; diff != 1 {
		t.Errorf("warm call made %d embeddings, want only the source", diff)
	}
	if len(first) != len(second) {
		t.Fatalf("results differ: %+v vs %+v", first, second)
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Similarity != second[i].Similarity {
			t.Errorf("result %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}

	_, err = f.FindRelated(ctx, "The quick brown fox", foxCandidates, Options{K: 3, UseCache: false})
	if err != nil {
		t.Fatal(err)
	}
	if diff := emb.totalCalls() - callsAfterFirst; diff != 4 {
		t.Errorf("with cache disabled want source and both candidates re-embedded, got %d extra calls", diff-1)
	}
}

func TestFindRelated_PrecomputedEmbedding(t *testing.T) {
	emb := newBowEmbedder()
	f := NewFinder(emb, nil, testConfig())
	candidates := []models.ContentItem{
		{ID: "p", Text: "has its own vector", Embedding: []float32{1, 1, 0, 0, 0, 0, 0}},
	}
	got, err := f.FindRelated(context.Background(), "quick brown fox", candidates, Options{K: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "p" {
		t.Fatalf("got %+v", got)
	}
	if emb.calls["has its own vector"] != 0 {
		t.Error("precomputed embedding should not be recomputed")
	}
}

func TestFindRelated_OrderUnderConcurrency(t *testing.T) {
	emb := newBowEmbedder()
	emb.delay = time.Millisecond
	cfg := testConfig()
	cfg.Concurrency = 4
	f := NewFinder(emb, nil, cfg)

	var candidates []models.ContentItem
	for i := 0; i < 30; i++ {
		// identical vectors, distinct texts: ties must keep input order
		candidates = append(candidates, models.ContentItem{ID: fmt.Sprintf("n%02d", i), Text: fmt.Sprintf("fast fox %d", i)})
	}
	got, err := f.FindRelated(context.Background(), "quick fox", candidates, Options{K: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 10 {
		t.Fatalf("len=%d, want 10", len(got))
	}
	for i, r := range got {
		if want := fmt.Sprintf("n%02d", i); r.ID != want {
			t.Errorf("got[%d]=%s, want %s", i, r.ID, want)
		}
	}
}

func TestFindRelated_ExcludesSourceID(t *testing.T) {
	f := NewFinder(newBowEmbedder(), nil, testConfig())
	candidates := []models.ContentItem{
		{ID: "self", Text: "quick brown fox jumps"},
		{ID: "other", Text: "fast fox"},
	}
	got, err := f.FindRelated(context.Background(), "quick brown fox", candidates, Options{K: 3, SourceID: "self"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "other" {
		t.Errorf("got %+v, want only other", got)
	}
}

func TestFindRelated_Timeout(t *testing.T) {
	emb := newBowEmbedder()
	emb.delay = time.Second
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	f := NewFinder(emb, nil, cfg)

	start := time.Now()
	_, err := f.FindRelated(context.Background(), "quick fox", foxCandidates, Options{K: 3})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("timeout not honored, took %s", time.Since(start))
	}
}

func TestEmbedItems(t *testing.T) {
	emb := newBowEmbedder()
	emb.fail["broken"] = true
	cache := embedding.NewCache(0)
	f := NewFinder(emb, cache, testConfig())

	items := []models.ContentItem{
		{ID: "1", Text: "quick fox"},
		{ID: "2", Text: "broken"},
		{ID: "3", Text: "given", Embedding: []float32{1}},
	}
	resp := f.EmbedItems(context.Background(), items)
	if resp.Embedded != 2 || resp.Failed != 1 {
		t.Errorf("embedded=%d failed=%d, want 2 and 1", resp.Embedded, resp.Failed)
	}
	if len(resp.Notes) != 3 || resp.Notes[1].Embedding != nil {
		t.Errorf("failed note should come back without an embedding: %+v", resp.Notes[1])
	}
	if _, ok := cache.Get("1"); !ok {
		t.Error("successful embedding should warm the cache")
	}
	if items[0].Embedding != nil {
		t.Error("input slice must not be modified")
	}
}

// gateEmbedder blocks every call until release is closed.
type gateEmbedder struct {
	release chan struct{}
	calls   atomic.Int32
}

func (e *gateEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	select {
	case <-e.release:
		return []float32{1, 0}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *gateEmbedder) Dimensions() int { return 2 }
func (e *gateEmbedder) Close() error    { return nil }

func TestCandidateVector_SharedCallSurvivesCancelledCaller(t *testing.T) {
	emb := &gateEmbedder{release: make(chan struct{})}
	cache := embedding.NewCache(0)
	f := NewFinder(emb, cache, testConfig())
	c := models.ContentItem{ID: "b", Text: "A fast fox jumps"}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := f.candidateVector(ctxA, c, false)
		errA <- err
	}()

	type result struct {
		vec []float32
		err error
	}
	resB := make(chan result, 1)
	time.Sleep(10 * time.Millisecond)
	go func() {
		vec, err := f.candidateVector(context.Background(), c, false)
		resB <- result{vec, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("first caller: got %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(emb.release)
	select {
	case r := <-resB:
		if r.err != nil {
			t.Fatalf("second caller failed because the first was cancelled: %v", r.err)
		}
		if len(r.vec) != 2 {
			t.Errorf("vec=%v", r.vec)
		}
	case <-time.After(time.Second):
		t.Fatal("second caller did not return")
	}
	if got := emb.calls.Load(); got != 1 {
		t.Errorf("embed calls=%d, want 1 shared call", got)
	}
	if _, ok := cache.Get("b"); !ok {
		t.Error("shared call should still warm the cache")
	}
}

func TestFindRelated_TimeoutThroughRetryIsNotUnavailable(t *testing.T) {
	emb := newBowEmbedder()
	emb.delay = time.Second
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	retrying := embedding.NewRetryEmbedder(emb, embedding.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond})
	f := NewFinder(retrying, nil, cfg)

	_, err := f.FindRelated(context.Background(), "quick fox", foxCandidates, Options{K: 3})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}
	if errors.Is(err, embedding.ErrEmbeddingUnavailable) {
		t.Errorf("an expired request deadline should not report the provider unavailable: %v", err)
	}
}
