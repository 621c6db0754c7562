package vector

import (
	"sort"

	"github.com/hyperjump/notecanvas/internal/models"
	"github.com/hyperjump/notecanvas/pkg/utils"
)

// DefaultMaxSimilarity is the score above which a candidate counts as the same text.
const DefaultMaxSimilarity = 0.9999

// Candidate is a note with a resolved embedding.
type Candidate struct {
	ID     string
	Text   string
	Vector []float32
}

// RankOptions controls filtering, truncation and previews.
type RankOptions struct {
	K                    int
	MaxSimilarity        float64
	FilterNearDuplicates bool
	PreviewLength        int
	AlwaysEllipsis       bool
	// OnDegenerate is called for candidates scored 0 because of a zero or mismatched vector.
	OnDegenerate func(id string, err error)
}

// DefaultRankOptions returns k=3, the 0.9999 near-duplicate cutoff and 100-character previews
// that always end in "...".
func DefaultRankOptions() RankOptions {
	return RankOptions{
		K:                    3,
		MaxSimilarity:        DefaultMaxSimilarity,
		FilterNearDuplicates: true,
		PreviewLength:        100,
		AlwaysEllipsis:       true,
	}
}

// Rank scores candidates against source by cosine similarity and returns at most K of them,
// highest first. Candidates whose id equals sourceID are skipped, as are scores above
// MaxSimilarity when FilterNearDuplicates is set. Equal scores keep input order.
func Rank(source []float32, sourceID string, candidates []Candidate, opts RankOptions) []*models.RankedResult {
	if opts.K <= 0 || len(candidates) == 0 {
		return []*models.RankedResult{}
	}

	scored := make([]*models.RankedResult, 0, len(candidates))
	for _, c := range candidates {
		if sourceID != "" && c.ID == sourceID {
			continue
		}
		sim, err := Similarity(source, c.Vector)
		if err != nil && opts.OnDegenerate != nil {
			opts.OnDegenerate(c.ID, err)
		}
		if opts.FilterNearDuplicates && sim > opts.MaxSimilarity {
			continue
		}
		scored = append(scored, &models.RankedResult{
			ID:         c.ID,
			Text:       c.Text,
			Preview:    utils.Preview(c.Text, opts.PreviewLength, opts.AlwaysEllipsis),
			Similarity: sim,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > opts.K {
		scored = scored[:opts.K]
	}
	return scored
}
