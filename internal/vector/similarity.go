// Package vector provides cosine similarity and top-k ranking of note embeddings.
package vector

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimensionMismatch is returned when two vectors have different lengths.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrDegenerateVector is returned when a vector is empty or has zero magnitude.
	ErrDegenerateVector = errors.New("degenerate vector")
)

// Similarity returns the cosine similarity of a and b in [-1, 1].
// Mismatched lengths and zero-magnitude vectors yield 0 with an error describing why.
func Similarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrDegenerateVector)
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, fmt.Errorf("%w: zero magnitude", ErrDegenerateVector)
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// rounding can push identical vectors just past 1
	return math.Max(-1, math.Min(1, sim)), nil
}

// CosineSimilarity is Similarity with errors folded to 0.
func CosineSimilarity(a, b []float32) float64 {
	sim, _ := Similarity(a, b)
	return sim
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
