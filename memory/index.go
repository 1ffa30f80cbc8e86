package memory

import (
	"fmt"
	"sort"
)

// flatIndex is an exhaustive nearest-neighbor index over squared Euclidean
// distance. Vector positions parallel the store's record slice.
type flatIndex struct {
	dim     int
	vectors [][]float32
}

func newFlatIndex(dim int) *flatIndex {
	return &flatIndex{dim: dim}
}

func (ix *flatIndex) add(vec []float32) error {
	if len(vec) != ix.dim {
		return fmt.Errorf("%w: got %d, index holds %d", ErrDimensionMismatch, len(vec), ix.dim)
	}
	ix.vectors = append(ix.vectors, vec)
	return nil
}

type hit struct {
	pos  int
	dist float32
}

// search returns up to k hits sorted by ascending distance. Ties keep
// insertion order.
func (ix *flatIndex) search(query []float32, k int) ([]hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d, index holds %d", ErrDimensionMismatch, len(query), ix.dim)
	}
	hits := make([]hit, 0, len(ix.vectors))
	for pos, vec := range ix.vectors {
		hits = append(hits, hit{pos: pos, dist: squaredL2(query, vec)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
