// Package bruteforce ranks the rows of an embedding set by cosine similarity
// to a query vector.
package bruteforce

import (
	"fmt"
	"math"
	"sort"

	"github.com/neurlang/imgembed/embedding"
)

// Index is a brute-force cosine index over an embedding set.
type Index struct {
	set  *embedding.Set
	mags []float64
}

// Build precomputes row magnitudes. The set is referenced, not copied.
func Build(s *embedding.Set) (*Index, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("bruteforce: %w", err)
	}
	mags := make([]float64, s.Len())
	for j, v := range s.Vectors {
		mags[j] = Magnitude(v)
	}
	return &Index{set: s, mags: mags}, nil
}

// Len returns the number of indexed rows.
func (i *Index) Len() int {
	return len(i.mags)
}

// Query returns the k most similar rows, best first. Equal scores keep
// row order. Zero rows and a zero query match nothing; k <= 0 returns all.
func (i *Index) Query(query []float32, k int) ([]embedding.Hit, error) {
	if i.set.Len() == 0 {
		return nil, nil
	}
	if len(query) != i.set.Dim {
		return nil, fmt.Errorf("bruteforce: query dim %d != index dim %d", len(query), i.set.Dim)
	}
	qm := Magnitude(query)
	if qm == 0 {
		return nil, nil
	}
	hits := make([]embedding.Hit, 0, len(i.mags))
	for j, v := range i.set.Vectors {
		if i.mags[j] == 0 {
			continue
		}
		s := Dot(query, v) / (qm * i.mags[j])
		if math.IsNaN(s) {
			continue
		}
		hits = append(hits, embedding.Hit{Index: j, Path: i.set.Paths[j], Score: s})
	}
	Rank(hits)
	if k <= 0 || k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Rank orders hits by descending score, then ascending index.
func Rank(hits []embedding.Hit) {
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Index < hits[b].Index
	})
}

// Dot accumulates in float64.
func Dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func Magnitude(v []float32) float64 { return math.Sqrt(Dot(v, v)) }
