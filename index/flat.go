// Package index provides an exact inner-product index over unit-length
// embeddings. Inner product equals cosine similarity for unit vectors.
package index

import (
	"errors"
	"fmt"
	"sort"

	"imagematch/embedding"
	"imagematch/types"
)

var (
	ErrEmptyIndex  = errors.New("index: no reference vectors")
	ErrDimMismatch = errors.New("index: vector dimension mismatch")
	ErrInvalidK    = errors.New("index: k must be positive")
)

// Hit is one ranked reference for a query.
type Hit struct {
	Index int
	Score float32
}

// Flat is an immutable exhaustive index. It is safe for concurrent Search
// calls.
type Flat struct {
	dim  int
	rows int
	data []float32
}

// NewFlat copies the vectors of set into a contiguous row-major buffer.
func NewFlat(set types.EmbeddingSet) (*Flat, error) {
	if len(set.Vectors) == 0 {
		return nil, ErrEmptyIndex
	}
	if len(set.Paths) != len(set.Vectors) {
		return nil, fmt.Errorf("index: %d paths for %d vectors", len(set.Paths), len(set.Vectors))
	}
	dim := set.Dim
	if dim == 0 {
		dim = len(set.Vectors[0])
	}

	data := make([]float32, 0, dim*len(set.Vectors))
	for i, v := range set.Vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: row %d has %d, want %d", ErrDimMismatch, i, len(v), dim)
		}
		data = append(data, v...)
	}
	return &Flat{dim: dim, rows: len(set.Vectors), data: data}, nil
}

// Dim returns the vector width.
func (f *Flat) Dim() int { return f.dim }

// Len returns the number of reference vectors.
func (f *Flat) Len() int { return f.rows }

// Search returns, for every query, the k highest-scoring references in
// descending score order (ties broken by lower reference index). k is
// clamped to Len.
func (f *Flat) Search(queries []types.Embedding, k int) ([][]Hit, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if k > f.rows {
		k = f.rows
	}
	for i, q := range queries {
		if len(q) != f.dim {
			return nil, fmt.Errorf("%w: query %d has %d, want %d", ErrDimMismatch, i, len(q), f.dim)
		}
	}

	out := make([][]Hit, len(queries))
	for qi, q := range queries {
		out[qi] = f.searchOne(q, k)
	}
	return out, nil
}

func (f *Flat) searchOne(q []float32, k int) []Hit {
	best := make([]Hit, 0, k)
	minPos := -1

	updateMin := func() {
		minPos = 0
		for i := 1; i < len(best); i++ {
			if worse(best[i], best[minPos]) {
				minPos = i
			}
		}
	}

	for row := 0; row < f.rows; row++ {
		h := Hit{Index: row, Score: embedding.Dot(f.data[row*f.dim:(row+1)*f.dim], q)}
		if len(best) < k {
			best = append(best, h)
			if len(best) == k {
				updateMin()
			}
			continue
		}
		if !worse(best[minPos], h) {
			continue
		}
		best[minPos] = h
		updateMin()
	}

	sort.Slice(best, func(i, j int) bool { return worse(best[j], best[i]) })
	return best
}

// worse reports whether a ranks below b.
func worse(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Index > b.Index
}
