package index

import (
	"math/rand"
	"sort"
	"sync"
	"testing"

	"imagematch/embedding"
	"imagematch/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setOf(vecs ...types.Embedding) types.EmbeddingSet {
	s := types.NewEmbeddingSet(len(vecs[0]))
	for i, v := range vecs {
		s.Append(string(rune('a'+i)), v)
	}
	return s
}

func randomUnit(rng *rand.Rand, dim int) types.Embedding {
	raw := make([]float32, dim)
	for i := range raw {
		raw[i] = float32(rng.NormFloat64())
	}
	return embedding.Normalize(raw)
}

func TestNewFlatEmpty(t *testing.T) {
	_, err := NewFlat(types.NewEmbeddingSet(2048))
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestNewFlatRagged(t *testing.T) {
	s := types.NewEmbeddingSet(3)
	s.Append("a", types.Embedding{1, 0, 0})
	s.Append("b", types.Embedding{1, 0})
	_, err := NewFlat(s)
	assert.ErrorIs(t, err, ErrDimMismatch)
}

func TestSearchOrdersDescending(t *testing.T) {
	idx, err := NewFlat(setOf(
		types.Embedding{1, 0},
		types.Embedding{0, 1},
		embedding.Normalize([]float32{1, 1}),
	))
	require.NoError(t, err)

	res, err := idx.Search([]types.Embedding{{1, 0}}, 3)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Len(t, res[0], 3)

	assert.Equal(t, 0, res[0][0].Index)
	assert.InDelta(t, 1.0, res[0][0].Score, 1e-6)
	assert.Equal(t, 2, res[0][1].Index)
	assert.InDelta(t, 0.7071, res[0][1].Score, 1e-3)
	assert.Equal(t, 1, res[0][2].Index)
}

func TestSearchClampsK(t *testing.T) {
	idx, err := NewFlat(setOf(types.Embedding{1, 0}, types.Embedding{0, 1}))
	require.NoError(t, err)

	res, err := idx.Search([]types.Embedding{{0, 1}}, 5)
	require.NoError(t, err)
	assert.Len(t, res[0], 2)
}

func TestSearchRejectsBadInput(t *testing.T) {
	idx, err := NewFlat(setOf(types.Embedding{1, 0}))
	require.NoError(t, err)

	_, err = idx.Search([]types.Embedding{{1, 0}}, 0)
	assert.ErrorIs(t, err, ErrInvalidK)

	_, err = idx.Search([]types.Embedding{{1, 0, 0}}, 1)
	assert.ErrorIs(t, err, ErrDimMismatch)
}

func TestSearchTiesPreferLowerIndex(t *testing.T) {
	idx, err := NewFlat(setOf(types.Embedding{0, 1}, types.Embedding{1, 0}, types.Embedding{1, 0}))
	require.NoError(t, err)

	res, err := idx.Search([]types.Embedding{{1, 0}}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res[0][0].Index)
}

func TestSearchMatchesExhaustiveScan(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const dim, rows, k = 64, 300, 7

	vecs := make([]types.Embedding, rows)
	for i := range vecs {
		vecs[i] = randomUnit(rng, dim)
	}
	idx, err := NewFlat(setOf(vecs...))
	require.NoError(t, err)

	queries := []types.Embedding{randomUnit(rng, dim), randomUnit(rng, dim), vecs[17]}
	res, err := idx.Search(queries, k)
	require.NoError(t, err)

	for qi, q := range queries {
		all := make([]Hit, rows)
		for i, v := range vecs {
			all[i] = Hit{Index: i, Score: embedding.Dot(v, q)}
		}
		sort.Slice(all, func(i, j int) bool { return worse(all[j], all[i]) })
		assert.Equal(t, all[:k], res[qi], "query %d", qi)
	}
	assert.Equal(t, 17, res[2][0].Index)
}

func TestSearchBatchOfMany(t *testing.T) {
	idx, err := NewFlat(setOf(types.Embedding{1, 0}, types.Embedding{0, 1}))
	require.NoError(t, err)

	res, err := idx.Search([]types.Embedding{{1, 0}, {0, 1}, {0, -1}}, 1)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, 0, res[0][0].Index)
	assert.Equal(t, 1, res[1][0].Index)
	assert.Equal(t, 0, res[2][0].Index)
	assert.InDelta(t, 0.0, res[2][0].Score, 1e-6)
}

func TestSearchConcurrentReaders(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	vecs := make([]types.Embedding, 50)
	for i := range vecs {
		vecs[i] = randomUnit(rng, 16)
	}
	idx, err := NewFlat(setOf(vecs...))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := idx.Search([]types.Embedding{vecs[i]}, 3)
			assert.NoError(t, err)
			assert.Equal(t, i, res[0][0].Index)
		}(i)
	}
	wg.Wait()
}
