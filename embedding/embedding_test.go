package embedding

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"imagematch/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUnitLength(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		raw := make([]float32, 2048)
		for i := range raw {
			raw[i] = rng.Float32()*10 - 5
		}
		v := Normalize(raw)
		assert.InDelta(t, 1.0, Norm(v), 1e-5)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	v := Normalize([]float32{3, 4})
	again := Normalize(v)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, []float32(v), 1e-6)
	assert.InDeltaSlice(t, []float32(v), []float32(again), 1e-6)
}

func TestNormalizeZeroVector(t *testing.T) {
	v := Normalize([]float32{0, 0, 0})
	assert.Equal(t, types.Embedding{0, 0, 0}, v)
}

func TestNormalizeDoesNotAlias(t *testing.T) {
	raw := []float32{2, 0}
	v := Normalize(raw)
	v[0] = 99
	assert.Equal(t, float32(2), raw[0])
}

func TestDot(t *testing.T) {
	a := []float32{1, 2, 3, 4, 5}
	b := []float32{5, 4, 3, 2, 1}
	assert.Equal(t, float32(35), Dot(a, b))
	assert.Equal(t, float32(0), Dot(nil, b))
}

// fakeExtractor fails for paths containing "corrupt" and returns a one-hot
// vector derived from the path otherwise.
type fakeExtractor struct {
	dim   int
	delay bool
	calls atomic.Int32
}

func (f *fakeExtractor) Dim() int { return f.dim }

func (f *fakeExtractor) Extract(path string) (types.Embedding, error) {
	f.calls.Add(1)
	if f.delay {
		time.Sleep(time.Duration(len(path)%5) * time.Millisecond)
	}
	switch {
	case strings.Contains(path, "corrupt"):
		return nil, types.NewImageError(path, types.ErrUnreadableImage, nil)
	case strings.Contains(path, "huge"):
		return nil, types.NewImageError(path, types.ErrTooLarge, nil)
	case strings.Contains(path, "narrow"):
		return types.Embedding{1}, nil
	case strings.Contains(path, "panic"):
		panic("decoder exploded")
	}
	v := make(types.Embedding, f.dim)
	v[len(path)%f.dim] = 1
	return v, nil
}

func TestBuildFailureIsolation(t *testing.T) {
	var paths []string
	for i := 0; i < 10; i++ {
		if i%3 == 1 {
			paths = append(paths, fmt.Sprintf("/data/corrupt_%d.jpg", i))
		} else {
			paths = append(paths, fmt.Sprintf("/data/ok_%d.jpg", i))
		}
	}

	b := NewBuilder(&fakeExtractor{dim: 4}, Options{Workers: 3})
	res := b.Build(context.Background(), paths)

	assert.Equal(t, 7, res.Set.Len())
	assert.Len(t, res.Set.Vectors, 7)
	assert.Equal(t, 3, res.Failed)
	assert.Equal(t, 3, res.Reasons[types.ReasonUnreadable])
	for _, p := range res.Set.Paths {
		assert.NotContains(t, p, "corrupt")
	}
}

func TestBuildPreservesOrder(t *testing.T) {
	var paths []string
	for i := 0; i < 40; i++ {
		paths = append(paths, fmt.Sprintf("/corpus/%03d%s.png", i, strings.Repeat("x", i%7)))
	}
	paths[5] = "/corpus/corrupt.png"

	ex := &fakeExtractor{dim: 8, delay: true}
	res := NewBuilder(ex, Options{Workers: 8}).Build(context.Background(), paths)

	want := append(append([]string{}, paths[:5]...), paths[6:]...)
	assert.Equal(t, want, res.Set.Paths)
	assert.Equal(t, int32(40), ex.calls.Load())
}

func TestBuildAllFailedIsEmptyNotNil(t *testing.T) {
	res := NewBuilder(&fakeExtractor{dim: 2048}, Options{}).Build(context.Background(), []string{"corrupt_a", "corrupt_b"})

	require.NotNil(t, res.Set.Paths)
	require.NotNil(t, res.Set.Vectors)
	assert.Equal(t, 0, res.Set.Len())
	assert.Equal(t, 2048, res.Set.Dim)
	assert.Equal(t, 2, res.Failed)
}

func TestBuildEmptyInput(t *testing.T) {
	res := NewBuilder(&fakeExtractor{dim: 16}, Options{Workers: 4}).Build(context.Background(), nil)
	assert.Equal(t, 0, res.Set.Len())
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 16, res.Set.Dim)
}

func TestBuildSinglePath(t *testing.T) {
	res := NewBuilder(&fakeExtractor{dim: 4}, Options{Workers: 1}).Build(context.Background(), []string{"/a.jpg"})
	require.Equal(t, 1, res.Set.Len())
	assert.Equal(t, "/a.jpg", res.Set.Paths[0])
}

func TestBuildCategorizesFailures(t *testing.T) {
	paths := []string{"/a/huge.jpg", "/a/narrow.jpg", "/a/panic.jpg", "/a/corrupt.jpg", "/a/fine.jpg"}
	var seen atomic.Int32
	b := NewBuilder(&fakeExtractor{dim: 4}, Options{
		Workers:  2,
		OnResult: func(string, error) { seen.Add(1) },
	})
	res := b.Build(context.Background(), paths)

	assert.Equal(t, 1, res.Set.Len())
	assert.Equal(t, 4, res.Failed)
	assert.Equal(t, 1, res.Reasons[types.ReasonTooLarge])
	assert.Equal(t, 1, res.Reasons[types.ReasonUnreadable])
	assert.Equal(t, 2, res.Reasons[types.ReasonExtraction])
	assert.Equal(t, int32(5), seen.Load())
}

func TestNormHandlesLargeValues(t *testing.T) {
	v := []float32{math.MaxFloat32 / 2, math.MaxFloat32 / 2}
	n := Norm(v)
	assert.False(t, math.IsInf(n, 0))
	assert.InDelta(t, 1.0, Norm(Normalize(v)), 1e-5)
}

func TestBuildCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := &fakeExtractor{dim: 4}
	res := NewBuilder(ex, Options{Workers: 2}).Build(ctx, []string{"/a.jpg", "/b.jpg"})

	assert.Equal(t, 0, res.Set.Len())
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, int32(0), ex.calls.Load())
}
