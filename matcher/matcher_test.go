package matcher

import (
	"testing"

	"imagematch/index"
	"imagematch/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var targets = []string{"/t/cat.jpg", "/t/dog.jpg", "/t/bird.jpg"}

func TestEvaluateUnorderedHits(t *testing.T) {
	e := NewEvaluator(targets, Options{Threshold: 0.87})

	rec, ok := e.Evaluate("/s/q.jpg", []index.Hit{
		{Index: 0, Score: 0.50},
		{Index: 2, Score: 0.95},
		{Index: 1, Score: 0.90},
	})
	require.True(t, ok)
	assert.Equal(t, "/t/bird.jpg", rec.TargetPath)
	assert.Equal(t, float32(0.95), rec.Similarity)
	assert.Equal(t, 1, rec.Seq)
}

func TestEvaluateThresholdBoundary(t *testing.T) {
	e := NewEvaluator(targets, Options{Threshold: 0.87})

	_, ok := e.Evaluate("/s/equal.jpg", []index.Hit{{Index: 0, Score: 0.87}})
	assert.True(t, ok, "score equal to threshold is a match")

	_, ok = e.Evaluate("/s/below.jpg", []index.Hit{{Index: 0, Score: 0.87 - 1e-6}})
	assert.False(t, ok)

	assert.Equal(t, 1, e.Matches())
	assert.Equal(t, 2, e.Evaluated())
}

func TestEvaluateSequenceNumbers(t *testing.T) {
	e := NewEvaluator(targets, Options{Threshold: 0.5})
	var seqs []int
	for _, s := range []float32{0.9, 0.1, 0.6, 0.7} {
		if rec, ok := e.Evaluate("/q", []index.Hit{{Index: 1, Score: s}}); ok {
			seqs = append(seqs, rec.Seq)
		}
	}
	assert.Equal(t, []int{1, 2, 3}, seqs)
}

func TestEvaluateMaxResults(t *testing.T) {
	e := NewEvaluator(targets, Options{Threshold: 0.1, MaxResults: 2})
	hit := []index.Hit{{Index: 0, Score: 0.9}}

	_, ok := e.Evaluate("/a", hit)
	assert.True(t, ok)
	assert.False(t, e.Exhausted())
	_, ok = e.Evaluate("/b", hit)
	assert.True(t, ok)
	assert.True(t, e.Exhausted())

	_, ok = e.Evaluate("/c", hit)
	assert.False(t, ok)
	assert.Equal(t, 2, e.Matches())
}

func TestEvaluateEmptyHits(t *testing.T) {
	e := NewEvaluator(targets, Options{Threshold: 0.1})
	_, ok := e.Evaluate("/a", nil)
	assert.False(t, ok)
	assert.Equal(t, 0, e.Evaluated())
}

func TestStatisticsEmpty(t *testing.T) {
	e := NewEvaluator(targets, Options{Threshold: 0.87, TopN: 10})
	stats := e.Statistics()
	assert.Equal(t, 0, stats.Count)
	assert.Zero(t, stats.Max)
	assert.Zero(t, stats.Mean)
	assert.Zero(t, stats.Median)
	assert.Zero(t, stats.Min)
	assert.NotNil(t, stats.Top)
	assert.Empty(t, stats.Top)
}

func TestStatisticsIncludeNonMatches(t *testing.T) {
	e := NewEvaluator(targets, Options{Threshold: 0.87, TopN: 2})
	for i, s := range []float32{0.25, 0.5, 1.0, 0.75} {
		e.Evaluate(string(rune('a'+i)), []index.Hit{{Index: 0, Score: s}})
	}

	stats := e.Statistics()
	assert.Equal(t, 4, stats.Count)
	assert.InDelta(t, 1.0, stats.Max, 1e-9)
	assert.InDelta(t, 0.25, stats.Min, 1e-9)
	assert.InDelta(t, 0.625, stats.Mean, 1e-9)
	assert.InDelta(t, 0.625, stats.Median, 1e-9)

	require.Len(t, stats.Top, 2)
	assert.Equal(t, "c", stats.Top[0].QueryPath)
	assert.Equal(t, "d", stats.Top[1].QueryPath)
}

func TestSummarizeOddMedianAndStableTop(t *testing.T) {
	scored := []types.ScoredQuery{
		{QueryPath: "x", Similarity: 0.5},
		{QueryPath: "y", Similarity: 0.5},
		{QueryPath: "z", Similarity: 0.25},
	}
	stats := Summarize(scored, 5)
	assert.InDelta(t, 0.5, stats.Median, 1e-9)
	require.Len(t, stats.Top, 3)
	assert.Equal(t, []string{"x", "y", "z"},
		[]string{stats.Top[0].QueryPath, stats.Top[1].QueryPath, stats.Top[2].QueryPath})
}

func TestVerdictBands(t *testing.T) {
	assert.Equal(t, VerdictVerySimilar, Verdict(0.95))
	assert.Equal(t, VerdictVerySimilar, Verdict(0.90))
	assert.Equal(t, VerdictSimilar, Verdict(0.85))
	assert.Equal(t, VerdictSomewhatSimilar, Verdict(0.70))
	assert.Equal(t, VerdictLow, Verdict(0.69))
	assert.Equal(t, VerdictLow, Verdict(-1))
}
