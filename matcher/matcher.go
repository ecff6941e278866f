// Package matcher turns index hits into accepted matches and keeps the
// similarity statistics of a run.
package matcher

import (
	"sort"

	"imagematch/index"
	"imagematch/logging"
	"imagematch/types"
)

// Options configures an Evaluator.
type Options struct {
	Threshold  float64
	MaxResults int // 0 means unlimited
	TopN       int
}

// Evaluator decides, query by query, whether the best hit is a match. It is
// not safe for concurrent use; the pipeline feeds it from one goroutine.
type Evaluator struct {
	targets    []string
	threshold  float32
	maxResults int
	topN       int

	seq    int
	scored []types.ScoredQuery
}

// NewEvaluator creates an Evaluator. targets maps hit indices to paths.
func NewEvaluator(targets []string, opts Options) *Evaluator {
	return &Evaluator{
		targets:    targets,
		threshold:  float32(opts.Threshold),
		maxResults: opts.MaxResults,
		topN:       opts.TopN,
	}
}

// Evaluate picks the highest-scoring hit, records it in the statistics and
// returns a MatchRecord when the score reaches the threshold. Hits need not
// be sorted. A query with no hits is ignored.
func (e *Evaluator) Evaluate(queryPath string, hits []index.Hit) (types.MatchRecord, bool) {
	if len(hits) == 0 || e.Exhausted() {
		return types.MatchRecord{}, false
	}

	best := hits[0]
	for _, h := range hits[1:] {
		if h.Score > best.Score || (h.Score == best.Score && h.Index < best.Index) {
			best = h
		}
	}

	target := ""
	if best.Index >= 0 && best.Index < len(e.targets) {
		target = e.targets[best.Index]
	}
	e.scored = append(e.scored, types.ScoredQuery{
		QueryPath:  queryPath,
		TargetPath: target,
		Similarity: best.Score,
	})

	if best.Score < e.threshold {
		return types.MatchRecord{}, false
	}

	e.seq++
	rec := types.MatchRecord{
		Seq:        e.seq,
		QueryPath:  queryPath,
		TargetPath: target,
		Similarity: best.Score,
	}
	logging.LogMatch(rec.Seq, rec.QueryPath, rec.TargetPath, rec.Similarity)
	return rec, true
}

// Exhausted reports whether MaxResults matches have been emitted.
func (e *Evaluator) Exhausted() bool {
	return e.maxResults > 0 && e.seq >= e.maxResults
}

// Matches returns the number of emitted matches.
func (e *Evaluator) Matches() int { return e.seq }

// Evaluated returns the number of queries that produced a score.
func (e *Evaluator) Evaluated() int { return len(e.scored) }

// Statistics summarises every recorded best score. All fields are zero
// when nothing was evaluated.
func (e *Evaluator) Statistics() types.RunStatistics {
	return Summarize(e.scored, e.topN)
}

// Summarize computes max, mean, median, min and the topN highest scores.
// Equal scores keep their evaluation order.
func Summarize(scored []types.ScoredQuery, topN int) types.RunStatistics {
	stats := types.RunStatistics{Top: []types.ScoredQuery{}}
	n := len(scored)
	if n == 0 {
		return stats
	}

	values := make([]float64, n)
	var sum float64
	for i, s := range scored {
		values[i] = float64(s.Similarity)
		sum += values[i]
	}
	sort.Float64s(values)

	stats.Count = n
	stats.Min = values[0]
	stats.Max = values[n-1]
	stats.Mean = sum / float64(n)
	if n%2 == 1 {
		stats.Median = values[n/2]
	} else {
		stats.Median = (values[n/2-1] + values[n/2]) / 2
	}

	if topN > 0 {
		ranked := append([]types.ScoredQuery(nil), scored...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Similarity > ranked[j].Similarity
		})
		if len(ranked) > topN {
			ranked = ranked[:topN]
		}
		stats.Top = ranked
	}
	return stats
}
