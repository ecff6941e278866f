// Package pipeline runs a full match: embed the targets, index them, then
// stream the search corpus through the index in batches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"imagematch/config"
	"imagematch/embedding"
	"imagematch/index"
	"imagematch/logging"
	"imagematch/matcher"
	"imagematch/metrics"
	"imagematch/scanner"
	"imagematch/types"

	"github.com/google/uuid"
)

// ErrFatalConfiguration marks errors that abort a run before or during
// target indexing: missing directories or no usable target images.
var ErrFatalConfiguration = errors.New("fatal configuration")

// Options configures a run.
type Options struct {
	TargetDir string
	SearchDir string
	Config    config.Config
	Extractor embedding.Extractor

	// Metrics may be nil.
	Metrics *metrics.Metrics

	// Progress receives progress bars; nil disables them.
	Progress io.Writer

	// OnMatch, if set, is called for every accepted match in order.
	OnMatch func(types.MatchRecord)
}

// Result is the outcome of a completed run.
type Result struct {
	RunID      string    `json:"run_id"`
	TargetDir  string    `json:"target_dir"`
	SearchDir  string    `json:"search_dir"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	TargetCount   int            `json:"target_count"`
	TargetFailed  int            `json:"target_failed"`
	TargetReasons map[string]int `json:"target_reasons"`

	Matches    []types.MatchRecord `json:"matches"`
	Statistics types.RunStatistics `json:"statistics"`

	// Processed counts corpus images that were embedded and evaluated;
	// Skipped counts those that failed extraction or search.
	Processed int            `json:"processed"`
	Skipped   int            `json:"skipped"`
	Reasons   map[string]int `json:"reasons"`

	// NotEvaluated counts corpus images never evaluated because MaxResults
	// or cancellation stopped the run. Processed + Skipped + NotEvaluated
	// always equals the corpus size.
	NotEvaluated int `json:"not_evaluated"`

	// Truncated is set when MaxResults stopped evaluation early.
	Truncated bool `json:"truncated"`
	// Interrupted is set when ctx was cancelled mid-corpus.
	Interrupted bool `json:"interrupted"`
}

// searcher is the read side of the similarity index.
type searcher interface {
	Search(queries []types.Embedding, k int) ([][]index.Hit, error)
}

func fatalf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrFatalConfiguration, fmt.Sprintf(format, args...))
}

// Run executes a match. Only ErrFatalConfiguration errors are returned;
// per-image and per-batch failures are counted in the Result.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Extractor == nil {
		return nil, fatalf("no feature extractor")
	}
	cfg := opts.Config

	targetDir, err := requireDir("target", opts.TargetDir)
	if err != nil {
		return nil, err
	}
	searchDir, err := requireDir("search", opts.SearchDir)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:         uuid.NewString(),
		TargetDir:     targetDir,
		SearchDir:     searchDir,
		StartedAt:     time.Now(),
		TargetReasons: map[string]int{},
		Matches:       []types.MatchRecord{},
		Reasons:       map[string]int{},
	}
	logging.LogInfo("Run %s: targets=%s search=%s threshold=%.3f top_k=%d",
		result.RunID, targetDir, searchDir, cfg.Threshold, cfg.TopK)

	targets, err := buildTargets(ctx, opts, targetDir, result)
	if err != nil {
		return nil, err
	}

	idx, err := index.NewFlat(targets)
	if err != nil {
		return nil, fatalf("build index: %v", err)
	}
	opts.Metrics.SetIndexSize(idx.Len())
	logging.LogInfo("Indexed %d target images (dim=%d)", idx.Len(), idx.Dim())

	corpus, err := scanner.Scan(searchDir, scanner.ScanOptions{
		Extensions:   cfg.Extensions,
		ExcludedDirs: append(append([]string{}, cfg.ExcludedDirs...), targetDir),
	})
	if err != nil {
		return nil, fatalf("scan search directory: %v", err)
	}
	logging.LogInfo("Found %d images to search", len(corpus))

	evaluator := matcher.NewEvaluator(targets.Paths, matcher.Options{
		Threshold:  cfg.Threshold,
		MaxResults: cfg.MaxResults,
		TopN:       cfg.StatsTopN,
	})
	searchCorpus(ctx, opts, corpus, idx, evaluator, result)

	result.Statistics = evaluator.Statistics()
	result.FinishedAt = time.Now()
	logging.LogInfo("Run %s finished: processed=%d skipped=%d matches=%d",
		result.RunID, result.Processed, result.Skipped, len(result.Matches))
	return result, nil
}

func requireDir(role, dir string) (string, error) {
	if dir == "" {
		return "", fatalf("%s directory not set", role)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fatalf("%s directory %s: %v", role, dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fatalf("%s directory %s does not exist", role, abs)
	}
	if !info.IsDir() {
		return "", fatalf("%s directory %s is not a directory", role, abs)
	}
	return abs, nil
}

func buildTargets(ctx context.Context, opts Options, targetDir string, result *Result) (types.EmbeddingSet, error) {
	cfg := opts.Config
	paths, err := scanner.Scan(targetDir, scanner.ScanOptions{
		Extensions:   cfg.Extensions,
		ExcludedDirs: cfg.ExcludedDirs,
	})
	if err != nil {
		return types.EmbeddingSet{}, fatalf("scan target directory: %v", err)
	}
	if cfg.MaxTargetImages > 0 && len(paths) > cfg.MaxTargetImages {
		logging.LogInfo("Using the first %d of %d target images", cfg.MaxTargetImages, len(paths))
		paths = paths[:cfg.MaxTargetImages]
	}
	if len(paths) == 0 {
		return types.EmbeddingSet{}, fatalf("no images found in target directory %s", targetDir)
	}

	tracker := scanner.NewProgressTracker(len(paths), "Targets", opts.Progress)
	builder := embedding.NewBuilder(opts.Extractor, embedding.Options{
		Workers:  cfg.Workers,
		OnResult: tracker.Record,
	})

	start := time.Now()
	batch := builder.Build(ctx, paths)
	finishProgress(tracker, "Targets", opts.Progress)
	opts.Metrics.RecordBatch(metrics.PhaseTarget, batch.Set.Len(), batch.Reasons, time.Since(start))

	result.TargetCount = batch.Set.Len()
	result.TargetFailed = batch.Failed
	mergeCounts(result.TargetReasons, batch.Reasons)

	if batch.Set.Len() == 0 {
		return types.EmbeddingSet{}, fatalf("none of the %d target images could be processed", len(paths))
	}
	if batch.Failed > 0 {
		logging.LogWarning("%d of %d target images failed extraction", batch.Failed, len(paths))
	}
	return batch.Set, nil
}

func searchCorpus(ctx context.Context, opts Options, corpus []string, idx searcher, ev *matcher.Evaluator, result *Result) {
	cfg := opts.Config
	batchSize := cfg.QueryBatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	tracker := scanner.NewProgressTracker(len(corpus), "Searching", opts.Progress)
	defer finishProgress(tracker, "Search", opts.Progress)
	builder := embedding.NewBuilder(opts.Extractor, embedding.Options{
		Workers:  cfg.Workers,
		OnResult: tracker.Record,
	})

	for start := 0; start < len(corpus); start += batchSize {
		if ev.Exhausted() {
			result.Truncated = true
			result.NotEvaluated += len(corpus) - start
			logging.LogInfo("Reached max_results=%d, %d images not evaluated", cfg.MaxResults, result.NotEvaluated)
			return
		}
		if ctx.Err() != nil {
			result.Interrupted = true
			result.NotEvaluated += len(corpus) - start
			logging.LogWarning("Search interrupted after %d of %d images", start, len(corpus))
			return
		}
		end := start + batchSize
		if end > len(corpus) {
			end = len(corpus)
		}

		began := time.Now()
		batch := builder.Build(ctx, corpus[start:end])
		opts.Metrics.RecordBatch(metrics.PhaseSearch, batch.Set.Len(), batch.Reasons, time.Since(began))
		result.Skipped += batch.Failed
		mergeCounts(result.Reasons, batch.Reasons)

		stopped := evaluateBatch(opts, batch.Set, idx, ev, result)
		if stopped {
			result.Truncated = true
			result.NotEvaluated += len(corpus) - end
			logging.LogInfo("Reached max_results=%d, %d images not evaluated", cfg.MaxResults, result.NotEvaluated)
			return
		}
	}
}

// evaluateBatch queries the index for every embedded image in set and feeds
// the hits to the evaluator. It reports whether the match cap stopped
// evaluation before the end of the batch; the members left over are added
// to result.NotEvaluated.
func evaluateBatch(opts Options, set types.EmbeddingSet, idx searcher, ev *matcher.Evaluator, result *Result) bool {
	if set.Len() == 0 {
		return false
	}

	hits, err := idx.Search(set.Vectors, opts.Config.TopK)
	if err != nil {
		logging.LogWarning("Index search failed for a batch of %d: %v", set.Len(), err)
		result.Skipped += set.Len()
		result.Reasons[types.ReasonSearch] += set.Len()
		opts.Metrics.RecordSearchFailure(set.Len())
		return false
	}

	for i, path := range set.Paths {
		if ev.Exhausted() {
			result.NotEvaluated += set.Len() - i
			return true
		}
		rec, ok := ev.Evaluate(path, hits[i])
		result.Processed++
		if len(hits[i]) > 0 {
			opts.Metrics.RecordEvaluation(bestScore(hits[i]), ok)
		}
		if !ok {
			continue
		}
		result.Matches = append(result.Matches, rec)
		if opts.OnMatch != nil {
			opts.OnMatch(rec)
		}
	}
	return false
}

func finishProgress(tracker *scanner.ProgressTracker, label string, w io.Writer) {
	tracker.Stop()
	if w != nil {
		tracker.PrintCompletionStats(w, label)
	}
}

func bestScore(hits []index.Hit) float32 {
	best := hits[0].Score
	for _, h := range hits[1:] {
		if h.Score > best {
			best = h.Score
		}
	}
	return best
}

func mergeCounts(dst, src map[string]int) {
	for k, v := range src {
		dst[k] += v
	}
}
