// Package embedding turns lists of image paths into embedding sets.
package embedding

import (
	"context"
	"fmt"
	"runtime/debug"

	"imagematch/logging"
	"imagematch/types"

	"golang.org/x/sync/errgroup"
)

// Extractor produces one embedding per image path.
type Extractor interface {
	// Extract returns the embedding for path or a categorized error.
	Extract(path string) (types.Embedding, error)

	// Dim is the width of every embedding Extract returns.
	Dim() int
}

// Options configures a Builder.
type Options struct {
	// Workers bounds concurrent extractions; values below 1 mean 1.
	Workers int

	// OnResult, if set, is called once per path after extraction. It may be
	// called from several goroutines at once.
	OnResult func(path string, err error)
}

// BatchResult is the outcome of one Build call.
type BatchResult struct {
	Set     types.EmbeddingSet
	Failed  int
	Reasons map[string]int
}

type outcome struct {
	vec types.Embedding
	err error
}

// Builder maps paths through an Extractor, isolating per-path failures.
type Builder struct {
	extractor Extractor
	workers   int
	onResult  func(path string, err error)
}

// NewBuilder creates a Builder around ex.
func NewBuilder(ex Extractor, opts Options) *Builder {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Builder{
		extractor: ex,
		workers:   workers,
		onResult:  opts.OnResult,
	}
}

// Build extracts every path. The returned set keeps input order with failed
// paths removed; when everything fails it is an empty set of the extractor's
// width. Build never returns an error: failures are counted instead. Paths
// not yet started when ctx is cancelled are counted as extraction failures.
func (b *Builder) Build(ctx context.Context, paths []string) BatchResult {
	dim := b.extractor.Dim()
	outcomes := make([]outcome, len(paths))

	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, p := range paths {
		g.Go(func() error {
			var (
				vec types.Embedding
				err error
			)
			if cerr := ctx.Err(); cerr != nil {
				err = types.NewImageError(p, types.ErrExtraction, cerr)
			} else {
				vec, err = b.extractOne(p, dim)
			}
			outcomes[i] = outcome{vec: vec, err: err}
			if b.onResult != nil {
				b.onResult(p, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := BatchResult{
		Set:     types.NewEmbeddingSet(dim),
		Reasons: make(map[string]int),
	}
	for i, o := range outcomes {
		if o.err != nil {
			result.Failed++
			result.Reasons[types.FailureReason(o.err)]++
			logging.LogImageProcessed(paths[i], false, o.err.Error())
			continue
		}
		logging.LogImageProcessed(paths[i], true, "")
		result.Set.Append(paths[i], o.vec)
	}
	return result
}

// extractOne runs the extractor with panic recovery and width checking.
func (b *Builder) extractOne(path string, dim int) (vec types.Embedding, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.LogError("Panic during extraction: %v, file: %s\nStack trace: %s", r, path, string(debug.Stack()))
			vec = nil
			err = types.NewImageError(path, types.ErrExtraction, fmt.Errorf("panic: %v", r))
		}
	}()

	vec, err = b.extractor.Extract(path)
	if err != nil {
		return nil, err
	}
	if len(vec) != dim {
		return nil, types.NewImageError(path, types.ErrExtraction,
			fmt.Errorf("embedding width %d, want %d", len(vec), dim))
	}
	return vec, nil
}
