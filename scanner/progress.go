package scanner

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ProgressTracker counts per-image outcomes and renders a progress bar
type ProgressTracker struct {
	bar       *progressbar.ProgressBar
	start     time.Time
	mu        sync.Mutex
	processed int
	errors    int
}

// NewProgressTracker creates a tracker for total items. A nil writer
// disables rendering while still counting.
func NewProgressTracker(total int, description string, w io.Writer) *ProgressTracker {
	if w == nil {
		w = io.Discard
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &ProgressTracker{bar: bar, start: time.Now()}
}

// Record registers one finished image. Safe for concurrent use; its
// signature fits embedding.Options.OnResult.
func (p *ProgressTracker) Record(_ string, err error) {
	p.mu.Lock()
	p.processed++
	if err != nil {
		p.errors++
	}
	p.mu.Unlock()
	_ = p.bar.Add(1)
}

// Stop finishes the bar
func (p *ProgressTracker) Stop() {
	_ = p.bar.Finish()
}

// Counts returns processed and failed totals
func (p *ProgressTracker) Counts() (processed, errors int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed, p.errors
}

// PrintCompletionStats writes a one-line summary after the bar is stopped
func (p *ProgressTracker) PrintCompletionStats(w io.Writer, label string) {
	processed, errors := p.Counts()
	fmt.Fprintf(w, "\n%s: processed %d images in %v", label, processed, time.Since(p.start).Round(time.Second))
	if errors > 0 {
		fmt.Fprintf(w, " (%d errors, see log for details)", errors)
	}
	fmt.Fprintln(w)
}
