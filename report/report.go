// Package report renders run results for the console and as JSON files.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"imagematch/pipeline"
	"imagematch/types"
	"imagematch/utils"
)

// TimestampLayout names per-run report directories.
const TimestampLayout = "20060102_150405"

// MatchLine formats one accepted match for the console.
func MatchLine(rec types.MatchRecord, searchRoot string) string {
	return fmt.Sprintf("Match %d: %s <-> %s (sim=%.3f)",
		rec.Seq, utils.DisplayPath(rec.QueryPath, searchRoot), filepath.Base(rec.TargetPath), rec.Similarity)
}

// PrintSummary writes the end-of-run summary: counts, failure reasons and
// similarity statistics.
func PrintSummary(w io.Writer, res *pipeline.Result) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run %s\n", res.RunID)
	fmt.Fprintf(w, "Targets indexed: %d", res.TargetCount)
	if res.TargetFailed > 0 {
		fmt.Fprintf(w, " (%d failed)", res.TargetFailed)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Images processed: %d\n", res.Processed)
	fmt.Fprintf(w, "Images skipped: %d\n", res.Skipped)
	for _, reason := range sortedKeys(res.Reasons) {
		fmt.Fprintf(w, "  %s: %d\n", reason, res.Reasons[reason])
	}
	fmt.Fprintf(w, "Matches: %d\n", len(res.Matches))
	if res.NotEvaluated > 0 {
		fmt.Fprintf(w, "Images not evaluated: %d\n", res.NotEvaluated)
	}
	if res.Truncated {
		fmt.Fprintln(w, "Stopped early: max_results reached")
	}
	if res.Interrupted {
		fmt.Fprintln(w, "Interrupted before the end of the corpus")
	}

	stats := res.Statistics
	if stats.Count == 0 {
		fmt.Fprintln(w, "No similarity scores recorded")
		return
	}
	fmt.Fprintf(w, "\nSimilarity over %d images: max %.4f, mean %.4f, median %.4f, min %.4f\n",
		stats.Count, stats.Max, stats.Mean, stats.Median, stats.Min)
	if len(stats.Top) > 0 {
		fmt.Fprintf(w, "Top %d:\n", len(stats.Top))
		for i, s := range stats.Top {
			fmt.Fprintf(w, "  %2d. %.4f  %s -> %s\n", i+1, s.Similarity,
				utils.DisplayPath(s.QueryPath, res.SearchDir), filepath.Base(s.TargetPath))
		}
	}
}

// WriteJSON stores res under dir/<timestamp>/matches.json and returns the
// file path.
func WriteJSON(dir string, res *pipeline.Result, now time.Time) (string, error) {
	outDir := filepath.Join(dir, now.Format(TimestampLayout))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	path := filepath.Join(outDir, "matches.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
