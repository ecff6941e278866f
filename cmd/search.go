package cmd

import (
	"context"
	"fmt"
	"time"

	"imagematch/database"
	"imagematch/logging"
	"imagematch/metrics"
	"imagematch/pipeline"
	"imagematch/report"
	"imagematch/signalhandler"
	"imagematch/types"

	"github.com/spf13/cobra"
)

func (a *app) newSearchCmd() *cobra.Command {
	var targetDir, searchDir string

	cmd := &cobra.Command{
		Use:   "search --target DIR --root DIR",
		Short: "Find images under --root that are near-duplicates of images in --target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSearch(cmd, targetDir, searchDir)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&targetDir, "target", "t", "", "directory of reference images")
	f.StringVarP(&searchDir, "root", "r", "", "directory tree to search")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("root")

	f.Float64("threshold", 0, "minimum cosine similarity for a match, in [-1, 1]")
	f.Int("top-k", 0, "neighbours retrieved per query")
	f.Int("max-results", 0, "stop after this many matches (0 = unlimited)")
	f.Int("max-targets", 0, "index at most this many target images (0 = unlimited)")
	f.Int("workers", 0, "concurrent extractions (0 = auto)")
	f.Int("batch-size", 0, "corpus images embedded and searched per batch")
	f.String("model", "", "backbone model file (ONNX, Caffe, TensorFlow, Darknet)")
	f.String("model-config", "", "backbone config file, when the format needs one")
	f.String("output-layer", "", "network layer to read embeddings from")
	f.Int("dim", 0, "embedding width produced by the model")
	f.String("device", "", "inference device: cpu or cuda")
	f.String("preprocess", "", "preprocessing: center-crop or resize")
	f.Bool("probe-exif", false, "use exiftool to check dimensions of formats Go cannot read")
	f.String("report-dir", "", "write <report-dir>/<timestamp>/matches.json")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	f.Bool("save-history", true, "record the run in the history database")

	for flag, key := range map[string]string{
		"threshold":    "threshold",
		"top-k":        "top_k",
		"max-results":  "max_results",
		"max-targets":  "max_target_images",
		"workers":      "workers",
		"batch-size":   "query_batch_size",
		"model":        "model.path",
		"model-config": "model.config",
		"output-layer": "model.output_layer",
		"dim":          "model.dim",
		"device":       "model.device",
		"preprocess":   "image.preprocess",
		"probe-exif":   "image.probe_exif",
		"report-dir":   "report_dir",
		"metrics-addr": "metrics_addr",
		"save-history": "save_history",
	} {
		_ = a.v.BindPFlag(key, f.Lookup(flag))
	}
	return cmd
}

func (a *app) runSearch(cmd *cobra.Command, targetDir, searchDir string) error {
	cfg := a.cfg
	if cfg.Workers == 0 {
		cfg.Workers = signalhandler.GetOptimalProcs()
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	signalhandler.SetupHandler(cancel)

	ex, err := newExtractor(cfg)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	defer ex.Close()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		srv, err := m.Serve(cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	out := cmd.OutOrStdout()
	res, err := pipeline.Run(ctx, pipeline.Options{
		TargetDir: targetDir,
		SearchDir: searchDir,
		Config:    cfg,
		Extractor: ex,
		Metrics:   m,
		Progress:  cmd.ErrOrStderr(),
		OnMatch: func(rec types.MatchRecord) {
			fmt.Fprintln(out, report.MatchLine(rec, searchDir))
		},
	})
	if err != nil {
		return err
	}

	report.PrintSummary(out, res)

	if cfg.ReportDir != "" {
		path, err := report.WriteJSON(cfg.ReportDir, res, res.StartedAt)
		if err != nil {
			logging.LogError("%v", err)
		} else {
			fmt.Fprintf(out, "Report written to %s\n", path)
		}
	}

	if cfg.SaveHistory {
		if err := saveRun(cfg.Database, cfg.Threshold, cfg.TopK, res); err != nil {
			logging.LogError("Failed to save run history: %v", err)
		}
	}
	return nil
}

func saveRun(dbPath string, threshold float64, topK int, res *pipeline.Result) error {
	db, err := database.InitDatabase(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	return database.StoreRun(db, database.RunRecord{
		ID:         res.RunID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		TargetDir:  res.TargetDir,
		SearchDir:  res.SearchDir,
		Threshold:  threshold,
		TopK:       topK,
		Targets:    res.TargetCount,
		Processed:  res.Processed,
		Skipped:    res.Skipped,
		Matches:    len(res.Matches),
		Truncated:  res.Truncated,

		NotEvaluated: res.NotEvaluated,
	}, res.Matches)
}
