package cmd

import (
	"fmt"

	"imagematch/config"
	"imagematch/embedding"
	"imagematch/matcher"

	"github.com/spf13/cobra"
)

func (a *app) newCheckCmd() *cobra.Command {
	var preprocess string

	cmd := &cobra.Command{
		Use:   "check IMAGE1 IMAGE2",
		Short: "Print the embedding similarity of two images",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := checkConfig(a.cfg, preprocess)
			if err != nil {
				return err
			}
			ex, err := newExtractor(cfg)
			if err != nil {
				return fmt.Errorf("failed to load model: %w", err)
			}
			defer ex.Close()

			first, err := ex.Extract(args[0])
			if err != nil {
				return err
			}
			second, err := ex.Extract(args[1])
			if err != nil {
				return err
			}

			sim := float64(embedding.Dot(first, second))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Similarity: %.4f (%s)\n", sim, matcher.Verdict(sim))
			if sim >= cfg.Threshold {
				fmt.Fprintf(out, "Match at threshold %.2f\n", cfg.Threshold)
			} else {
				fmt.Fprintf(out, "No match at threshold %.2f\n", cfg.Threshold)
			}
			return nil
		},
	}
	// direct resize compares whole frames; search defaults to center-crop
	cmd.Flags().StringVar(&preprocess, "preprocess", config.PreprocessResize, "preprocessing: resize or center-crop")
	return cmd
}

// checkConfig applies the check command's preprocessing strategy to cfg.
func checkConfig(cfg config.Config, preprocess string) (config.Config, error) {
	cfg.Image.Preprocess = preprocess
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
