package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"imagematch/database"
	"imagematch/types"
	"imagematch/utils"

	"github.com/spf13/cobra"
)

func (a *app) newHistoryCmd() *cobra.Command {
	var (
		limit int
		runID string
		query string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show previous runs and their matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(a.cfg.Database); err != nil {
				return fmt.Errorf("no run history at %s: %w", a.cfg.Database, err)
			}
			db, err := database.InitDatabase(a.cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer tw.Flush()

			switch {
			case runID != "" || query != "":
				var matches []types.MatchRecord
				if query != "" {
					abs, aerr := filepath.Abs(query)
					if aerr != nil {
						return aerr
					}
					matches, err = database.FindMatchesForQuery(db, abs)
				} else {
					matches, err = database.GetRunMatches(db, runID)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "SEQ\tSIMILARITY\tQUERY\tTARGET")
				for _, m := range matches {
					fmt.Fprintf(tw, "%d\t%.4f\t%s\t%s\n", m.Seq, m.Similarity, utils.DisplayPath(m.QueryPath, ""), utils.DisplayPath(m.TargetPath, ""))
				}
			default:
				runs, err := database.ListRuns(db, limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "RUN\tSTARTED\tTARGETS\tPROCESSED\tSKIPPED\tNOT EVALUATED\tMATCHES\tSEARCH ROOT")
				for _, r := range runs {
					matches := fmt.Sprint(r.Matches)
					if r.Truncated {
						matches += "+"
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n", r.ID, r.StartedAt.Local().Format(time.DateTime),
						r.Targets, r.Processed, r.Skipped, r.NotEvaluated, matches, utils.DisplayPath(r.SearchDir, ""))
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&limit, "limit", "n", 20, "number of runs to show (0 = all)")
	f.StringVar(&runID, "run", "", "show the matches of one run")
	f.StringVar(&query, "image", "", "show every recorded match for this corpus image")
	cmd.MarkFlagsMutuallyExclusive("run", "image")
	return cmd
}
