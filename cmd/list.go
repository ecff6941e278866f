package cmd

import (
	"fmt"

	"imagematch/scanner"

	"github.com/spf13/cobra"
)

func (a *app) newListCmd() *cobra.Command {
	var countOnly bool

	cmd := &cobra.Command{
		Use:   "list DIR",
		Short: "List the images a search would consider under DIR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := scanner.Scan(args[0], scanner.ScanOptions{
				Extensions:   a.cfg.Extensions,
				ExcludedDirs: a.cfg.ExcludedDirs,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !countOnly {
				for _, p := range paths {
					fmt.Fprintln(out, p)
				}
			}
			fmt.Fprintf(out, "%d images\n", len(paths))
			return nil
		},
	}
	cmd.Flags().BoolVar(&countOnly, "count", false, "print only the number of images")
	return cmd
}
