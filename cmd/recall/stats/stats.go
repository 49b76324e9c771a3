// Package statscmder provides the stats command.
package statscmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/api"
	"github.com/papercomputeco/recall/cmd/recall/remote"
	"github.com/papercomputeco/recall/pkg/cliui"
)

const statsLongDesc string = `Show embedding cache and vector index statistics.

With --save the server first flushes the embedding cache and persists the
vector index.

Requires a running recall API server (recall serve).

Examples:
  recall stats
  recall stats --save
  recall stats --json`

const statsShortDesc string = "Show cache and index statistics"

func NewStatsCmd() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := remote.NewClient(cmd)
			if err != nil {
				return err
			}

			ctx := remote.Context(cmd)
			if save {
				if err := cl.Save(ctx); err != nil {
					return err
				}
			}

			stats, err := cl.Stats(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if remote.WantJSON(cmd) {
				return remote.PrintJSON(out, stats)
			}
			printStats(out, stats, save)
			return nil
		},
	}

	remote.AddFlags(cmd)
	cmd.Flags().BoolVar(&save, "save", false, "Persist the cache and index first")

	return cmd
}

func printStats(w io.Writer, s *api.StatsResponse, saved bool) {
	fmt.Fprintf(w, "\n  %s\n\n", cliui.HeaderStyle.Render("recall stats"))
	if saved {
		fmt.Fprintf(w, "  %s Saved cache and index\n\n", cliui.SuccessMark)
	}
	cliui.Rows(w,
		cliui.Row{Key: "model", Value: s.Model},
		cliui.Row{Key: "dimensions", Value: fmt.Sprint(s.Dimensions)},
		cliui.Row{Key: "documents", Value: fmt.Sprint(s.Documents)},
		cliui.Row{Key: "cache hits", Value: fmt.Sprint(s.Cache.Hits)},
		cliui.Row{Key: "cache misses", Value: fmt.Sprint(s.Cache.Misses)},
		cliui.Row{Key: "hit rate", Value: fmt.Sprintf("%.1f%%", s.HitRate*100)},
		cliui.Row{Key: "pending", Value: fmt.Sprint(s.Pending)},
	)
	fmt.Fprintln(w)
}
