// Package reindexcmder provides the reindex command.
package reindexcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/api/client"
	"github.com/papercomputeco/recall/cmd/recall/remote"
	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/semantic"
)

const reindexLongDesc string = `Re-embed every stored message of a session.

Useful after changing the embedding model or when messages were stored
while the embedding provider was unavailable. Existing index entries are
replaced.

Requires a running recall API server (recall serve).

Examples:
  recall reindex s-42
  recall reindex s-1 s-2 s-3`

const reindexShortDesc string = "Re-embed a session's messages"

func NewReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex <session-id>...",
		Short: reindexShortDesc,
		Long:  reindexLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := remote.NewClient(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if remote.WantJSON(cmd) {
				results := make(map[string]*semantic.ReindexResult, len(args))
				for _, id := range args {
					res, err := cl.Reindex(remote.Context(cmd), id)
					if err != nil {
						return err
					}
					results[id] = res
				}
				return remote.PrintJSON(out, results)
			}

			for _, id := range args {
				if err := reindexOne(cmd, cl, id); err != nil {
					return err
				}
			}
			return nil
		},
	}

	remote.AddFlags(cmd)

	return cmd
}

func reindexOne(cmd *cobra.Command, cl *client.Client, sessionID string) error {
	var res *semantic.ReindexResult
	err := cliui.Step(cmd.OutOrStdout(), "Reindexing session "+sessionID, func() error {
		var err error
		res, err = cl.Reindex(remote.Context(cmd), sessionID)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "    %s\n",
		cliui.DimStyle.Render(fmt.Sprintf("%d processed, %d indexed, %d skipped",
			res.MessagesProcessed, res.Indexed, res.Skipped)),
	)
	return nil
}
