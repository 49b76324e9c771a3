// Package similarcmder provides the similar command, which ranks other
// conversations by their likeness to a reference conversation.
package similarcmder

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/cmd/recall/remote"
	"github.com/papercomputeco/recall/pkg/cliui"
)

const similarLongDesc string = `Find conversations similar to a reference conversation.

The reference conversation's messages are averaged into one embedding and
matched against the index. Other conversations are ranked by their best
matching message.

Requires a running recall API server (recall serve).

Examples:
  recall similar c-7
  recall similar c-7 -k 10 --json`

const similarShortDesc string = "Find similar conversations"

func NewSimilarCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "similar <conversation-id>",
		Short: similarShortDesc,
		Long:  similarLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if k < 0 {
				return errors.New("--top must be positive")
			}

			cl, err := remote.NewClient(cmd)
			if err != nil {
				return err
			}

			resp, err := cl.Similar(remote.Context(cmd), args[0], k)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if remote.WantJSON(cmd) {
				if err := remote.PrintJSON(out, resp); err != nil {
					return err
				}
				return remote.ResponseError("similar conversations", resp.Error)
			}
			if err := remote.ResponseError("similar conversations", resp.Error); err != nil {
				return err
			}

			if len(resp.Conversations) == 0 {
				fmt.Fprintln(out, "No similar conversations found.")
				return nil
			}

			fmt.Fprintf(out, "\n%s %s\n\n",
				cliui.HeaderStyle.Render("Conversations similar to"),
				cliui.KeyStyle.Render(args[0]),
			)
			for i, conv := range resp.Conversations {
				fmt.Fprintf(out, "  %s  %s  %s\n",
					cliui.NameStyle.Render(fmt.Sprintf("#%d", i+1)),
					cliui.ValueStyle.Render(conv.ConversationID),
					cliui.ScoreStyle.Render(fmt.Sprintf("similarity %.3f  matching %d", conv.Similarity, conv.MatchingMessages)),
				)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	remote.AddFlags(cmd)
	cmd.Flags().IntVarP(&k, "top", "k", 0, "Number of conversations (server default when 0)")

	return cmd
}
