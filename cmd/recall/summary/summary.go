// Package summarycmder provides the summary command, which prints the most
// representative messages of a session.
package summarycmder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/cmd/recall/remote"
	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/semantic"
	"github.com/papercomputeco/recall/pkg/utils"
)

const summaryLongDesc string = `Summarize a session by its most representative messages.

Each of the session's most recent messages is scored by how central it is
to the rest of the session (60%) and by its importance score (40%). The top
messages are rendered as markdown, or as raw JSON with --json.

Requires a running recall API server (recall serve).

Examples:
  recall summary s-42
  recall summary s-42 --top 3
  recall summary s-42 --plain`

const summaryShortDesc string = "Summarize a session"

func NewSummaryCmd() *cobra.Command {
	var (
		topK  int
		plain bool
	)

	cmd := &cobra.Command{
		Use:   "summary <session-id>",
		Short: summaryShortDesc,
		Long:  summaryLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if topK < 0 {
				return errors.New("--top must be positive")
			}

			cl, err := remote.NewClient(cmd)
			if err != nil {
				return err
			}

			resp, err := cl.Summary(remote.Context(cmd), args[0], topK)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if remote.WantJSON(cmd) {
				if err := remote.PrintJSON(out, resp); err != nil {
					return err
				}
				return remote.ResponseError("summary", resp.Error)
			}
			if err := remote.ResponseError("summary", resp.Error); err != nil {
				return err
			}

			doc := Markdown(args[0], resp)
			if plain {
				fmt.Fprint(out, doc)
				return nil
			}

			rendered, err := cliui.RenderMarkdown(doc)
			if err != nil {
				// Fall back to the raw markdown.
				rendered = doc
			}
			fmt.Fprint(out, rendered)
			return nil
		},
	}

	remote.AddFlags(cmd)
	cmd.Flags().IntVarP(&topK, "top", "k", 0, "Number of messages (server default when 0)")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print markdown without terminal styling")

	return cmd
}

// Markdown formats a summary as a markdown document.
func Markdown(sessionID string, resp *semantic.SummaryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Session %s\n\n", sessionID)

	if len(resp.Summary) == 0 {
		b.WriteString("_No indexed messages._\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%d of %d messages considered.\n\n", len(resp.Summary), resp.TotalMessages)
	for i, item := range resp.Summary {
		msg := item.Message
		role := msg.Role
		if role == "" {
			role = "message"
		}
		fmt.Fprintf(&b, "%d. **%s** `%s` (score %.2f, centrality %.2f, importance %.2f)\n\n",
			i+1, role, msg.ID, item.Score, item.Centrality, item.Importance)
		fmt.Fprintf(&b, "   > %s\n\n", utils.Preview(msg.Content, 280))
	}
	return b.String()
}
