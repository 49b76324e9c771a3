// Package searchcmder provides the search command for semantic search over
// indexed messages.
package searchcmder

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/api/client"
	"github.com/papercomputeco/recall/cmd/recall/remote"
	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/semantic"
	"github.com/papercomputeco/recall/pkg/utils"
)

const previewLen = 120

type searchCommander struct {
	query     string
	k         int
	sessionID string
	minRel    float64
	since     time.Duration
	from      string
	to        string
}

const searchLongDesc string = `Search indexed messages via the recall API.

Results are ranked by a blend of semantic similarity (70%) and recency
(30%, decaying over a week). Candidates below the relevance threshold are
dropped; pass --min-relevance -1 to disable it.

Requires a running recall API server (recall serve).

Examples:
  recall search "how did we deploy the api"
  recall search "database migrations" -k 3 --session s-42
  recall search "flaky tests" --since 48h
  recall search "flaky tests" --from 2025-01-01T00:00:00Z --json`

const searchShortDesc string = "Search indexed messages"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]
			return cmder.run(cmd)
		},
	}

	remote.AddFlags(cmd)
	cmd.Flags().IntVarP(&cmder.k, "top", "k", 0, "Number of results (server default when 0)")
	cmd.Flags().StringVar(&cmder.sessionID, "session", "", "Restrict results to one session")
	cmd.Flags().Float64Var(&cmder.minRel, "min-relevance", 0, "Minimum similarity; negative disables the threshold")
	cmd.Flags().DurationVar(&cmder.since, "since", 0, "Only messages newer than this duration")
	cmd.Flags().StringVar(&cmder.from, "from", "", "Only messages at or after this RFC3339 time")
	cmd.Flags().StringVar(&cmder.to, "to", "", "Only messages at or before this RFC3339 time")

	return cmd
}

func (c *searchCommander) params() (client.SearchParams, error) {
	p := client.SearchParams{
		SessionID:    c.sessionID,
		K:            c.k,
		MinRelevance: c.minRel,
	}
	if c.k < 0 {
		return p, errors.New("--top must be positive")
	}
	if c.since > 0 && c.from != "" {
		return p, errors.New("--since and --from are mutually exclusive")
	}

	var err error
	if c.since > 0 {
		p.From = time.Now().Add(-c.since)
	}
	if c.from != "" {
		if p.From, err = time.Parse(time.RFC3339, c.from); err != nil {
			return p, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if c.to != "" {
		if p.To, err = time.Parse(time.RFC3339, c.to); err != nil {
			return p, fmt.Errorf("invalid --to: %w", err)
		}
	}
	return p, nil
}

func (c *searchCommander) run(cmd *cobra.Command) error {
	params, err := c.params()
	if err != nil {
		return err
	}

	cl, err := remote.NewClient(cmd)
	if err != nil {
		return err
	}

	resp, err := cl.Search(remote.Context(cmd), c.query, params)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if remote.WantJSON(cmd) {
		if err := remote.PrintJSON(out, resp); err != nil {
			return err
		}
		return remote.ResponseError("search", resp.Error)
	}
	if err := remote.ResponseError("search", resp.Error); err != nil {
		return err
	}

	printResults(out, c.query, resp)
	return nil
}

func printResults(w io.Writer, query string, resp *semantic.SearchResponse) {
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "\n%s %s %s\n\n",
		cliui.HeaderStyle.Render("Search results for:"),
		cliui.KeyStyle.Render(fmt.Sprintf("%q", query)),
		cliui.DimStyle.Render(fmt.Sprintf("(%d of %d, %s)",
			len(resp.Results), resp.TotalMatches, cliui.FormatDuration(resp.Duration))),
	)

	for i, r := range resp.Results {
		msg := r.Message
		fmt.Fprintf(w, "  %s  %s  %s\n",
			cliui.NameStyle.Render(fmt.Sprintf("#%d", i+1)),
			cliui.ScoreStyle.Render(fmt.Sprintf("score %.3f  sim %.3f  recency %.3f", r.CombinedScore, r.Similarity, r.Recency)),
			cliui.KeyStyle.Render(msg.ID),
		)
		fmt.Fprintf(w, "      %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("[%s] session %s  %s", roleOf(msg.Role), msg.SessionID, msg.CreatedAt.Format(time.DateTime))),
		)
		fmt.Fprintf(w, "      %s\n\n", cliui.ValueStyle.Render(preview(msg.Content)))
	}
}

func roleOf(role string) string {
	if role == "" {
		return "message"
	}
	return role
}

func preview(content string) string {
	return utils.Preview(content, previewLen)
}
