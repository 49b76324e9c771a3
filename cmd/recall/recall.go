// Package recallcmder is the root recall command.
package recallcmder

import (
	"os"

	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/recall/cmd/recall/auth"
	configcmder "github.com/papercomputeco/recall/cmd/recall/config"
	ingestcmder "github.com/papercomputeco/recall/cmd/recall/ingest"
	initcmder "github.com/papercomputeco/recall/cmd/recall/init"
	reindexcmder "github.com/papercomputeco/recall/cmd/recall/reindex"
	searchcmder "github.com/papercomputeco/recall/cmd/recall/search"
	servecmder "github.com/papercomputeco/recall/cmd/recall/serve"
	similarcmder "github.com/papercomputeco/recall/cmd/recall/similar"
	statscmder "github.com/papercomputeco/recall/cmd/recall/stats"
	summarycmder "github.com/papercomputeco/recall/cmd/recall/summary"
	versioncmder "github.com/papercomputeco/recall/cmd/version"
	"github.com/papercomputeco/recall/pkg/cliui"
)

const recallLongDesc string = `Recall is semantic memory for conversations.

Messages are embedded as they arrive and can be recalled by meaning,
summarized per session, and compared across conversations.

Run the server and ingest messages:
  recall serve                     Run the API server
  recall ingest messages.jsonl     Store and index messages from a file

Query a running server:
  recall search "deploy failures"  Search relevant messages
  recall summary <session-id>      Summarize a session
  recall similar <conversation-id> Find similar conversations
  recall reindex <session-id>      Re-embed a session
  recall stats                     Show cache and index statistics`

const recallShortDesc string = "Recall - Semantic Conversation Memory"

func NewRecallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "recall",
		Short:         recallShortDesc,
		Long:          recallLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			noColor, _ := cmd.Flags().GetBool("no-color")
			if noColor || os.Getenv("NO_COLOR") != "" {
				cliui.DisableColor()
			}
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .recall/ config directory")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(summarycmder.NewSummaryCmd())
	cmd.AddCommand(similarcmder.NewSimilarCmd())
	cmd.AddCommand(reindexcmder.NewReindexCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
