package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/config"
)

const getLongDesc string = `Get a configuration value.

Reads the value for the given key from config.toml in the .recall/
directory. Keys missing from the file report their default.

Examples:
  recall config get embedding.model
  recall config get memory.default_k`

const getShortDesc string = "Get a configuration value"

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkKey(args[0]); err != nil {
				return err
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			value, err := cfger.GetConfigValue(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printTarget(out, cfger)
			if value == "" {
				value = cliui.DimStyle.Render("<not set>")
			} else {
				value = cliui.ValueStyle.Render(value)
			}
			fmt.Fprintf(out, "  %s  %s\n\n", cliui.KeyStyle.Render(args[0]), value)
			return nil
		},
		ValidArgsFunction: completeKeys,
	}
}
