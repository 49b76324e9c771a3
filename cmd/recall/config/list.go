package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every configuration key with its effective file value, defaults
filled in.

Examples:
  recall config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			out := cmd.OutOrStdout()
			printTarget(out, cfger)

			keys := config.ValidConfigKeys()
			width := 0
			for _, k := range keys {
				width = max(width, len(k))
			}

			for _, key := range keys {
				value, err := cfger.GetConfigValue(key)
				if err != nil {
					return err
				}

				name := cliui.KeyStyle.Render(fmt.Sprintf("%-*s", width, key))
				if value == "" {
					fmt.Fprintf(out, "  %s  %s\n", name, cliui.DimStyle.Render("<not set>"))
				} else {
					fmt.Fprintf(out, "  %s  %s\n", name, cliui.ValueStyle.Render(value))
				}
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}
