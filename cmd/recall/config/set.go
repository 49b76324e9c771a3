package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/config"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in config.toml in the .recall/
directory, creating the file if needed. Numeric keys must parse as
numbers and duration keys (embedding.base_delay, cache.ttl, ...) as Go
durations such as "500ms" or "24h".

Examples:
  recall config set embedding.provider hashing
  recall config set embedding.dimensions 384
  recall config set cache.ttl 12h`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: setShortDesc,
		Long:  setLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if err := checkKey(key); err != nil {
				return err
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if err := cfger.SetConfigValue(key, value); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printTarget(out, cfger)
			fmt.Fprintf(out, "  %s Set %s = %s\n\n",
				cliui.SuccessMark,
				cliui.KeyStyle.Render(key),
				cliui.ValueStyle.Render(value),
			)
			return nil
		},
		ValidArgsFunction: completeKeys,
	}
}
