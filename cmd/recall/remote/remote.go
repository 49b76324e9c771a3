// Package remote holds the plumbing shared by commands that talk to a
// running recall API server.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/api/client"
	"github.com/papercomputeco/recall/pkg/config"
)

const jsonFlag = "json"

// AddFlags registers --api-target and --json on cmd.
func AddFlags(cmd *cobra.Command) {
	var target string
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, &target)
	cmd.Flags().Bool(jsonFlag, false, "Print the raw JSON response")
}

// NewClient resolves the API target through the usual config layers and
// returns a client for it.
func NewClient(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := config.LoadCommandConfig(cmd,
		config.Binding{Flags: config.ClientFlags, Keys: []string{config.FlagAPITarget}},
	)
	if err != nil {
		return nil, err
	}
	return client.New(cfg.Client.APITarget)
}

// Context returns the command's context, or Background when it has none.
func Context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// WantJSON reports whether --json was given.
func WantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool(jsonFlag)
	return v
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	return nil
}

// ResponseError turns the error field of a read response into an error.
func ResponseError(op, msg string) error {
	if msg == "" {
		return nil
	}
	return fmt.Errorf("%s failed: %s", op, msg)
}
