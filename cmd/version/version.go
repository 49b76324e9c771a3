// Package versioncmder provides the version command.
package versioncmder

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/pkg/utils"
)

func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version, commit and build time of this recall binary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.OutOrStdout())
		},
	}

	return cmd
}

func run(w io.Writer) error {
	_, err := io.WriteString(w, utils.BuildInfo())
	return err
}
