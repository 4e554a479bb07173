package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "warden %s (commit: %s, built: %s)\n", version, commit, buildDate)
		},
	}
}
