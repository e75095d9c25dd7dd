package cli

import (
	"fmt"

	"github.com/fmueller/ytscribe/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !app.verbose {
				fmt.Fprintf(cmd.OutOrStdout(), "ytscribe v%s\n", version.Resolve())
				return nil
			}

			info := version.Details()
			fmt.Fprintf(cmd.OutOrStdout(), "ytscribe v%s\ncommit: %s\nbuilt:  %s\ngo:     %s\n", info.Version, info.Commit, info.Date, info.GoVersion)
			return nil
		},
	}
}
