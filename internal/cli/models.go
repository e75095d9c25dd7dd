package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/fmueller/ytscribe/internal/whisper"
	"github.com/spf13/cobra"
)

func newModelsCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List model variants and whether their weights are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.ensureConfig(cmd); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tSTATUS\tPATH")
			for _, name := range whisper.ModelNames() {
				resolved, err := whisper.ResolveModel(name, app.cfg.ModelDir)
				if err != nil {
					return err
				}
				status := "installed"
				if resolved.NeedsDownload {
					status = "missing"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, status, resolved.Path)
			}
			return w.Flush()
		},
	}
}
