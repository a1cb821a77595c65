package cli

import (
	"io"

	"github.com/spf13/cobra"

	"habitsync/internal/client"
)

func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the dashboard summary from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := client.NewAPI(rootOpts.Server, nil).Stats(cmd.Context())
			if err != nil {
				return err
			}
			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			return p.print(summary, func(w io.Writer) { writeSummary(w, summary) })
		},
	}
}
