// Package cli implements habitctl, the operator and terminal client for a
// habitsync server.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	pkgconfig "habitsync/pkg/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server string
	Format string // "json" | "text"
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "habitctl",
		Short: "habitctl - inspect and follow a habitsync tracker",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return pkgconfig.LoadDotEnv()
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", "http://localhost:3000", "habitsync server base URL")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}
