package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"habitsync/config"
	"habitsync/internal/model"
	"habitsync/internal/repository"
)

type inspectResult struct {
	Stats      model.StoreStats `json:"stats"`
	Habits     []model.Habit    `json:"habits"`
	GlobalNote string           `json:"globalNote"`
}

// NewInspectCommand reads the store directly, bypassing the server.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		configPath string
		dbPath     string
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Dump habits and store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.DB.Driver = "sqlite"
				cfg.DB.Path = dbPath
			}

			ctx := cmd.Context()
			store, err := repository.Open(ctx, cfg.DB, zap.NewNop())
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			var res inspectResult
			if res.Stats, err = store.Stats(ctx); err != nil {
				return err
			}
			if res.Habits, err = store.ListHabits(ctx); err != nil {
				return err
			}
			note, err := store.GetGlobalNote(ctx)
			if err != nil {
				return err
			}
			res.GlobalNote = note.Content

			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			return p.print(res, func(w io.Writer) { writeInspect(w, res) })
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (defaults to CONFIG_FILE or config.yaml)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path, overrides the config")
	return cmd
}

func writeInspect(w io.Writer, res inspectResult) {
	fmt.Fprintf(w, "Habits: %d\n", res.Stats.Habits)
	for _, h := range res.Habits {
		fmt.Fprintf(w, "  %s %s [%s] (%s)\n", h.Icon, h.Name, h.Category, h.ID)
	}
	fmt.Fprintf(w, "Completed logs: %d\n", res.Stats.CompletedLogs)
	fmt.Fprintf(w, "Logged days: %d\n", res.Stats.LoggedDays)
	if res.GlobalNote != "" {
		fmt.Fprintf(w, "Notes: %s\n", res.GlobalNote)
	}
}
