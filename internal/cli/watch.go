package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"habitsync/internal/client"
	"habitsync/internal/tracker"
)

type watchFrame struct {
	Status  client.Status   `json:"status"`
	Summary tracker.Summary `json:"summary"`
}

// NewWatchCommand follows the server over the push channel and reprints the
// summary on every change.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		maxAttempts uint
		duration    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow live changes and print the summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bo := client.DefaultBackoff()
			bo.MaxAttempts = maxAttempts
			sess, err := client.NewSession(client.Options{BaseURL: rootOpts.Server, Backoff: bo}, zap.NewNop())
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			return watch(ctx, sess, printer{format: rootOpts.Format, w: cmd.OutOrStdout()})
		},
	}
	cmd.Flags().UintVar(&maxAttempts, "max-attempts", 5, "connection attempts before giving up (0 = forever)")
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (0 = until interrupted)")
	return cmd
}

func watch(ctx context.Context, sess *client.Session, p printer) error {
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	var last client.Status
	for {
		select {
		case err := <-done:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		case <-sess.Updates():
			status, statusErr := sess.Status()
			if status != client.StatusConnected {
				if status != last {
					fmt.Fprintf(p.w, "[%s] %v\n", status, statusErr)
				}
				last = status
				continue
			}
			last = status
			frame := watchFrame{Status: status, Summary: sess.Summary()}
			if err := p.print(frame, func(w io.Writer) {
				fmt.Fprintf(w, "--- %s ---\n", time.Now().Format(time.TimeOnly))
				writeSummary(w, frame.Summary)
			}); err != nil {
				return err
			}
		}
	}
}
