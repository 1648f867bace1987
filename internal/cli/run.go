package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bondwatch/internal/sched"
)

func newRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the notification service",
		Long: `Start the long-running service: the nightly data refresh and the
morning notification sweep fire at their configured times until the
process receives SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			scheduler := sched.NewScheduler(app.Store, app.Logger)
			scheduler.Register(sched.JobSync, app.Config.Scheduler.SyncAt, func(ctx context.Context) error {
				_, err := app.Reconciler.SyncAll(ctx)
				return err
			})
			scheduler.Register(sched.JobNotify, app.Config.Scheduler.NotifyAt, func(ctx context.Context) error {
				_, err := app.Dispatcher.Run(ctx)
				return err
			})

			scheduler.Start(ctx)
			defer scheduler.Stop()

			output.Info("Service started (sync at %s, notify at %s)",
				app.Config.Scheduler.SyncAt, app.Config.Scheduler.NotifyAt)

			if app.Config.Scheduler.NotifyOnStart {
				if err := scheduler.CatchUp(ctx, sched.JobNotify); err != nil {
					app.Logger.Error().Err(err).Msg("Startup notification sweep failed")
				}
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				app.Logger.Info().Str("signal", sig.String()).Msg("Shutting down")
			case <-ctx.Done():
			}

			output.Info("Service stopped")
			return nil
		},
	}
}
