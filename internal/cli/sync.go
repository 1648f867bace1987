package cli

import (
	"github.com/spf13/cobra"

	"bondwatch/internal/track"
)

func newSyncCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [isin]",
		Short: "Refresh bond event data",
		Long: `Refresh event data from the exchange. Without arguments every
tracked bond that is stale is refreshed; with an ISIN that single bond
is refreshed unconditionally.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			if len(args) == 1 {
				isin, err := track.NormalizeISIN(args[0])
				if err != nil {
					return err
				}
				if err := app.Reconciler.SyncInstrument(ctx, isin); err != nil {
					return err
				}
				if output.IsJSON() {
					return output.JSON(map[string]string{"isin": isin, "status": "refreshed"})
				}
				output.Success("✓ %s refreshed", isin)
				return nil
			}

			stats, err := app.Reconciler.SyncAll(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(stats)
			}
			output.Success("✓ Sync complete: %d refreshed, %d skipped, %d failed (of %d)",
				stats.Refreshed, stats.Skipped, stats.Failed, stats.Total)
			return nil
		},
	}
	return cmd
}
