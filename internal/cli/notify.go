package cli

import (
	"github.com/spf13/cobra"
)

func newNotifyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Run the notification sweep once",
		Long: `Scan all tracked bonds for imminent events and notify tracking
users. Events already announced to a user are skipped, so repeated
runs on the same day send nothing new.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			stats, err := app.Dispatcher.Run(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(stats)
			}
			output.Success("✓ Notifications: %d sent, %d already sent, %d failed (%d bonds checked)",
				stats.Sent, stats.Deduped, stats.Failed, stats.Instruments)
			return nil
		},
	}
}
