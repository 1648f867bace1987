package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"bondwatch/internal/models"
)

func newTrackCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Manage tracked bonds",
		Long:  "Add, remove, and list the bonds a user follows.",
	}

	var userID int64
	cmd.PersistentFlags().Int64Var(&userID, "user", 0, "user id (required)")
	cmd.MarkPersistentFlagRequired("user")

	var quantity int
	var fullName string
	addCmd := &cobra.Command{
		Use:   "add <isin>",
		Short: "Start tracking a bond",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			if err := app.Store.UpsertUser(ctx, &models.User{ID: userID, FullName: fullName}); err != nil {
				return err
			}
			tracking, err := app.Tracker.Add(ctx, userID, args[0], quantity)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(tracking)
			}
			output.Success("✓ Tracking %s (quantity %d)", tracking.ISIN, tracking.Quantity)
			return nil
		},
	}
	addCmd.Flags().IntVar(&quantity, "quantity", 1, "number of bonds held")
	addCmd.Flags().StringVar(&fullName, "name", "", "display name used in notifications")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <isin>",
		Short: "Stop tracking a bond",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Tracker.Remove(cmd.Context(), userID, args[0]); err != nil {
				return err
			}
			output.Success("✓ Removed %s", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "quantity <isin> <count>",
		Short: "Set the held quantity for a tracked bond",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			count, err := strconv.Atoi(args[1])
			if err != nil {
				return err
			}
			if err := app.Tracker.SetQuantity(cmd.Context(), userID, args[0], count); err != nil {
				return err
			}
			output.Success("✓ Quantity for %s set to %d", args[0], count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tracked bonds",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			bonds, err := app.Tracker.List(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(bonds)
			}
			if len(bonds) == 0 {
				output.Info("No tracked bonds")
				return nil
			}

			rows := make([][]string, 0, len(bonds))
			for _, b := range bonds {
				rows = append(rows, []string{
					b.Instrument.ISIN,
					b.Instrument.Name,
					strconv.Itoa(b.Tracking.Quantity),
					formatDate(b.Instrument.NextCouponDate),
					formatDate(b.Instrument.MaturityDate),
				})
			}
			output.Table([]string{"ISIN", "NAME", "QTY", "NEXT COUPON", "MATURITY"}, rows)
			return nil
		},
	})

	return cmd
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("02.01.2006")
}
