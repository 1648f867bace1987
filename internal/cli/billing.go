package cli

import (
	"github.com/spf13/cobra"

	"bondwatch/internal/models"
)

func newBillingCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "billing",
		Short: "Manage subscriptions and payments",
	}

	var userID int64
	subscribeCmd := &cobra.Command{
		Use:   "subscribe <plan>",
		Short: "Create a payment intent for a plan upgrade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			plan := models.Plan(args[0])

			payment, err := app.Billing.CreateIntent(cmd.Context(), userID, plan)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(payment)
			}
			output.Success("✓ Payment intent created")
			output.Printf("  Plan:      %s\n", payment.Plan)
			output.Printf("  Amount:    %.2f руб.\n", payment.Amount)
			output.Printf("  Reference: %s\n", payment.Reference)
			return nil
		},
	}
	subscribeCmd.Flags().Int64Var(&userID, "user", 0, "user id (required)")
	subscribeCmd.MarkFlagRequired("user")
	cmd.AddCommand(subscribeCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "confirm <reference>",
		Short: "Confirm a payment and activate the subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			sub, err := app.Billing.ConfirmPayment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(sub)
			}
			output.Success("✓ Subscription active: %s", sub.Plan)
			if sub.ExpiresAt != nil {
				output.Printf("  Expires: %s\n", sub.ExpiresAt.Format("02.01.2006"))
			}
			return nil
		},
	})

	var statusUserID int64
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show a user's subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			sub, err := app.Store.GetSubscription(cmd.Context(), statusUserID)
			if err != nil {
				return err
			}
			plan, err := app.Billing.EffectivePlan(cmd.Context(), statusUserID)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"subscription":   sub,
					"effective_plan": plan,
				})
			}
			output.Printf("Plan: %s", sub.Plan)
			if plan != sub.Plan {
				output.Printf(" (expired, effective: %s)", plan)
			}
			output.Println()
			limit, unlimited := plan.TrackingLimit()
			if unlimited {
				output.Println("Tracking limit: unlimited")
			} else {
				output.Printf("Tracking limit: %d\n", limit)
			}
			return nil
		},
	}
	statusCmd.Flags().Int64Var(&statusUserID, "user", 0, "user id (required)")
	statusCmd.MarkFlagRequired("user")
	cmd.AddCommand(statusCmd)

	return cmd
}
