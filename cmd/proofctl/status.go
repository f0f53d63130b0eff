package main

import (
	"github.com/spf13/cobra"

	"github.com/Heisenberg1912/filecoin/internal/deals"
	"github.com/Heisenberg1912/filecoin/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status <locator>",
	Short: "Show simulated deal status and health for a locator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker := deals.NewTracker(nil)

		summary, err := tracker.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		return printJSON(cmd, models.DealStatusResponse{
			Summary: summary,
			Health:  deals.HealthScore(summary),
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
