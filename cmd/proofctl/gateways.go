package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Heisenberg1912/filecoin/internal/gateway"
)

var gatewaysJSON bool

var gatewaysCmd = &cobra.Command{
	Use:   "gateways",
	Short: "Probe and rank the configured gateway endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		monitor := gateway.NewMonitor(gateway.DefaultEndpoints())
		snapshot := monitor.HealthSnapshot(cmd.Context())

		if gatewaysJSON {
			return printJSON(cmd, snapshot)
		}

		for _, h := range snapshot {
			state := "DOWN"
			latency := "-"
			if h.Healthy {
				state = "UP"
			}
			if h.LatencyMs != nil {
				latency = fmt.Sprintf("%dms", *h.LatencyMs)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-6s %-8s %s\n", state, latency, h.Name)
		}
		return nil
	},
}

func init() {
	gatewaysCmd.Flags().BoolVar(&gatewaysJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(gatewaysCmd)
}
