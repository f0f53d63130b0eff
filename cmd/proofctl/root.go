package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Heisenberg1912/filecoin/internal/proofs"
	"github.com/Heisenberg1912/filecoin/internal/registry"
	"github.com/Heisenberg1912/filecoin/internal/storage"
	"github.com/Heisenberg1912/filecoin/internal/store"
	"github.com/Heisenberg1912/filecoin/internal/webhooks"
)

var (
	// Global flags
	dbPath     string
	registrant string
)

// rootCmd is the base command for proofctl.
var rootCmd = &cobra.Command{
	Use:   "proofctl",
	Short: "Proof-of-existence CLI — certify files, verify proofs, inspect deals and gateways",
	Long: `Proofctl works against a local proof store without running the daemon.
Certification uses the simulated ledger and derived locators, so the
results are self-contained and reproducible.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Internal logging would pollute command output.
		logrus.SetLevel(logrus.WarnLevel)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "proofs.db", "path to the local proof store")
	rootCmd.PersistentFlags().StringVar(&registrant, "registrant", "proofctl", "registrant identity for new proofs")
}

// openCertifier wires a Certifier over the local store with the
// simulated registry and storage backends.
func openCertifier(ctx context.Context) (*proofs.Certifier, store.Database, error) {
	db, err := store.NewBoltDB(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open proof store: %w", err)
	}

	ledger, err := registry.NewSimLedger(ctx, db, registrant)
	if err != nil {
		db.Close(ctx)
		return nil, nil, fmt.Errorf("failed to open simulated ledger: %w", err)
	}

	certifier := proofs.NewCertifier(proofs.CertifierConfig{
		Storage:    storage.NewSimulated(),
		Registry:   ledger,
		Database:   db,
		Dispatcher: webhooks.NewDispatcher(db),
		Registrant: registrant,
		GatewayURL: "https://w3s.link/ipfs/",
		Explorer:   "https://calibration.filfox.info/en/message/",
	})

	return certifier, db, nil
}

// printJSON renders v as indented JSON on the command's stdout.
func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
