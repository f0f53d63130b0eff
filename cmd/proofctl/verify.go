package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verifyProofID string

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Verify a file against a stored proof",
	Long: `Verify re-hashes the file and compares the digest against the stored
proof. Without --proof the lookup is by content hash; an unknown hash
is reported as invalid rather than as an error.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		certifier, db, err := openCertifier(ctx)
		if err != nil {
			return err
		}
		defer db.Close(ctx)

		result, err := certifier.Verify(ctx, data, verifyProofID)
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}

		return printJSON(cmd, result)
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyProofID, "proof", "", "verify against a specific proof id")
	rootCmd.AddCommand(verifyCmd)
}
