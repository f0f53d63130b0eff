package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var certifyCmd = &cobra.Command{
	Use:   "certify <file>",
	Short: "Certify a file and store its proof of existence",
	Args:  cobra.ExactArgs(1),
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

		proof, err := certifier.Certify(ctx, filepath.Base(args[0]), http.DetectContentType(data), data)
		if err != nil {
			return fmt.Errorf("certification failed: %w", err)
		}

		return printJSON(cmd, proof)
	},
}

func init() {
	rootCmd.AddCommand(certifyCmd)
}
