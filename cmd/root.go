// Package cmd holds the civicsync command line: the HTTP server and the
// ledger reconciliation job.
package cmd

import (
	"fmt"
	"os"

	"civicsync/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "civicsync",
		Short:         "Civic issue reporting backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(envFile); err != nil {
				fmt.Fprintln(os.Stderr, "No .env file found")
			}
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	cmd.AddCommand(serveCmd(), reconcileCmd())
	return cmd
}

// setup loads configuration and the logger shared by every subcommand.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := config.NewLogger(cfg)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, log, nil
}
