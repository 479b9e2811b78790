package main

import (
	"os"

	"github.com/spf13/cobra"

	"volt/internal/interfaces/cli/migrate"
	"volt/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "volt",
		Short: "Volt - account, payment, and subscription backend",
		Long:  `Volt serves the account and payment HTTP API, reconciles the product catalog with the payment processor, and manages database migrations.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
