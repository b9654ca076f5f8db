package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/artisan-apps/genmeter/internal/interfaces/cli/migrate"
	"github.com/artisan-apps/genmeter/internal/interfaces/cli/server"
	"github.com/artisan-apps/genmeter/internal/interfaces/cli/status"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "genmeter",
		Short: "Genmeter - local generation metering and entitlements",
		Long:  `Genmeter meters AI generation credits against the local entitlement store and reconciles subscription renewals from billing platform events.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
		status.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
