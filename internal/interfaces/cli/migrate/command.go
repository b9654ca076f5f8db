package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artisan-apps/genmeter/internal/infrastructure/config"
	"github.com/artisan-apps/genmeter/internal/infrastructure/database"
	"github.com/artisan-apps/genmeter/internal/shared/logger"
)

var steps int

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Manage the entitlement store schema: apply pending migrations, roll back, or check the current version.`,
	}

	cmd.AddCommand(
		newUpCommand(),
		newDownCommand(),
		newStatusCommand(),
	)

	return cmd
}

func newUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Run all pending migrations",
		RunE:  runUp,
	}
}

func newDownCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE:  runDown,
	}

	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")

	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		RunE:  runStatus,
	}
}

func initEnv() (*config.Config, logger.Interface, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	if err := database.Init(&cfg.Database); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return cfg, log, nil
}

func runUp(cmd *cobra.Command, args []string) error {
	cfg, log, err := initEnv()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(database.Get(), cfg.Database.Driver, log); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Infow("migrations completed successfully")
	return nil
}

func runDown(cmd *cobra.Command, args []string) error {
	cfg, log, err := initEnv()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.MigrateDown(database.Get(), cfg.Database.Driver, steps, log); err != nil {
		return fmt.Errorf("down migration failed: %w", err)
	}

	log.Infow("down migration completed successfully")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, _, err := initEnv()
	if err != nil {
		return err
	}
	defer database.Close()

	version, err := database.MigrationVersion(database.Get(), cfg.Database.Driver)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	fmt.Printf("\nMigration Status:\n")
	fmt.Printf("  Driver:          %s\n", cfg.Database.Driver)
	fmt.Printf("  Current Version: %d\n", version)
	return nil
}
