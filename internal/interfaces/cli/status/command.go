package status

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artisan-apps/genmeter/internal/application/metering"
	"github.com/artisan-apps/genmeter/internal/application/metering/usecases"
	"github.com/artisan-apps/genmeter/internal/infrastructure/config"
	"github.com/artisan-apps/genmeter/internal/infrastructure/database"
	"github.com/artisan-apps/genmeter/internal/infrastructure/repository"
	"github.com/artisan-apps/genmeter/internal/shared/id"
	"github.com/artisan-apps/genmeter/internal/shared/logger"
)

func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current entitlement state",
		Long:  `Print the local account: plan, remaining generations and renewal dates.`,
		RunE:  run,
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(database.Get(), cfg.Database.Driver, log); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	deviceID, err := id.LoadOrCreate(cfg.Metering.DeviceIDPath)
	if err != nil {
		return fmt.Errorf("failed to load device id: %w", err)
	}

	repo := repository.NewGormRepository(database.Get(), log)
	service, err := metering.NewService(
		cfg.Metering,
		deviceID,
		repo,
		usecases.NopNotifier{},
		usecases.NopPurchaseFeed{},
		nil,
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to build metering service: %w", err)
	}

	ctx := context.Background()
	if err := service.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize account: %w", err)
	}

	account, err := service.Account(ctx)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}

	plan := account.Plan
	if plan == "" {
		plan = "free"
	}

	fmt.Printf("\nEntitlement Status:\n")
	fmt.Printf("  Device ID:        %s\n", account.DeviceID)
	fmt.Printf("  Plan:             %s\n", plan)
	fmt.Printf("  Generations Left: %d\n", account.GenerationsLeft)
	if account.LastRenewalAt != nil {
		fmt.Printf("  Last Renewal:     %s\n", account.LastRenewalAt.Format("2006-01-02 15:04:05 MST"))
	}
	if account.NextRenewalAt != nil {
		fmt.Printf("  Next Renewal:     %s\n", account.NextRenewalAt.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}
