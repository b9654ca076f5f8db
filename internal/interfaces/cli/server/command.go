package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/artisan-apps/genmeter/internal/application/metering"
	"github.com/artisan-apps/genmeter/internal/application/metering/usecases"
	"github.com/artisan-apps/genmeter/internal/domain/entitlement"
	"github.com/artisan-apps/genmeter/internal/infrastructure/config"
	"github.com/artisan-apps/genmeter/internal/infrastructure/database"
	"github.com/artisan-apps/genmeter/internal/infrastructure/repository"
	httpRouter "github.com/artisan-apps/genmeter/internal/interfaces/http"
	"github.com/artisan-apps/genmeter/internal/shared/id"
	"github.com/artisan-apps/genmeter/internal/shared/logger"
)

var store string

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the metering HTTP server",
		Long:  `Start the local metering server exposing the quota gate, the generation ledger and the billing event endpoints.`,
		RunE:  run,
	}

	cmd.Flags().StringVar(&store, "store", "db", "Entitlement store backend (db, redis, memory)")

	return cmd
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

	log.Infow("starting server", "store", store)

	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {
	}

	repo, cleanup, err := buildStore(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	deviceID, err := id.LoadOrCreate(cfg.Metering.DeviceIDPath)
	if err != nil {
		return fmt.Errorf("failed to load device id: %w", err)
	}

	service, err := metering.NewService(
		cfg.Metering,
		deviceID,
		repo,
		&loggingNotifier{log: log},
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
	log.Infow("account ready", "device_id", deviceID)

	router := httpRouter.NewRouter(service, cfg.Server.Mode, log)

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "address", cfg.Server.GetAddr(), "mode", cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return err
	}

	log.Infow("server exited gracefully")
	return nil
}

func buildStore(cfg *config.Config, log logger.Interface) (entitlement.Repository, func(), error) {
	switch store {
	case "memory":
		return repository.NewMemoryRepository(), func() {}, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Infow("redis connection established", "address", cfg.Redis.GetAddr())
		return repository.NewRedisRepository(client, log), func() { client.Close() }, nil

	case "db":
		if err := database.Init(&cfg.Database); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := database.Migrate(database.Get(), cfg.Database.Driver, log); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return repository.NewGormRepository(database.Get(), log), func() { database.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store backend: %s", store)
	}
}

// loggingNotifier surfaces ledger callbacks in the server log. A host app
// embedding the service would swap in its own UI-facing implementation.
type loggingNotifier struct {
	log logger.Interface
}

func (n *loggingNotifier) SubscriptionActivated(plan string) {
	n.log.Infow("subscription activated", "plan", plan)
}

func (n *loggingNotifier) GenerationUsed(remaining int) {
	n.log.Debugw("generation used", "remaining", remaining)
}

func (n *loggingNotifier) LimitReached(needsUpgrade bool) {
	n.log.Infow("generation limit reached", "needs_upgrade", needsUpgrade)
}
