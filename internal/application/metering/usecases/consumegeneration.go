package usecases

import (
	"context"
	"fmt"

	"github.com/artisan-apps/genmeter/internal/domain/entitlement"
	"github.com/artisan-apps/genmeter/internal/shared/clock"
	"github.com/artisan-apps/genmeter/internal/shared/errors"
	"github.com/artisan-apps/genmeter/internal/shared/logger"
)

// ConsumeGenerationUseCase atomically spends one generation credit.
// The limit-reached callback is edge-triggered: it fires on the transition
// to zero, not on every later failed attempt at zero.
type ConsumeGenerationUseCase struct {
	repo     entitlement.Repository
	notifier Notifier
	clock    clock.Clock
	logger   logger.Interface
}

// NewConsumeGenerationUseCase creates a new consume generation use case
func NewConsumeGenerationUseCase(
	repo entitlement.Repository,
	notifier Notifier,
	clk clock.Clock,
	logger logger.Interface,
) *ConsumeGenerationUseCase {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ConsumeGenerationUseCase{
		repo:     repo,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
	}
}

// Execute decrements the balance by one. A missing account or an exhausted
// balance is a no-op failure (ok=false), never an error; the balance can
// never go negative.
func (uc *ConsumeGenerationUseCase) Execute(ctx context.Context, deviceID string) (ok bool, remaining int, err error) {
	account, err := uc.repo.GetAccount(ctx, deviceID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			uc.logger.Warnw("consume attempt for unknown device", "device_id", deviceID)
			return false, 0, nil
		}
		uc.logger.Errorw("failed to load account for consumption", "error", err, "device_id", deviceID)
		return false, 0, fmt.Errorf("failed to load account: %w", err)
	}

	if err := account.Consume(uc.clock.Now()); err != nil {
		uc.logger.Debugw("consume denied, balance exhausted",
			"device_id", deviceID,
			"subscribed", account.IsSubscribed(),
		)
		return false, 0, nil
	}

	remaining = account.GenerationsLeft()
	if err := uc.repo.SetGenerationCount(ctx, deviceID, remaining); err != nil {
		uc.logger.Errorw("failed to persist consumption", "error", err, "device_id", deviceID)
		return false, 0, fmt.Errorf("failed to persist consumption: %w", err)
	}

	uc.logger.Infow("generation consumed", "device_id", deviceID, "remaining", remaining)
	uc.notifier.GenerationUsed(remaining)

	// Edge trigger: the successful decrement that lands on zero.
	if remaining == 0 {
		uc.notifier.LimitReached(!account.IsSubscribed())
	}

	return true, remaining, nil
}
