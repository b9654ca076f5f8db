package usecases

import (
	"context"
	"fmt"

	"github.com/artisan-apps/genmeter/internal/domain/entitlement"
	"github.com/artisan-apps/genmeter/internal/shared/errors"
	"github.com/artisan-apps/genmeter/internal/shared/logger"
)

// CancelSubscriptionUseCase drops an account back to the free tier and flags
// the active transaction as cancelled. The remaining balance is not zeroed;
// it drains through ordinary consumption.
type CancelSubscriptionUseCase struct {
	repo   entitlement.Repository
	logger logger.Interface
}

// NewCancelSubscriptionUseCase creates a new cancel subscription use case
func NewCancelSubscriptionUseCase(repo entitlement.Repository, logger logger.Interface) *CancelSubscriptionUseCase {
	return &CancelSubscriptionUseCase{
		repo:   repo,
		logger: logger,
	}
}

// Execute clears the plan. Flagging the transaction is best effort: a device
// may have been subscribed through a record this install never saw.
func (uc *CancelSubscriptionUseCase) Execute(ctx context.Context, deviceID string) error {
	active, err := uc.repo.GetActiveTransaction(ctx, deviceID)
	switch {
	case err == nil:
		if err := uc.repo.MarkTransactionCancelled(ctx, active.TransactionID()); err != nil {
			uc.logger.Warnw("failed to flag transaction cancelled",
				"error", err,
				"device_id", deviceID,
				"transaction_id", active.TransactionID(),
			)
		}
	case errors.IsNotFoundError(err):
		// Nothing to flag.
	default:
		uc.logger.Warnw("failed to look up active transaction for cancellation",
			"error", err,
			"device_id", deviceID,
		)
	}

	if err := uc.repo.ClearPlan(ctx, deviceID); err != nil {
		if errors.IsNotFoundError(err) {
			uc.logger.Warnw("cancel for unknown device", "device_id", deviceID)
			return err
		}
		uc.logger.Errorw("failed to clear plan", "error", err, "device_id", deviceID)
		return fmt.Errorf("failed to clear plan: %w", err)
	}

	uc.logger.Infow("subscription cancelled", "device_id", deviceID)
	return nil
}
