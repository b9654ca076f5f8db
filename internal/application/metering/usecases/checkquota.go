package usecases

import (
	"context"
	"fmt"

	"github.com/artisan-apps/genmeter/internal/application/metering/dto"
	"github.com/artisan-apps/genmeter/internal/domain/entitlement"
	"github.com/artisan-apps/genmeter/internal/shared/errors"
	"github.com/artisan-apps/genmeter/internal/shared/logger"
)

// CheckQuotaUseCase answers whether a generation may be consumed right now.
// A missing account fails closed: not allowed, upgrade required.
type CheckQuotaUseCase struct {
	repo   entitlement.Repository
	logger logger.Interface
}

// NewCheckQuotaUseCase creates a new check quota use case
func NewCheckQuotaUseCase(repo entitlement.Repository, logger logger.Interface) *CheckQuotaUseCase {
	return &CheckQuotaUseCase{
		repo:   repo,
		logger: logger,
	}
}

// Execute evaluates the gate for a device. The returned status is valid even
// when err is non-nil: store failures and missing accounts both fail closed.
func (uc *CheckQuotaUseCase) Execute(ctx context.Context, deviceID string) (dto.QuotaStatus, error) {
	denied := dto.QuotaStatus{Allowed: false, Remaining: 0, NeedsUpgrade: true}

	account, err := uc.repo.GetAccount(ctx, deviceID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			uc.logger.Warnw("quota check for unknown device", "device_id", deviceID)
			return denied, nil
		}
		uc.logger.Errorw("failed to load account for quota check", "error", err, "device_id", deviceID)
		return denied, fmt.Errorf("failed to load account: %w", err)
	}

	remaining := account.GenerationsLeft()
	if remaining > 0 {
		return dto.QuotaStatus{Allowed: true, Remaining: remaining, NeedsUpgrade: false}, nil
	}

	// Exhausted. On the paid tier the caller waits for renewal; on the free
	// tier the caller must subscribe.
	return dto.QuotaStatus{
		Allowed:      false,
		Remaining:    0,
		NeedsUpgrade: !account.IsSubscribed(),
	}, nil
}
