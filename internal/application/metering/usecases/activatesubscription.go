package usecases

import (
	"context"
	"fmt"

	"github.com/artisan-apps/genmeter/internal/domain/entitlement"
	"github.com/artisan-apps/genmeter/internal/shared/clock"
	"github.com/artisan-apps/genmeter/internal/shared/logger"
)

// ActivateSubscriptionUseCase moves an account onto a paid plan: set the
// plan tag, reset credits to the paid-tier limit and stamp the renewal
// baseline, in one store write.
type ActivateSubscriptionUseCase struct {
	repo     entitlement.Repository
	notifier Notifier
	clock    clock.Clock
	proLimit int
	logger   logger.Interface
}

// NewActivateSubscriptionUseCase creates a new activate subscription use case
func NewActivateSubscriptionUseCase(
	repo entitlement.Repository,
	notifier Notifier,
	clk clock.Clock,
	proLimit int,
	logger logger.Interface,
) *ActivateSubscriptionUseCase {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ActivateSubscriptionUseCase{
		repo:     repo,
		notifier: notifier,
		clock:    clk,
		proLimit: proLimit,
		logger:   logger,
	}
}

// Execute activates the plan for a device and fires the activation callback
// on success.
func (uc *ActivateSubscriptionUseCase) Execute(ctx context.Context, deviceID string, plan entitlement.Plan) error {
	if !plan.IsSubscribed() {
		return fmt.Errorf("plan is required for activation")
	}

	now := uc.clock.Now()
	if err := uc.repo.ActivatePlan(ctx, deviceID, plan, uc.proLimit, now); err != nil {
		uc.logger.Errorw("failed to activate subscription",
			"error", err,
			"device_id", deviceID,
			"plan", plan,
		)
		return fmt.Errorf("failed to activate subscription: %w", err)
	}

	uc.logger.Infow("subscription activated",
		"device_id", deviceID,
		"plan", plan,
		"generations", uc.proLimit,
	)
	uc.notifier.SubscriptionActivated(plan.String())

	return nil
}
