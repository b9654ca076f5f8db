// Package metering composes the generation ledger and the renewal
// reconciler behind one facade keyed to a single device. Store failures are
// absorbed at this boundary and reported as fail-closed boolean results, per
// the error-handling contract; only setup-time configuration errors are
// fatal.
package metering

import (
	"context"

	"github.com/artisan-apps/genmeter/internal/application/metering/dto"
	"github.com/artisan-apps/genmeter/internal/application/metering/usecases"
	"github.com/artisan-apps/genmeter/internal/domain/entitlement"
	"github.com/artisan-apps/genmeter/internal/shared/clock"
	sharedConfig "github.com/artisan-apps/genmeter/internal/shared/config"
	"github.com/artisan-apps/genmeter/internal/shared/logger"
)

// Service is the application facade for one installed app instance.
type Service struct {
	deviceID string
	cfg      sharedConfig.MeteringConfig
	repo     entitlement.Repository
	clock    clock.Clock
	logger   logger.Interface

	checkQuota *usecases.CheckQuotaUseCase
	consume    *usecases.ConsumeGenerationUseCase
	activate   *usecases.ActivateSubscriptionUseCase
	cancel     *usecases.CancelSubscriptionUseCase
	purchase   *usecases.RecordPurchaseUseCase
	reconcile  *usecases.ReconcileRenewalUseCase
}

// NewService validates the config and wires the use cases. An invalid config
// is programmer error and fails here, before any store call.
func NewService(
	cfg sharedConfig.MeteringConfig,
	deviceID string,
	repo entitlement.Repository,
	notifier usecases.Notifier,
	feed usecases.PurchaseFeed,
	clk clock.Clock,
	log logger.Interface,
) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	if log == nil {
		log = logger.NewLogger()
	}

	activate := usecases.NewActivateSubscriptionUseCase(repo, notifier, clk, cfg.ProTierLimit, log)

	return &Service{
		deviceID:   deviceID,
		cfg:        cfg,
		repo:       repo,
		clock:      clk,
		logger:     log,
		checkQuota: usecases.NewCheckQuotaUseCase(repo, log),
		consume:    usecases.NewConsumeGenerationUseCase(repo, notifier, clk, log),
		activate:   activate,
		cancel:     usecases.NewCancelSubscriptionUseCase(repo, log),
		purchase:   usecases.NewRecordPurchaseUseCase(repo, feed, activate, clk, log),
		reconcile:  usecases.NewReconcileRenewalUseCase(repo, clk, cfg.ProTierLimit, log),
	}, nil
}

// DeviceID returns the device identifier this service is keyed to.
func (s *Service) DeviceID() string {
	return s.deviceID
}

// Initialize creates the free-tier account on first launch. Safe to call on
// every startup; an existing account is left untouched.
func (s *Service) Initialize(ctx context.Context) error {
	_, err := s.repo.InitializeAccount(ctx, s.deviceID, s.cfg.FreeTierLimit)
	return err
}

// CanUse reports whether a generation may be consumed right now. Any failure
// is fail-closed.
func (s *Service) CanUse(ctx context.Context) dto.QuotaStatus {
	status, err := s.checkQuota.Execute(ctx, s.deviceID)
	if err != nil {
		return dto.QuotaStatus{Allowed: false, Remaining: 0, NeedsUpgrade: true}
	}
	return status
}

// Consume spends one credit. Returns success and the remaining balance.
func (s *Service) Consume(ctx context.Context) (bool, int) {
	ok, remaining, err := s.consume.Execute(ctx, s.deviceID)
	if err != nil {
		return false, 0
	}
	return ok, remaining
}

// Activate moves the account onto a paid plan.
func (s *Service) Activate(ctx context.Context, plan string) bool {
	return s.activate.Execute(ctx, s.deviceID, entitlement.Plan(plan)) == nil
}

// Cancel drops the account back to the free tier.
func (s *Service) Cancel(ctx context.Context) bool {
	return s.cancel.Execute(ctx, s.deviceID) == nil
}

// HandlePurchaseEvent processes a one-shot purchase-success event.
func (s *Service) HandlePurchaseEvent(ctx context.Context, event dto.SubscriptionEvent) bool {
	ok, err := s.purchase.Execute(ctx, s.deviceID, event)
	return err == nil && ok
}

// HandleRenewalEvent runs the renewal reconciler against one
// subscription-status event.
func (s *Service) HandleRenewalEvent(ctx context.Context, event dto.SubscriptionEvent) dto.ReconcileResult {
	result, err := s.reconcile.Execute(ctx, s.deviceID, event)
	if err != nil {
		s.logger.Errorw("renewal reconciliation failed", "error", err, "device_id", s.deviceID)
	}
	return result
}

// Account returns the current account state with the informational next
// renewal date.
func (s *Service) Account(ctx context.Context) (*dto.AccountResponse, error) {
	account, err := s.repo.GetAccount(ctx, s.deviceID)
	if err != nil {
		return nil, err
	}

	resp := &dto.AccountResponse{
		DeviceID:        account.DeviceID(),
		Plan:            account.Plan().String(),
		GenerationsLeft: account.GenerationsLeft(),
		LastRenewalAt:   account.LastRenewalAt(),
		CreatedAt:       account.CreatedAt(),
	}
	if last := account.LastRenewalAt(); last != nil {
		next := clock.NextRenewalDate(*last, s.cfg.ResetPeriod)
		resp.NextRenewalAt = &next
	}
	return resp, nil
}

// Transactions returns the recorded transaction history, newest first.
func (s *Service) Transactions(ctx context.Context) ([]dto.TransactionResponse, error) {
	txs, err := s.repo.GetAllTransactions(ctx, s.deviceID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, dto.TransactionResponse{
			TransactionID:         tx.TransactionID(),
			OriginalTransactionID: tx.OriginalTransactionID(),
			ProductID:             tx.ProductID(),
			TransactionDate:       tx.TransactionDate(),
			ExpirationDate:        tx.ExpirationDate(),
			RenewalDate:           tx.RenewalDate(),
			IsActive:              tx.IsActive(),
			IsCancelled:           tx.IsCancelled(),
			IsAutoRenewing:        tx.IsAutoRenewing(),
			Platform:              tx.Platform().String(),
			Environment:           tx.Environment().String(),
			Reason:                tx.TransactionReason().String(),
		})
	}
	return out, nil
}
