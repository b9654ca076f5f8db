package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/artisan-apps/genmeter/internal/application/metering/dto"
	"github.com/artisan-apps/genmeter/internal/domain/entitlement"
	"github.com/artisan-apps/genmeter/internal/shared/clock"
	"github.com/artisan-apps/genmeter/internal/shared/errors"
	"github.com/artisan-apps/genmeter/internal/shared/logger"
)

// ReconcileRenewalUseCase decides whether a subscription-status event
// represents a new billing cycle and, if so, performs the credit reset
// exactly once.
//
// The comparator is the event's own transaction timestamp against the last
// successfully recorded reset, never arrival order or wall-clock "now", so
// replayed and out-of-order deliveries are idempotent. The new baseline is
// stamped with reconciliation time, which anchors future comparisons to this
// side of any client/platform clock skew.
type ReconcileRenewalUseCase struct {
	repo     entitlement.Repository
	clock    clock.Clock
	proLimit int
	logger   logger.Interface
}

// NewReconcileRenewalUseCase creates a new reconcile renewal use case
func NewReconcileRenewalUseCase(
	repo entitlement.Repository,
	clk clock.Clock,
	proLimit int,
	logger logger.Interface,
) *ReconcileRenewalUseCase {
	return &ReconcileRenewalUseCase{
		repo:     repo,
		clock:    clk,
		proLimit: proLimit,
		logger:   logger,
	}
}

// Execute runs the decision procedure in order, short-circuiting on the
// first terminal outcome. Skips are never errors: a malformed or stale
// event simply does not reset anything.
func (uc *ReconcileRenewalUseCase) Execute(ctx context.Context, deviceID string, event dto.SubscriptionEvent) (dto.ReconcileResult, error) {
	now := uc.clock.Now()

	// 1. Liveness: an event whose covered period already ended cannot start
	// a new cycle.
	if exp := event.ExpirationDate(); exp != nil && !exp.After(now) {
		uc.logger.Debugw("renewal event expired",
			"device_id", deviceID,
			"transaction_id", event.TransactionID,
			"expiration", exp,
		)
		return dto.ReconcileResult{Outcome: dto.OutcomeSkipExpired}, nil
	}

	// 2. Linkage: without the original transaction ID the event cannot be
	// correlated to a subscription chain.
	if event.OriginalTransactionID == nil || *event.OriginalTransactionID == "" {
		uc.logger.Debugw("renewal event missing chain link",
			"device_id", deviceID,
			"transaction_id", event.TransactionID,
		)
		return dto.ReconcileResult{Outcome: dto.OutcomeSkipUnlinked}, nil
	}

	// 3. Baseline: no account, no decision.
	account, err := uc.repo.GetAccount(ctx, deviceID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			uc.logger.Warnw("renewal event for unknown device", "device_id", deviceID)
			return dto.ReconcileResult{Outcome: dto.OutcomeSkipNoAccount}, nil
		}
		uc.logger.Errorw("failed to load account for reconciliation", "error", err, "device_id", deviceID)
		return dto.ReconcileResult{Outcome: dto.OutcomeSkipNoAccount}, fmt.Errorf("failed to load account: %w", err)
	}

	// 4. Renewal only applies to an already-active subscription; initial
	// activation is the purchase path's job.
	if !account.IsSubscribed() {
		uc.logger.Debugw("renewal event for unsubscribed account", "device_id", deviceID)
		return dto.ReconcileResult{Outcome: dto.OutcomeSkipNotSubscribed}, nil
	}

	// 5/6. First reset, or payment processed strictly after the last one.
	last := account.LastRenewalAt()
	outcome := dto.OutcomeRenewedFirst
	if last != nil {
		if !event.TransactionDate().After(*last) {
			uc.logger.Debugw("renewal event already processed",
				"device_id", deviceID,
				"transaction_id", event.TransactionID,
				"transaction_date", event.TransactionDate(),
				"last_renewal_at", last,
			)
			return dto.ReconcileResult{Outcome: dto.OutcomeSkipStale}, nil
		}
		outcome = dto.OutcomeRenewed
	}

	if err := uc.recordAndReset(ctx, deviceID, event, now); err != nil {
		return dto.ReconcileResult{Outcome: outcome}, err
	}

	uc.logger.Infow("billing cycle renewed",
		"device_id", deviceID,
		"transaction_id", event.TransactionID,
		"outcome", outcome,
		"generations", uc.proLimit,
	)
	return dto.ReconcileResult{Renewed: true, Outcome: outcome}, nil
}

// recordAndReset persists the raw transaction, then applies the same
// reset-and-stamp write activation uses. The stamp is reconciliation time,
// not the transaction's own date.
func (uc *ReconcileRenewalUseCase) recordAndReset(ctx context.Context, deviceID string, event dto.SubscriptionEvent, now time.Time) error {
	tx, err := transactionFromEvent(deviceID, event, now)
	if err != nil {
		uc.logger.Errorw("failed to build transaction record", "error", err, "transaction_id", event.TransactionID)
		return fmt.Errorf("failed to build transaction record: %w", err)
	}

	if err := uc.repo.UpsertTransaction(ctx, tx); err != nil {
		uc.logger.Errorw("failed to upsert transaction",
			"error", err,
			"device_id", deviceID,
			"transaction_id", event.TransactionID,
		)
		return fmt.Errorf("failed to upsert transaction: %w", err)
	}

	if err := uc.repo.ResetForRenewal(ctx, deviceID, uc.proLimit, now); err != nil {
		uc.logger.Errorw("failed to reset credits for renewal",
			"error", err,
			"device_id", deviceID,
			"transaction_id", event.TransactionID,
		)
		return fmt.Errorf("failed to reset credits: %w", err)
	}

	return nil
}

// transactionFromEvent maps a feed event onto the transaction aggregate.
func transactionFromEvent(deviceID string, event dto.SubscriptionEvent, now time.Time) (*entitlement.Transaction, error) {
	reason := entitlement.TransactionReason(event.Reason)
	tx, err := entitlement.NewTransaction(
		event.TransactionID,
		deviceID,
		event.ProductID,
		event.TransactionDate(),
		reason,
		now,
	)
	if err != nil {
		return nil, err
	}

	if event.OriginalTransactionID != nil {
		tx.SetOriginalTransactionID(*event.OriginalTransactionID)
	}
	if exp := event.ExpirationDate(); exp != nil {
		tx.SetExpirationDate(*exp)
	}
	if ren := event.RenewalDate(); ren != nil {
		tx.SetRenewalDate(*ren)
	}
	tx.SetAutoRenewing(event.IsAutoRenewing)
	tx.SetOrigin(entitlement.Platform(event.Platform), entitlement.Environment(event.Environment))
	tx.SetRawPayload(event.RawPayload)

	return tx, nil
}
