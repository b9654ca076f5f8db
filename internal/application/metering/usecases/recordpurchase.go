package usecases

import (
	"context"
	"fmt"
	"sync"

	"github.com/artisan-apps/genmeter/internal/application/metering/dto"
	"github.com/artisan-apps/genmeter/internal/domain/entitlement"
	"github.com/artisan-apps/genmeter/internal/shared/clock"
	"github.com/artisan-apps/genmeter/internal/shared/logger"
)

// RecordPurchaseUseCase handles the one-shot purchase-success path: record
// the transaction, activate the plan and acknowledge the event to the feed.
// It bypasses the renewal reconciler, which only watches the ongoing
// subscription-status stream.
//
// An in-process set of acknowledged transaction IDs stops the purchase
// callback from double-firing within a process lifetime; the durable upsert
// remains the authoritative guard across restarts.
type RecordPurchaseUseCase struct {
	repo     entitlement.Repository
	feed     PurchaseFeed
	activate *ActivateSubscriptionUseCase
	clock    clock.Clock
	logger   logger.Interface

	mu    sync.Mutex
	acked map[string]struct{}
}

// NewRecordPurchaseUseCase creates a new record purchase use case
func NewRecordPurchaseUseCase(
	repo entitlement.Repository,
	feed PurchaseFeed,
	activate *ActivateSubscriptionUseCase,
	clk clock.Clock,
	logger logger.Interface,
) *RecordPurchaseUseCase {
	if feed == nil {
		feed = NopPurchaseFeed{}
	}
	return &RecordPurchaseUseCase{
		repo:     repo,
		feed:     feed,
		activate: activate,
		clock:    clk,
		logger:   logger,
		acked:    make(map[string]struct{}),
	}
}

// Execute processes a purchase-success event for a device. Returns true when
// the purchase activated the subscription, false when the event was already
// handled in this process.
func (uc *RecordPurchaseUseCase) Execute(ctx context.Context, deviceID string, event dto.SubscriptionEvent) (bool, error) {
	if event.TransactionID == "" {
		return false, entitlement.ErrTransactionIDRequired
	}

	if uc.alreadyAcked(event.TransactionID) {
		uc.logger.Debugw("purchase event already acknowledged in this process",
			"transaction_id", event.TransactionID,
		)
		return false, nil
	}

	now := uc.clock.Now()
	tx, err := transactionFromEvent(deviceID, event, now)
	if err != nil {
		uc.logger.Errorw("failed to build purchase record", "error", err, "transaction_id", event.TransactionID)
		return false, fmt.Errorf("failed to build purchase record: %w", err)
	}

	if err := uc.repo.UpsertTransaction(ctx, tx); err != nil {
		uc.logger.Errorw("failed to record purchase",
			"error", err,
			"device_id", deviceID,
			"transaction_id", event.TransactionID,
		)
		return false, fmt.Errorf("failed to record purchase: %w", err)
	}

	if err := uc.activate.Execute(ctx, deviceID, entitlement.Plan(event.ProductID)); err != nil {
		return false, err
	}

	if err := uc.feed.Finish(ctx, event.TransactionID); err != nil {
		// The entitlement is already granted; a failed ack only risks a
		// redelivery, which the reconciler and the upsert absorb.
		uc.logger.Warnw("failed to acknowledge purchase event",
			"error", err,
			"transaction_id", event.TransactionID,
		)
	}

	uc.markAcked(event.TransactionID)

	uc.logger.Infow("purchase processed",
		"device_id", deviceID,
		"transaction_id", event.TransactionID,
		"product_id", event.ProductID,
	)
	return true, nil
}

func (uc *RecordPurchaseUseCase) alreadyAcked(transactionID string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	_, ok := uc.acked[transactionID]
	return ok
}

func (uc *RecordPurchaseUseCase) markAcked(transactionID string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.acked[transactionID] = struct{}{}
}
