package entitlement

import (
	"context"
	"time"
)

// Repository is the durable store contract for accounts and subscription
// transactions. Any backend with these observable semantics is
// interchangeable; write operations are single logical writes so a failed
// call leaves no partial state.
type Repository interface {
	// InitializeAccount creates the free-tier account for a device if absent
	// and returns the current account either way.
	InitializeAccount(ctx context.Context, deviceID string, freeLimit int) (*Account, error)

	// GetAccount loads the account for a device. Absence is a typed
	// not-found error, not a nil account.
	GetAccount(ctx context.Context, deviceID string) (*Account, error)

	// SetGenerationCount persists a new credit balance.
	SetGenerationCount(ctx context.Context, deviceID string, count int) error

	// ActivatePlan sets the plan, resets the balance and stamps the renewal
	// baseline in one write.
	ActivatePlan(ctx context.Context, deviceID string, plan Plan, count int, renewedAt time.Time) error

	// ResetForRenewal resets the balance and advances the renewal stamp in
	// one write.
	ResetForRenewal(ctx context.Context, deviceID string, count int, renewedAt time.Time) error

	// SetLastRenewal stamps the renewal baseline without touching the balance.
	SetLastRenewal(ctx context.Context, deviceID string, renewedAt time.Time) error

	// ClearPlan drops the account back to the free tier.
	ClearPlan(ctx context.Context, deviceID string) error

	// UpsertTransaction inserts or updates a transaction record keyed by its
	// transaction ID. Reprocessing the same event never duplicates.
	UpsertTransaction(ctx context.Context, tx *Transaction) error

	// GetActiveTransaction returns the most recent active transaction for a
	// device, or a not-found error.
	GetActiveTransaction(ctx context.Context, deviceID string) (*Transaction, error)

	// GetAllTransactions returns every recorded transaction for a device,
	// newest first.
	GetAllTransactions(ctx context.Context, deviceID string) ([]*Transaction, error)

	// MarkTransactionCancelled flags a transaction as cancelled.
	MarkTransactionCancelled(ctx context.Context, transactionID string) error
}
