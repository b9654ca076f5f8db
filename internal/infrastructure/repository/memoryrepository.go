package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/artisan-apps/genmeter/internal/domain/entitlement"
	"github.com/artisan-apps/genmeter/internal/shared/errors"
)

// MemoryRepository is the volatile reference implementation of the store
// contract. Observable semantics match the GORM-backed implementation; a
// mutex serializes the read-modify-write sequences so racing callers cannot
// observe partial state.
type MemoryRepository struct {
	mu           sync.RWMutex
	accounts     map[string]accountRecord
	transactions map[string]transactionRecord
}

type accountRecord struct {
	deviceID        string
	plan            entitlement.Plan
	generationsLeft int
	lastRenewalAt   *time.Time
	createdAt       time.Time
	updatedAt       time.Time
	version         int
}

type transactionRecord struct {
	transactionID         string
	originalTransactionID *string
	deviceID              string
	productID             string
	transactionDate       time.Time
	expirationDate        *time.Time
	renewalDate           *time.Time
	isActive              bool
	isCancelled           bool
	isAutoRenewing        bool
	platform              entitlement.Platform
	environment           entitlement.Environment
	transactionReason     entitlement.TransactionReason
	rawPayload            []byte
	createdAt             time.Time
	updatedAt             time.Time
}

// NewMemoryRepository creates an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:     make(map[string]accountRecord),
		transactions: make(map[string]transactionRecord),
	}
}

// InitializeAccount creates the free-tier account if absent and returns the
// current account either way.
func (r *MemoryRepository) InitializeAccount(ctx context.Context, deviceID string, freeLimit int) (*entitlement.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.accounts[deviceID]; ok {
		return reconstructAccount(rec)
	}

	account, err := entitlement.NewAccount(deviceID, freeLimit, time.Now().UTC())
	if err != nil {
		return nil, errors.NewValidationError("invalid account", err.Error())
	}

	r.accounts[deviceID] = recordFromAccount(account)
	return account, nil
}

// GetAccount loads the account for a device.
func (r *MemoryRepository) GetAccount(ctx context.Context, deviceID string) (*entitlement.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.accounts[deviceID]
	if !ok {
		return nil, errors.NewNotFoundError("account not found", deviceID)
	}
	return reconstructAccount(rec)
}

// SetGenerationCount persists a new credit balance.
func (r *MemoryRepository) SetGenerationCount(ctx context.Context, deviceID string, count int) error {
	return r.updateAccount(deviceID, func(rec *accountRecord) error {
		if count < 0 {
			return errors.NewValidationError("generation count cannot be negative")
		}
		rec.generationsLeft = count
		return nil
	})
}

// ActivatePlan sets the plan, resets the balance and stamps the renewal
// baseline in one write.
func (r *MemoryRepository) ActivatePlan(ctx context.Context, deviceID string, plan entitlement.Plan, count int, renewedAt time.Time) error {
	return r.updateAccount(deviceID, func(rec *accountRecord) error {
		at := renewedAt.UTC()
		rec.plan = plan
		rec.generationsLeft = count
		rec.lastRenewalAt = &at
		return nil
	})
}

// ResetForRenewal resets the balance and advances the renewal stamp in one
// write.
func (r *MemoryRepository) ResetForRenewal(ctx context.Context, deviceID string, count int, renewedAt time.Time) error {
	return r.updateAccount(deviceID, func(rec *accountRecord) error {
		at := renewedAt.UTC()
		rec.generationsLeft = count
		rec.lastRenewalAt = &at
		return nil
	})
}

// SetLastRenewal stamps the renewal baseline without touching the balance.
func (r *MemoryRepository) SetLastRenewal(ctx context.Context, deviceID string, renewedAt time.Time) error {
	return r.updateAccount(deviceID, func(rec *accountRecord) error {
		at := renewedAt.UTC()
		rec.lastRenewalAt = &at
		return nil
	})
}

// ClearPlan drops the account back to the free tier.
func (r *MemoryRepository) ClearPlan(ctx context.Context, deviceID string) error {
	return r.updateAccount(deviceID, func(rec *accountRecord) error {
		rec.plan = entitlement.PlanNone
		return nil
	})
}

// UpsertTransaction inserts or updates a transaction keyed by its
// transaction ID.
func (r *MemoryRepository) UpsertTransaction(ctx context.Context, tx *entitlement.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := transactionRecord{
		transactionID:         tx.TransactionID(),
		originalTransactionID: tx.OriginalTransactionID(),
		deviceID:              tx.DeviceID(),
		productID:             tx.ProductID(),
		transactionDate:       tx.TransactionDate(),
		expirationDate:        tx.ExpirationDate(),
		renewalDate:           tx.RenewalDate(),
		isActive:              tx.IsActive(),
		isCancelled:           tx.IsCancelled(),
		isAutoRenewing:        tx.IsAutoRenewing(),
		platform:              tx.Platform(),
		environment:           tx.Environment(),
		transactionReason:     tx.TransactionReason(),
		rawPayload:            tx.RawPayload(),
		createdAt:             tx.CreatedAt(),
		updatedAt:             tx.UpdatedAt(),
	}

	if existing, ok := r.transactions[tx.TransactionID()]; ok {
		rec.createdAt = existing.createdAt
	}
	r.transactions[tx.TransactionID()] = rec
	return nil
}

// GetActiveTransaction returns the most recent active transaction for a
// device.
func (r *MemoryRepository) GetActiveTransaction(ctx context.Context, deviceID string) (*entitlement.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var newest *transactionRecord
	for id := range r.transactions {
		rec := r.transactions[id]
		if rec.deviceID != deviceID || !rec.isActive {
			continue
		}
		if newest == nil || rec.transactionDate.After(newest.transactionDate) {
			newest = &rec
		}
	}

	if newest == nil {
		return nil, errors.NewNotFoundError("active transaction not found", deviceID)
	}
	return reconstructTransaction(*newest)
}

// GetAllTransactions returns every recorded transaction for a device,
// newest first.
func (r *MemoryRepository) GetAllTransactions(ctx context.Context, deviceID string) ([]*entitlement.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var recs []transactionRecord
	for id := range r.transactions {
		if r.transactions[id].deviceID == deviceID {
			recs = append(recs, r.transactions[id])
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].transactionDate.After(recs[j].transactionDate)
	})

	out := make([]*entitlement.Transaction, 0, len(recs))
	for _, rec := range recs {
		tx, err := reconstructTransaction(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// MarkTransactionCancelled flags a transaction as cancelled.
func (r *MemoryRepository) MarkTransactionCancelled(ctx context.Context, transactionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.transactions[transactionID]
	if !ok {
		return errors.NewNotFoundError("transaction not found", transactionID)
	}

	rec.isCancelled = true
	rec.isActive = false
	rec.updatedAt = time.Now().UTC()
	r.transactions[transactionID] = rec
	return nil
}

func (r *MemoryRepository) updateAccount(deviceID string, mutate func(*accountRecord) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.accounts[deviceID]
	if !ok {
		return errors.NewNotFoundError("account not found", deviceID)
	}

	if err := mutate(&rec); err != nil {
		return err
	}

	rec.updatedAt = time.Now().UTC()
	rec.version++
	r.accounts[deviceID] = rec
	return nil
}

func recordFromAccount(a *entitlement.Account) accountRecord {
	return accountRecord{
		deviceID:        a.DeviceID(),
		plan:            a.Plan(),
		generationsLeft: a.GenerationsLeft(),
		lastRenewalAt:   a.LastRenewalAt(),
		createdAt:       a.CreatedAt(),
		updatedAt:       a.UpdatedAt(),
		version:         a.Version(),
	}
}

func reconstructAccount(rec accountRecord) (*entitlement.Account, error) {
	account, err := entitlement.ReconstructAccount(
		rec.deviceID,
		rec.plan,
		rec.generationsLeft,
		rec.lastRenewalAt,
		rec.createdAt,
		rec.updatedAt,
		rec.version,
	)
	if err != nil {
		return nil, errors.NewInternalError("failed to reconstruct account", err.Error())
	}
	return account, nil
}

func reconstructTransaction(rec transactionRecord) (*entitlement.Transaction, error) {
	tx, err := entitlement.ReconstructTransaction(
		rec.transactionID,
		rec.originalTransactionID,
		rec.deviceID,
		rec.productID,
		rec.transactionDate,
		rec.expirationDate,
		rec.renewalDate,
		rec.isActive,
		rec.isCancelled,
		rec.isAutoRenewing,
		rec.platform,
		rec.environment,
		rec.transactionReason,
		rec.rawPayload,
		rec.createdAt,
		rec.updatedAt,
	)
	if err != nil {
		return nil, errors.NewInternalError("failed to reconstruct transaction", err.Error())
	}
	return tx, nil
}
