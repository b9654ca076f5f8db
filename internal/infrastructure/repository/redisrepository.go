package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/artisan-apps/genmeter/internal/domain/entitlement"
	"github.com/artisan-apps/genmeter/internal/shared/errors"
	"github.com/artisan-apps/genmeter/internal/shared/logger"
)

const (
	accountKeyPrefix     = "genmeter:account:"
	transactionKeyPrefix = "genmeter:tx:"
	deviceTxSetPrefix    = "genmeter:device_txs:"
)

// RedisRepository implements the entitlement.Repository contract on Redis.
// Records are stored as JSON values; the per-device transaction index is a
// set of transaction IDs.
type RedisRepository struct {
	client *redis.Client
	logger logger.Interface
}

// NewRedisRepository creates a new Redis-backed store instance
func NewRedisRepository(client *redis.Client, logger logger.Interface) entitlement.Repository {
	return &RedisRepository{
		client: client,
		logger: logger,
	}
}

type accountSnapshot struct {
	DeviceID        string     `json:"device_id"`
	Plan            string     `json:"plan"`
	GenerationsLeft int        `json:"generations_left"`
	LastRenewalAt   *time.Time `json:"last_renewal_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Version         int        `json:"version"`
}

type transactionSnapshot struct {
	TransactionID         string     `json:"transaction_id"`
	OriginalTransactionID *string    `json:"original_transaction_id,omitempty"`
	DeviceID              string     `json:"device_id"`
	ProductID             string     `json:"product_id"`
	TransactionDate       time.Time  `json:"transaction_date"`
	ExpirationDate        *time.Time `json:"expiration_date,omitempty"`
	RenewalDate           *time.Time `json:"renewal_date,omitempty"`
	IsActive              bool       `json:"is_active"`
	IsCancelled           bool       `json:"is_cancelled"`
	IsAutoRenewing        bool       `json:"is_auto_renewing"`
	Platform              string     `json:"platform,omitempty"`
	Environment           string     `json:"environment,omitempty"`
	TransactionReason     string     `json:"transaction_reason"`
	RawPayload            []byte     `json:"raw_payload,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func accountKey(deviceID string) string {
	return accountKeyPrefix + deviceID
}

func transactionKey(transactionID string) string {
	return transactionKeyPrefix + transactionID
}

func deviceTxSetKey(deviceID string) string {
	return deviceTxSetPrefix + deviceID
}

// InitializeAccount creates the free-tier account if absent and returns the
// current account either way.
func (r *RedisRepository) InitializeAccount(ctx context.Context, deviceID string, freeLimit int) (*entitlement.Account, error) {
	account, err := entitlement.NewAccount(deviceID, freeLimit, time.Now().UTC())
	if err != nil {
		return nil, errors.NewValidationError("invalid account", err.Error())
	}

	data, err := json.Marshal(snapshotFromAccount(account))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal account: %w", err)
	}

	created, err := r.client.SetNX(ctx, accountKey(deviceID), data, 0).Result()
	if err != nil {
		r.logger.Errorw("failed to initialize account", "device_id", deviceID, "error", err)
		return nil, fmt.Errorf("failed to initialize account: %w", err)
	}

	if !created {
		return r.GetAccount(ctx, deviceID)
	}

	r.logger.Infow("account initialized", "device_id", deviceID, "generations", freeLimit)
	return account, nil
}

// GetAccount loads the account for a device.
func (r *RedisRepository) GetAccount(ctx context.Context, deviceID string) (*entitlement.Account, error) {
	data, err := r.client.Get(ctx, accountKey(deviceID)).Bytes()
	if err == redis.Nil {
		return nil, errors.NewNotFoundError("account not found", deviceID)
	}
	if err != nil {
		r.logger.Errorw("failed to get account", "device_id", deviceID, "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	var snap accountSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.NewInternalError("corrupt account record", err.Error())
	}
	return accountFromSnapshot(snap)
}

// SetGenerationCount persists a new credit balance.
func (r *RedisRepository) SetGenerationCount(ctx context.Context, deviceID string, count int) error {
	if count < 0 {
		return errors.NewValidationError("generation count cannot be negative")
	}
	return r.updateAccount(ctx, deviceID, func(snap *accountSnapshot) {
		snap.GenerationsLeft = count
	})
}

// ActivatePlan sets the plan, resets the balance and stamps the renewal
// baseline in one write.
func (r *RedisRepository) ActivatePlan(ctx context.Context, deviceID string, plan entitlement.Plan, count int, renewedAt time.Time) error {
	return r.updateAccount(ctx, deviceID, func(snap *accountSnapshot) {
		at := renewedAt.UTC()
		snap.Plan = plan.String()
		snap.GenerationsLeft = count
		snap.LastRenewalAt = &at
	})
}

// ResetForRenewal resets the balance and advances the renewal stamp in one
// write.
func (r *RedisRepository) ResetForRenewal(ctx context.Context, deviceID string, count int, renewedAt time.Time) error {
	return r.updateAccount(ctx, deviceID, func(snap *accountSnapshot) {
		at := renewedAt.UTC()
		snap.GenerationsLeft = count
		snap.LastRenewalAt = &at
	})
}

// SetLastRenewal stamps the renewal baseline without touching the balance.
func (r *RedisRepository) SetLastRenewal(ctx context.Context, deviceID string, renewedAt time.Time) error {
	return r.updateAccount(ctx, deviceID, func(snap *accountSnapshot) {
		at := renewedAt.UTC()
		snap.LastRenewalAt = &at
	})
}

// ClearPlan drops the account back to the free tier.
func (r *RedisRepository) ClearPlan(ctx context.Context, deviceID string) error {
	return r.updateAccount(ctx, deviceID, func(snap *accountSnapshot) {
		snap.Plan = ""
	})
}

// UpsertTransaction inserts or updates a transaction keyed by its
// transaction ID.
func (r *RedisRepository) UpsertTransaction(ctx context.Context, tx *entitlement.Transaction) error {
	snap := snapshotFromTransaction(tx)

	// Keep the original creation time on replays.
	if data, err := r.client.Get(ctx, transactionKey(tx.TransactionID())).Bytes(); err == nil {
		var existing transactionSnapshot
		if err := json.Unmarshal(data, &existing); err == nil {
			snap.CreatedAt = existing.CreatedAt
		}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, transactionKey(tx.TransactionID()), data, 0)
	pipe.SAdd(ctx, deviceTxSetKey(tx.DeviceID()), tx.TransactionID())
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Errorw("failed to upsert transaction",
			"transaction_id", tx.TransactionID(),
			"device_id", tx.DeviceID(),
			"error", err)
		return fmt.Errorf("failed to upsert transaction: %w", err)
	}

	r.logger.Debugw("transaction upserted",
		"transaction_id", tx.TransactionID(),
		"device_id", tx.DeviceID())
	return nil
}

// GetActiveTransaction returns the most recent active transaction for a
// device.
func (r *RedisRepository) GetActiveTransaction(ctx context.Context, deviceID string) (*entitlement.Transaction, error) {
	snaps, err := r.deviceSnapshots(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	var newest *transactionSnapshot
	for i := range snaps {
		if !snaps[i].IsActive {
			continue
		}
		if newest == nil || snaps[i].TransactionDate.After(newest.TransactionDate) {
			newest = &snaps[i]
		}
	}
	if newest == nil {
		return nil, errors.NewNotFoundError("active transaction not found", deviceID)
	}
	return transactionFromSnapshot(*newest)
}

// GetAllTransactions returns every recorded transaction for a device,
// newest first.
func (r *RedisRepository) GetAllTransactions(ctx context.Context, deviceID string) ([]*entitlement.Transaction, error) {
	snaps, err := r.deviceSnapshots(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].TransactionDate.After(snaps[j].TransactionDate)
	})

	out := make([]*entitlement.Transaction, 0, len(snaps))
	for _, snap := range snaps {
		tx, err := transactionFromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// MarkTransactionCancelled flags a transaction as cancelled.
func (r *RedisRepository) MarkTransactionCancelled(ctx context.Context, transactionID string) error {
	data, err := r.client.Get(ctx, transactionKey(transactionID)).Bytes()
	if err == redis.Nil {
		return errors.NewNotFoundError("transaction not found", transactionID)
	}
	if err != nil {
		return fmt.Errorf("failed to get transaction: %w", err)
	}

	var snap transactionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return errors.NewInternalError("corrupt transaction record", err.Error())
	}

	snap.IsCancelled = true
	snap.IsActive = false
	snap.UpdatedAt = time.Now().UTC()

	updated, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}
	if err := r.client.Set(ctx, transactionKey(transactionID), updated, 0).Err(); err != nil {
		r.logger.Errorw("failed to mark transaction cancelled", "transaction_id", transactionID, "error", err)
		return fmt.Errorf("failed to mark transaction cancelled: %w", err)
	}

	r.logger.Infow("transaction cancelled", "transaction_id", transactionID)
	return nil
}

func (r *RedisRepository) deviceSnapshots(ctx context.Context, deviceID string) ([]transactionSnapshot, error) {
	ids, err := r.client.SMembers(ctx, deviceTxSetKey(deviceID)).Result()
	if err != nil {
		r.logger.Errorw("failed to list device transactions", "device_id", deviceID, "error", err)
		return nil, fmt.Errorf("failed to list device transactions: %w", err)
	}

	snaps := make([]transactionSnapshot, 0, len(ids))
	for _, id := range ids {
		data, err := r.client.Get(ctx, transactionKey(id)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
		}
		var snap transactionSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, errors.NewInternalError("corrupt transaction record", err.Error())
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (r *RedisRepository) updateAccount(ctx context.Context, deviceID string, mutate func(*accountSnapshot)) error {
	data, err := r.client.Get(ctx, accountKey(deviceID)).Bytes()
	if err == redis.Nil {
		return errors.NewNotFoundError("account not found", deviceID)
	}
	if err != nil {
		r.logger.Errorw("failed to get account", "device_id", deviceID, "error", err)
		return fmt.Errorf("failed to get account: %w", err)
	}

	var snap accountSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return errors.NewInternalError("corrupt account record", err.Error())
	}

	mutate(&snap)
	snap.UpdatedAt = time.Now().UTC()
	snap.Version++

	updated, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	if err := r.client.Set(ctx, accountKey(deviceID), updated, 0).Err(); err != nil {
		r.logger.Errorw("failed to update account", "device_id", deviceID, "error", err)
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

func snapshotFromAccount(a *entitlement.Account) accountSnapshot {
	return accountSnapshot{
		DeviceID:        a.DeviceID(),
		Plan:            a.Plan().String(),
		GenerationsLeft: a.GenerationsLeft(),
		LastRenewalAt:   a.LastRenewalAt(),
		CreatedAt:       a.CreatedAt(),
		UpdatedAt:       a.UpdatedAt(),
		Version:         a.Version(),
	}
}

func accountFromSnapshot(snap accountSnapshot) (*entitlement.Account, error) {
	account, err := entitlement.ReconstructAccount(
		snap.DeviceID,
		entitlement.Plan(snap.Plan),
		snap.GenerationsLeft,
		snap.LastRenewalAt,
		snap.CreatedAt,
		snap.UpdatedAt,
		snap.Version,
	)
	if err != nil {
		return nil, errors.NewInternalError("failed to reconstruct account", err.Error())
	}
	return account, nil
}

func snapshotFromTransaction(t *entitlement.Transaction) transactionSnapshot {
	return transactionSnapshot{
		TransactionID:         t.TransactionID(),
		OriginalTransactionID: t.OriginalTransactionID(),
		DeviceID:              t.DeviceID(),
		ProductID:             t.ProductID(),
		TransactionDate:       t.TransactionDate(),
		ExpirationDate:        t.ExpirationDate(),
		RenewalDate:           t.RenewalDate(),
		IsActive:              t.IsActive(),
		IsCancelled:           t.IsCancelled(),
		IsAutoRenewing:        t.IsAutoRenewing(),
		Platform:              t.Platform().String(),
		Environment:           t.Environment().String(),
		TransactionReason:     t.TransactionReason().String(),
		RawPayload:            t.RawPayload(),
		CreatedAt:             t.CreatedAt(),
		UpdatedAt:             t.UpdatedAt(),
	}
}

func transactionFromSnapshot(snap transactionSnapshot) (*entitlement.Transaction, error) {
	tx, err := entitlement.ReconstructTransaction(
		snap.TransactionID,
		snap.OriginalTransactionID,
		snap.DeviceID,
		snap.ProductID,
		snap.TransactionDate,
		snap.ExpirationDate,
		snap.RenewalDate,
		snap.IsActive,
		snap.IsCancelled,
		snap.IsAutoRenewing,
		entitlement.Platform(snap.Platform),
		entitlement.Environment(snap.Environment),
		entitlement.TransactionReason(snap.TransactionReason),
		snap.RawPayload,
		snap.CreatedAt,
		snap.UpdatedAt,
	)
	if err != nil {
		return nil, errors.NewInternalError("failed to reconstruct transaction", err.Error())
	}
	return tx, nil
}
