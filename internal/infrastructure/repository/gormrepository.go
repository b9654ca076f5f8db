package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/artisan-apps/genmeter/internal/domain/entitlement"
	"github.com/artisan-apps/genmeter/internal/infrastructure/persistence/models"
	"github.com/artisan-apps/genmeter/internal/shared/errors"
	"github.com/artisan-apps/genmeter/internal/shared/logger"
)

// GormRepository implements the entitlement.Repository contract on a
// relational backend.
type GormRepository struct {
	db     *gorm.DB
	logger logger.Interface
}

// NewGormRepository creates a new GORM-backed store instance
func NewGormRepository(db *gorm.DB, logger logger.Interface) entitlement.Repository {
	return &GormRepository{
		db:     db,
		logger: logger,
	}
}

// InitializeAccount creates the free-tier account if absent and returns the
// current account either way.
func (r *GormRepository) InitializeAccount(ctx context.Context, deviceID string, freeLimit int) (*entitlement.Account, error) {
	account, err := entitlement.NewAccount(deviceID, freeLimit, time.Now().UTC())
	if err != nil {
		return nil, errors.NewValidationError("invalid account", err.Error())
	}

	model := accountModelFromDomain(account)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		r.logger.Errorw("failed to initialize account", "device_id", deviceID, "error", result.Error)
		return nil, fmt.Errorf("failed to initialize account: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		// Already present, return what is stored.
		return r.GetAccount(ctx, deviceID)
	}

	r.logger.Infow("account initialized", "device_id", deviceID, "generations", freeLimit)
	return account, nil
}

// GetAccount loads the account for a device.
func (r *GormRepository) GetAccount(ctx context.Context, deviceID string) (*entitlement.Account, error) {
	var model models.AccountModel
	if err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("account not found", deviceID)
		}
		r.logger.Errorw("failed to get account", "device_id", deviceID, "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return accountDomainFromModel(&model)
}

// SetGenerationCount persists a new credit balance.
func (r *GormRepository) SetGenerationCount(ctx context.Context, deviceID string, count int) error {
	if count < 0 {
		return errors.NewValidationError("generation count cannot be negative")
	}
	return r.updateAccount(ctx, deviceID, map[string]interface{}{
		"generations_left": count,
	})
}

// ActivatePlan sets the plan, resets the balance and stamps the renewal
// baseline in one write.
func (r *GormRepository) ActivatePlan(ctx context.Context, deviceID string, plan entitlement.Plan, count int, renewedAt time.Time) error {
	return r.updateAccount(ctx, deviceID, map[string]interface{}{
		"plan":             plan.String(),
		"generations_left": count,
		"last_renewal_at":  renewedAt.UTC(),
	})
}

// ResetForRenewal resets the balance and advances the renewal stamp in one
// write.
func (r *GormRepository) ResetForRenewal(ctx context.Context, deviceID string, count int, renewedAt time.Time) error {
	return r.updateAccount(ctx, deviceID, map[string]interface{}{
		"generations_left": count,
		"last_renewal_at":  renewedAt.UTC(),
	})
}

// SetLastRenewal stamps the renewal baseline without touching the balance.
func (r *GormRepository) SetLastRenewal(ctx context.Context, deviceID string, renewedAt time.Time) error {
	return r.updateAccount(ctx, deviceID, map[string]interface{}{
		"last_renewal_at": renewedAt.UTC(),
	})
}

// ClearPlan drops the account back to the free tier.
func (r *GormRepository) ClearPlan(ctx context.Context, deviceID string) error {
	return r.updateAccount(ctx, deviceID, map[string]interface{}{
		"plan": "",
	})
}

// UpsertTransaction inserts or updates a transaction keyed by its
// transaction ID.
func (r *GormRepository) UpsertTransaction(ctx context.Context, tx *entitlement.Transaction) error {
	model := transactionModelFromDomain(tx)

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "transaction_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"original_transaction_id",
				"device_id",
				"product_id",
				"transaction_date",
				"expiration_date",
				"renewal_date",
				"is_active",
				"is_cancelled",
				"is_auto_renewing",
				"platform",
				"environment",
				"transaction_reason",
				"raw_payload",
				"updated_at",
			}),
		}).
		Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("transaction already exists", tx.TransactionID())
		}
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
func (r *GormRepository) GetActiveTransaction(ctx context.Context, deviceID string) (*entitlement.Transaction, error) {
	var model models.SubscriptionTransactionModel
	if err := r.db.WithContext(ctx).
		Where("device_id = ? AND is_active = ?", deviceID, true).
		Order("transaction_date DESC").
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("active transaction not found", deviceID)
		}
		r.logger.Errorw("failed to get active transaction", "device_id", deviceID, "error", err)
		return nil, fmt.Errorf("failed to get active transaction: %w", err)
	}

	return transactionDomainFromModel(&model)
}

// GetAllTransactions returns every recorded transaction for a device,
// newest first.
func (r *GormRepository) GetAllTransactions(ctx context.Context, deviceID string) ([]*entitlement.Transaction, error) {
	var txModels []models.SubscriptionTransactionModel
	if err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("transaction_date DESC").
		Find(&txModels).Error; err != nil {
		r.logger.Errorw("failed to list transactions", "device_id", deviceID, "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	out := make([]*entitlement.Transaction, 0, len(txModels))
	for i := range txModels {
		tx, err := transactionDomainFromModel(&txModels[i])
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// MarkTransactionCancelled flags a transaction as cancelled.
func (r *GormRepository) MarkTransactionCancelled(ctx context.Context, transactionID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.SubscriptionTransactionModel{}).
		Where("transaction_id = ?", transactionID).
		Updates(map[string]interface{}{
			"is_cancelled": true,
			"is_active":    false,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to mark transaction cancelled", "transaction_id", transactionID, "error", result.Error)
		return fmt.Errorf("failed to mark transaction cancelled: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("transaction not found", transactionID)
	}

	r.logger.Infow("transaction cancelled", "transaction_id", transactionID)
	return nil
}

func (r *GormRepository) updateAccount(ctx context.Context, deviceID string, fields map[string]interface{}) error {
	fields["version"] = gorm.Expr("version + 1")

	result := r.db.WithContext(ctx).
		Model(&models.AccountModel{}).
		Where("device_id = ?", deviceID).
		Updates(fields)
	if result.Error != nil {
		r.logger.Errorw("failed to update account", "device_id", deviceID, "error", result.Error)
		return fmt.Errorf("failed to update account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("account not found", deviceID)
	}
	return nil
}

func accountModelFromDomain(a *entitlement.Account) *models.AccountModel {
	return &models.AccountModel{
		DeviceID:        a.DeviceID(),
		Plan:            a.Plan().String(),
		GenerationsLeft: a.GenerationsLeft(),
		LastRenewalAt:   a.LastRenewalAt(),
		Version:         a.Version(),
		CreatedAt:       a.CreatedAt(),
		UpdatedAt:       a.UpdatedAt(),
	}
}

func accountDomainFromModel(m *models.AccountModel) (*entitlement.Account, error) {
	account, err := entitlement.ReconstructAccount(
		m.DeviceID,
		entitlement.Plan(m.Plan),
		m.GenerationsLeft,
		m.LastRenewalAt,
		m.CreatedAt,
		m.UpdatedAt,
		m.Version,
	)
	if err != nil {
		return nil, errors.NewInternalError("failed to reconstruct account", err.Error())
	}
	return account, nil
}

func transactionModelFromDomain(t *entitlement.Transaction) *models.SubscriptionTransactionModel {
	return &models.SubscriptionTransactionModel{
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
		RawPayload:            datatypes.JSON(t.RawPayload()),
		CreatedAt:             t.CreatedAt(),
		UpdatedAt:             t.UpdatedAt(),
	}
}

func transactionDomainFromModel(m *models.SubscriptionTransactionModel) (*entitlement.Transaction, error) {
	tx, err := entitlement.ReconstructTransaction(
		m.TransactionID,
		m.OriginalTransactionID,
		m.DeviceID,
		m.ProductID,
		m.TransactionDate,
		m.ExpirationDate,
		m.RenewalDate,
		m.IsActive,
		m.IsCancelled,
		m.IsAutoRenewing,
		entitlement.Platform(m.Platform),
		entitlement.Environment(m.Environment),
		entitlement.TransactionReason(m.TransactionReason),
		[]byte(m.RawPayload),
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return nil, errors.NewInternalError("failed to reconstruct transaction", err.Error())
	}
	return tx, nil
}
