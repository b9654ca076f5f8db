package models

import (
	"time"

	"gorm.io/datatypes"
)

// SubscriptionTransactionModel is the GORM model for the
// subscription_transactions table. TransactionID carries a unique index so
// reprocessing an event updates rather than duplicates.
type SubscriptionTransactionModel struct {
	ID                    uint           `gorm:"primaryKey;autoIncrement"`
	TransactionID         string         `gorm:"column:transaction_id;type:varchar(128);not null;uniqueIndex"`
	OriginalTransactionID *string        `gorm:"column:original_transaction_id;type:varchar(128);index"`
	DeviceID              string         `gorm:"column:device_id;type:varchar(64);not null;index"`
	ProductID             string         `gorm:"column:product_id;type:varchar(128);not null"`
	TransactionDate       time.Time      `gorm:"column:transaction_date;not null"`
	ExpirationDate        *time.Time     `gorm:"column:expiration_date"`
	RenewalDate           *time.Time     `gorm:"column:renewal_date"`
	IsActive              bool           `gorm:"column:is_active;not null;default:true"`
	IsCancelled           bool           `gorm:"column:is_cancelled;not null;default:false"`
	IsAutoRenewing        bool           `gorm:"column:is_auto_renewing;not null;default:false"`
	Platform              string         `gorm:"column:platform;type:varchar(20)"`
	Environment           string         `gorm:"column:environment;type:varchar(20)"`
	TransactionReason     string         `gorm:"column:transaction_reason;type:varchar(20);not null;default:'other'"`
	RawPayload            datatypes.JSON `gorm:"column:raw_payload"`
	CreatedAt             time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name for GORM
func (SubscriptionTransactionModel) TableName() string {
	return "subscription_transactions"
}
