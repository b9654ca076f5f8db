package models

import "time"

// AccountModel is the GORM model for the accounts table
type AccountModel struct {
	ID              uint       `gorm:"primaryKey;autoIncrement"`
	DeviceID        string     `gorm:"column:device_id;type:varchar(64);not null;uniqueIndex"`
	Plan            string     `gorm:"column:plan;type:varchar(100);not null;default:''"`
	GenerationsLeft int        `gorm:"column:generations_left;not null;default:0"`
	LastRenewalAt   *time.Time `gorm:"column:last_renewal_at"`
	Version         int        `gorm:"column:version;not null;default:1"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "accounts"
}
