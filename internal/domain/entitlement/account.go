package entitlement

import (
	"fmt"
	"time"
)

// Account represents the per-device entitlement aggregate root.
// It owns the generation-credit balance and the subscription tier, and is
// the baseline the renewal reconciler compares incoming events against.
type Account struct {
	deviceID        string
	plan            Plan
	generationsLeft int
	lastRenewalAt   *time.Time
	createdAt       time.Time
	updatedAt       time.Time
	version         int
}

// NewAccount creates a fresh free-tier account for a device.
func NewAccount(deviceID string, freeLimit int, now time.Time) (*Account, error) {
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}
	if freeLimit < 0 {
		return nil, ErrNegativeLimit
	}

	now = now.UTC()
	return &Account{
		deviceID:        deviceID,
		plan:            PlanNone,
		generationsLeft: freeLimit,
		createdAt:       now,
		updatedAt:       now,
		version:         1,
	}, nil
}

// ReconstructAccount reconstructs an account from persistence
func ReconstructAccount(
	deviceID string,
	plan Plan,
	generationsLeft int,
	lastRenewalAt *time.Time,
	createdAt, updatedAt time.Time,
	version int,
) (*Account, error) {
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}
	if generationsLeft < 0 {
		return nil, fmt.Errorf("generations left cannot be negative: %d", generationsLeft)
	}

	return &Account{
		deviceID:        deviceID,
		plan:            plan,
		generationsLeft: generationsLeft,
		lastRenewalAt:   lastRenewalAt,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
		version:         version,
	}, nil
}

// DeviceID returns the device identifier keying this account
func (a *Account) DeviceID() string {
	return a.deviceID
}

// Plan returns the subscription plan tag (PlanNone for the free tier)
func (a *Account) Plan() Plan {
	return a.plan
}

// GenerationsLeft returns the remaining credit balance
func (a *Account) GenerationsLeft() int {
	return a.generationsLeft
}

// LastRenewalAt returns the last recorded billing-cycle reset, nil until the
// first reset
func (a *Account) LastRenewalAt() *time.Time {
	return a.lastRenewalAt
}

// CreatedAt returns when the account was created
func (a *Account) CreatedAt() time.Time {
	return a.createdAt
}

// UpdatedAt returns when the account was last updated
func (a *Account) UpdatedAt() time.Time {
	return a.updatedAt
}

// Version returns the aggregate version
func (a *Account) Version() int {
	return a.version
}

// IsSubscribed reports whether the account is on a paid tier.
func (a *Account) IsSubscribed() bool {
	return a.plan.IsSubscribed()
}

// Consume decrements the balance by exactly one. Consuming from an empty
// balance is ErrBalanceExhausted, never a negative balance.
func (a *Account) Consume(now time.Time) error {
	if a.generationsLeft <= 0 {
		return ErrBalanceExhausted
	}

	a.generationsLeft--
	a.updatedAt = now.UTC()
	a.version++

	return nil
}

// ResetTo sets the balance to limit unconditionally. Used by activation and
// renewal, not by ordinary consumption.
func (a *Account) ResetTo(limit int, now time.Time) error {
	if limit < 0 {
		return ErrNegativeLimit
	}

	a.generationsLeft = limit
	a.updatedAt = now.UTC()
	a.version++

	return nil
}

// Activate sets the paid plan, resets the balance to the paid-tier limit and
// stamps the renewal baseline.
func (a *Account) Activate(plan Plan, limit int, now time.Time) error {
	if !plan.IsSubscribed() {
		return fmt.Errorf("cannot activate the free tier as a plan")
	}
	if limit < 0 {
		return ErrNegativeLimit
	}

	now = now.UTC()
	a.plan = plan
	a.generationsLeft = limit
	a.lastRenewalAt = &now
	a.updatedAt = now
	a.version++

	return nil
}

// RecordRenewal resets the balance for a new billing cycle and advances the
// renewal stamp. The stamp is monotonically non-decreasing.
func (a *Account) RecordRenewal(limit int, now time.Time) error {
	if limit < 0 {
		return ErrNegativeLimit
	}

	now = now.UTC()
	if a.lastRenewalAt != nil && now.Before(*a.lastRenewalAt) {
		return ErrRenewalNotMonotonic
	}

	a.generationsLeft = limit
	a.lastRenewalAt = &now
	a.updatedAt = now
	a.version++

	return nil
}

// ClearPlan drops the account back to the free tier. The balance is left to
// drain through ordinary consumption.
func (a *Account) ClearPlan(now time.Time) {
	if a.plan == PlanNone {
		return
	}

	a.plan = PlanNone
	a.updatedAt = now.UTC()
	a.version++
}
