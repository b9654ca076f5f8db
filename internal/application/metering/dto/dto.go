// Package dto defines the transport shapes crossing the metering
// application boundary: subscription events consumed from the billing
// platform feed and the structured results the presentation layer inspects.
package dto

import (
	"time"
)

// SubscriptionEvent represents one purchase/renewal event emitted by the
// billing platform. Timestamps are epoch milliseconds as assigned by the
// platform, not arrival time. RawPayload keeps the platform's opaque
// object for audit.
type SubscriptionEvent struct {
	TransactionID         string  `json:"transaction_id"`
	OriginalTransactionID *string `json:"original_transaction_id,omitempty"`
	ProductID             string  `json:"product_id"`
	TransactionDateMS     int64   `json:"transaction_date_ms"`
	ExpirationDateMS      *int64  `json:"expiration_date_ms,omitempty"`
	RenewalDateMS         *int64  `json:"renewal_date_ms,omitempty"`
	Reason                string  `json:"reason"` // "purchase" | "renewal" | "other"
	Platform              string  `json:"platform,omitempty"`
	Environment           string  `json:"environment,omitempty"`
	IsAutoRenewing        bool    `json:"is_auto_renewing"`
	RawPayload            []byte  `json:"raw_payload,omitempty"`
}

// TransactionDate converts the platform timestamp to UTC time.
func (e *SubscriptionEvent) TransactionDate() time.Time {
	return time.UnixMilli(e.TransactionDateMS).UTC()
}

// ExpirationDate converts the optional expiration timestamp, nil when the
// platform sent none.
func (e *SubscriptionEvent) ExpirationDate() *time.Time {
	if e.ExpirationDateMS == nil {
		return nil
	}
	t := time.UnixMilli(*e.ExpirationDateMS).UTC()
	return &t
}

// RenewalDate converts the optional next-renewal timestamp.
func (e *SubscriptionEvent) RenewalDate() *time.Time {
	if e.RenewalDateMS == nil {
		return nil
	}
	t := time.UnixMilli(*e.RenewalDateMS).UTC()
	return &t
}

// QuotaStatus is the gate result for a usage attempt.
type QuotaStatus struct {
	Allowed      bool `json:"allowed"`
	Remaining    int  `json:"remaining"`
	NeedsUpgrade bool `json:"needs_upgrade"`
}

// Reconciliation outcomes, in decision order.
const (
	OutcomeSkipExpired       = "skip_expired"
	OutcomeSkipUnlinked      = "skip_unlinked"
	OutcomeSkipNoAccount     = "skip_no_account"
	OutcomeSkipNotSubscribed = "skip_not_subscribed"
	OutcomeSkipStale         = "skip_stale"
	OutcomeRenewedFirst      = "renewed_first"
	OutcomeRenewed           = "renewed"
)

// ReconcileResult reports whether a renewal event triggered a credit reset
// and why.
type ReconcileResult struct {
	Renewed bool   `json:"renewed"`
	Outcome string `json:"outcome"`
}

// AccountResponse represents the account state exposed to callers.
type AccountResponse struct {
	DeviceID        string     `json:"device_id"`
	Plan            string     `json:"plan,omitempty"`
	GenerationsLeft int        `json:"generations_left"`
	LastRenewalAt   *time.Time `json:"last_renewal_at,omitempty"`
	NextRenewalAt   *time.Time `json:"next_renewal_at,omitempty"` // informational, reset-period based
	CreatedAt       time.Time  `json:"created_at"`
}

// TransactionResponse represents a recorded transaction exposed to callers.
type TransactionResponse struct {
	TransactionID         string     `json:"transaction_id"`
	OriginalTransactionID *string    `json:"original_transaction_id,omitempty"`
	ProductID             string     `json:"product_id"`
	TransactionDate       time.Time  `json:"transaction_date"`
	ExpirationDate        *time.Time `json:"expiration_date,omitempty"`
	RenewalDate           *time.Time `json:"renewal_date,omitempty"`
	IsActive              bool       `json:"is_active"`
	IsCancelled           bool       `json:"is_cancelled"`
	IsAutoRenewing        bool       `json:"is_auto_renewing"`
	Platform              string     `json:"platform,omitempty"`
	Environment           string     `json:"environment,omitempty"`
	Reason                string     `json:"reason"`
}
