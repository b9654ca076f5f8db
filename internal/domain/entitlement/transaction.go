package entitlement

import (
	"time"
)

// Transaction represents one subscription transaction reported by the
// billing platform. Identity is the platform-assigned transaction ID;
// reprocessing the same event upserts rather than duplicates.
type Transaction struct {
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
	platform              Platform
	environment           Environment
	transactionReason     TransactionReason
	rawPayload            []byte
	createdAt             time.Time
	updatedAt             time.Time
}

// NewTransaction records a transaction event against a device.
func NewTransaction(
	transactionID string,
	deviceID string,
	productID string,
	transactionDate time.Time,
	reason TransactionReason,
	now time.Time,
) (*Transaction, error) {
	if transactionID == "" {
		return nil, ErrTransactionIDRequired
	}
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}
	if !reason.IsValid() {
		reason = ReasonOther
	}

	now = now.UTC()
	return &Transaction{
		transactionID:     transactionID,
		deviceID:          deviceID,
		productID:         productID,
		transactionDate:   transactionDate.UTC(),
		isActive:          true,
		transactionReason: reason,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// ReconstructTransaction reconstructs a transaction from persistence
func ReconstructTransaction(
	transactionID string,
	originalTransactionID *string,
	deviceID string,
	productID string,
	transactionDate time.Time,
	expirationDate *time.Time,
	renewalDate *time.Time,
	isActive bool,
	isCancelled bool,
	isAutoRenewing bool,
	platform Platform,
	environment Environment,
	reason TransactionReason,
	rawPayload []byte,
	createdAt, updatedAt time.Time,
) (*Transaction, error) {
	if transactionID == "" {
		return nil, ErrTransactionIDRequired
	}
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}

	return &Transaction{
		transactionID:         transactionID,
		originalTransactionID: originalTransactionID,
		deviceID:              deviceID,
		productID:             productID,
		transactionDate:       transactionDate,
		expirationDate:        expirationDate,
		renewalDate:           renewalDate,
		isActive:              isActive,
		isCancelled:           isCancelled,
		isAutoRenewing:        isAutoRenewing,
		platform:              platform,
		environment:           environment,
		transactionReason:     reason,
		rawPayload:            rawPayload,
		createdAt:             createdAt,
		updatedAt:             updatedAt,
	}, nil
}

// TransactionID returns the platform-assigned transaction identifier
func (t *Transaction) TransactionID() string {
	return t.transactionID
}

// OriginalTransactionID links this transaction to the purchase that started
// its subscription chain; nil when the platform sent none
func (t *Transaction) OriginalTransactionID() *string {
	return t.originalTransactionID
}

// DeviceID returns the device the transaction was recorded against
func (t *Transaction) DeviceID() string {
	return t.deviceID
}

// ProductID returns the product identifier
func (t *Transaction) ProductID() string {
	return t.productID
}

// TransactionDate returns the platform-assigned payment timestamp
func (t *Transaction) TransactionDate() time.Time {
	return t.transactionDate
}

// ExpirationDate returns when the covered period ends, if known
func (t *Transaction) ExpirationDate() *time.Time {
	return t.expirationDate
}

// RenewalDate returns the expected next renewal, if known
func (t *Transaction) RenewalDate() *time.Time {
	return t.renewalDate
}

// IsActive reports whether the transaction is neither expired nor cancelled
func (t *Transaction) IsActive() bool {
	return t.isActive
}

// IsCancelled reports whether the transaction was explicitly cancelled
func (t *Transaction) IsCancelled() bool {
	return t.isCancelled
}

// IsAutoRenewing reports the platform's auto-renew flag
func (t *Transaction) IsAutoRenewing() bool {
	return t.isAutoRenewing
}

// Platform returns the billing platform
func (t *Transaction) Platform() Platform {
	return t.platform
}

// Environment returns the store environment
func (t *Transaction) Environment() Environment {
	return t.environment
}

// TransactionReason returns why the platform emitted the transaction
func (t *Transaction) TransactionReason() TransactionReason {
	return t.transactionReason
}

// RawPayload returns the opaque platform payload kept for audit
func (t *Transaction) RawPayload() []byte {
	return t.rawPayload
}

// CreatedAt returns when the transaction was first recorded
func (t *Transaction) CreatedAt() time.Time {
	return t.createdAt
}

// UpdatedAt returns when the transaction was last updated
func (t *Transaction) UpdatedAt() time.Time {
	return t.updatedAt
}

// SetOriginalTransactionID sets the subscription-chain link.
func (t *Transaction) SetOriginalTransactionID(id string) {
	if id == "" {
		t.originalTransactionID = nil
		return
	}
	t.originalTransactionID = &id
}

// SetExpirationDate sets the period end reported by the platform.
func (t *Transaction) SetExpirationDate(at time.Time) {
	u := at.UTC()
	t.expirationDate = &u
}

// SetRenewalDate sets the expected next renewal reported by the platform.
func (t *Transaction) SetRenewalDate(at time.Time) {
	u := at.UTC()
	t.renewalDate = &u
}

// SetAutoRenewing sets the platform's auto-renew flag.
func (t *Transaction) SetAutoRenewing(autoRenewing bool) {
	t.isAutoRenewing = autoRenewing
}

// SetOrigin sets platform and environment metadata.
func (t *Transaction) SetOrigin(platform Platform, environment Environment) {
	t.platform = platform
	t.environment = environment
}

// SetRawPayload retains the opaque platform payload for audit.
func (t *Transaction) SetRawPayload(raw []byte) {
	t.rawPayload = raw
}

// MarkCancelled flags the transaction as cancelled and inactive. Cancelling
// twice is a no-op.
func (t *Transaction) MarkCancelled(now time.Time) {
	if t.isCancelled {
		return
	}

	t.isCancelled = true
	t.isActive = false
	t.updatedAt = now.UTC()
}

// Deactivate clears the active flag without marking a cancellation.
func (t *Transaction) Deactivate(now time.Time) {
	if !t.isActive {
		return
	}

	t.isActive = false
	t.updatedAt = now.UTC()
}

// IsExpired reports whether the transaction's covered period ended at or
// before now. Transactions without an expiration never expire.
func (t *Transaction) IsExpired(now time.Time) bool {
	if t.expirationDate == nil {
		return false
	}
	return !t.expirationDate.After(now.UTC())
}
