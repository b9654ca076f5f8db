package entitlement

import "errors"

var (
	// ErrAccountNotFound is returned when no account exists for a device
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransactionNotFound is returned when a transaction is not found
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrBalanceExhausted is returned when consuming from a zero balance
	ErrBalanceExhausted = errors.New("generation balance exhausted")

	// ErrDeviceIDRequired is returned when a device identifier is missing
	ErrDeviceIDRequired = errors.New("device ID is required")

	// ErrTransactionIDRequired is returned when a transaction identifier is missing
	ErrTransactionIDRequired = errors.New("transaction ID is required")

	// ErrNegativeLimit is returned when a tier limit is negative
	ErrNegativeLimit = errors.New("tier limit cannot be negative")

	// ErrRenewalNotMonotonic is returned when a renewal stamp would move backwards
	ErrRenewalNotMonotonic = errors.New("renewal timestamp must not decrease")
)
