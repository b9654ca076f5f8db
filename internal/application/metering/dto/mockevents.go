package dto

import "time"

// NewMockPurchaseEvent builds a purchase event the way the billing platform
// would report an initial purchase. Intended for tests and the event
// injection endpoint.
func NewMockPurchaseEvent(transactionID, productID string, at time.Time) SubscriptionEvent {
	expiration := at.AddDate(0, 1, 0).UnixMilli()
	return SubscriptionEvent{
		TransactionID:         transactionID,
		OriginalTransactionID: &transactionID,
		ProductID:             productID,
		TransactionDateMS:     at.UnixMilli(),
		ExpirationDateMS:      &expiration,
		Reason:                "purchase",
		Platform:              "ios",
		Environment:           "sandbox",
		IsAutoRenewing:        true,
	}
}

// NewMockRenewalEvent builds a renewal event linked to an original purchase.
func NewMockRenewalEvent(transactionID, originalTransactionID, productID string, at time.Time) SubscriptionEvent {
	expiration := at.AddDate(0, 1, 0).UnixMilli()
	renewal := at.AddDate(0, 1, 0).UnixMilli()
	return SubscriptionEvent{
		TransactionID:         transactionID,
		OriginalTransactionID: &originalTransactionID,
		ProductID:             productID,
		TransactionDateMS:     at.UnixMilli(),
		ExpirationDateMS:      &expiration,
		RenewalDateMS:         &renewal,
		Reason:                "renewal",
		Platform:              "ios",
		Environment:           "sandbox",
		IsAutoRenewing:        true,
	}
}
