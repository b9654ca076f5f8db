package entitlement

import (
	"errors"
	"testing"
	"time"
)

func TestNewTransaction(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	txDate := now.Add(-time.Minute)

	tests := []struct {
		name          string
		transactionID string
		deviceID      string
		reason        TransactionReason
		wantErr       error
		wantReason    TransactionReason
	}{
		{
			name:          "valid purchase",
			transactionID: "txn-1",
			deviceID:      "dev_abc123",
			reason:        ReasonPurchase,
			wantReason:    ReasonPurchase,
		},
		{
			name:          "unknown reason normalized",
			transactionID: "txn-2",
			deviceID:      "dev_abc123",
			reason:        TransactionReason("upgrade?"),
			wantReason:    ReasonOther,
		},
		{
			name:     "missing transaction ID",
			deviceID: "dev_abc123",
			reason:   ReasonPurchase,
			wantErr:  ErrTransactionIDRequired,
		},
		{
			name:          "missing device ID",
			transactionID: "txn-3",
			reason:        ReasonPurchase,
			wantErr:       ErrDeviceIDRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := NewTransaction(tt.transactionID, tt.deviceID, "pro.monthly", txDate, tt.reason, now)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("NewTransaction() error = %v, want %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("NewTransaction() unexpected error = %v", err)
			}
			if !tx.IsActive() {
				t.Errorf("new transaction should be active")
			}
			if tx.IsCancelled() {
				t.Errorf("new transaction should not be cancelled")
			}
			if tx.TransactionReason() != tt.wantReason {
				t.Errorf("reason = %q, want %q", tx.TransactionReason(), tt.wantReason)
			}
		})
	}
}

func TestTransactionMarkCancelled(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	tx, _ := NewTransaction("txn-1", "dev_abc123", "pro.monthly", now, ReasonPurchase, now)

	tx.MarkCancelled(now.Add(time.Hour))

	if !tx.IsCancelled() {
		t.Errorf("transaction should be cancelled")
	}
	if tx.IsActive() {
		t.Errorf("cancelled transaction should not be active")
	}

	updated := tx.UpdatedAt()
	tx.MarkCancelled(now.Add(2 * time.Hour))
	if !tx.UpdatedAt().Equal(updated) {
		t.Errorf("second MarkCancelled should be a no-op")
	}
}

func TestTransactionIsExpired(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	tx, _ := NewTransaction("txn-1", "dev_abc123", "pro.monthly", now, ReasonRenewal, now)

	if tx.IsExpired(now) {
		t.Errorf("transaction without expiration should never expire")
	}

	tx.SetExpirationDate(now.Add(time.Hour))
	if tx.IsExpired(now) {
		t.Errorf("future expiration should not be expired")
	}
	if !tx.IsExpired(now.Add(time.Hour)) {
		t.Errorf("expiration at now should count as expired")
	}
	if !tx.IsExpired(now.Add(2 * time.Hour)) {
		t.Errorf("past expiration should be expired")
	}
}

func TestTransactionChainLink(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	tx, _ := NewTransaction("txn-2", "dev_abc123", "pro.monthly", now, ReasonRenewal, now)

	if tx.OriginalTransactionID() != nil {
		t.Errorf("chain link should default to nil")
	}

	tx.SetOriginalTransactionID("orig-1")
	if tx.OriginalTransactionID() == nil || *tx.OriginalTransactionID() != "orig-1" {
		t.Errorf("originalTransactionID = %v, want orig-1", tx.OriginalTransactionID())
	}

	tx.SetOriginalTransactionID("")
	if tx.OriginalTransactionID() != nil {
		t.Errorf("empty chain link should clear to nil")
	}
}
