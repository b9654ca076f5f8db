package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/artisan-apps/genmeter/internal/application/metering/dto"
	"github.com/artisan-apps/genmeter/internal/domain/entitlement"
	"github.com/artisan-apps/genmeter/internal/infrastructure/repository"
	"github.com/artisan-apps/genmeter/internal/shared/clock"
)

func newReconciler(repo entitlement.Repository, clk clock.Clock) *ReconcileRenewalUseCase {
	return NewReconcileRenewalUseCase(repo, clk, proLimit, testLogger())
}

func TestReconcileRenewal_SkipsExpiredEvent(t *testing.T) {
	repo := newTestStore(t)
	clk := testClock()
	seedProAccount(t, repo, clk)
	uc := newReconciler(repo, clk)

	// Expiration at exactly "now" counts as expired.
	event := dto.NewMockRenewalEvent("tx_2", "tx_1", testProductID, clk.Now().Add(-31*24*time.Hour))
	expired := clk.Now().UnixMilli()
	event.ExpirationDateMS = &expired

	result, err := uc.Execute(context.Background(), testDeviceID, event)
	if err != nil {
		t.Fatalf("Execute() unexpected error = %v", err)
	}
	if result.Renewed {
		t.Error("Renewed = true for expired event, want false")
	}
	if result.Outcome != dto.OutcomeSkipExpired {
		t.Errorf("Outcome = %q, want %q", result.Outcome, dto.OutcomeSkipExpired)
	}
}

func TestReconcileRenewal_SkipsUnlinkedEvent(t *testing.T) {
	repo := newTestStore(t)
	clk := testClock()
	seedProAccount(t, repo, clk)
	uc := newReconciler(repo, clk)

	event := dto.NewMockRenewalEvent("tx_2", "tx_1", testProductID, clk.Now().Add(time.Hour))
	event.OriginalTransactionID = nil

	result, err := uc.Execute(context.Background(), testDeviceID, event)
	if err != nil {
		t.Fatalf("Execute() unexpected error = %v", err)
	}
	if result.Outcome != dto.OutcomeSkipUnlinked {
		t.Errorf("Outcome = %q, want %q", result.Outcome, dto.OutcomeSkipUnlinked)
	}

	empty := ""
	event.OriginalTransactionID = &empty
	result, _ = uc.Execute(context.Background(), testDeviceID, event)
	if result.Outcome != dto.OutcomeSkipUnlinked {
		t.Errorf("Outcome = %q for empty chain link, want %q", result.Outcome, dto.OutcomeSkipUnlinked)
	}
}

func TestReconcileRenewal_SkipsUnknownDevice(t *testing.T) {
	repo := newTestStore(t)
	clk := testClock()
	uc := newReconciler(repo, clk)

	event := dto.NewMockRenewalEvent("tx_2", "tx_1", testProductID, clk.Now().Add(time.Hour))
	result, err := uc.Execute(context.Background(), "dev_unknown", event)
	if err != nil {
		t.Fatalf("Execute() unexpected error = %v", err)
	}
	if result.Outcome != dto.OutcomeSkipNoAccount {
		t.Errorf("Outcome = %q, want %q", result.Outcome, dto.OutcomeSkipNoAccount)
	}
}

func TestReconcileRenewal_SkipsUnsubscribedAccount(t *testing.T) {
	repo := newTestStore(t)
	clk := testClock()
	seedFreeAccount(t, repo)
	uc := newReconciler(repo, clk)

	event := dto.NewMockRenewalEvent("tx_2", "tx_1", testProductID, clk.Now().Add(time.Hour))
	result, err := uc.Execute(context.Background(), testDeviceID, event)
	if err != nil {
		t.Fatalf("Execute() unexpected error = %v", err)
	}
	if result.Outcome != dto.OutcomeSkipNotSubscribed {
		t.Errorf("Outcome = %q, want %q", result.Outcome, dto.OutcomeSkipNotSubscribed)
	}

	// The free balance must be untouched.
	account, _ := repo.GetAccount(context.Background(), testDeviceID)
	if account.GenerationsLeft() != freeLimit {
		t.Errorf("GenerationsLeft() = %d, want %d", account.GenerationsLeft(), freeLimit)
	}
}

func TestReconcileRenewal_RenewsNextCycle(t *testing.T) {
	repo := newTestStore(t)
	clk := testClock()
	seedProAccount(t, repo, clk)
	ctx := context.Background()

	// Burn some credits, then advance past the billing cycle.
	if err := repo.SetGenerationCount(ctx, testDeviceID, 3); err != nil {
		t.Fatalf("SetGenerationCount() error = %v", err)
	}
	clk.Advance(31 * 24 * time.Hour)

	uc := newReconciler(repo, clk)
	event := dto.NewMockRenewalEvent("tx_2", "tx_1", testProductID, clk.Now().Add(-time.Hour))

	result, err := uc.Execute(ctx, testDeviceID, event)
	if err != nil {
		t.Fatalf("Execute() unexpected error = %v", err)
	}
	if !result.Renewed {
		t.Fatal("Renewed = false for next-cycle event, want true")
	}
	if result.Outcome != dto.OutcomeRenewed {
		t.Errorf("Outcome = %q, want %q", result.Outcome, dto.OutcomeRenewed)
	}

	account, err := repo.GetAccount(ctx, testDeviceID)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if account.GenerationsLeft() != proLimit {
		t.Errorf("GenerationsLeft() = %d, want %d", account.GenerationsLeft(), proLimit)
	}

	// The new baseline is reconciliation time, not the transaction's date.
	if last := account.LastRenewalAt(); last == nil || !last.Equal(clk.Now()) {
		t.Errorf("LastRenewalAt() = %v, want %v", last, clk.Now())
	}

	// The raw transaction was recorded.
	txs, err := repo.GetAllTransactions(ctx, testDeviceID)
	if err != nil {
		t.Fatalf("GetAllTransactions() error = %v", err)
	}
	if len(txs) != 1 || txs[0].TransactionID() != "tx_2" {
		t.Errorf("recorded transactions = %d, want tx_2 recorded once", len(txs))
	}
}

func TestReconcileRenewal_ReplayIsIdempotent(t *testing.T) {
	repo := newTestStore(t)
	clk := testClock()
	seedProAccount(t, repo, clk)
	ctx := context.Background()

	clk.Advance(31 * 24 * time.Hour)
	uc := newReconciler(repo, clk)
	event := dto.NewMockRenewalEvent("tx_2", "tx_1", testProductID, clk.Now().Add(-time.Hour))

	first, err := uc.Execute(ctx, testDeviceID, event)
	if err != nil || !first.Renewed {
		t.Fatalf("first Execute() = (%+v, %v), want renewed", first, err)
	}

	// Spend a credit so a double reset would be visible.
	if err := repo.SetGenerationCount(ctx, testDeviceID, proLimit-1); err != nil {
		t.Fatalf("SetGenerationCount() error = %v", err)
	}

	second, err := uc.Execute(ctx, testDeviceID, event)
	if err != nil {
		t.Fatalf("second Execute() unexpected error = %v", err)
	}
	if second.Renewed {
		t.Error("Renewed = true on replay, want false")
	}
	if second.Outcome != dto.OutcomeSkipStale {
		t.Errorf("Outcome = %q, want %q", second.Outcome, dto.OutcomeSkipStale)
	}

	account, _ := repo.GetAccount(ctx, testDeviceID)
	if account.GenerationsLeft() != proLimit-1 {
		t.Errorf("GenerationsLeft() = %d after replay, want %d", account.GenerationsLeft(), proLimit-1)
	}
}

func TestReconcileRenewal_OutOfOrderDeliveryIsStale(t *testing.T) {
	repo := newTestStore(t)
	clk := testClock()
	seedProAccount(t, repo, clk)
	ctx := context.Background()

	clk.Advance(31 * 24 * time.Hour)
	uc := newReconciler(repo, clk)

	// The later payment arrives first.
	later := dto.NewMockRenewalEvent("tx_3", "tx_1", testProductID, clk.Now().Add(-time.Hour))
	earlier := dto.NewMockRenewalEvent("tx_2", "tx_1", testProductID, clk.Now().Add(-2*time.Hour))

	if result, _ := uc.Execute(ctx, testDeviceID, later); !result.Renewed {
		t.Fatalf("Execute(later) Outcome = %q, want renewal", result.Outcome)
	}

	result, err := uc.Execute(ctx, testDeviceID, earlier)
	if err != nil {
		t.Fatalf("Execute(earlier) unexpected error = %v", err)
	}
	if result.Renewed {
		t.Error("Renewed = true for out-of-order delivery, want false")
	}
	if result.Outcome != dto.OutcomeSkipStale {
		t.Errorf("Outcome = %q, want %q", result.Outcome, dto.OutcomeSkipStale)
	}
}

// missingBaselineStore reports the account as subscribed but without a
// renewal baseline, the state a restored install lands in.
type missingBaselineStore struct {
	*repository.MemoryRepository
}

func (s *missingBaselineStore) GetAccount(ctx context.Context, deviceID string) (*entitlement.Account, error) {
	account, err := s.MemoryRepository.GetAccount(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return entitlement.ReconstructAccount(
		account.DeviceID(),
		account.Plan(),
		account.GenerationsLeft(),
		nil,
		account.CreatedAt(),
		account.UpdatedAt(),
		account.Version(),
	)
}

func TestReconcileRenewal_FirstResetWithoutBaseline(t *testing.T) {
	mem := newTestStore(t)
	clk := testClock()
	seedProAccount(t, mem, clk)
	repo := &missingBaselineStore{MemoryRepository: mem}

	uc := newReconciler(repo, clk)
	event := dto.NewMockRenewalEvent("tx_2", "tx_1", testProductID, clk.Now().Add(-time.Hour))

	result, err := uc.Execute(context.Background(), testDeviceID, event)
	if err != nil {
		t.Fatalf("Execute() unexpected error = %v", err)
	}
	if !result.Renewed {
		t.Fatal("Renewed = false without baseline, want true")
	}
	if result.Outcome != dto.OutcomeRenewedFirst {
		t.Errorf("Outcome = %q, want %q", result.Outcome, dto.OutcomeRenewedFirst)
	}
}
