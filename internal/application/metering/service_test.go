package metering

import (
	"context"
	"testing"
	"time"

	"github.com/artisan-apps/genmeter/internal/application/metering/dto"
	"github.com/artisan-apps/genmeter/internal/application/metering/usecases"
	"github.com/artisan-apps/genmeter/internal/infrastructure/repository"
	"github.com/artisan-apps/genmeter/internal/shared/clock"
	sharedConfig "github.com/artisan-apps/genmeter/internal/shared/config"
	"github.com/artisan-apps/genmeter/internal/shared/logger"
)

const (
	deviceID  = "dev_service000001"
	productID = "com.artisanapps.genmeter.pro.monthly"
)

func testConfig() sharedConfig.MeteringConfig {
	return sharedConfig.MeteringConfig{
		ProductID:     productID,
		FreeTierLimit: 5,
		ProTierLimit:  100,
		ResetPeriod:   "monthly",
	}
}

func newTestService(t *testing.T, clk clock.Clock) *Service {
	t.Helper()
	svc, err := NewService(
		testConfig(),
		deviceID,
		repository.NewMemoryRepository(),
		usecases.NopNotifier{},
		usecases.NopPurchaseFeed{},
		clk,
		logger.NewLogger(),
	)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestNewService_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ProductID = ""

	_, err := NewService(cfg, deviceID, repository.NewMemoryRepository(),
		usecases.NopNotifier{}, usecases.NopPurchaseFeed{}, nil, nil)
	if err == nil {
		t.Error("NewService() error = nil for missing product id, want error")
	}
}

func TestService_CanUseFailsClosedBeforeInitialize(t *testing.T) {
	svc := newTestService(t, clock.NewFixedClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))

	status := svc.CanUse(context.Background())
	if status.Allowed {
		t.Error("Allowed = true before Initialize, want false")
	}
	if !status.NeedsUpgrade {
		t.Error("NeedsUpgrade = false before Initialize, want true")
	}
}

func TestService_FullSubscriptionLifecycle(t *testing.T) {
	clk := clock.NewFixedClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, clk)
	ctx := context.Background()

	if err := svc.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	// Initialize is idempotent across launches.
	if err := svc.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}

	// Free tier: five generations, then the paywall.
	for i := 0; i < 5; i++ {
		if !svc.CanUse(ctx).Allowed {
			t.Fatalf("CanUse() denied at generation %d", i+1)
		}
		ok, _ := svc.Consume(ctx)
		if !ok {
			t.Fatalf("Consume() failed at generation %d", i+1)
		}
	}

	status := svc.CanUse(ctx)
	if status.Allowed || !status.NeedsUpgrade {
		t.Errorf("CanUse() after free tier = %+v, want denied with upgrade", status)
	}
	if ok, _ := svc.Consume(ctx); ok {
		t.Error("Consume() ok = true past the free tier, want false")
	}

	// Purchase activates the paid plan at the pro limit.
	purchase := dto.NewMockPurchaseEvent("tx_1", productID, clk.Now())
	if !svc.HandlePurchaseEvent(ctx, purchase) {
		t.Fatal("HandlePurchaseEvent() = false, want true")
	}

	account, err := svc.Account(ctx)
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if account.Plan != productID || account.GenerationsLeft != 100 {
		t.Errorf("account = plan %q / %d left, want %q / 100", account.Plan, account.GenerationsLeft, productID)
	}
	if account.NextRenewalAt == nil {
		t.Error("NextRenewalAt = nil for subscriber, want informational date")
	}

	// Burn a credit so the renewal reset is observable.
	if ok, remaining := svc.Consume(ctx); !ok || remaining != 99 {
		t.Fatalf("Consume() = (%v, %d), want (true, 99)", ok, remaining)
	}

	// A month later the platform reports the renewal payment.
	clk.Advance(31 * 24 * time.Hour)
	renewal := dto.NewMockRenewalEvent("tx_2", "tx_1", productID, clk.Now().Add(-time.Hour))

	result := svc.HandleRenewalEvent(ctx, renewal)
	if !result.Renewed {
		t.Fatalf("HandleRenewalEvent() outcome = %q, want renewal", result.Outcome)
	}
	if status := svc.CanUse(ctx); status.Remaining != 100 {
		t.Errorf("Remaining = %d after renewal, want 100", status.Remaining)
	}

	// Redelivery of the same event changes nothing.
	svc.Consume(ctx)
	if result := svc.HandleRenewalEvent(ctx, renewal); result.Renewed {
		t.Error("HandleRenewalEvent() renewed on redelivery, want skip")
	}
	if status := svc.CanUse(ctx); status.Remaining != 99 {
		t.Errorf("Remaining = %d after redelivery, want 99", status.Remaining)
	}

	// History keeps both transactions, newest first.
	txs, err := svc.Transactions(ctx)
	if err != nil {
		t.Fatalf("Transactions() error = %v", err)
	}
	if len(txs) != 2 || txs[0].TransactionID != "tx_2" {
		t.Errorf("Transactions() = %d records, want tx_2 newest of 2", len(txs))
	}

	// Cancellation drops to free tier; the balance drains normally.
	if !svc.Cancel(ctx) {
		t.Fatal("Cancel() = false, want true")
	}
	account, _ = svc.Account(ctx)
	if account.Plan != "" {
		t.Errorf("Plan = %q after cancel, want empty", account.Plan)
	}
	if account.GenerationsLeft != 99 {
		t.Errorf("GenerationsLeft = %d after cancel, want 99", account.GenerationsLeft)
	}
}
