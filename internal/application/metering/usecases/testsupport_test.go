package usecases

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/artisan-apps/genmeter/internal/domain/entitlement"
	"github.com/artisan-apps/genmeter/internal/infrastructure/repository"
	"github.com/artisan-apps/genmeter/internal/shared/clock"
	"github.com/artisan-apps/genmeter/internal/shared/logger"
)

const (
	testDeviceID  = "dev_test0000000001"
	testProductID = "com.artisanapps.genmeter.pro.monthly"
	freeLimit     = 5
	proLimit      = 100
)

// recordingNotifier captures every callback for assertion.
type recordingNotifier struct {
	activations  []string
	usedCounts   []int
	limitReached []bool
}

func (n *recordingNotifier) SubscriptionActivated(plan string) {
	n.activations = append(n.activations, plan)
}

func (n *recordingNotifier) GenerationUsed(remaining int) {
	n.usedCounts = append(n.usedCounts, remaining)
}

func (n *recordingNotifier) LimitReached(needsUpgrade bool) {
	n.limitReached = append(n.limitReached, needsUpgrade)
}

// recordingFeed captures acknowledged transaction IDs, optionally failing.
type recordingFeed struct {
	finished []string
	fail     bool
}

func (f *recordingFeed) Finish(_ context.Context, transactionID string) error {
	if f.fail {
		return fmt.Errorf("feed unavailable")
	}
	f.finished = append(f.finished, transactionID)
	return nil
}

func newTestStore(t *testing.T) *repository.MemoryRepository {
	t.Helper()
	return repository.NewMemoryRepository()
}

func seedFreeAccount(t *testing.T, repo *repository.MemoryRepository) {
	t.Helper()
	if _, err := repo.InitializeAccount(context.Background(), testDeviceID, freeLimit); err != nil {
		t.Fatalf("InitializeAccount() error = %v", err)
	}
}

func seedProAccount(t *testing.T, repo *repository.MemoryRepository, clk clock.Clock) {
	t.Helper()
	seedFreeAccount(t, repo)
	if err := repo.ActivatePlan(context.Background(), testDeviceID, entitlement.Plan(testProductID), proLimit, clk.Now()); err != nil {
		t.Fatalf("ActivatePlan() error = %v", err)
	}
}

func testClock() *clock.FixedClock {
	return clock.NewFixedClock(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
}

func testLogger() logger.Interface {
	return logger.NewLogger()
}
