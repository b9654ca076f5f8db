package usecases

import (
	"context"
	"testing"
)

func TestCheckQuota_UnknownDeviceFailsClosed(t *testing.T) {
	repo := newTestStore(t)
	uc := NewCheckQuotaUseCase(repo, testLogger())

	status, err := uc.Execute(context.Background(), "dev_unknown")
	if err != nil {
		t.Fatalf("Execute() unexpected error = %v", err)
	}
	if status.Allowed {
		t.Error("Allowed = true for unknown device, want false")
	}
	if !status.NeedsUpgrade {
		t.Error("NeedsUpgrade = false for unknown device, want true")
	}
}

func TestCheckQuota_Allowed(t *testing.T) {
	repo := newTestStore(t)
	seedFreeAccount(t, repo)
	uc := NewCheckQuotaUseCase(repo, testLogger())

	status, err := uc.Execute(context.Background(), testDeviceID)
	if err != nil {
		t.Fatalf("Execute() unexpected error = %v", err)
	}
	if !status.Allowed {
		t.Error("Allowed = false with balance, want true")
	}
	if status.Remaining != freeLimit {
		t.Errorf("Remaining = %d, want %d", status.Remaining, freeLimit)
	}
	if status.NeedsUpgrade {
		t.Error("NeedsUpgrade = true with balance, want false")
	}
}

func TestCheckQuota_ExhaustedFreeTier(t *testing.T) {
	repo := newTestStore(t)
	seedFreeAccount(t, repo)
	ctx := context.Background()
	if err := repo.SetGenerationCount(ctx, testDeviceID, 0); err != nil {
		t.Fatalf("SetGenerationCount() error = %v", err)
	}

	uc := NewCheckQuotaUseCase(repo, testLogger())
	status, err := uc.Execute(ctx, testDeviceID)
	if err != nil {
		t.Fatalf("Execute() unexpected error = %v", err)
	}
	if status.Allowed {
		t.Error("Allowed = true on exhausted balance, want false")
	}
	if !status.NeedsUpgrade {
		t.Error("NeedsUpgrade = false on exhausted free tier, want true")
	}
}

func TestCheckQuota_ExhaustedSubscriber(t *testing.T) {
	repo := newTestStore(t)
	clk := testClock()
	seedProAccount(t, repo, clk)
	ctx := context.Background()
	if err := repo.SetGenerationCount(ctx, testDeviceID, 0); err != nil {
		t.Fatalf("SetGenerationCount() error = %v", err)
	}

	uc := NewCheckQuotaUseCase(repo, testLogger())
	status, err := uc.Execute(ctx, testDeviceID)
	if err != nil {
		t.Fatalf("Execute() unexpected error = %v", err)
	}
	if status.Allowed {
		t.Error("Allowed = true on exhausted balance, want false")
	}
	if status.NeedsUpgrade {
		t.Error("NeedsUpgrade = true for exhausted subscriber, want false")
	}
}
