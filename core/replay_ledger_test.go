package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryReplayLedger_ClaimDedupesUntilExpiry(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ledger := NewMemoryReplayLedger(time.Minute)
	ledger.Now = func() time.Time { return now }

	claimed, err := ledger.Claim(context.Background(), "delivery_1", 0)
	if err != nil {
		t.Fatalf("claim delivery: %v", err)
	}
	if !claimed {
		t.Fatalf("expected first claim to succeed")
	}

	claimed, err = ledger.Claim(context.Background(), "delivery_1", 0)
	if err != nil {
		t.Fatalf("claim replayed delivery: %v", err)
	}
	if claimed {
		t.Fatalf("expected replayed claim to be rejected")
	}

	now = now.Add(2 * time.Minute)
	claimed, err = ledger.Claim(context.Background(), "delivery_1", 0)
	if err != nil {
		t.Fatalf("claim expired delivery: %v", err)
	}
	if !claimed {
		t.Fatalf("expected claim to succeed after expiry")
	}
}

func TestMemoryReplayLedger_RequiresKey(t *testing.T) {
	ledger := NewMemoryReplayLedger(time.Minute)
	if _, err := ledger.Claim(context.Background(), "  ", 0); err == nil {
		t.Fatalf("expected empty delivery key to fail")
	}
}

func TestMemoryReplayLedger_CapacityEvictsOldest(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ledger := NewMemoryReplayLedgerWithLimits(time.Hour, 2)
	ledger.Now = func() time.Time { return now }

	for _, key := range []string{"a", "b", "c"} {
		now = now.Add(time.Second)
		if _, err := ledger.Claim(context.Background(), key, 0); err != nil {
			t.Fatalf("claim %s: %v", key, err)
		}
	}

	claimed, err := ledger.Claim(context.Background(), "a", 0)
	if err != nil {
		t.Fatalf("re-claim evicted key: %v", err)
	}
	if !claimed {
		t.Fatalf("expected oldest key to have been evicted")
	}
}

func TestMemoryReplayLedger_PurgeExpired(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ledger := NewMemoryReplayLedger(time.Minute)
	ledger.Now = func() time.Time { return now }

	if _, err := ledger.Claim(context.Background(), "delivery_1", 0); err != nil {
		t.Fatalf("claim delivery: %v", err)
	}
	now = now.Add(5 * time.Minute)
	pruned, err := ledger.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("purge expired: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected one pruned entry, got %d", pruned)
	}
}
