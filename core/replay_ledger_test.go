package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryReplayLedger_ClaimIsSingleUse(t *testing.T) {
	ledger := NewMemoryReplayLedger(time.Minute)

	fresh, err := ledger.Claim(context.Background(), "grant_code:abc", time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !fresh {
		t.Fatalf("expected first claim to be fresh")
	}

	fresh, err = ledger.Claim(context.Background(), "grant_code:abc", time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if fresh {
		t.Fatalf("expected second claim to be rejected")
	}
}

func TestMemoryReplayLedger_ReleaseRestoresClaim(t *testing.T) {
	ledger := NewMemoryReplayLedger(time.Minute)

	if _, err := ledger.Claim(context.Background(), "grant_code:abc", time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := ledger.Release(context.Background(), "grant_code:abc"); err != nil {
		t.Fatalf("release: %v", err)
	}
	fresh, err := ledger.Claim(context.Background(), "grant_code:abc", time.Minute)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if !fresh {
		t.Fatalf("expected released key to be claimable again")
	}
}

func TestMemoryReplayLedger_ExpiryFreesKey(t *testing.T) {
	clock := NewVirtualClock(testEpoch())
	ledger := NewMemoryReplayLedger(time.Minute)
	ledger.Now = clock.Now

	if _, err := ledger.Claim(context.Background(), "grant_code:abc", time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}

	clock.Advance(30 * time.Second)
	fresh, err := ledger.Claim(context.Background(), "grant_code:abc", time.Minute)
	if err != nil {
		t.Fatalf("claim within ttl: %v", err)
	}
	if fresh {
		t.Fatalf("expected claim within ttl to be rejected")
	}

	clock.Advance(31 * time.Second)
	fresh, err = ledger.Claim(context.Background(), "grant_code:abc", time.Minute)
	if err != nil {
		t.Fatalf("claim after expiry: %v", err)
	}
	if !fresh {
		t.Fatalf("expected expired key to be claimable")
	}
}

func TestMemoryReplayLedger_EvictsClosestToExpiry(t *testing.T) {
	clock := NewVirtualClock(testEpoch())
	ledger := NewMemoryReplayLedgerWithLimits(time.Minute, 2)
	ledger.Now = clock.Now

	if _, err := ledger.Claim(context.Background(), "first", time.Minute); err != nil {
		t.Fatalf("claim first: %v", err)
	}
	if _, err := ledger.Claim(context.Background(), "second", time.Hour); err != nil {
		t.Fatalf("claim second: %v", err)
	}
	if _, err := ledger.Claim(context.Background(), "third", time.Hour); err != nil {
		t.Fatalf("claim third: %v", err)
	}

	// "first" expired soonest, so it was the eviction victim.
	fresh, err := ledger.Claim(context.Background(), "second", time.Hour)
	if err != nil {
		t.Fatalf("reclaim second: %v", err)
	}
	if fresh {
		t.Fatalf("expected second to survive eviction")
	}
}

func TestMemoryReplayLedger_PurgeExpired(t *testing.T) {
	clock := NewVirtualClock(testEpoch())
	ledger := NewMemoryReplayLedger(time.Minute)
	ledger.Now = clock.Now

	if _, err := ledger.Claim(context.Background(), "short", time.Minute); err != nil {
		t.Fatalf("claim short: %v", err)
	}
	if _, err := ledger.Claim(context.Background(), "long", time.Hour); err != nil {
		t.Fatalf("claim long: %v", err)
	}

	clock.Advance(2 * time.Minute)
	pruned, err := ledger.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("purge expired: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", pruned)
	}
}

func TestMemoryReplayLedger_RequiresKey(t *testing.T) {
	ledger := NewMemoryReplayLedger(time.Minute)
	if _, err := ledger.Claim(context.Background(), "  ", time.Minute); err == nil {
		t.Fatalf("expected error for blank key")
	}
	if err := ledger.Release(context.Background(), ""); err == nil {
		t.Fatalf("expected error for blank key")
	}
}
