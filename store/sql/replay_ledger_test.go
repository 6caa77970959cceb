package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-federation/core"
)

func TestReplayLedger_Claim(t *testing.T) {
	clock := core.NewVirtualClock(testStoreEpoch())
	factory := newTestFactory(t, clock)
	ledger := factory.ReplayLedger()

	claimed, err := ledger.Claim(context.Background(), "grant_code:abc", time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed {
		t.Fatalf("expected first claim to succeed")
	}

	t.Run("second claim is rejected", func(t *testing.T) {
		claimed, err := ledger.Claim(context.Background(), "grant_code:abc", time.Minute)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if claimed {
			t.Fatalf("expected repeat claim to fail")
		}
	})

	t.Run("release restores the key", func(t *testing.T) {
		if err := ledger.Release(context.Background(), "grant_code:abc"); err != nil {
			t.Fatalf("release: %v", err)
		}
		claimed, err := ledger.Claim(context.Background(), "grant_code:abc", time.Minute)
		if err != nil {
			t.Fatalf("claim after release: %v", err)
		}
		if !claimed {
			t.Fatalf("expected released key to be claimable")
		}
	})

	t.Run("expiry frees the key", func(t *testing.T) {
		clock.Advance(2 * time.Minute)
		claimed, err := ledger.Claim(context.Background(), "grant_code:abc", time.Minute)
		if err != nil {
			t.Fatalf("claim after expiry: %v", err)
		}
		if !claimed {
			t.Fatalf("expected expired key to be claimable again")
		}
	})

	t.Run("blank key", func(t *testing.T) {
		if _, err := ledger.Claim(context.Background(), "  ", time.Minute); err == nil {
			t.Fatalf("expected error for blank key")
		}
		if err := ledger.Release(context.Background(), ""); err == nil {
			t.Fatalf("expected error for blank release key")
		}
	})
}

func TestReplayLedger_ClaimPrunesExpiredRows(t *testing.T) {
	clock := core.NewVirtualClock(testStoreEpoch())
	factory := newTestFactory(t, clock)
	ledger := factory.ReplayLedger()

	for _, key := range []string{"grant_code:one", "grant_code:two"} {
		if _, err := ledger.Claim(context.Background(), key, time.Minute); err != nil {
			t.Fatalf("seed claim %s: %v", key, err)
		}
	}
	clock.Advance(2 * time.Minute)

	// Claiming any key sweeps every expired row, not just its own.
	if _, err := ledger.Claim(context.Background(), "grant_code:three", time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}
	claimed, err := ledger.Claim(context.Background(), "grant_code:one", time.Minute)
	if err != nil {
		t.Fatalf("claim swept key: %v", err)
	}
	if !claimed {
		t.Fatalf("expected swept key to be claimable")
	}
}
