package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-federation/core"
)

func hammerfestTestSnapshot(capturedAt time.Time, username string, attributes map[string]int64) core.ProfileSnapshot {
	return core.ProfileSnapshot{
		Remote:     hammerfestTestRef("123", username),
		CapturedAt: capturedAt,
		Attributes: attributes,
	}
}

func TestArchiveStore_TouchProfile(t *testing.T) {
	factory := newTestFactory(t, nil)
	store := factory.ArchiveStore(core.ProviderHammerfest)
	epoch := testStoreEpoch()

	profile, err := store.TouchProfile(context.Background(), hammerfestTestSnapshot(epoch, "alice_hf", map[string]int64{
		"best_score": 1200,
	}))
	if err != nil {
		t.Fatalf("touch profile: %v", err)
	}
	if !profile.FirstSeen.Equal(epoch) {
		t.Fatalf("expected first seen %s, got %s", epoch, profile.FirstSeen)
	}
	if profile.Username == nil || profile.Username.Value != "alice_hf" {
		t.Fatalf("expected archived username: %#v", profile.Username)
	}
	if field := profile.Attributes["best_score"]; field == nil || field.Value != 1200 {
		t.Fatalf("expected archived best_score: %#v", field)
	}

	t.Run("repeat observation advances retrieval only", func(t *testing.T) {
		later := epoch.Add(time.Hour)
		profile, err := store.TouchProfile(context.Background(), hammerfestTestSnapshot(later, "alice_hf", map[string]int64{
			"best_score": 1200,
		}))
		if err != nil {
			t.Fatalf("touch profile: %v", err)
		}
		field := profile.Attributes["best_score"]
		if !field.Period.Start.Equal(epoch) {
			t.Fatalf("expected period start to hold at %s, got %s", epoch, field.Period.Start)
		}
		if !field.Retrieved.Latest.Equal(later) {
			t.Fatalf("expected retrieval stamp %s, got %s", later, field.Retrieved.Latest)
		}
	})

	t.Run("changed value opens a fresh period", func(t *testing.T) {
		changedAt := epoch.Add(2 * time.Hour)
		profile, err := store.TouchProfile(context.Background(), hammerfestTestSnapshot(changedAt, "alice_hf", map[string]int64{
			"best_score": 1500,
		}))
		if err != nil {
			t.Fatalf("touch profile: %v", err)
		}
		field := profile.Attributes["best_score"]
		if field.Value != 1500 || !field.Period.Start.Equal(changedAt) {
			t.Fatalf("expected fresh period at %s: %#v", changedAt, field)
		}
		if !profile.FirstSeen.Equal(epoch) {
			t.Fatalf("expected first seen to be stable, got %s", profile.FirstSeen)
		}
	})
}

func TestArchiveStore_StaleSnapshotRollsBackEverything(t *testing.T) {
	factory := newTestFactory(t, nil)
	store := factory.ArchiveStore(core.ProviderHammerfest)
	epoch := testStoreEpoch()

	if _, err := store.TouchProfile(context.Background(), hammerfestTestSnapshot(epoch, "alice_hf", map[string]int64{
		"best_score": 1200,
	})); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	// Level is only observed at epoch+2h, so the epoch+1h snapshot below is
	// stale for it while still fresh for the username.
	if _, err := store.TouchProfile(context.Background(), hammerfestTestSnapshot(epoch.Add(2*time.Hour), "", map[string]int64{
		"level": 2,
	})); err != nil {
		t.Fatalf("seed level: %v", err)
	}

	_, err := store.TouchProfile(context.Background(), hammerfestTestSnapshot(epoch.Add(time.Hour), "alice_hf", map[string]int64{
		"level": 9,
	}))
	if !errors.Is(err, core.ErrStaleObservation) {
		t.Fatalf("expected ErrStaleObservation, got %v", err)
	}

	profile, err := store.GetProfile(context.Background(), hammerfestTestRef("123", ""))
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile == nil {
		t.Fatalf("expected archived profile")
	}
	if !profile.Username.Retrieved.Latest.Equal(epoch) {
		t.Fatalf("expected the username merge to roll back with the stale attribute, got retrieval stamp %s", profile.Username.Retrieved.Latest)
	}
	if field := profile.Attributes["level"]; field == nil || field.Value != 2 {
		t.Fatalf("expected level to keep its later observation: %#v", field)
	}
}

func TestArchiveStore_RejectsForeignProvider(t *testing.T) {
	factory := newTestFactory(t, nil)
	store := factory.ArchiveStore(core.ProviderDinoparc)

	_, err := store.TouchProfile(context.Background(), hammerfestTestSnapshot(testStoreEpoch(), "alice_hf", nil))
	if !errors.Is(err, core.ErrInvalidProvider) {
		t.Fatalf("expected ErrInvalidProvider, got %v", err)
	}
}

func TestArchiveStore_GetProfile(t *testing.T) {
	factory := newTestFactory(t, nil)
	store := factory.ArchiveStore(core.ProviderHammerfest)

	profile, err := store.GetProfile(context.Background(), hammerfestTestRef("999", ""))
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile != nil {
		t.Fatalf("expected nil for an unseen account, got %#v", profile)
	}

	if _, err := store.TouchProfile(context.Background(), hammerfestTestSnapshot(testStoreEpoch(), "alice_hf", map[string]int64{
		"best_score": 1200,
	})); err != nil {
		t.Fatalf("touch profile: %v", err)
	}
	profile, err = store.GetProfile(context.Background(), hammerfestTestRef("123", ""))
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile == nil || profile.Remote.Username != "alice_hf" {
		t.Fatalf("expected stored profile with archived username: %#v", profile)
	}
}
