package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-federation/core"
)

func touchSQLTestClient(t *testing.T, store core.OauthProviderStore, secret string) core.OauthClient {
	t.Helper()
	client, err := store.TouchSystemClient(context.Background(), core.TouchSystemClientInput{
		Key:         "etwin_app",
		DisplayName: "Example App",
		AppURI:      "https://app.example.com",
		CallbackURI: "https://app.example.com/oauth/callback",
		Secret:      []byte(secret),
	})
	if err != nil {
		t.Fatalf("touch system client: %v", err)
	}
	return client
}

func TestOauthProviderStore_TouchSystemClient(t *testing.T) {
	factory := newTestFactory(t, core.NewVirtualClock(testStoreEpoch()))
	store := factory.OauthProviderStore()

	client := touchSQLTestClient(t, store, "s3cret")
	if client.Key != "etwin_app@clients" {
		t.Fatalf("expected canonical key form, got %q", client.Key)
	}

	t.Run("touch preserves identity", func(t *testing.T) {
		again, err := store.TouchSystemClient(context.Background(), core.TouchSystemClientInput{
			Key:         "etwin_app@clients",
			DisplayName: "Renamed App",
			AppURI:      "https://app.example.com",
			CallbackURI: "https://app.example.com/oauth/callback",
			Secret:      []byte("s3cret"),
		})
		if err != nil {
			t.Fatalf("repeat touch: %v", err)
		}
		if again.ID != client.ID {
			t.Fatalf("expected stable client id, got %q and %q", client.ID, again.ID)
		}
		if again.DisplayName != "Renamed App" {
			t.Fatalf("expected updated display name, got %q", again.DisplayName)
		}
	})

	t.Run("touch rotates the secret", func(t *testing.T) {
		rotated, err := store.TouchSystemClient(context.Background(), core.TouchSystemClientInput{
			Key:         "etwin_app",
			CallbackURI: "https://app.example.com/oauth/callback",
			Secret:      []byte("rotated"),
		})
		if err != nil {
			t.Fatalf("rotate secret: %v", err)
		}
		if err := store.VerifyClientSecret(context.Background(), rotated.ID, []byte("rotated")); err != nil {
			t.Fatalf("verify rotated secret: %v", err)
		}
		if err := store.VerifyClientSecret(context.Background(), rotated.ID, []byte("s3cret")); !errors.Is(err, core.ErrInvalidCredentials) {
			t.Fatalf("expected old secret to be rejected, got %v", err)
		}
	})

	t.Run("rejects id refs", func(t *testing.T) {
		_, err := store.TouchSystemClient(context.Background(), core.TouchSystemClientInput{
			Key:    "f0dcf1a3-2afb-47b9-8ae9-3d5ec2b16401",
			Secret: []byte("s3cret"),
		})
		if !errors.Is(err, core.ErrInvalidLogin) {
			t.Fatalf("expected ErrInvalidLogin for uuid key, got %v", err)
		}
	})
}

func TestOauthProviderStore_GetClient(t *testing.T) {
	factory := newTestFactory(t, nil)
	store := factory.OauthProviderStore()
	client := touchSQLTestClient(t, store, "s3cret")

	byID, err := store.GetClient(context.Background(), core.ClientRef{ID: client.ID})
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	byKey, err := store.GetClient(context.Background(), core.ClientRef{Key: client.Key})
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if byID.ID != byKey.ID {
		t.Fatalf("expected both lookups to resolve the same client")
	}
	if _, err := store.GetClient(context.Background(), core.ClientRef{Key: "unknown@clients"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.VerifyClientSecret(context.Background(), "missing-id", []byte("s3cret")); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown client, got %v", err)
	}
}

func TestOauthProviderStore_ListClients(t *testing.T) {
	clock := core.NewVirtualClock(testStoreEpoch())
	factory := newTestFactory(t, clock)
	store, ok := factory.OauthProviderStore().(*OauthProviderStore)
	if !ok {
		t.Fatalf("expected SQL oauth provider store")
	}

	touchSQLTestClient(t, store, "s3cret")
	clock.Advance(time.Minute)
	if _, err := store.TouchSystemClient(context.Background(), core.TouchSystemClientInput{
		Key:         "other_app",
		CallbackURI: "https://other.example.com/callback",
		Secret:      []byte("other-secret"),
	}); err != nil {
		t.Fatalf("touch other client: %v", err)
	}

	clients, err := store.ListClients(context.Background())
	if err != nil {
		t.Fatalf("list clients: %v", err)
	}
	if len(clients) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(clients))
	}
	if clients[0].Key != "etwin_app@clients" || clients[1].Key != "other_app@clients" {
		t.Fatalf("expected oldest-first order: %#v", clients)
	}
}

func TestOauthProviderStore_AccessTokens(t *testing.T) {
	clock := core.NewVirtualClock(testStoreEpoch())
	factory := newTestFactory(t, clock)
	store := factory.OauthProviderStore()
	client := touchSQLTestClient(t, store, "s3cret")

	token, err := store.CreateAccessToken(context.Background(), core.CreateAccessTokenInput{
		Key:       "token-1",
		ClientID:  client.ID,
		UserID:    "user-a",
		Scopes:    []string{core.ScopeBase, core.ScopeOffline},
		ExpiresAt: testStoreEpoch().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create access token: %v", err)
	}
	if len(token.Scopes) != 2 {
		t.Fatalf("expected scopes to round trip, got %v", token.Scopes)
	}

	t.Run("get and touch stamps the access time", func(t *testing.T) {
		touchedAt := clock.Advance(30 * time.Minute)
		token, err := store.GetAndTouchAccessToken(context.Background(), "token-1")
		if err != nil {
			t.Fatalf("get and touch: %v", err)
		}
		if !token.AccessedAt.Equal(touchedAt) {
			t.Fatalf("expected atime %s, got %s", touchedAt, token.AccessedAt)
		}
		if len(token.Scopes) != 2 {
			t.Fatalf("expected stored scopes, got %v", token.Scopes)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		clock.Advance(time.Hour)
		if _, err := store.GetAndTouchAccessToken(context.Background(), "token-1"); !errors.Is(err, core.ErrExpired) {
			t.Fatalf("expected ErrExpired, got %v", err)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		if _, err := store.GetAndTouchAccessToken(context.Background(), "missing"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		if err := store.RevokeAccessToken(context.Background(), "token-1"); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		if err := store.RevokeAccessToken(context.Background(), "token-1"); err != nil {
			t.Fatalf("repeat revoke: %v", err)
		}
		if _, err := store.GetAndTouchAccessToken(context.Background(), "token-1"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after revoke, got %v", err)
		}
	})
}

func TestOauthProviderStore_RefreshTokens(t *testing.T) {
	factory := newTestFactory(t, nil)
	store := factory.OauthProviderStore()
	client := touchSQLTestClient(t, store, "s3cret")

	token, err := store.CreateRefreshToken(context.Background(), core.CreateRefreshTokenInput{
		Key:      "refresh-1",
		ClientID: client.ID,
		UserID:   "user-a",
		Scopes:   []string{core.ScopeBase, core.ScopeOffline},
	})
	if err != nil {
		t.Fatalf("create refresh token: %v", err)
	}
	if len(token.Scopes) != 2 {
		t.Fatalf("expected scopes to round trip, got %v", token.Scopes)
	}

	if err := store.RevokeRefreshToken(context.Background(), "refresh-1"); err != nil {
		t.Fatalf("revoke refresh token: %v", err)
	}
	if err := store.RevokeRefreshToken(context.Background(), "refresh-1"); err != nil {
		t.Fatalf("repeat revoke: %v", err)
	}
}
