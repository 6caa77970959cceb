package command

import (
	"context"
	"fmt"
	"testing"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-federation/core"
)

func TestTouchLinkCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	linked := core.Link{UserID: "user-a"}
	expected := core.VersionedLink{Current: &linked}
	called := false

	svc := stubLinkService{
		touchLinkFn: func(_ context.Context, in core.TouchLinkInput) (core.VersionedLink, error) {
			called = true
			if in.UserID != "user-a" {
				t.Fatalf("expected user-a, got %q", in.UserID)
			}
			return expected, nil
		},
	}

	cmd := NewTouchLinkCommand(svc)
	collector := gocmd.NewResult[core.VersionedLink]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, TouchLinkMessage{Input: core.TouchLinkInput{
		UserID: "user-a",
		Remote: core.ExternalRef{Provider: core.ProviderHammerfest, Server: "hammerfest.fr", ID: "123"},
	}})
	if err != nil {
		t.Fatalf("execute touch link: %v", err)
	}
	if !called {
		t.Fatalf("expected touch link invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.Current == nil || result.Current.UserID != "user-a" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestLinkCommands_DelegateToService(t *testing.T) {
	t.Run("delete link", func(t *testing.T) {
		called := false
		svc := stubLinkService{
			deleteLinkFn: func(_ context.Context, in core.DeleteLinkInput) (core.VersionedLink, error) {
				called = true
				if in.Remote.ID != "123" {
					t.Fatalf("unexpected delete payload: %#v", in)
				}
				return core.VersionedLink{}, nil
			},
		}
		cmd := NewDeleteLinkCommand(svc)
		err := cmd.Execute(context.Background(), DeleteLinkMessage{Input: core.DeleteLinkInput{
			Remote: core.ExternalRef{Provider: core.ProviderHammerfest, Server: "hammerfest.fr", ID: "123"},
		}})
		if err != nil {
			t.Fatalf("execute delete link: %v", err)
		}
		if !called {
			t.Fatalf("expected delete link invocation")
		}
	})

	t.Run("login external", func(t *testing.T) {
		called := false
		svc := stubLinkService{
			loginExternalFn: func(_ context.Context, in core.LoginExternalInput) (core.LoginResult, error) {
				called = true
				if in.Username != "alice" {
					t.Fatalf("unexpected login payload: %#v", in)
				}
				return core.LoginResult{Session: core.ExternalSession{Key: "sess-key"}}, nil
			},
		}
		cmd := NewLoginExternalCommand(svc)
		collector := gocmd.NewResult[core.LoginResult]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		err := cmd.Execute(ctx, LoginExternalMessage{Input: core.LoginExternalInput{
			Provider: core.ProviderHammerfest,
			Server:   "hammerfest.fr",
			Username: "alice",
			Password: "secret",
		}})
		if err != nil {
			t.Fatalf("execute login: %v", err)
		}
		if !called {
			t.Fatalf("expected login invocation")
		}
		stored, ok := collector.Load()
		if !ok {
			t.Fatalf("expected login result")
		}
		if stored.Session.Key != "sess-key" {
			t.Fatalf("unexpected login result: %#v", stored)
		}
	})

	t.Run("authenticate session", func(t *testing.T) {
		called := false
		svc := stubLinkService{
			authenticateFn: func(_ context.Context, provider core.Provider, server string, key string) (core.LoginResult, error) {
				called = true
				if provider != core.ProviderHammerfest || server != "hammerfest.fr" || key != "sess-key" {
					t.Fatalf("unexpected authenticate payload: %s %s %s", provider, server, key)
				}
				return core.LoginResult{Session: core.ExternalSession{Key: key}}, nil
			},
		}
		cmd := NewAuthenticateSessionCommand(svc)
		collector := gocmd.NewResult[core.LoginResult]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		err := cmd.Execute(ctx, AuthenticateSessionMessage{
			Provider: core.ProviderHammerfest,
			Server:   "hammerfest.fr",
			Key:      "sess-key",
		})
		if err != nil {
			t.Fatalf("execute authenticate session: %v", err)
		}
		if !called {
			t.Fatalf("expected authenticate invocation")
		}
		if _, ok := collector.Load(); !ok {
			t.Fatalf("expected authenticate result")
		}
	})

	t.Run("revoke session", func(t *testing.T) {
		called := false
		svc := stubLinkService{
			revokeSessionFn: func(_ context.Context, provider core.Provider, server string, key string) error {
				called = true
				if key != "sess-key" {
					t.Fatalf("unexpected revoke key %q", key)
				}
				return nil
			},
		}
		err := NewRevokeSessionCommand(svc).Execute(context.Background(), RevokeSessionMessage{
			Provider: core.ProviderHammerfest,
			Server:   "hammerfest.fr",
			Key:      "sess-key",
		})
		if err != nil {
			t.Fatalf("execute revoke session: %v", err)
		}
		if !called {
			t.Fatalf("expected revoke invocation")
		}
	})

	t.Run("refresh profile", func(t *testing.T) {
		called := false
		svc := stubLinkService{
			refreshProfileFn: func(_ context.Context, ref core.ExternalRef) (core.ArchivedProfile, error) {
				called = true
				if ref.ID != "123" {
					t.Fatalf("unexpected refresh ref: %#v", ref)
				}
				return core.ArchivedProfile{Remote: ref}, nil
			},
		}
		cmd := NewRefreshProfileCommand(svc)
		collector := gocmd.NewResult[core.ArchivedProfile]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		err := cmd.Execute(ctx, RefreshProfileMessage{
			Remote: core.ExternalRef{Provider: core.ProviderHammerfest, Server: "hammerfest.fr", ID: "123"},
		})
		if err != nil {
			t.Fatalf("execute refresh profile: %v", err)
		}
		if !called {
			t.Fatalf("expected refresh profile invocation")
		}
		if _, ok := collector.Load(); !ok {
			t.Fatalf("expected refresh profile result")
		}
	})
}

func TestOauthCommands_DelegateToService(t *testing.T) {
	t.Run("touch system client", func(t *testing.T) {
		called := false
		svc := stubOauthService{
			touchSystemClientFn: func(_ context.Context, in core.TouchSystemClientInput) (core.OauthClient, error) {
				called = true
				if in.Key != "etwin_app@clients" {
					t.Fatalf("unexpected client key %q", in.Key)
				}
				return core.OauthClient{ID: "client-1", Key: "etwin_app"}, nil
			},
		}
		cmd := NewTouchSystemClientCommand(svc)
		collector := gocmd.NewResult[core.OauthClient]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		err := cmd.Execute(ctx, TouchSystemClientMessage{Input: core.TouchSystemClientInput{
			Key:    "etwin_app@clients",
			Secret: []byte("secret"),
		}})
		if err != nil {
			t.Fatalf("execute touch system client: %v", err)
		}
		if !called {
			t.Fatalf("expected touch system client invocation")
		}
		stored, ok := collector.Load()
		if !ok {
			t.Fatalf("expected client result")
		}
		if stored.ID != "client-1" {
			t.Fatalf("unexpected client result: %#v", stored)
		}
	})

	t.Run("authorization round trip", func(t *testing.T) {
		calledAuthorize := false
		calledExchange := false
		svc := stubOauthService{
			createAuthorizationFn: func(_ context.Context, in core.CreateAuthorizationRequestInput) (core.AuthorizationRequest, error) {
				calledAuthorize = true
				if in.UserID != "user-a" {
					t.Fatalf("unexpected authorize input: %#v", in)
				}
				return core.AuthorizationRequest{Code: "signed-code", State: in.State}, nil
			},
			exchangeCodeFn: func(_ context.Context, in core.ExchangeCodeInput) (core.TokenGrant, error) {
				calledExchange = true
				if in.Code != "signed-code" {
					t.Fatalf("unexpected exchange input: %#v", in)
				}
				return core.TokenGrant{AccessToken: core.AccessToken{Key: "token-key"}, TokenType: core.TokenTypeBearer}, nil
			},
		}

		authorizeCollector := gocmd.NewResult[core.AuthorizationRequest]()
		authorizeCtx := gocmd.ContextWithResult(context.Background(), authorizeCollector)
		if err := NewCreateAuthorizationCommand(svc).Execute(authorizeCtx, CreateAuthorizationMessage{
			Input: core.CreateAuthorizationRequestInput{UserID: "user-a", ClientRef: "client-1", State: "st"},
		}); err != nil {
			t.Fatalf("execute create authorization: %v", err)
		}
		if !calledAuthorize {
			t.Fatalf("expected authorize invocation")
		}
		request, ok := authorizeCollector.Load()
		if !ok {
			t.Fatalf("expected authorization result")
		}

		exchangeCollector := gocmd.NewResult[core.TokenGrant]()
		exchangeCtx := gocmd.ContextWithResult(context.Background(), exchangeCollector)
		if err := NewExchangeCodeCommand(svc).Execute(exchangeCtx, ExchangeCodeMessage{
			Input: core.ExchangeCodeInput{Code: request.Code, ClientRef: "client-1", ClientSecret: []byte("secret")},
		}); err != nil {
			t.Fatalf("execute exchange code: %v", err)
		}
		if !calledExchange {
			t.Fatalf("expected exchange invocation")
		}
		grant, ok := exchangeCollector.Load()
		if !ok {
			t.Fatalf("expected token grant result")
		}
		if grant.AccessToken.Key != "token-key" {
			t.Fatalf("unexpected grant result: %#v", grant)
		}
	})

	t.Run("revocations", func(t *testing.T) {
		calledAccess := false
		calledRefresh := false
		svc := stubOauthService{
			revokeAccessTokenFn: func(_ context.Context, key string) error {
				calledAccess = true
				if key != "token-key" {
					t.Fatalf("unexpected access revoke key %q", key)
				}
				return nil
			},
			revokeRefreshTokenFn: func(_ context.Context, key string) error {
				calledRefresh = true
				if key != "refresh-key" {
					t.Fatalf("unexpected refresh revoke key %q", key)
				}
				return nil
			},
		}
		if err := NewRevokeAccessTokenCommand(svc).Execute(context.Background(), RevokeAccessTokenMessage{Key: "token-key"}); err != nil {
			t.Fatalf("execute revoke access token: %v", err)
		}
		if !calledAccess {
			t.Fatalf("expected access revoke invocation")
		}
		if err := NewRevokeRefreshTokenCommand(svc).Execute(context.Background(), RevokeRefreshTokenMessage{Key: "refresh-key"}); err != nil {
			t.Fatalf("execute revoke refresh token: %v", err)
		}
		if !calledRefresh {
			t.Fatalf("expected refresh revoke invocation")
		}
	})
}

func TestMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{
			name: "touch link valid",
			msg: TouchLinkMessage{Input: core.TouchLinkInput{
				UserID: "user-a",
				Remote: core.ExternalRef{Provider: core.ProviderHammerfest, Server: "hammerfest.fr", ID: "123"},
			}},
			wantErr: false,
		},
		{
			name: "touch link missing user",
			msg: TouchLinkMessage{Input: core.TouchLinkInput{
				Remote: core.ExternalRef{Provider: core.ProviderHammerfest, Server: "hammerfest.fr", ID: "123"},
			}},
			wantErr: true,
		},
		{
			name: "delete link bad server",
			msg: DeleteLinkMessage{Input: core.DeleteLinkInput{
				Remote: core.ExternalRef{Provider: core.ProviderHammerfest, Server: "nope.example", ID: "123"},
			}},
			wantErr: true,
		},
		{
			name: "login valid",
			msg: LoginExternalMessage{Input: core.LoginExternalInput{
				Provider: core.ProviderDinoparc,
				Server:   "dinoparc.com",
				Username: "alice",
			}},
			wantErr: false,
		},
		{
			name: "login unknown provider",
			msg: LoginExternalMessage{Input: core.LoginExternalInput{
				Provider: "myspace",
				Server:   "myspace.com",
				Username: "alice",
			}},
			wantErr: true,
		},
		{
			name: "authenticate session valid",
			msg: AuthenticateSessionMessage{
				Provider: core.ProviderHammerfest,
				Server:   "hammerfest.fr",
				Key:      "sess-key",
			},
			wantErr: false,
		},
		{
			name: "revoke session wrong server",
			msg: RevokeSessionMessage{
				Provider: core.ProviderHammerfest,
				Server:   "twinoid.com",
				Key:      "sess-key",
			},
			wantErr: true,
		},
		{
			name:    "revoke session missing key",
			msg:     RevokeSessionMessage{Provider: core.ProviderTwinoid, Server: "twinoid.com"},
			wantErr: true,
		},
		{
			name:    "system client missing secret",
			msg:     TouchSystemClientMessage{Input: core.TouchSystemClientInput{Key: "etwin_app@clients"}},
			wantErr: true,
		},
		{
			name: "create authorization valid",
			msg: CreateAuthorizationMessage{Input: core.CreateAuthorizationRequestInput{
				UserID:    "user-a",
				ClientRef: "client-1",
			}},
			wantErr: false,
		},
		{
			name:    "exchange missing code",
			msg:     ExchangeCodeMessage{Input: core.ExchangeCodeInput{ClientRef: "client-1"}},
			wantErr: true,
		},
		{
			name:    "revoke access token missing key",
			msg:     RevokeAccessTokenMessage{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type stubLinkService struct {
	touchLinkFn      func(ctx context.Context, in core.TouchLinkInput) (core.VersionedLink, error)
	deleteLinkFn     func(ctx context.Context, in core.DeleteLinkInput) (core.VersionedLink, error)
	loginExternalFn  func(ctx context.Context, in core.LoginExternalInput) (core.LoginResult, error)
	authenticateFn   func(ctx context.Context, provider core.Provider, server string, key string) (core.LoginResult, error)
	revokeSessionFn  func(ctx context.Context, provider core.Provider, server string, key string) error
	refreshProfileFn func(ctx context.Context, ref core.ExternalRef) (core.ArchivedProfile, error)
}

func (s stubLinkService) TouchLink(ctx context.Context, in core.TouchLinkInput) (core.VersionedLink, error) {
	if s.touchLinkFn == nil {
		return core.VersionedLink{}, fmt.Errorf("touch link not configured")
	}
	return s.touchLinkFn(ctx, in)
}

func (s stubLinkService) DeleteLink(ctx context.Context, in core.DeleteLinkInput) (core.VersionedLink, error) {
	if s.deleteLinkFn == nil {
		return core.VersionedLink{}, fmt.Errorf("delete link not configured")
	}
	return s.deleteLinkFn(ctx, in)
}

func (s stubLinkService) LoginExternal(ctx context.Context, in core.LoginExternalInput) (core.LoginResult, error) {
	if s.loginExternalFn == nil {
		return core.LoginResult{}, fmt.Errorf("login not configured")
	}
	return s.loginExternalFn(ctx, in)
}

func (s stubLinkService) AuthenticateSession(ctx context.Context, provider core.Provider, server string, key string) (core.LoginResult, error) {
	if s.authenticateFn == nil {
		return core.LoginResult{}, fmt.Errorf("authenticate not configured")
	}
	return s.authenticateFn(ctx, provider, server, key)
}

func (s stubLinkService) RevokeSession(ctx context.Context, provider core.Provider, server string, key string) error {
	if s.revokeSessionFn == nil {
		return fmt.Errorf("revoke session not configured")
	}
	return s.revokeSessionFn(ctx, provider, server, key)
}

func (s stubLinkService) RefreshProfile(ctx context.Context, ref core.ExternalRef) (core.ArchivedProfile, error) {
	if s.refreshProfileFn == nil {
		return core.ArchivedProfile{}, fmt.Errorf("refresh profile not configured")
	}
	return s.refreshProfileFn(ctx, ref)
}

type stubOauthService struct {
	touchSystemClientFn   func(ctx context.Context, in core.TouchSystemClientInput) (core.OauthClient, error)
	createAuthorizationFn func(ctx context.Context, in core.CreateAuthorizationRequestInput) (core.AuthorizationRequest, error)
	exchangeCodeFn        func(ctx context.Context, in core.ExchangeCodeInput) (core.TokenGrant, error)
	revokeAccessTokenFn   func(ctx context.Context, key string) error
	revokeRefreshTokenFn  func(ctx context.Context, key string) error
}

func (s stubOauthService) TouchSystemClient(ctx context.Context, in core.TouchSystemClientInput) (core.OauthClient, error) {
	if s.touchSystemClientFn == nil {
		return core.OauthClient{}, fmt.Errorf("touch system client not configured")
	}
	return s.touchSystemClientFn(ctx, in)
}

func (s stubOauthService) CreateAuthorizationRequest(ctx context.Context, in core.CreateAuthorizationRequestInput) (core.AuthorizationRequest, error) {
	if s.createAuthorizationFn == nil {
		return core.AuthorizationRequest{}, fmt.Errorf("create authorization not configured")
	}
	return s.createAuthorizationFn(ctx, in)
}

func (s stubOauthService) ExchangeCodeForToken(ctx context.Context, in core.ExchangeCodeInput) (core.TokenGrant, error) {
	if s.exchangeCodeFn == nil {
		return core.TokenGrant{}, fmt.Errorf("exchange code not configured")
	}
	return s.exchangeCodeFn(ctx, in)
}

func (s stubOauthService) RevokeAccessToken(ctx context.Context, key string) error {
	if s.revokeAccessTokenFn == nil {
		return fmt.Errorf("revoke access token not configured")
	}
	return s.revokeAccessTokenFn(ctx, key)
}

func (s stubOauthService) RevokeRefreshToken(ctx context.Context, key string) error {
	if s.revokeRefreshTokenFn == nil {
		return fmt.Errorf("revoke refresh token not configured")
	}
	return s.revokeRefreshTokenFn(ctx, key)
}

var (
	_ LinkMutatingService  = stubLinkService{}
	_ OauthMutatingService = stubOauthService{}
)
