package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const TokenTypeBearer = "Bearer"

const DefaultAccessTokenTTL = 30 * 24 * time.Hour

type CreateAuthorizationRequestInput struct {
	UserID      string
	ClientRef   string
	Scopes      string
	RedirectURI string
	State       string
}

// AuthorizationRequest is an issued grant code plus the redirect the
// transport layer should send the user agent to.
type AuthorizationRequest struct {
	Code        string
	Client      OauthClient
	Scopes      []string
	RedirectURI string
	State       string
}

// RedirectLocation encodes the code and state into the redirect query.
func (r AuthorizationRequest) RedirectLocation() (string, error) {
	target, err := url.Parse(r.RedirectURI)
	if err != nil {
		return "", fmt.Errorf("core: parse redirect uri: %w", err)
	}
	query := target.Query()
	query.Set("code", r.Code)
	if r.State != "" {
		query.Set("state", r.State)
	}
	target.RawQuery = query.Encode()
	return target.String(), nil
}

type ExchangeCodeInput struct {
	Code         string
	ClientRef    string
	ClientSecret []byte
	RedirectURI  string
}

// TokenGrant is the result of a successful code exchange, shaped for the
// RFC 6749 token response.
type TokenGrant struct {
	AccessToken  AccessToken
	RefreshToken *RefreshToken
	TokenType    string
	ExpiresIn    int64
}

// OauthProviderService orchestrates the authorization-code flow: scope
// validation, grant code issuance, and the single-use exchange for persisted
// tokens. It holds no mutable state of its own; the store and the replay
// ledger are the concurrency boundary.
type OauthProviderService struct {
	store          OauthProviderStore
	signer         *GrantCodeSigner
	replays        ReplayLedger
	scopes         *ScopeRegistry
	clock          ClockService
	uuids          UuidGenerator
	accessTokenTTL time.Duration
	logger         Logger
}

type OauthProviderServiceDeps struct {
	Store          OauthProviderStore
	Signer         *GrantCodeSigner
	Replays        ReplayLedger
	Scopes         *ScopeRegistry
	Clock          ClockService
	Uuids          UuidGenerator
	AccessTokenTTL time.Duration
	Logger         Logger
}

func NewOauthProviderService(deps OauthProviderServiceDeps) (*OauthProviderService, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("core: oauth provider store is required")
	}
	if deps.Signer == nil {
		return nil, fmt.Errorf("core: grant code signer is required")
	}
	if deps.Replays == nil {
		return nil, fmt.Errorf("core: replay ledger is required")
	}
	if deps.Scopes == nil {
		deps.Scopes = NewScopeRegistry()
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Uuids == nil {
		deps.Uuids = RandomUuidGenerator{}
	}
	if deps.AccessTokenTTL <= 0 {
		deps.AccessTokenTTL = DefaultAccessTokenTTL
	}
	return &OauthProviderService{
		store:          deps.Store,
		signer:         deps.Signer,
		replays:        deps.Replays,
		scopes:         deps.Scopes,
		clock:          deps.Clock,
		uuids:          deps.Uuids,
		accessTokenTTL: deps.AccessTokenTTL,
		logger:         ensureLogger(deps.Logger, "oauth-provider"),
	}, nil
}

// TouchSystemClient provisions or refreshes a config-declared client.
func (s *OauthProviderService) TouchSystemClient(ctx context.Context, in TouchSystemClientInput) (OauthClient, error) {
	if s == nil {
		return OauthClient{}, fmt.Errorf("core: oauth provider service is not configured")
	}
	client, err := s.store.TouchSystemClient(ctx, in)
	if err != nil {
		return OauthClient{}, err
	}
	s.logger.Debug("touched system client", "client_key", client.Key, "client_id", client.ID)
	return client, nil
}

// GetClient resolves a raw client reference, uuid or key form.
func (s *OauthProviderService) GetClient(ctx context.Context, rawRef string) (OauthClient, error) {
	if s == nil {
		return OauthClient{}, fmt.Errorf("core: oauth provider service is not configured")
	}
	ref, err := ParseClientRef(rawRef)
	if err != nil {
		return OauthClient{}, err
	}
	return s.store.GetClient(ctx, ref)
}

// CreateAuthorizationRequest validates the request and issues a signed grant
// code. A provided redirect URI must equal the client's registered callback,
// compared exactly.
func (s *OauthProviderService) CreateAuthorizationRequest(ctx context.Context, in CreateAuthorizationRequestInput) (AuthorizationRequest, error) {
	if s == nil {
		return AuthorizationRequest{}, fmt.Errorf("core: oauth provider service is not configured")
	}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return AuthorizationRequest{}, fmt.Errorf("%w: authorization requires an authenticated user", ErrInvalidCredentials)
	}

	client, err := s.GetClient(ctx, in.ClientRef)
	if err != nil {
		return AuthorizationRequest{}, err
	}

	redirectURI := strings.TrimSpace(in.RedirectURI)
	if redirectURI == "" {
		redirectURI = client.CallbackURI
	} else if redirectURI != client.CallbackURI {
		return AuthorizationRequest{}, fmt.Errorf(
			"%w: redirect uri does not match the registered callback", ErrInvalidCredentials,
		)
	}

	scopes, err := s.scopes.Parse(in.Scopes)
	if err != nil {
		return AuthorizationRequest{}, err
	}

	code, err := s.signer.Issue(userID, client, scopes)
	if err != nil {
		return AuthorizationRequest{}, err
	}
	s.logger.Debug("issued grant code",
		"client_id", client.ID,
		"user_id", userID,
		"scopes", strings.Join(scopes.Slice(), " "),
	)
	return AuthorizationRequest{
		Code:        code,
		Client:      client,
		Scopes:      scopes.Slice(),
		RedirectURI: redirectURI,
		State:       strings.TrimSpace(in.State),
	}, nil
}

// ExchangeCodeForToken performs the single-use exchange. The replay claim is
// released if token creation fails afterwards, so a failed exchange leaves
// both the ledger and the store as before the call.
func (s *OauthProviderService) ExchangeCodeForToken(ctx context.Context, in ExchangeCodeInput) (TokenGrant, error) {
	if s == nil {
		return TokenGrant{}, fmt.Errorf("core: oauth provider service is not configured")
	}

	client, err := s.GetClient(ctx, in.ClientRef)
	if err != nil {
		return TokenGrant{}, err
	}
	if err := s.store.VerifyClientSecret(ctx, client.ID, in.ClientSecret); err != nil {
		return TokenGrant{}, err
	}

	code, err := s.signer.Verify(in.Code)
	if err != nil {
		return TokenGrant{}, err
	}
	if !code.ForClient(client) {
		return TokenGrant{}, fmt.Errorf("%w: grant code was not issued to this client", ErrInvalidCredentials)
	}
	if redirectURI := strings.TrimSpace(in.RedirectURI); redirectURI != "" && redirectURI != client.CallbackURI {
		return TokenGrant{}, fmt.Errorf(
			"%w: redirect uri does not match the registered callback", ErrInvalidCredentials,
		)
	}

	now := s.clock.Now()
	replayKey := GrantCodeReplayKey(in.Code)
	replayTTL := code.ExpiresAt.Sub(now)
	if replayTTL <= 0 {
		replayTTL = s.signer.TTL()
	}
	fresh, err := s.replays.Claim(ctx, replayKey, replayTTL)
	if err != nil {
		return TokenGrant{}, fmt.Errorf("core: claim grant code: %w", err)
	}
	if !fresh {
		return TokenGrant{}, fmt.Errorf("%w: grant code was already exchanged", ErrReplayed)
	}

	scopes := ScopeSetFromSlice(code.Scopes)
	access, err := s.store.CreateAccessToken(ctx, CreateAccessTokenInput{
		Key:       s.uuids.Next().String(),
		ClientID:  client.ID,
		UserID:    code.UserID,
		Scopes:    scopes.Slice(),
		ExpiresAt: now.Add(s.accessTokenTTL),
	})
	if err != nil {
		s.releaseReplay(ctx, replayKey)
		return TokenGrant{}, err
	}

	grant := TokenGrant{
		AccessToken: access,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(access.ExpiresAt.Sub(now) / time.Second),
	}
	if scopes.Offline() {
		refresh, err := s.store.CreateRefreshToken(ctx, CreateRefreshTokenInput{
			Key:      s.uuids.Next().String(),
			ClientID: client.ID,
			UserID:   code.UserID,
			Scopes:   scopes.Slice(),
		})
		if err != nil {
			if revokeErr := s.store.RevokeAccessToken(ctx, access.Key); revokeErr != nil {
				s.logger.Error("revoke access token after failed refresh token", "error", revokeErr)
			}
			s.releaseReplay(ctx, replayKey)
			return TokenGrant{}, err
		}
		grant.RefreshToken = &refresh
	}

	s.logger.Info("exchanged grant code",
		"client_id", client.ID,
		"user_id", code.UserID,
		"offline", scopes.Offline(),
	)
	return grant, nil
}

// GetAndTouchAccessToken resolves a bearer token and records the access.
func (s *OauthProviderService) GetAndTouchAccessToken(ctx context.Context, key string) (AccessToken, error) {
	if s == nil {
		return AccessToken{}, fmt.Errorf("core: oauth provider service is not configured")
	}
	return s.store.GetAndTouchAccessToken(ctx, key)
}

// RevokeAccessToken and RevokeRefreshToken are explicit, independent
// revocations.
func (s *OauthProviderService) RevokeAccessToken(ctx context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("core: oauth provider service is not configured")
	}
	return s.store.RevokeAccessToken(ctx, key)
}

func (s *OauthProviderService) RevokeRefreshToken(ctx context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("core: oauth provider service is not configured")
	}
	return s.store.RevokeRefreshToken(ctx, key)
}

func (s *OauthProviderService) releaseReplay(ctx context.Context, key string) {
	if err := s.replays.Release(ctx, key); err != nil {
		s.logger.Error("release replay claim", "error", err)
	}
}
