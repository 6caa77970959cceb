package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type oauthClientRecord struct {
	client     OauthClient
	secretHash []byte
}

// MemoryOauthProviderStore is the in-process OauthProviderStore. Client
// secrets are held only as hashes; verification goes through the injected
// SecretHasher.
type MemoryOauthProviderStore struct {
	mu     sync.Mutex
	clock  ClockService
	uuids  UuidGenerator
	hasher SecretHasher

	clients     map[string]*oauthClientRecord
	clientByKey map[string]string

	accessTokens  map[string]*AccessToken
	refreshTokens map[string]*RefreshToken
}

func NewMemoryOauthProviderStore(clock ClockService, uuids UuidGenerator, hasher SecretHasher) (*MemoryOauthProviderStore, error) {
	if hasher == nil {
		return nil, fmt.Errorf("core: secret hasher is required")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if uuids == nil {
		uuids = RandomUuidGenerator{}
	}
	return &MemoryOauthProviderStore{
		clock:         clock,
		uuids:         uuids,
		hasher:        hasher,
		clients:       map[string]*oauthClientRecord{},
		clientByKey:   map[string]string{},
		accessTokens:  map[string]*AccessToken{},
		refreshTokens: map[string]*RefreshToken{},
	}, nil
}

// TouchSystemClient upserts the config-declared client identified by its
// stable key. Metadata follows the input; the secret is re-hashed only when
// the provided secret no longer verifies against the stored hash. Identity
// (id, key, created time) is preserved across touches.
func (s *MemoryOauthProviderStore) TouchSystemClient(_ context.Context, in TouchSystemClientInput) (OauthClient, error) {
	if s == nil {
		return OauthClient{}, fmt.Errorf("core: oauth provider store is not configured")
	}
	ref, err := ParseClientRef(in.Key)
	if err != nil {
		return OauthClient{}, err
	}
	if ref.Key == "" {
		return OauthClient{}, fmt.Errorf("%w: system client requires a key, not an id", ErrInvalidLogin)
	}
	if len(in.Secret) == 0 {
		return OauthClient{}, fmt.Errorf("core: system client secret is required")
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.clientByKey[ref.Key]; ok {
		record := s.clients[id]
		record.client.DisplayName = strings.TrimSpace(in.DisplayName)
		record.client.AppURI = strings.TrimSpace(in.AppURI)
		record.client.CallbackURI = strings.TrimSpace(in.CallbackURI)
		if !s.hasher.Verify(record.secretHash, in.Secret) {
			hash, err := s.hasher.Hash(in.Secret)
			if err != nil {
				return OauthClient{}, fmt.Errorf("core: hash client secret: %w", err)
			}
			record.secretHash = hash
		}
		return record.client, nil
	}

	hash, err := s.hasher.Hash(in.Secret)
	if err != nil {
		return OauthClient{}, fmt.Errorf("core: hash client secret: %w", err)
	}
	record := &oauthClientRecord{
		client: OauthClient{
			ID:          s.uuids.Next().String(),
			Key:         ref.Key,
			DisplayName: strings.TrimSpace(in.DisplayName),
			AppURI:      strings.TrimSpace(in.AppURI),
			CallbackURI: strings.TrimSpace(in.CallbackURI),
			CreatedAt:   now,
		},
		secretHash: hash,
	}
	s.clients[record.client.ID] = record
	s.clientByKey[record.client.Key] = record.client.ID
	return record.client, nil
}

func (s *MemoryOauthProviderStore) GetClient(_ context.Context, ref ClientRef) (OauthClient, error) {
	if s == nil {
		return OauthClient{}, fmt.Errorf("core: oauth provider store is not configured")
	}
	if err := ref.Validate(); err != nil {
		return OauthClient{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.lookupLocked(ref)
	if record == nil {
		return OauthClient{}, fmt.Errorf("%w: oauth client %s%s", ErrNotFound, ref.ID, ref.Key)
	}
	return record.client, nil
}

// VerifyClientSecret compares a candidate secret against the stored hash.
// Mismatch and unknown client both come back as errors so callers never
// branch on a bare bool.
func (s *MemoryOauthProviderStore) VerifyClientSecret(_ context.Context, clientID string, secret []byte) error {
	if s == nil {
		return fmt.Errorf("core: oauth provider store is not configured")
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return fmt.Errorf("core: client id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.clients[clientID]
	if record == nil {
		return fmt.Errorf("%w: oauth client %s", ErrNotFound, clientID)
	}
	if !s.hasher.Verify(record.secretHash, secret) {
		return fmt.Errorf("%w: client secret mismatch", ErrInvalidCredentials)
	}
	return nil
}

func (s *MemoryOauthProviderStore) CreateAccessToken(_ context.Context, in CreateAccessTokenInput) (AccessToken, error) {
	if s == nil {
		return AccessToken{}, fmt.Errorf("core: oauth provider store is not configured")
	}
	key := strings.TrimSpace(in.Key)
	if key == "" {
		return AccessToken{}, fmt.Errorf("core: access token key is required")
	}
	if strings.TrimSpace(in.ClientID) == "" || strings.TrimSpace(in.UserID) == "" {
		return AccessToken{}, fmt.Errorf("core: access token client and user are required")
	}
	if in.ExpiresAt.IsZero() {
		return AccessToken{}, fmt.Errorf("core: access token expiry is required")
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accessTokens[key]; ok {
		return AccessToken{}, fmt.Errorf("%w: access token key already exists", ErrConflict)
	}
	token := &AccessToken{
		Key:        key,
		ClientID:   strings.TrimSpace(in.ClientID),
		UserID:     strings.TrimSpace(in.UserID),
		Scopes:     append([]string(nil), in.Scopes...),
		CreatedAt:  now,
		AccessedAt: now,
		ExpiresAt:  in.ExpiresAt.UTC(),
	}
	s.accessTokens[key] = token
	return cloneAccessToken(token), nil
}

// GetAndTouchAccessToken resolves a bearer token and stamps its access time.
// Expired tokens fail with ErrExpired, distinct from unknown keys.
func (s *MemoryOauthProviderStore) GetAndTouchAccessToken(_ context.Context, key string) (AccessToken, error) {
	if s == nil {
		return AccessToken{}, fmt.Errorf("core: oauth provider store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return AccessToken{}, fmt.Errorf("core: access token key is required")
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	token := s.accessTokens[key]
	if token == nil {
		return AccessToken{}, fmt.Errorf("%w: access token", ErrNotFound)
	}
	if token.ExpiredAt(now) {
		return AccessToken{}, fmt.Errorf("%w: access token", ErrExpired)
	}
	token.AccessedAt = now
	return cloneAccessToken(token), nil
}

func (s *MemoryOauthProviderStore) RevokeAccessToken(_ context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("core: oauth provider store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("core: access token key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accessTokens, key)
	return nil
}

func (s *MemoryOauthProviderStore) CreateRefreshToken(_ context.Context, in CreateRefreshTokenInput) (RefreshToken, error) {
	if s == nil {
		return RefreshToken{}, fmt.Errorf("core: oauth provider store is not configured")
	}
	key := strings.TrimSpace(in.Key)
	if key == "" {
		return RefreshToken{}, fmt.Errorf("core: refresh token key is required")
	}
	if strings.TrimSpace(in.ClientID) == "" || strings.TrimSpace(in.UserID) == "" {
		return RefreshToken{}, fmt.Errorf("core: refresh token client and user are required")
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refreshTokens[key]; ok {
		return RefreshToken{}, fmt.Errorf("%w: refresh token key already exists", ErrConflict)
	}
	token := &RefreshToken{
		Key:        key,
		ClientID:   strings.TrimSpace(in.ClientID),
		UserID:     strings.TrimSpace(in.UserID),
		Scopes:     append([]string(nil), in.Scopes...),
		CreatedAt:  now,
		AccessedAt: now,
	}
	s.refreshTokens[key] = token
	out := *token
	out.Scopes = append([]string(nil), token.Scopes...)
	return out, nil
}

func (s *MemoryOauthProviderStore) RevokeRefreshToken(_ context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("core: oauth provider store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("core: refresh token key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refreshTokens, key)
	return nil
}

func (s *MemoryOauthProviderStore) lookupLocked(ref ClientRef) *oauthClientRecord {
	if ref.ID != "" {
		return s.clients[strings.TrimSpace(ref.ID)]
	}
	if id, ok := s.clientByKey[strings.TrimSpace(ref.Key)]; ok {
		return s.clients[id]
	}
	return nil
}

func cloneAccessToken(token *AccessToken) AccessToken {
	out := *token
	out.Scopes = append([]string(nil), token.Scopes...)
	return out
}

var _ OauthProviderStore = (*MemoryOauthProviderStore)(nil)
