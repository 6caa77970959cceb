package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type sessionTable struct {
	byKey  map[string]*ExternalSession
	byUser map[string]string
}

func newSessionTable() *sessionTable {
	return &sessionTable{
		byKey:  map[string]*ExternalSession{},
		byUser: map[string]string{},
	}
}

// MemoryTokenStore is the in-process TokenStore. Sessions and twinoid
// credentials are kept mutually unique: one session per external user, one
// user per session key, one twinoid user per token key and vice versa.
type MemoryTokenStore struct {
	mu       sync.Mutex
	clock    ClockService
	sessions map[LinkSlot]*sessionTable

	accessTokens      map[string]*TwinoidAccessToken
	accessTokenByUser map[string]string

	refreshTokens      map[string]*TwinoidRefreshToken
	refreshTokenByUser map[string]string
}

func NewMemoryTokenStore(clock ClockService) *MemoryTokenStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MemoryTokenStore{
		clock:              clock,
		sessions:           map[LinkSlot]*sessionTable{},
		accessTokens:       map[string]*TwinoidAccessToken{},
		accessTokenByUser:  map[string]string{},
		refreshTokens:      map[string]*TwinoidRefreshToken{},
		refreshTokenByUser: map[string]string{},
	}
}

// TouchSession upserts the live session for an external user. Touching a key
// held by a different user revokes the stale record and starts a fresh one;
// touching a user holding a different key drops the old key first.
func (s *MemoryTokenStore) TouchSession(_ context.Context, user ExternalRef, key string) (ExternalSession, error) {
	if s == nil {
		return ExternalSession{}, fmt.Errorf("core: token store is not configured")
	}
	if err := user.Validate(); err != nil {
		return ExternalSession{}, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return ExternalSession{}, fmt.Errorf("core: session key is required")
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.sessionTableLocked(user.Slot())

	if existing, ok := table.byKey[key]; ok && existing.UserID != user.ID {
		delete(table.byUser, existing.UserID)
		delete(table.byKey, key)
	}
	if oldKey, ok := table.byUser[user.ID]; ok && oldKey != key {
		delete(table.byKey, oldKey)
		delete(table.byUser, user.ID)
	}

	session, ok := table.byKey[key]
	if !ok {
		session = &ExternalSession{
			Provider: user.Provider,
			Server:   user.Server,
			Key:      key,
			UserID:   user.ID,
			Ctime:    now,
		}
		table.byKey[key] = session
		table.byUser[user.ID] = key
	}
	session.Atime = now
	return *session, nil
}

// RevokeSession drops the session by key. Unknown keys are a no-op.
func (s *MemoryTokenStore) RevokeSession(_ context.Context, provider Provider, server string, key string) error {
	if s == nil {
		return fmt.Errorf("core: token store is not configured")
	}
	if _, err := ParseProvider(string(provider)); err != nil {
		return err
	}
	if !provider.HasServer(server) {
		return fmt.Errorf("%w: %q is not a %s server", ErrInvalidServer, server, provider)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("core: session key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.sessions[LinkSlot{Provider: provider, Server: server}]
	if table == nil {
		return nil
	}
	if existing, ok := table.byKey[key]; ok {
		delete(table.byUser, existing.UserID)
		delete(table.byKey, key)
	}
	return nil
}

func (s *MemoryTokenStore) GetSession(_ context.Context, user ExternalRef) (*ExternalSession, error) {
	if s == nil {
		return nil, fmt.Errorf("core: token store is not configured")
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.sessions[user.Slot()]
	if table == nil {
		return nil, nil
	}
	key, ok := table.byUser[user.ID]
	if !ok {
		return nil, nil
	}
	session := *table.byKey[key]
	return &session, nil
}

// TouchTwinoidOauth upserts the credential pair for one twinoid user,
// keeping the user-to-token association unique in both directions.
func (s *MemoryTokenStore) TouchTwinoidOauth(_ context.Context, in TouchTwinoidOauthInput) error {
	if s == nil {
		return fmt.Errorf("core: token store is not configured")
	}
	accessKey := strings.TrimSpace(in.AccessTokenKey)
	refreshKey := strings.TrimSpace(in.RefreshTokenKey)
	twinoidUserID := strings.TrimSpace(in.TwinoidUserID)
	if accessKey == "" || refreshKey == "" {
		return fmt.Errorf("core: twinoid token keys are required")
	}
	if twinoidUserID == "" {
		return fmt.Errorf("core: twinoid user id is required")
	}
	if in.ExpiresAt.IsZero() {
		return fmt.Errorf("core: twinoid access token expiry is required")
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.accessTokens[accessKey]; ok && existing.TwinoidUserID != twinoidUserID {
		delete(s.accessTokenByUser, existing.TwinoidUserID)
		delete(s.accessTokens, accessKey)
	}
	if oldKey, ok := s.accessTokenByUser[twinoidUserID]; ok && oldKey != accessKey {
		delete(s.accessTokens, oldKey)
	}
	access, ok := s.accessTokens[accessKey]
	if !ok {
		access = &TwinoidAccessToken{
			Key:           accessKey,
			TwinoidUserID: twinoidUserID,
			CreatedAt:     now,
		}
		s.accessTokens[accessKey] = access
		s.accessTokenByUser[twinoidUserID] = accessKey
	}
	access.AccessedAt = now
	access.ExpiresAt = in.ExpiresAt.UTC()

	if existing, ok := s.refreshTokens[refreshKey]; ok && existing.TwinoidUserID != twinoidUserID {
		delete(s.refreshTokenByUser, existing.TwinoidUserID)
		delete(s.refreshTokens, refreshKey)
	}
	if oldKey, ok := s.refreshTokenByUser[twinoidUserID]; ok && oldKey != refreshKey {
		delete(s.refreshTokens, oldKey)
	}
	refresh, ok := s.refreshTokens[refreshKey]
	if !ok {
		refresh = &TwinoidRefreshToken{
			Key:           refreshKey,
			TwinoidUserID: twinoidUserID,
			CreatedAt:     now,
		}
		s.refreshTokens[refreshKey] = refresh
		s.refreshTokenByUser[twinoidUserID] = refreshKey
	}
	refresh.AccessedAt = now
	return nil
}

func (s *MemoryTokenStore) RevokeTwinoidAccessToken(_ context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("core: token store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("core: twinoid access token key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.accessTokens[key]; ok {
		delete(s.accessTokenByUser, existing.TwinoidUserID)
		delete(s.accessTokens, key)
	}
	return nil
}

func (s *MemoryTokenStore) RevokeTwinoidRefreshToken(_ context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("core: token store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("core: twinoid refresh token key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.refreshTokens[key]; ok {
		delete(s.refreshTokenByUser, existing.TwinoidUserID)
		delete(s.refreshTokens, key)
	}
	return nil
}

// GetTwinoidOauth returns the live credential pair. An expired access token
// is reported as absent; the refresh token outlives it.
func (s *MemoryTokenStore) GetTwinoidOauth(_ context.Context, twinoidUserID string) (TwinoidOauth, error) {
	if s == nil {
		return TwinoidOauth{}, fmt.Errorf("core: token store is not configured")
	}
	twinoidUserID = strings.TrimSpace(twinoidUserID)
	if twinoidUserID == "" {
		return TwinoidOauth{}, fmt.Errorf("core: twinoid user id is required")
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := TwinoidOauth{}
	if key, ok := s.accessTokenByUser[twinoidUserID]; ok {
		token := *s.accessTokens[key]
		if now.Before(token.ExpiresAt) {
			out.AccessToken = &token
		}
	}
	if key, ok := s.refreshTokenByUser[twinoidUserID]; ok {
		token := *s.refreshTokens[key]
		out.RefreshToken = &token
	}
	return out, nil
}

func (s *MemoryTokenStore) sessionTableLocked(slot LinkSlot) *sessionTable {
	table := s.sessions[slot]
	if table == nil {
		table = newSessionTable()
		s.sessions[slot] = table
	}
	return table
}

var _ TokenStore = (*MemoryTokenStore)(nil)
