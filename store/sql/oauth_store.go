package sqlstore

import (
	"context"
	"fmt"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-federation/core"
)

// OauthProviderStore persists registered clients and issued tokens. Secret
// hashes never leave the store; verification runs through the injected
// hasher.
type OauthProviderStore struct {
	db          *bun.DB
	clients     repository.Repository[*oauthClientRecord]
	accessRepo  repository.Repository[*accessTokenRecord]
	refreshRepo repository.Repository[*refreshTokenRecord]
	clock       core.ClockService
	uuids       core.UuidGenerator
	hasher      core.SecretHasher
}

func (s *OauthProviderStore) TouchSystemClient(ctx context.Context, in core.TouchSystemClientInput) (core.OauthClient, error) {
	if s == nil || s.db == nil {
		return core.OauthClient{}, fmt.Errorf("sqlstore: oauth provider store is not configured")
	}
	ref, err := core.ParseClientRef(in.Key)
	if err != nil {
		return core.OauthClient{}, err
	}
	if ref.Key == "" {
		return core.OauthClient{}, fmt.Errorf("%w: system client requires a key, not an id", core.ErrInvalidLogin)
	}
	if len(in.Secret) == 0 {
		return core.OauthClient{}, fmt.Errorf("sqlstore: system client secret is required")
	}
	now := s.clock.Now()

	var out core.OauthClient
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var existing []oauthClientRecord
		if err := tx.NewSelect().Model(&existing).
			Where("client_key = ?", ref.Key).
			Limit(1).
			Scan(ctx); err != nil {
			return err
		}

		if len(existing) > 0 {
			record := existing[0]
			record.DisplayName = strings.TrimSpace(in.DisplayName)
			record.AppURI = strings.TrimSpace(in.AppURI)
			record.CallbackURI = strings.TrimSpace(in.CallbackURI)
			record.UpdatedAt = now
			columns := []string{"display_name", "app_uri", "callback_uri", "updated_at"}
			if !s.hasher.Verify(record.SecretHash, in.Secret) {
				hash, hashErr := s.hasher.Hash(in.Secret)
				if hashErr != nil {
					return fmt.Errorf("sqlstore: hash client secret: %w", hashErr)
				}
				record.SecretHash = hash
				columns = append(columns, "secret_hash")
			}
			if _, err := tx.NewUpdate().Model(&record).
				Column(columns...).
				Where("id = ?", record.ID).
				Exec(ctx); err != nil {
				return err
			}
			out = record.toDomain()
			return nil
		}

		hash, hashErr := s.hasher.Hash(in.Secret)
		if hashErr != nil {
			return fmt.Errorf("sqlstore: hash client secret: %w", hashErr)
		}
		record := &oauthClientRecord{
			ID:          s.uuids.Next().String(),
			ClientKey:   ref.Key,
			DisplayName: strings.TrimSpace(in.DisplayName),
			AppURI:      strings.TrimSpace(in.AppURI),
			CallbackURI: strings.TrimSpace(in.CallbackURI),
			SecretHash:  hash,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return err
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.OauthClient{}, err
	}
	return out, nil
}

func (s *OauthProviderStore) GetClient(ctx context.Context, ref core.ClientRef) (core.OauthClient, error) {
	if s == nil || s.db == nil {
		return core.OauthClient{}, fmt.Errorf("sqlstore: oauth provider store is not configured")
	}
	if err := ref.Validate(); err != nil {
		return core.OauthClient{}, err
	}
	record, err := s.clientRecord(ctx, ref)
	if err != nil {
		return core.OauthClient{}, err
	}
	if record == nil {
		return core.OauthClient{}, fmt.Errorf("%w: oauth client %s%s", core.ErrNotFound, ref.ID, ref.Key)
	}
	return record.toDomain(), nil
}

// ListClients returns every registered client, oldest first.
func (s *OauthProviderStore) ListClients(ctx context.Context) ([]core.OauthClient, error) {
	if s == nil || s.clients == nil {
		return nil, fmt.Errorf("sqlstore: oauth provider store is not configured")
	}
	records, _, err := s.clients.List(ctx, repository.OrderBy("created_at ASC"))
	if err != nil {
		return nil, err
	}
	out := make([]core.OauthClient, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *OauthProviderStore) VerifyClientSecret(ctx context.Context, clientID string, secret []byte) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: oauth provider store is not configured")
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return fmt.Errorf("sqlstore: client id is required")
	}
	record, err := s.clientRecord(ctx, core.ClientRef{ID: clientID})
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: oauth client %s", core.ErrNotFound, clientID)
	}
	if !s.hasher.Verify(record.SecretHash, secret) {
		return fmt.Errorf("%w: client secret mismatch", core.ErrInvalidCredentials)
	}
	return nil
}

func (s *OauthProviderStore) CreateAccessToken(ctx context.Context, in core.CreateAccessTokenInput) (core.AccessToken, error) {
	if s == nil || s.accessRepo == nil {
		return core.AccessToken{}, fmt.Errorf("sqlstore: oauth provider store is not configured")
	}
	key := strings.TrimSpace(in.Key)
	if key == "" {
		return core.AccessToken{}, fmt.Errorf("sqlstore: access token key is required")
	}
	if strings.TrimSpace(in.ClientID) == "" || strings.TrimSpace(in.UserID) == "" {
		return core.AccessToken{}, fmt.Errorf("sqlstore: access token client and user are required")
	}
	if in.ExpiresAt.IsZero() {
		return core.AccessToken{}, fmt.Errorf("sqlstore: access token expiry is required")
	}
	now := s.clock.Now()

	scopes := append([]string(nil), in.Scopes...)
	if scopes == nil {
		scopes = []string{}
	}
	record := &accessTokenRecord{
		ID:         s.uuids.Next().String(),
		TokenKey:   key,
		ClientID:   strings.TrimSpace(in.ClientID),
		UserID:     strings.TrimSpace(in.UserID),
		Scopes:     scopes,
		CreatedAt:  now,
		AccessedAt: now,
		ExpiresAt:  in.ExpiresAt.UTC(),
	}
	created, err := s.accessRepo.Create(ctx, record)
	if err != nil {
		return core.AccessToken{}, err
	}
	return created.toDomain(), nil
}

func (s *OauthProviderStore) GetAndTouchAccessToken(ctx context.Context, key string) (core.AccessToken, error) {
	if s == nil || s.db == nil {
		return core.AccessToken{}, fmt.Errorf("sqlstore: oauth provider store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return core.AccessToken{}, fmt.Errorf("sqlstore: access token key is required")
	}
	now := s.clock.Now()

	var out core.AccessToken
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var records []accessTokenRecord
		if err := tx.NewSelect().Model(&records).
			Where("token_key = ?", key).
			Limit(1).
			Scan(ctx); err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("%w: access token", core.ErrNotFound)
		}
		record := records[0]
		if !now.Before(record.ExpiresAt) {
			return fmt.Errorf("%w: access token", core.ErrExpired)
		}
		record.AccessedAt = now
		if _, err := tx.NewUpdate().Model(&record).
			Column("accessed_at").
			Where("id = ?", record.ID).
			Exec(ctx); err != nil {
			return err
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.AccessToken{}, err
	}
	return out, nil
}

func (s *OauthProviderStore) RevokeAccessToken(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: oauth provider store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: access token key is required")
	}
	_, err := s.db.NewDelete().Model((*accessTokenRecord)(nil)).
		Where("token_key = ?", key).
		Exec(ctx)
	return err
}

func (s *OauthProviderStore) CreateRefreshToken(ctx context.Context, in core.CreateRefreshTokenInput) (core.RefreshToken, error) {
	if s == nil || s.refreshRepo == nil {
		return core.RefreshToken{}, fmt.Errorf("sqlstore: oauth provider store is not configured")
	}
	key := strings.TrimSpace(in.Key)
	if key == "" {
		return core.RefreshToken{}, fmt.Errorf("sqlstore: refresh token key is required")
	}
	if strings.TrimSpace(in.ClientID) == "" || strings.TrimSpace(in.UserID) == "" {
		return core.RefreshToken{}, fmt.Errorf("sqlstore: refresh token client and user are required")
	}
	now := s.clock.Now()

	scopes := append([]string(nil), in.Scopes...)
	if scopes == nil {
		scopes = []string{}
	}
	record := &refreshTokenRecord{
		ID:         s.uuids.Next().String(),
		TokenKey:   key,
		ClientID:   strings.TrimSpace(in.ClientID),
		UserID:     strings.TrimSpace(in.UserID),
		Scopes:     scopes,
		CreatedAt:  now,
		AccessedAt: now,
	}
	created, err := s.refreshRepo.Create(ctx, record)
	if err != nil {
		return core.RefreshToken{}, err
	}
	return created.toDomain(), nil
}

func (s *OauthProviderStore) RevokeRefreshToken(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: oauth provider store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: refresh token key is required")
	}
	_, err := s.db.NewDelete().Model((*refreshTokenRecord)(nil)).
		Where("token_key = ?", key).
		Exec(ctx)
	return err
}

func (s *OauthProviderStore) clientRecord(ctx context.Context, ref core.ClientRef) (*oauthClientRecord, error) {
	var records []oauthClientRecord
	query := s.db.NewSelect().Model(&records).Limit(1)
	if ref.ID != "" {
		query = query.Where("id = ?", strings.TrimSpace(ref.ID))
	} else {
		query = query.Where("client_key = ?", strings.TrimSpace(ref.Key))
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}
