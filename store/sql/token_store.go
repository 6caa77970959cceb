package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-federation/core"
)

// TokenStore is the SQL session and twinoid-credential store. Touches are
// last-write-wins upserts; the unique indexes on key and user make the
// rotation semantics hold under concurrency.
type TokenStore struct {
	db    *bun.DB
	clock core.ClockService
	uuids core.UuidGenerator
}

func (s *TokenStore) TouchSession(ctx context.Context, user core.ExternalRef, key string) (core.ExternalSession, error) {
	if s == nil || s.db == nil {
		return core.ExternalSession{}, fmt.Errorf("sqlstore: token store is not configured")
	}
	if err := user.Validate(); err != nil {
		return core.ExternalSession{}, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return core.ExternalSession{}, fmt.Errorf("sqlstore: session key is required")
	}
	now := s.clock.Now()

	var out core.ExternalSession
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// Drop records the touch supersedes: the same key held by another
		// user, and any other key held by this user.
		if _, err := tx.NewDelete().Model((*sessionRecord)(nil)).
			Where("provider = ?", string(user.Provider)).
			Where("server = ?", user.Server).
			Where("session_key = ?", key).
			Where("user_id != ?", user.ID).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*sessionRecord)(nil)).
			Where("provider = ?", string(user.Provider)).
			Where("server = ?", user.Server).
			Where("user_id = ?", user.ID).
			Where("session_key != ?", key).
			Exec(ctx); err != nil {
			return err
		}

		var existing []sessionRecord
		if err := tx.NewSelect().Model(&existing).
			Where("provider = ?", string(user.Provider)).
			Where("server = ?", user.Server).
			Where("session_key = ?", key).
			Limit(1).
			Scan(ctx); err != nil {
			return err
		}

		if len(existing) > 0 {
			record := existing[0]
			record.Atime = now
			if _, err := tx.NewUpdate().Model(&record).
				Column("atime").
				Where("id = ?", record.ID).
				Exec(ctx); err != nil {
				return err
			}
			out = record.toDomain()
			return nil
		}

		record := &sessionRecord{
			ID:         s.uuids.Next().String(),
			Provider:   string(user.Provider),
			Server:     user.Server,
			SessionKey: key,
			UserID:     user.ID,
			Ctime:      now,
			Atime:      now,
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return err
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.ExternalSession{}, err
	}
	return out, nil
}

func (s *TokenStore) RevokeSession(ctx context.Context, provider core.Provider, server string, key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: token store is not configured")
	}
	if _, err := core.ParseProvider(string(provider)); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: session key is required")
	}
	_, err := s.db.NewDelete().Model((*sessionRecord)(nil)).
		Where("provider = ?", string(provider)).
		Where("server = ?", server).
		Where("session_key = ?", key).
		Exec(ctx)
	return err
}

func (s *TokenStore) GetSession(ctx context.Context, user core.ExternalRef) (*core.ExternalSession, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: token store is not configured")
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	var records []sessionRecord
	err := s.db.NewSelect().Model(&records).
		Where("provider = ?", string(user.Provider)).
		Where("server = ?", user.Server).
		Where("user_id = ?", user.ID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	session := records[0].toDomain()
	return &session, nil
}

func (s *TokenStore) TouchTwinoidOauth(ctx context.Context, in core.TouchTwinoidOauthInput) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: token store is not configured")
	}
	accessKey := strings.TrimSpace(in.AccessTokenKey)
	refreshKey := strings.TrimSpace(in.RefreshTokenKey)
	twinoidUserID := strings.TrimSpace(in.TwinoidUserID)
	if accessKey == "" || refreshKey == "" {
		return fmt.Errorf("sqlstore: twinoid token keys are required")
	}
	if twinoidUserID == "" {
		return fmt.Errorf("sqlstore: twinoid user id is required")
	}
	if in.ExpiresAt.IsZero() {
		return fmt.Errorf("sqlstore: twinoid access token expiry is required")
	}
	now := s.clock.Now()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*twinoidAccessTokenRecord)(nil)).
			Where("token_key = ?", accessKey).
			Where("twinoid_user_id != ?", twinoidUserID).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*twinoidAccessTokenRecord)(nil)).
			Where("twinoid_user_id = ?", twinoidUserID).
			Where("token_key != ?", accessKey).
			Exec(ctx); err != nil {
			return err
		}

		var access []twinoidAccessTokenRecord
		if err := tx.NewSelect().Model(&access).
			Where("token_key = ?", accessKey).
			Limit(1).
			Scan(ctx); err != nil {
			return err
		}
		if len(access) > 0 {
			record := access[0]
			record.AccessedAt = now
			record.ExpiresAt = in.ExpiresAt.UTC()
			if _, err := tx.NewUpdate().Model(&record).
				Column("accessed_at", "expires_at").
				Where("id = ?", record.ID).
				Exec(ctx); err != nil {
				return err
			}
		} else {
			record := &twinoidAccessTokenRecord{
				ID:            s.uuids.Next().String(),
				TokenKey:      accessKey,
				TwinoidUserID: twinoidUserID,
				CreatedAt:     now,
				AccessedAt:    now,
				ExpiresAt:     in.ExpiresAt.UTC(),
			}
			if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
				return err
			}
		}

		if _, err := tx.NewDelete().Model((*twinoidRefreshTokenRecord)(nil)).
			Where("token_key = ?", refreshKey).
			Where("twinoid_user_id != ?", twinoidUserID).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*twinoidRefreshTokenRecord)(nil)).
			Where("twinoid_user_id = ?", twinoidUserID).
			Where("token_key != ?", refreshKey).
			Exec(ctx); err != nil {
			return err
		}

		var refresh []twinoidRefreshTokenRecord
		if err := tx.NewSelect().Model(&refresh).
			Where("token_key = ?", refreshKey).
			Limit(1).
			Scan(ctx); err != nil {
			return err
		}
		if len(refresh) > 0 {
			record := refresh[0]
			record.AccessedAt = now
			_, err := tx.NewUpdate().Model(&record).
				Column("accessed_at").
				Where("id = ?", record.ID).
				Exec(ctx)
			return err
		}
		record := &twinoidRefreshTokenRecord{
			ID:            s.uuids.Next().String(),
			TokenKey:      refreshKey,
			TwinoidUserID: twinoidUserID,
			CreatedAt:     now,
			AccessedAt:    now,
		}
		_, err := tx.NewInsert().Model(record).Exec(ctx)
		return err
	})
}

func (s *TokenStore) RevokeTwinoidAccessToken(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: token store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: twinoid access token key is required")
	}
	_, err := s.db.NewDelete().Model((*twinoidAccessTokenRecord)(nil)).
		Where("token_key = ?", key).
		Exec(ctx)
	return err
}

func (s *TokenStore) RevokeTwinoidRefreshToken(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: token store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: twinoid refresh token key is required")
	}
	_, err := s.db.NewDelete().Model((*twinoidRefreshTokenRecord)(nil)).
		Where("token_key = ?", key).
		Exec(ctx)
	return err
}

func (s *TokenStore) GetTwinoidOauth(ctx context.Context, twinoidUserID string) (core.TwinoidOauth, error) {
	if s == nil || s.db == nil {
		return core.TwinoidOauth{}, fmt.Errorf("sqlstore: token store is not configured")
	}
	twinoidUserID = strings.TrimSpace(twinoidUserID)
	if twinoidUserID == "" {
		return core.TwinoidOauth{}, fmt.Errorf("sqlstore: twinoid user id is required")
	}
	now := s.clock.Now()

	out := core.TwinoidOauth{}
	var access []twinoidAccessTokenRecord
	if err := s.db.NewSelect().Model(&access).
		Where("twinoid_user_id = ?", twinoidUserID).
		Limit(1).
		Scan(ctx); err != nil {
		return core.TwinoidOauth{}, err
	}
	if len(access) > 0 && now.Before(access[0].ExpiresAt) {
		out.AccessToken = &core.TwinoidAccessToken{
			Key:           access[0].TokenKey,
			TwinoidUserID: access[0].TwinoidUserID,
			CreatedAt:     access[0].CreatedAt,
			AccessedAt:    access[0].AccessedAt,
			ExpiresAt:     access[0].ExpiresAt,
		}
	}

	var refresh []twinoidRefreshTokenRecord
	if err := s.db.NewSelect().Model(&refresh).
		Where("twinoid_user_id = ?", twinoidUserID).
		Limit(1).
		Scan(ctx); err != nil {
		return core.TwinoidOauth{}, err
	}
	if len(refresh) > 0 {
		out.RefreshToken = &core.TwinoidRefreshToken{
			Key:           refresh[0].TokenKey,
			TwinoidUserID: refresh[0].TwinoidUserID,
			CreatedAt:     refresh[0].CreatedAt,
			AccessedAt:    refresh[0].AccessedAt,
		}
	}
	return out, nil
}
