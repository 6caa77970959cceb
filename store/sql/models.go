package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-federation/core"
)

// linkRecord is the current-state row: one per actively linked external
// account, unique on (provider, server, external_id) and on
// (provider, server, user_id).
type linkRecord struct {
	bun.BaseModel `bun:"table:federation_links,alias:fl"`

	ID               string    `bun:"id,pk"`
	Provider         string    `bun:"provider,notnull"`
	Server           string    `bun:"server,notnull"`
	ExternalID       string    `bun:"external_id,notnull"`
	ExternalUsername string    `bun:"external_username"`
	UserID           string    `bun:"user_id,notnull"`
	LinkedBy         string    `bun:"linked_by,notnull"`
	LinkedAt         time.Time `bun:"linked_at,notnull"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// linkHistoryRecord is append-only: every closed link lands here with its
// full link/unlink pair.
type linkHistoryRecord struct {
	bun.BaseModel `bun:"table:federation_link_history,alias:flh"`

	ID               string    `bun:"id,pk"`
	Provider         string    `bun:"provider,notnull"`
	Server           string    `bun:"server,notnull"`
	ExternalID       string    `bun:"external_id,notnull"`
	ExternalUsername string    `bun:"external_username"`
	UserID           string    `bun:"user_id,notnull"`
	LinkedBy         string    `bun:"linked_by,notnull"`
	LinkedAt         time.Time `bun:"linked_at,notnull"`
	UnlinkedBy       string    `bun:"unlinked_by,notnull"`
	UnlinkedAt       time.Time `bun:"unlinked_at,notnull"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type sessionRecord struct {
	bun.BaseModel `bun:"table:federation_sessions,alias:fs"`

	ID         string    `bun:"id,pk"`
	Provider   string    `bun:"provider,notnull"`
	Server     string    `bun:"server,notnull"`
	SessionKey string    `bun:"session_key,notnull"`
	UserID     string    `bun:"user_id,notnull"`
	Ctime      time.Time `bun:"ctime,notnull"`
	Atime      time.Time `bun:"atime,notnull"`
}

type twinoidAccessTokenRecord struct {
	bun.BaseModel `bun:"table:federation_twinoid_access_tokens,alias:ftat"`

	ID            string    `bun:"id,pk"`
	TokenKey      string    `bun:"token_key,notnull"`
	TwinoidUserID string    `bun:"twinoid_user_id,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	AccessedAt    time.Time `bun:"accessed_at,notnull"`
	ExpiresAt     time.Time `bun:"expires_at,notnull"`
}

type twinoidRefreshTokenRecord struct {
	bun.BaseModel `bun:"table:federation_twinoid_refresh_tokens,alias:ftrt"`

	ID            string    `bun:"id,pk"`
	TokenKey      string    `bun:"token_key,notnull"`
	TwinoidUserID string    `bun:"twinoid_user_id,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	AccessedAt    time.Time `bun:"accessed_at,notnull"`
}

type oauthClientRecord struct {
	bun.BaseModel `bun:"table:federation_oauth_clients,alias:foc"`

	ID          string    `bun:"id,pk"`
	ClientKey   string    `bun:"client_key"`
	DisplayName string    `bun:"display_name,notnull"`
	AppURI      string    `bun:"app_uri,notnull"`
	CallbackURI string    `bun:"callback_uri,notnull"`
	OwnerID     string    `bun:"owner_id"`
	SecretHash  []byte    `bun:"secret_hash,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type accessTokenRecord struct {
	bun.BaseModel `bun:"table:federation_access_tokens,alias:fat"`

	ID         string    `bun:"id,pk"`
	TokenKey   string    `bun:"token_key,notnull"`
	ClientID   string    `bun:"client_id,notnull"`
	UserID     string    `bun:"user_id,notnull"`
	Scopes     []string  `bun:"scopes,type:jsonb,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	AccessedAt time.Time `bun:"accessed_at,notnull"`
	ExpiresAt  time.Time `bun:"expires_at,notnull"`
}

type refreshTokenRecord struct {
	bun.BaseModel `bun:"table:federation_refresh_tokens,alias:frt"`

	ID         string    `bun:"id,pk"`
	TokenKey   string    `bun:"token_key,notnull"`
	ClientID   string    `bun:"client_id,notnull"`
	UserID     string    `bun:"user_id,notnull"`
	Scopes     []string  `bun:"scopes,type:jsonb,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	AccessedAt time.Time `bun:"accessed_at,notnull"`
}

// usedCodeRecord backs the replay ledger: one row per claimed grant code
// key, pruned once expired.
type usedCodeRecord struct {
	bun.BaseModel `bun:"table:federation_used_codes,alias:fuc"`

	ID        string    `bun:"id,pk"`
	CodeKey   string    `bun:"code_key,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type profileRecord struct {
	bun.BaseModel `bun:"table:federation_external_profiles,alias:fep"`

	ID                  string     `bun:"id,pk"`
	Provider            string     `bun:"provider,notnull"`
	Server              string     `bun:"server,notnull"`
	ExternalID          string     `bun:"external_id,notnull"`
	FirstSeen           time.Time  `bun:"first_seen,notnull"`
	Username            *string    `bun:"username"`
	UsernamePeriodStart *time.Time `bun:"username_period_start,nullzero"`
	UsernameRetrievedAt *time.Time `bun:"username_retrieved_at,nullzero"`
	CreatedAt           time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt           time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type profileAttributeRecord struct {
	bun.BaseModel `bun:"table:federation_profile_attributes,alias:fpa"`

	ID          string    `bun:"id,pk"`
	ProfileID   string    `bun:"profile_id,notnull"`
	Name        string    `bun:"name,notnull"`
	Value       int64     `bun:"value,notnull"`
	PeriodStart time.Time `bun:"period_start,notnull"`
	RetrievedAt time.Time `bun:"retrieved_at,notnull"`
}

func (r *linkRecord) toDomainLink() core.Link {
	return core.Link{
		Link:   core.UserDot{Time: r.LinkedAt, User: r.LinkedBy},
		UserID: r.UserID,
		Remote: core.ExternalRef{
			Provider: core.Provider(r.Provider),
			Server:   r.Server,
			ID:       r.ExternalID,
			Username: r.ExternalUsername,
		},
	}
}

func (r *linkHistoryRecord) toDomainLink() core.Link {
	unlink := core.UserDot{Time: r.UnlinkedAt, User: r.UnlinkedBy}
	return core.Link{
		Link:   core.UserDot{Time: r.LinkedAt, User: r.LinkedBy},
		Unlink: &unlink,
		UserID: r.UserID,
		Remote: core.ExternalRef{
			Provider: core.Provider(r.Provider),
			Server:   r.Server,
			ID:       r.ExternalID,
			Username: r.ExternalUsername,
		},
	}
}

func (r *sessionRecord) toDomain() core.ExternalSession {
	return core.ExternalSession{
		Provider: core.Provider(r.Provider),
		Server:   r.Server,
		Key:      r.SessionKey,
		UserID:   r.UserID,
		Ctime:    r.Ctime,
		Atime:    r.Atime,
	}
}

func (r *oauthClientRecord) toDomain() core.OauthClient {
	return core.OauthClient{
		ID:          r.ID,
		Key:         r.ClientKey,
		DisplayName: r.DisplayName,
		AppURI:      r.AppURI,
		CallbackURI: r.CallbackURI,
		OwnerID:     r.OwnerID,
		CreatedAt:   r.CreatedAt,
	}
}

func (r *accessTokenRecord) toDomain() core.AccessToken {
	return core.AccessToken{
		Key:        r.TokenKey,
		ClientID:   r.ClientID,
		UserID:     r.UserID,
		Scopes:     append([]string(nil), r.Scopes...),
		CreatedAt:  r.CreatedAt,
		AccessedAt: r.AccessedAt,
		ExpiresAt:  r.ExpiresAt,
	}
}

func (r *refreshTokenRecord) toDomain() core.RefreshToken {
	return core.RefreshToken{
		Key:        r.TokenKey,
		ClientID:   r.ClientID,
		UserID:     r.UserID,
		Scopes:     append([]string(nil), r.Scopes...),
		CreatedAt:  r.CreatedAt,
		AccessedAt: r.AccessedAt,
	}
}
