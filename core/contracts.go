package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

// ensureLogger resolves a usable logger, falling back to a named nop logger
// when none is injected.
func ensureLogger(logger Logger, name string) Logger {
	if logger != nil {
		return glog.Ensure(logger)
	}
	_, resolved := glog.Resolve(name, nil, nil)
	return glog.Ensure(resolved)
}

// UuidGenerator is injected wherever fresh identifiers are minted so stores
// stay deterministic under test.
type UuidGenerator interface {
	Next() uuid.UUID
}

type RandomUuidGenerator struct{}

func (RandomUuidGenerator) Next() uuid.UUID {
	return uuid.New()
}

// SecretHasher hashes OAuth client secrets and verifies candidates against a
// stored hash. Verify must compare in constant time.
type SecretHasher interface {
	Hash(secret []byte) ([]byte, error)
	Verify(hash []byte, secret []byte) bool
}

type TouchLinkInput struct {
	Remote  ExternalRef
	UserID  string
	ActorID string
}

type DeleteLinkInput struct {
	Remote  ExternalRef
	ActorID string
}

// LinkStore is the identity graph. TouchLink and DeleteLink run as atomic
// read-modify-write transactions; the store is the sole concurrency boundary.
type LinkStore interface {
	GetLinkFromExternal(ctx context.Context, ref ExternalRef) (VersionedLink, error)
	GetLinksFromUser(ctx context.Context, userID string) (UserLinks, error)
	TouchLink(ctx context.Context, in TouchLinkInput) (VersionedLink, error)
	DeleteLink(ctx context.Context, in DeleteLinkInput) (VersionedLink, error)
}

type TouchTwinoidOauthInput struct {
	AccessTokenKey  string
	RefreshTokenKey string
	TwinoidUserID   string
	ExpiresAt       time.Time
}

// TokenStore tracks ephemeral external sessions and the twinoid credential
// pair. Touches are last-write-wins upserts; a session is itself a cache of
// external truth.
type TokenStore interface {
	TouchSession(ctx context.Context, user ExternalRef, key string) (ExternalSession, error)
	RevokeSession(ctx context.Context, provider Provider, server string, key string) error
	GetSession(ctx context.Context, user ExternalRef) (*ExternalSession, error)

	TouchTwinoidOauth(ctx context.Context, in TouchTwinoidOauthInput) error
	RevokeTwinoidAccessToken(ctx context.Context, key string) error
	RevokeTwinoidRefreshToken(ctx context.Context, key string) error
	GetTwinoidOauth(ctx context.Context, twinoidUserID string) (TwinoidOauth, error)
}

type TouchSystemClientInput struct {
	Key         string
	DisplayName string
	AppURI      string
	CallbackURI string
	Secret      []byte
}

type CreateAccessTokenInput struct {
	Key       string
	ClientID  string
	UserID    string
	Scopes    []string
	ExpiresAt time.Time
}

type CreateRefreshTokenInput struct {
	Key      string
	ClientID string
	UserID   string
	Scopes   []string
}

// OauthProviderStore persists registered clients and issued tokens. Client
// secrets are stored hashed; the store owns secret verification so the raw
// hash never crosses the contract.
type OauthProviderStore interface {
	TouchSystemClient(ctx context.Context, in TouchSystemClientInput) (OauthClient, error)
	GetClient(ctx context.Context, ref ClientRef) (OauthClient, error)
	VerifyClientSecret(ctx context.Context, clientID string, secret []byte) error

	CreateAccessToken(ctx context.Context, in CreateAccessTokenInput) (AccessToken, error)
	GetAndTouchAccessToken(ctx context.Context, key string) (AccessToken, error)
	RevokeAccessToken(ctx context.Context, key string) error

	CreateRefreshToken(ctx context.Context, in CreateRefreshTokenInput) (RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, key string) error
}

// ArchiveStore keeps temporally merged snapshots of scraped external
// profiles, one store per provider family.
type ArchiveStore interface {
	Provider() Provider
	TouchProfile(ctx context.Context, snapshot ProfileSnapshot) (ArchivedProfile, error)
	GetProfile(ctx context.Context, ref ExternalRef) (*ArchivedProfile, error)
}

// ReplayLedger enforces single use of grant codes. Claim returns false when
// the key was already claimed and is still within its TTL; Release undoes a
// claim when the operation it guarded failed, keeping exchange all-or-nothing.
type ReplayLedger interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// ExternalClient is the out-of-scope scraping collaborator for one provider.
// Only the linking service talks to it; link and token stores never do.
type ExternalClient interface {
	Provider() Provider
	CreateSession(ctx context.Context, server string, username string, password string) (ExternalSessionHandle, error)
	TestSession(ctx context.Context, server string, key string) (*ProfileSnapshot, error)
	FetchProfile(ctx context.Context, server string, externalID string) (ProfileSnapshot, error)
}

// ExternalSessionHandle is a freshly created external login: the session key
// plus the profile observed during login.
type ExternalSessionHandle struct {
	Key     string
	Profile ProfileSnapshot
}

// StoreProvider exposes the persistent store set built by a repository
// factory.
type StoreProvider interface {
	LinkStore() LinkStore
	TokenStore() TokenStore
	OauthProviderStore() OauthProviderStore
	ReplayLedger() ReplayLedger
	ArchiveStore(provider Provider) ArchiveStore
}

// RepositoryStoreFactory builds the store set from a persistence client, as
// the SQL factory does.
type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}
