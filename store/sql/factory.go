package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-federation/core"
)

// RepositoryFactory builds the SQL store set from a persistence client or a
// raw bun handle. It implements core.RepositoryStoreFactory and, once built,
// core.StoreProvider.
type RepositoryFactory struct {
	db     *bun.DB
	clock  core.ClockService
	uuids  core.UuidGenerator
	hasher core.SecretHasher

	linkStore    *LinkStore
	tokenStore   *TokenStore
	oauthStore   *OauthProviderStore
	replayLedger *ReplayLedger
	archives     map[core.Provider]*ArchiveStore
}

func NewRepositoryFactory(hasher core.SecretHasher) *RepositoryFactory {
	return &RepositoryFactory{
		hasher: hasher,
		clock:  core.SystemClock{},
		uuids:  core.RandomUuidGenerator{},
	}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, hasher core.SecretHasher) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(hasher)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, hasher core.SecretHasher) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(hasher)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// SetClock replaces the time source, which tests use to drive virtual time
// through the SQL stores. It must be called before BuildStores.
func (f *RepositoryFactory) SetClock(clock core.ClockService) {
	if f == nil || clock == nil {
		return
	}
	f.clock = clock
}

// SetUuidGenerator replaces the id source. It must be called before
// BuildStores.
func (f *RepositoryFactory) SetUuidGenerator(uuids core.UuidGenerator) {
	if f == nil || uuids == nil {
		return
	}
	f.uuids = uuids
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.hasher == nil {
		return nil, fmt.Errorf("sqlstore: secret hasher is required")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.linkStore != nil && f.oauthStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) LinkStore() core.LinkStore {
	if f == nil {
		return nil
	}
	return f.linkStore
}

func (f *RepositoryFactory) TokenStore() core.TokenStore {
	if f == nil {
		return nil
	}
	return f.tokenStore
}

func (f *RepositoryFactory) OauthProviderStore() core.OauthProviderStore {
	if f == nil {
		return nil
	}
	return f.oauthStore
}

func (f *RepositoryFactory) ReplayLedger() core.ReplayLedger {
	if f == nil {
		return nil
	}
	return f.replayLedger
}

func (f *RepositoryFactory) ArchiveStore(provider core.Provider) core.ArchiveStore {
	if f == nil {
		return nil
	}
	archive, ok := f.archives[provider]
	if !ok {
		return nil
	}
	return archive
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	clientRepo := repository.NewRepository[*oauthClientRecord](f.db, oauthClientHandlers())
	if validator, ok := clientRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid oauth client repository wiring: %w", err)
		}
	}
	accessRepo := repository.NewRepository[*accessTokenRecord](f.db, accessTokenHandlers())
	if validator, ok := accessRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid access token repository wiring: %w", err)
		}
	}
	refreshRepo := repository.NewRepository[*refreshTokenRecord](f.db, refreshTokenHandlers())
	if validator, ok := refreshRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid refresh token repository wiring: %w", err)
		}
	}

	f.linkStore = &LinkStore{db: f.db, clock: f.clock, uuids: f.uuids}
	f.tokenStore = &TokenStore{db: f.db, clock: f.clock, uuids: f.uuids}
	f.oauthStore = &OauthProviderStore{
		db:          f.db,
		clients:     clientRepo,
		accessRepo:  accessRepo,
		refreshRepo: refreshRepo,
		clock:       f.clock,
		uuids:       f.uuids,
		hasher:      f.hasher,
	}
	f.replayLedger = &ReplayLedger{db: f.db, clock: f.clock, uuids: f.uuids}
	f.archives = map[core.Provider]*ArchiveStore{}
	for _, provider := range core.Providers() {
		f.archives[provider] = &ArchiveStore{db: f.db, provider: provider, uuids: f.uuids}
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
