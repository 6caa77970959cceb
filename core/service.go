package core

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the assembled federation core: the identity/linking façade and
// the OAuth provider flow behind one constructor. Stores default to the
// in-process implementations unless a repository factory or explicit stores
// are injected.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	clock             ClockService
	uuids             UuidGenerator
	hasher            SecretHasher
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	linkStore         LinkStore
	tokenStore        TokenStore
	oauthStore        OauthProviderStore
	replayLedger      ReplayLedger
	archives          map[Provider]ArchiveStore
	linking           *LinkingService
	oauth             *OauthProviderService
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	Clock             ClockService
	UuidGenerator     UuidGenerator
	SecretHasher      SecretHasher
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	LinkStore         LinkStore
	TokenStore        TokenStore
	OauthStore        OauthProviderStore
	ReplayLedger      ReplayLedger
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("federation", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("federation"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.clock == nil {
		builder.clock = SystemClock{}
	}
	if builder.uuids == nil {
		builder.uuids = RandomUuidGenerator{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.hasher == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: secret hasher is required"))
	}

	if err := resolveFactoryStores(&builder); err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.linkStore == nil {
		builder.linkStore = NewMemoryLinkStore(builder.clock)
	}
	if builder.tokenStore == nil {
		builder.tokenStore = NewMemoryTokenStore(builder.clock)
	}
	if builder.oauthStore == nil {
		store, storeErr := NewMemoryOauthProviderStore(builder.clock, builder.uuids, builder.hasher)
		if storeErr != nil {
			return nil, mapBuildError(builder.errorMapper, storeErr)
		}
		builder.oauthStore = store
	}

	codeTTL := time.Duration(finalConfig.OAuth.CodeTTLSeconds) * time.Second
	if builder.replayLedger == nil {
		builder.replayLedger = NewMemoryReplayLedger(codeTTL)
	}
	if builder.archives == nil {
		builder.archives = map[Provider]ArchiveStore{}
	}
	for _, p := range Providers() {
		if builder.archives[p] == nil {
			archive, archiveErr := NewMemoryArchiveStore(p)
			if archiveErr != nil {
				return nil, mapBuildError(builder.errorMapper, archiveErr)
			}
			builder.archives[p] = archive
		}
	}

	tokenSecret := builder.tokenSecret
	if len(tokenSecret) == 0 {
		tokenSecret = []byte(finalConfig.OAuth.TokenSecret)
	}
	signer, err := NewGrantCodeSigner(tokenSecret, codeTTL, builder.clock)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	linking, err := NewLinkingService(LinkingServiceDeps{
		Links:    builder.linkStore,
		Tokens:   builder.tokenStore,
		Archives: builder.archives,
		Clients:  builder.clients,
		Clock:    builder.clock,
		Logger:   logger,
	})
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	oauth, err := NewOauthProviderService(OauthProviderServiceDeps{
		Store:          builder.oauthStore,
		Signer:         signer,
		Replays:        builder.replayLedger,
		Scopes:         NewScopeRegistry(finalConfig.OAuth.ExtraScopes...),
		Clock:          builder.clock,
		Uuids:          builder.uuids,
		AccessTokenTTL: time.Duration(finalConfig.OAuth.AccessTokenTTLSeconds) * time.Second,
		Logger:         logger,
	})
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		clock:             builder.clock,
		uuids:             builder.uuids,
		hasher:            builder.hasher,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		linkStore:         builder.linkStore,
		tokenStore:        builder.tokenStore,
		oauthStore:        builder.oauthStore,
		replayLedger:      builder.replayLedger,
		archives:          builder.archives,
		linking:           linking,
		oauth:             oauth,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

// resolveFactoryStores fills unset stores from an injected repository
// factory or store provider.
func resolveFactoryStores(builder *serviceBuilder) error {
	if builder.repositoryFactory == nil {
		return nil
	}
	var provider StoreProvider
	if factory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
		built, err := factory.BuildStores(builder.persistenceClient)
		if err != nil {
			return err
		}
		provider = built
	} else if direct, ok := builder.repositoryFactory.(StoreProvider); ok {
		provider = direct
	}
	if provider == nil {
		return nil
	}
	if builder.linkStore == nil {
		builder.linkStore = provider.LinkStore()
	}
	if builder.tokenStore == nil {
		builder.tokenStore = provider.TokenStore()
	}
	if builder.oauthStore == nil {
		builder.oauthStore = provider.OauthProviderStore()
	}
	if builder.replayLedger == nil {
		builder.replayLedger = provider.ReplayLedger()
	}
	for _, p := range Providers() {
		if builder.archives[p] == nil {
			if archive := provider.ArchiveStore(p); archive != nil {
				if builder.archives == nil {
					builder.archives = map[Provider]ArchiveStore{}
				}
				builder.archives[p] = archive
			}
		}
	}
	return nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		Clock:             s.clock,
		UuidGenerator:     s.uuids,
		SecretHasher:      s.hasher,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		LinkStore:         s.linkStore,
		TokenStore:        s.tokenStore,
		OauthStore:        s.oauthStore,
		ReplayLedger:      s.replayLedger,
	}
}

// Linking exposes the identity/linking façade.
func (s *Service) Linking() *LinkingService {
	if s == nil {
		return nil
	}
	return s.linking
}

// Oauth exposes the authorization-code provider.
func (s *Service) Oauth() *OauthProviderService {
	if s == nil {
		return nil
	}
	return s.oauth
}

// ProvisionSystemClients upserts every config-declared system client.
// Touches are idempotent so this runs safely on every startup.
func (s *Service) ProvisionSystemClients(ctx context.Context) ([]OauthClient, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is not configured")
	}
	clients := make([]OauthClient, 0, len(s.config.OAuth.SystemClients))
	for _, declared := range s.config.OAuth.SystemClients {
		client, err := s.oauth.TouchSystemClient(ctx, TouchSystemClientInput{
			Key:         declared.Key,
			DisplayName: declared.DisplayName,
			AppURI:      declared.AppURI,
			CallbackURI: declared.CallbackURI,
			Secret:      []byte(declared.Secret),
		})
		if err != nil {
			return clients, s.mapError(err)
		}
		clients = append(clients, client)
	}
	return clients, nil
}

// TouchTwinoidOauth stores the credential pair obtained from the twinoid
// OAuth server for one twinoid user.
func (s *Service) TouchTwinoidOauth(ctx context.Context, in TouchTwinoidOauthInput) error {
	if s == nil {
		return fmt.Errorf("core: service is not configured")
	}
	return s.mapError(s.tokenStore.TouchTwinoidOauth(ctx, in))
}

func (s *Service) GetTwinoidOauth(ctx context.Context, twinoidUserID string) (TwinoidOauth, error) {
	if s == nil {
		return TwinoidOauth{}, fmt.Errorf("core: service is not configured")
	}
	pair, err := s.tokenStore.GetTwinoidOauth(ctx, twinoidUserID)
	if err != nil {
		return TwinoidOauth{}, s.mapError(err)
	}
	return pair, nil
}

func (s *Service) RevokeTwinoidAccessToken(ctx context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("core: service is not configured")
	}
	return s.mapError(s.tokenStore.RevokeTwinoidAccessToken(ctx, key))
}

func (s *Service) RevokeTwinoidRefreshToken(ctx context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("core: service is not configured")
	}
	return s.mapError(s.tokenStore.RevokeTwinoidRefreshToken(ctx, key))
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
