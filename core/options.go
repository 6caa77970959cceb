package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	clock             ClockService
	uuids             UuidGenerator
	hasher            SecretHasher
	tokenSecret       []byte
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	persistenceClient any
	repositoryFactory any
	linkStore         LinkStore
	tokenStore        TokenStore
	oauthStore        OauthProviderStore
	replayLedger      ReplayLedger
	archives          map[Provider]ArchiveStore
	clients           map[Provider]ExternalClient
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithClock(clock ClockService) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func WithUuidGenerator(uuids UuidGenerator) Option {
	return func(b *serviceBuilder) {
		b.uuids = uuids
	}
}

func WithSecretHasher(hasher SecretHasher) Option {
	return func(b *serviceBuilder) {
		b.hasher = hasher
	}
}

// WithTokenSecret sets the HMAC secret grant codes are signed with. It
// overrides oauth.token_secret from config.
func WithTokenSecret(secret []byte) Option {
	return func(b *serviceBuilder) {
		b.tokenSecret = append([]byte(nil), secret...)
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithLinkStore(store LinkStore) Option {
	return func(b *serviceBuilder) {
		b.linkStore = store
	}
}

func WithTokenStore(store TokenStore) Option {
	return func(b *serviceBuilder) {
		b.tokenStore = store
	}
}

func WithOauthProviderStore(store OauthProviderStore) Option {
	return func(b *serviceBuilder) {
		b.oauthStore = store
	}
}

func WithReplayLedger(ledger ReplayLedger) Option {
	return func(b *serviceBuilder) {
		b.replayLedger = ledger
	}
}

func WithArchiveStore(store ArchiveStore) Option {
	return func(b *serviceBuilder) {
		if store == nil {
			return
		}
		if b.archives == nil {
			b.archives = map[Provider]ArchiveStore{}
		}
		b.archives[store.Provider()] = store
	}
}

func WithExternalClient(client ExternalClient) Option {
	return func(b *serviceBuilder) {
		if client == nil {
			return
		}
		if b.clients == nil {
			b.clients = map[Provider]ExternalClient{}
		}
		b.clients[client.Provider()] = client
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("federation", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return federationErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	oauth := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.OAuth.Issuer) != "" {
		oauth["issuer"] = cfg.OAuth.Issuer
	}
	if includeZero || strings.TrimSpace(cfg.OAuth.TokenSecret) != "" {
		oauth["token_secret"] = cfg.OAuth.TokenSecret
	}
	if includeZero || cfg.OAuth.CodeTTLSeconds > 0 {
		oauth["code_ttl_seconds"] = cfg.OAuth.CodeTTLSeconds
	}
	if includeZero || cfg.OAuth.AccessTokenTTLSeconds > 0 {
		oauth["access_token_ttl_seconds"] = cfg.OAuth.AccessTokenTTLSeconds
	}
	if includeZero || len(cfg.OAuth.ExtraScopes) > 0 {
		oauth["extra_scopes"] = append([]string(nil), cfg.OAuth.ExtraScopes...)
	}
	if len(cfg.OAuth.SystemClients) > 0 {
		clients := make([]map[string]any, 0, len(cfg.OAuth.SystemClients))
		for _, client := range cfg.OAuth.SystemClients {
			clients = append(clients, map[string]any{
				"key":          client.Key,
				"display_name": client.DisplayName,
				"app_uri":      client.AppURI,
				"callback_uri": client.CallbackURI,
				"secret":       client.Secret,
			})
		}
		oauth["system_clients"] = clients
	}
	if len(oauth) > 0 {
		layer["oauth"] = oauth
	}
	return layer
}
