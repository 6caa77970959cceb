package federation

import "github.com/goliatone/go-federation/core"

type Config = core.Config

type SystemClientConfig = core.SystemClientConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type LinkStore = core.LinkStore
type TokenStore = core.TokenStore
type OauthProviderStore = core.OauthProviderStore
type ReplayLedger = core.ReplayLedger
type ArchiveStore = core.ArchiveStore
type ExternalClient = core.ExternalClient

type Provider = core.Provider
type ExternalRef = core.ExternalRef
type LinkSlot = core.LinkSlot
type VersionedLink = core.VersionedLink
type UserLinks = core.UserLinks
type LinkedView = core.LinkedView

type TouchLinkInput = core.TouchLinkInput
type DeleteLinkInput = core.DeleteLinkInput
type LoginExternalInput = core.LoginExternalInput
type LoginResult = core.LoginResult

type TouchSystemClientInput = core.TouchSystemClientInput
type CreateAuthorizationRequestInput = core.CreateAuthorizationRequestInput
type AuthorizationRequest = core.AuthorizationRequest
type ExchangeCodeInput = core.ExchangeCodeInput
type TokenGrant = core.TokenGrant

const (
	ProviderDinoparc   = core.ProviderDinoparc
	ProviderHammerfest = core.ProviderHammerfest
	ProviderTwinoid    = core.ProviderTwinoid
)

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithErrorFactory       = core.WithErrorFactory
	WithErrorMapper        = core.WithErrorMapper
	WithClock              = core.WithClock
	WithUuidGenerator      = core.WithUuidGenerator
	WithSecretHasher       = core.WithSecretHasher
	WithTokenSecret        = core.WithTokenSecret
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithPersistenceClient  = core.WithPersistenceClient
	WithRepositoryFactory  = core.WithRepositoryFactory
	WithLinkStore          = core.WithLinkStore
	WithTokenStore         = core.WithTokenStore
	WithOauthProviderStore = core.WithOauthProviderStore
	WithReplayLedger       = core.WithReplayLedger
	WithArchiveStore       = core.WithArchiveStore
	WithExternalClient     = core.WithExternalClient
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
