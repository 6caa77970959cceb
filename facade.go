package federation

import (
	"fmt"

	federationcommand "github.com/goliatone/go-federation/command"
	"github.com/goliatone/go-federation/core"
	federationquery "github.com/goliatone/go-federation/query"
)

type LinkCommandQueryService interface {
	federationcommand.LinkMutatingService
	federationquery.LinkReader
}

type OauthCommandQueryService interface {
	federationcommand.OauthMutatingService
	federationquery.OauthReader
}

type Commands struct {
	TouchLink           *federationcommand.TouchLinkCommand
	DeleteLink          *federationcommand.DeleteLinkCommand
	LoginExternal       *federationcommand.LoginExternalCommand
	AuthenticateSession *federationcommand.AuthenticateSessionCommand
	RevokeSession       *federationcommand.RevokeSessionCommand
	RefreshProfile      *federationcommand.RefreshProfileCommand
	TouchSystemClient   *federationcommand.TouchSystemClientCommand
	CreateAuthorization *federationcommand.CreateAuthorizationCommand
	ExchangeCode        *federationcommand.ExchangeCodeCommand
	RevokeAccessToken   *federationcommand.RevokeAccessTokenCommand
	RevokeRefreshToken  *federationcommand.RevokeRefreshTokenCommand
}

type Queries struct {
	GetLinkedView    *federationquery.GetLinkedViewQuery
	GetLink          *federationquery.GetLinkQuery
	GetProfile       *federationquery.GetProfileQuery
	GetSession       *federationquery.GetSessionQuery
	GetClient        *federationquery.GetClientQuery
	TouchAccessToken *federationquery.TouchAccessTokenQuery
	GetTwinoidOauth  *federationquery.GetTwinoidOauthQuery
}

type Facade struct {
	linking  LinkCommandQueryService
	oauth    OauthCommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	twinoidReader federationquery.TwinoidOauthReader
}

func WithTwinoidOauthReader(reader federationquery.TwinoidOauthReader) FacadeOption {
	return func(options *facadeOptions) {
		options.twinoidReader = reader
	}
}

func NewFacade(linking LinkCommandQueryService, oauth OauthCommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if linking == nil {
		return nil, fmt.Errorf("federation: linking service is required")
	}
	if oauth == nil {
		return nil, fmt.Errorf("federation: oauth provider service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{linking: linking, oauth: oauth}
	facade.commands = Commands{
		TouchLink:           federationcommand.NewTouchLinkCommand(linking),
		DeleteLink:          federationcommand.NewDeleteLinkCommand(linking),
		LoginExternal:       federationcommand.NewLoginExternalCommand(linking),
		AuthenticateSession: federationcommand.NewAuthenticateSessionCommand(linking),
		RevokeSession:       federationcommand.NewRevokeSessionCommand(linking),
		RefreshProfile:      federationcommand.NewRefreshProfileCommand(linking),
		TouchSystemClient:   federationcommand.NewTouchSystemClientCommand(oauth),
		CreateAuthorization: federationcommand.NewCreateAuthorizationCommand(oauth),
		ExchangeCode:        federationcommand.NewExchangeCodeCommand(oauth),
		RevokeAccessToken:   federationcommand.NewRevokeAccessTokenCommand(oauth),
		RevokeRefreshToken:  federationcommand.NewRevokeRefreshTokenCommand(oauth),
	}
	facade.queries = Queries{
		GetLinkedView:    federationquery.NewGetLinkedViewQuery(linking),
		GetLink:          federationquery.NewGetLinkQuery(linking),
		GetProfile:       federationquery.NewGetProfileQuery(linking),
		GetSession:       federationquery.NewGetSessionQuery(linking),
		GetClient:        federationquery.NewGetClientQuery(oauth),
		TouchAccessToken: federationquery.NewTouchAccessTokenQuery(oauth),
		GetTwinoidOauth:  federationquery.NewGetTwinoidOauthQuery(cfg.twinoidReader),
	}

	return facade, nil
}

// NewServiceFacade wires the command and query handlers straight from an
// assembled service.
func NewServiceFacade(service *core.Service, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("federation: service is required")
	}
	opts = append([]FacadeOption{WithTwinoidOauthReader(service)}, opts...)
	return NewFacade(service.Linking(), service.Oauth(), opts...)
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Linking() LinkCommandQueryService {
	if f == nil {
		return nil
	}
	return f.linking
}

func (f *Facade) Oauth() OauthCommandQueryService {
	if f == nil {
		return nil
	}
	return f.oauth
}
