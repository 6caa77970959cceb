package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-federation/core"
)

type LinkMutatingService interface {
	TouchLink(ctx context.Context, in core.TouchLinkInput) (core.VersionedLink, error)
	DeleteLink(ctx context.Context, in core.DeleteLinkInput) (core.VersionedLink, error)
	LoginExternal(ctx context.Context, in core.LoginExternalInput) (core.LoginResult, error)
	AuthenticateSession(ctx context.Context, provider core.Provider, server string, key string) (core.LoginResult, error)
	RevokeSession(ctx context.Context, provider core.Provider, server string, key string) error
	RefreshProfile(ctx context.Context, ref core.ExternalRef) (core.ArchivedProfile, error)
}

type OauthMutatingService interface {
	TouchSystemClient(ctx context.Context, in core.TouchSystemClientInput) (core.OauthClient, error)
	CreateAuthorizationRequest(ctx context.Context, in core.CreateAuthorizationRequestInput) (core.AuthorizationRequest, error)
	ExchangeCodeForToken(ctx context.Context, in core.ExchangeCodeInput) (core.TokenGrant, error)
	RevokeAccessToken(ctx context.Context, key string) error
	RevokeRefreshToken(ctx context.Context, key string) error
}

type TouchLinkCommand struct {
	service LinkMutatingService
}

func NewTouchLinkCommand(service LinkMutatingService) *TouchLinkCommand {
	return &TouchLinkCommand{service: service}
}

func (c *TouchLinkCommand) Execute(ctx context.Context, msg TouchLinkMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: linking service is required")
	}
	out, err := c.service.TouchLink(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteLinkCommand struct {
	service LinkMutatingService
}

func NewDeleteLinkCommand(service LinkMutatingService) *DeleteLinkCommand {
	return &DeleteLinkCommand{service: service}
}

func (c *DeleteLinkCommand) Execute(ctx context.Context, msg DeleteLinkMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: linking service is required")
	}
	out, err := c.service.DeleteLink(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type LoginExternalCommand struct {
	service LinkMutatingService
}

func NewLoginExternalCommand(service LinkMutatingService) *LoginExternalCommand {
	return &LoginExternalCommand{service: service}
}

func (c *LoginExternalCommand) Execute(ctx context.Context, msg LoginExternalMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: linking service is required")
	}
	out, err := c.service.LoginExternal(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AuthenticateSessionCommand struct {
	service LinkMutatingService
}

func NewAuthenticateSessionCommand(service LinkMutatingService) *AuthenticateSessionCommand {
	return &AuthenticateSessionCommand{service: service}
}

func (c *AuthenticateSessionCommand) Execute(ctx context.Context, msg AuthenticateSessionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: linking service is required")
	}
	out, err := c.service.AuthenticateSession(ctx, msg.Provider, msg.Server, msg.Key)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RevokeSessionCommand struct {
	service LinkMutatingService
}

func NewRevokeSessionCommand(service LinkMutatingService) *RevokeSessionCommand {
	return &RevokeSessionCommand{service: service}
}

func (c *RevokeSessionCommand) Execute(ctx context.Context, msg RevokeSessionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: linking service is required")
	}
	return c.service.RevokeSession(ctx, msg.Provider, msg.Server, msg.Key)
}

type RefreshProfileCommand struct {
	service LinkMutatingService
}

func NewRefreshProfileCommand(service LinkMutatingService) *RefreshProfileCommand {
	return &RefreshProfileCommand{service: service}
}

func (c *RefreshProfileCommand) Execute(ctx context.Context, msg RefreshProfileMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: linking service is required")
	}
	out, err := c.service.RefreshProfile(ctx, msg.Remote)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type TouchSystemClientCommand struct {
	service OauthMutatingService
}

func NewTouchSystemClientCommand(service OauthMutatingService) *TouchSystemClientCommand {
	return &TouchSystemClientCommand{service: service}
}

func (c *TouchSystemClientCommand) Execute(ctx context.Context, msg TouchSystemClientMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: oauth provider service is required")
	}
	out, err := c.service.TouchSystemClient(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateAuthorizationCommand struct {
	service OauthMutatingService
}

func NewCreateAuthorizationCommand(service OauthMutatingService) *CreateAuthorizationCommand {
	return &CreateAuthorizationCommand{service: service}
}

func (c *CreateAuthorizationCommand) Execute(ctx context.Context, msg CreateAuthorizationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: oauth provider service is required")
	}
	out, err := c.service.CreateAuthorizationRequest(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ExchangeCodeCommand struct {
	service OauthMutatingService
}

func NewExchangeCodeCommand(service OauthMutatingService) *ExchangeCodeCommand {
	return &ExchangeCodeCommand{service: service}
}

func (c *ExchangeCodeCommand) Execute(ctx context.Context, msg ExchangeCodeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: oauth provider service is required")
	}
	out, err := c.service.ExchangeCodeForToken(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RevokeAccessTokenCommand struct {
	service OauthMutatingService
}

func NewRevokeAccessTokenCommand(service OauthMutatingService) *RevokeAccessTokenCommand {
	return &RevokeAccessTokenCommand{service: service}
}

func (c *RevokeAccessTokenCommand) Execute(ctx context.Context, msg RevokeAccessTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: oauth provider service is required")
	}
	return c.service.RevokeAccessToken(ctx, msg.Key)
}

type RevokeRefreshTokenCommand struct {
	service OauthMutatingService
}

func NewRevokeRefreshTokenCommand(service OauthMutatingService) *RevokeRefreshTokenCommand {
	return &RevokeRefreshTokenCommand{service: service}
}

func (c *RevokeRefreshTokenCommand) Execute(ctx context.Context, msg RevokeRefreshTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: oauth provider service is required")
	}
	return c.service.RevokeRefreshToken(ctx, msg.Key)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
