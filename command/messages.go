package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-federation/core"
)

const (
	TypeTouchLink           = "federation.command.link.touch"
	TypeDeleteLink          = "federation.command.link.delete"
	TypeLoginExternal       = "federation.command.login"
	TypeAuthenticateSession = "federation.command.session.authenticate"
	TypeRevokeSession       = "federation.command.session.revoke"
	TypeRefreshProfile      = "federation.command.profile.refresh"
	TypeTouchSystemClient   = "federation.command.client.touch"
	TypeCreateAuthorization = "federation.command.authorization.create"
	TypeExchangeCode        = "federation.command.code.exchange"
	TypeRevokeAccessToken   = "federation.command.access_token.revoke"
	TypeRevokeRefreshToken  = "federation.command.refresh_token.revoke"
)

type TouchLinkMessage struct {
	Input core.TouchLinkInput
}

func (TouchLinkMessage) Type() string { return TypeTouchLink }

func (m TouchLinkMessage) Validate() error {
	if strings.TrimSpace(m.Input.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	return validateRemote(m.Input.Remote)
}

type DeleteLinkMessage struct {
	Input core.DeleteLinkInput
}

func (DeleteLinkMessage) Type() string { return TypeDeleteLink }

func (m DeleteLinkMessage) Validate() error {
	return validateRemote(m.Input.Remote)
}

type LoginExternalMessage struct {
	Input core.LoginExternalInput
}

func (LoginExternalMessage) Type() string { return TypeLoginExternal }

func (m LoginExternalMessage) Validate() error {
	if _, err := core.ParseProvider(string(m.Input.Provider)); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	if strings.TrimSpace(m.Input.Server) == "" {
		return fmt.Errorf("command: server is required")
	}
	if strings.TrimSpace(m.Input.Username) == "" {
		return fmt.Errorf("command: username is required")
	}
	return nil
}

type AuthenticateSessionMessage struct {
	Provider core.Provider
	Server   string
	Key      string
}

func (AuthenticateSessionMessage) Type() string { return TypeAuthenticateSession }

func (m AuthenticateSessionMessage) Validate() error {
	return validateSessionScope(m.Provider, m.Server, m.Key)
}

type RevokeSessionMessage struct {
	Provider core.Provider
	Server   string
	Key      string
}

func (RevokeSessionMessage) Type() string { return TypeRevokeSession }

func (m RevokeSessionMessage) Validate() error {
	return validateSessionScope(m.Provider, m.Server, m.Key)
}

type RefreshProfileMessage struct {
	Remote core.ExternalRef
}

func (RefreshProfileMessage) Type() string { return TypeRefreshProfile }

func (m RefreshProfileMessage) Validate() error {
	return validateRemote(m.Remote)
}

type TouchSystemClientMessage struct {
	Input core.TouchSystemClientInput
}

func (TouchSystemClientMessage) Type() string { return TypeTouchSystemClient }

func (m TouchSystemClientMessage) Validate() error {
	if strings.TrimSpace(m.Input.Key) == "" {
		return fmt.Errorf("command: client key is required")
	}
	if len(m.Input.Secret) == 0 {
		return fmt.Errorf("command: client secret is required")
	}
	return nil
}

type CreateAuthorizationMessage struct {
	Input core.CreateAuthorizationRequestInput
}

func (CreateAuthorizationMessage) Type() string { return TypeCreateAuthorization }

func (m CreateAuthorizationMessage) Validate() error {
	if strings.TrimSpace(m.Input.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	if strings.TrimSpace(m.Input.ClientRef) == "" {
		return fmt.Errorf("command: client ref is required")
	}
	return nil
}

type ExchangeCodeMessage struct {
	Input core.ExchangeCodeInput
}

func (ExchangeCodeMessage) Type() string { return TypeExchangeCode }

func (m ExchangeCodeMessage) Validate() error {
	if strings.TrimSpace(m.Input.Code) == "" {
		return fmt.Errorf("command: grant code is required")
	}
	if strings.TrimSpace(m.Input.ClientRef) == "" {
		return fmt.Errorf("command: client ref is required")
	}
	return nil
}

type RevokeAccessTokenMessage struct {
	Key string
}

func (RevokeAccessTokenMessage) Type() string { return TypeRevokeAccessToken }

func (m RevokeAccessTokenMessage) Validate() error {
	if strings.TrimSpace(m.Key) == "" {
		return fmt.Errorf("command: access token key is required")
	}
	return nil
}

type RevokeRefreshTokenMessage struct {
	Key string
}

func (RevokeRefreshTokenMessage) Type() string { return TypeRevokeRefreshToken }

func (m RevokeRefreshTokenMessage) Validate() error {
	if strings.TrimSpace(m.Key) == "" {
		return fmt.Errorf("command: refresh token key is required")
	}
	return nil
}

func validateRemote(ref core.ExternalRef) error {
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}

func validateSessionScope(provider core.Provider, server string, key string) error {
	if _, err := core.ParseProvider(string(provider)); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	if !provider.HasServer(server) {
		return fmt.Errorf("command: %q is not a %s server", server, provider)
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("command: session key is required")
	}
	return nil
}
