package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[TouchLinkMessage]           = (*TouchLinkCommand)(nil)
	_ gocmd.Commander[DeleteLinkMessage]          = (*DeleteLinkCommand)(nil)
	_ gocmd.Commander[LoginExternalMessage]       = (*LoginExternalCommand)(nil)
	_ gocmd.Commander[AuthenticateSessionMessage] = (*AuthenticateSessionCommand)(nil)
	_ gocmd.Commander[RevokeSessionMessage]       = (*RevokeSessionCommand)(nil)
	_ gocmd.Commander[RefreshProfileMessage]      = (*RefreshProfileCommand)(nil)
	_ gocmd.Commander[TouchSystemClientMessage]   = (*TouchSystemClientCommand)(nil)
	_ gocmd.Commander[CreateAuthorizationMessage] = (*CreateAuthorizationCommand)(nil)
	_ gocmd.Commander[ExchangeCodeMessage]        = (*ExchangeCodeCommand)(nil)
	_ gocmd.Commander[RevokeAccessTokenMessage]   = (*RevokeAccessTokenCommand)(nil)
	_ gocmd.Commander[RevokeRefreshTokenMessage]  = (*RevokeRefreshTokenCommand)(nil)
)
