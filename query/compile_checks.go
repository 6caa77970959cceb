package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-federation/core"
)

var (
	_ gocmd.Querier[GetLinkedViewMessage, core.LinkedView]     = (*GetLinkedViewQuery)(nil)
	_ gocmd.Querier[GetLinkMessage, core.VersionedLink]        = (*GetLinkQuery)(nil)
	_ gocmd.Querier[GetProfileMessage, *core.ArchivedProfile]  = (*GetProfileQuery)(nil)
	_ gocmd.Querier[GetSessionMessage, *core.ExternalSession]  = (*GetSessionQuery)(nil)
	_ gocmd.Querier[GetClientMessage, core.OauthClient]        = (*GetClientQuery)(nil)
	_ gocmd.Querier[TouchAccessTokenMessage, core.AccessToken] = (*TouchAccessTokenQuery)(nil)
	_ gocmd.Querier[GetTwinoidOauthMessage, core.TwinoidOauth] = (*GetTwinoidOauthQuery)(nil)
)
