package query

import (
	"context"

	"github.com/goliatone/go-federation/core"
)

type LinkReader interface {
	GetLinkedView(ctx context.Context, userID string) (core.LinkedView, error)
	GetLinkFromExternal(ctx context.Context, ref core.ExternalRef) (core.VersionedLink, error)
	GetProfile(ctx context.Context, ref core.ExternalRef) (*core.ArchivedProfile, error)
	GetSession(ctx context.Context, user core.ExternalRef) (*core.ExternalSession, error)
}

type OauthReader interface {
	GetClient(ctx context.Context, rawRef string) (core.OauthClient, error)
	GetAndTouchAccessToken(ctx context.Context, key string) (core.AccessToken, error)
}

type TwinoidOauthReader interface {
	GetTwinoidOauth(ctx context.Context, twinoidUserID string) (core.TwinoidOauth, error)
}

type GetLinkedViewQuery struct {
	reader LinkReader
}

func NewGetLinkedViewQuery(reader LinkReader) *GetLinkedViewQuery {
	return &GetLinkedViewQuery{reader: reader}
}

func (q *GetLinkedViewQuery) Query(ctx context.Context, msg GetLinkedViewMessage) (core.LinkedView, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: link reader is required")
	}
	return q.reader.GetLinkedView(ctx, msg.UserID)
}

type GetLinkQuery struct {
	reader LinkReader
}

func NewGetLinkQuery(reader LinkReader) *GetLinkQuery {
	return &GetLinkQuery{reader: reader}
}

func (q *GetLinkQuery) Query(ctx context.Context, msg GetLinkMessage) (core.VersionedLink, error) {
	if q == nil || q.reader == nil {
		return core.VersionedLink{}, queryDependencyError("query: link reader is required")
	}
	return q.reader.GetLinkFromExternal(ctx, msg.Remote)
}

type GetProfileQuery struct {
	reader LinkReader
}

func NewGetProfileQuery(reader LinkReader) *GetProfileQuery {
	return &GetProfileQuery{reader: reader}
}

func (q *GetProfileQuery) Query(ctx context.Context, msg GetProfileMessage) (*core.ArchivedProfile, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: link reader is required")
	}
	return q.reader.GetProfile(ctx, msg.Remote)
}

type GetSessionQuery struct {
	reader LinkReader
}

func NewGetSessionQuery(reader LinkReader) *GetSessionQuery {
	return &GetSessionQuery{reader: reader}
}

func (q *GetSessionQuery) Query(ctx context.Context, msg GetSessionMessage) (*core.ExternalSession, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: link reader is required")
	}
	return q.reader.GetSession(ctx, msg.Remote)
}

type GetClientQuery struct {
	reader OauthReader
}

func NewGetClientQuery(reader OauthReader) *GetClientQuery {
	return &GetClientQuery{reader: reader}
}

func (q *GetClientQuery) Query(ctx context.Context, msg GetClientMessage) (core.OauthClient, error) {
	if q == nil || q.reader == nil {
		return core.OauthClient{}, queryDependencyError("query: oauth reader is required")
	}
	return q.reader.GetClient(ctx, msg.Ref)
}

type TouchAccessTokenQuery struct {
	reader OauthReader
}

func NewTouchAccessTokenQuery(reader OauthReader) *TouchAccessTokenQuery {
	return &TouchAccessTokenQuery{reader: reader}
}

func (q *TouchAccessTokenQuery) Query(ctx context.Context, msg TouchAccessTokenMessage) (core.AccessToken, error) {
	if q == nil || q.reader == nil {
		return core.AccessToken{}, queryDependencyError("query: oauth reader is required")
	}
	return q.reader.GetAndTouchAccessToken(ctx, msg.Key)
}

type GetTwinoidOauthQuery struct {
	reader TwinoidOauthReader
}

func NewGetTwinoidOauthQuery(reader TwinoidOauthReader) *GetTwinoidOauthQuery {
	return &GetTwinoidOauthQuery{reader: reader}
}

func (q *GetTwinoidOauthQuery) Query(ctx context.Context, msg GetTwinoidOauthMessage) (core.TwinoidOauth, error) {
	if q == nil || q.reader == nil {
		return core.TwinoidOauth{}, queryDependencyError("query: twinoid oauth reader is required")
	}
	return q.reader.GetTwinoidOauth(ctx, msg.TwinoidUserID)
}
