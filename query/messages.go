package query

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-federation/core"
)

const (
	TypeGetLinkedView   = "federation.query.links.view"
	TypeGetLink         = "federation.query.links.get"
	TypeGetProfile      = "federation.query.profile.get"
	TypeGetSession      = "federation.query.session.get"
	TypeGetClient       = "federation.query.client.get"
	TypeTouchToken      = "federation.query.access_token.touch"
	TypeGetTwinoidOauth = "federation.query.twinoid_oauth.get"
)

type GetLinkedViewMessage struct {
	UserID string
}

func (GetLinkedViewMessage) Type() string { return TypeGetLinkedView }

func (m GetLinkedViewMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("query: user id is required")
	}
	return nil
}

type GetLinkMessage struct {
	Remote core.ExternalRef
}

func (GetLinkMessage) Type() string { return TypeGetLink }

func (m GetLinkMessage) Validate() error {
	return validateRemote(m.Remote)
}

type GetProfileMessage struct {
	Remote core.ExternalRef
}

func (GetProfileMessage) Type() string { return TypeGetProfile }

func (m GetProfileMessage) Validate() error {
	return validateRemote(m.Remote)
}

type GetSessionMessage struct {
	Remote core.ExternalRef
}

func (GetSessionMessage) Type() string { return TypeGetSession }

func (m GetSessionMessage) Validate() error {
	return validateRemote(m.Remote)
}

type GetClientMessage struct {
	Ref string
}

func (GetClientMessage) Type() string { return TypeGetClient }

func (m GetClientMessage) Validate() error {
	if strings.TrimSpace(m.Ref) == "" {
		return fmt.Errorf("query: client ref is required")
	}
	return nil
}

type TouchAccessTokenMessage struct {
	Key string
}

func (TouchAccessTokenMessage) Type() string { return TypeTouchToken }

func (m TouchAccessTokenMessage) Validate() error {
	if strings.TrimSpace(m.Key) == "" {
		return fmt.Errorf("query: access token key is required")
	}
	return nil
}

type GetTwinoidOauthMessage struct {
	TwinoidUserID string
}

func (GetTwinoidOauthMessage) Type() string { return TypeGetTwinoidOauth }

func (m GetTwinoidOauthMessage) Validate() error {
	if strings.TrimSpace(m.TwinoidUserID) == "" {
		return fmt.Errorf("query: twinoid user id is required")
	}
	return nil
}

func validateRemote(ref core.ExternalRef) error {
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	return nil
}
