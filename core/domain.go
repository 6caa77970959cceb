package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidProvider = errors.New("core: invalid provider")
	ErrInvalidServer   = errors.New("core: invalid server")
)

// Provider identifies one external legacy account system. Each provider runs
// one or more regional servers; the (provider, server) pair is the unit every
// link, session and archive record is scoped to.
type Provider string

const (
	ProviderDinoparc   Provider = "dinoparc"
	ProviderHammerfest Provider = "hammerfest"
	ProviderTwinoid    Provider = "twinoid"
)

const (
	ServerDinoparcCom   = "dinoparc.com"
	ServerEnDinoparcCom = "en.dinoparc.com"
	ServerSpDinoparcCom = "sp.dinoparc.com"
	ServerHammerfestFr  = "hammerfest.fr"
	ServerHfestNet      = "hfest.net"
	ServerHammerfestEs  = "hammerfest.es"
	ServerTwinoidCom    = "twinoid.com"
)

func ParseProvider(value string) (Provider, error) {
	switch Provider(strings.TrimSpace(strings.ToLower(value))) {
	case ProviderDinoparc:
		return ProviderDinoparc, nil
	case ProviderHammerfest:
		return ProviderHammerfest, nil
	case ProviderTwinoid:
		return ProviderTwinoid, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidProvider, value)
	}
}

func Providers() []Provider {
	return []Provider{ProviderDinoparc, ProviderHammerfest, ProviderTwinoid}
}

func (p Provider) Servers() []string {
	switch p {
	case ProviderDinoparc:
		return []string{ServerDinoparcCom, ServerEnDinoparcCom, ServerSpDinoparcCom}
	case ProviderHammerfest:
		return []string{ServerHammerfestFr, ServerHfestNet, ServerHammerfestEs}
	case ProviderTwinoid:
		return []string{ServerTwinoidCom}
	default:
		return nil
	}
}

func (p Provider) HasServer(server string) bool {
	server = strings.TrimSpace(strings.ToLower(server))
	for _, known := range p.Servers() {
		if known == server {
			return true
		}
	}
	return false
}

// ExternalRef identifies one account on one external server. Username is a
// display hint captured at observation time, never part of the identity key.
type ExternalRef struct {
	Provider Provider
	Server   string
	ID       string
	Username string
}

func (r ExternalRef) Validate() error {
	if _, err := ParseProvider(string(r.Provider)); err != nil {
		return err
	}
	if !r.Provider.HasServer(r.Server) {
		return fmt.Errorf("%w: %q is not a %s server", ErrInvalidServer, r.Server, r.Provider)
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("core: external account id is required")
	}
	return nil
}

// SameAccount compares identity only, ignoring the username hint.
func (r ExternalRef) SameAccount(other ExternalRef) bool {
	return r.Provider == other.Provider && r.Server == other.Server && r.ID == other.ID
}

// LinkSlot is the uniqueness domain of the link invariant: at most one active
// link per external account, and at most one active link per (user, slot).
type LinkSlot struct {
	Provider Provider
	Server   string
}

func (r ExternalRef) Slot() LinkSlot {
	return LinkSlot{Provider: r.Provider, Server: r.Server}
}

// UserDot records who performed a link or unlink action and when.
type UserDot struct {
	Time time.Time
	User string
}

// Link binds one external account to one local user. Unlink is nil while the
// link is active; once set the link is historical and immutable.
type Link struct {
	Link   UserDot
	Unlink *UserDot
	UserID string
	Remote ExternalRef
}

func (l Link) Active() bool {
	return l.Unlink == nil
}

// VersionedLink is the current-plus-historical view of one link slot,
// identical whether reached from the external side or the user side.
type VersionedLink struct {
	Current *Link
	Old     []Link
}

// UserLinks is the per-slot linked view of one local user.
type UserLinks map[LinkSlot]VersionedLink

// ExternalSession is an ephemeral cache of a live login on an external
// server. The key may be known to third parties; records are advisory hints,
// not a secret boundary.
type ExternalSession struct {
	Provider Provider
	Server   string
	Key      string
	UserID   string
	Ctime    time.Time
	Atime    time.Time
}

// TwinoidAccessToken and TwinoidRefreshToken track credentials this platform
// holds against the twinoid OAuth server, one of each per twinoid user.
type TwinoidAccessToken struct {
	Key           string
	TwinoidUserID string
	CreatedAt     time.Time
	AccessedAt    time.Time
	ExpiresAt     time.Time
}

type TwinoidRefreshToken struct {
	Key           string
	TwinoidUserID string
	CreatedAt     time.Time
	AccessedAt    time.Time
}

// TwinoidOauth is the live credential pair for one twinoid user. AccessToken
// is nil when expired or absent; RefreshToken survives access-token expiry.
type TwinoidOauth struct {
	AccessToken  *TwinoidAccessToken
	RefreshToken *TwinoidRefreshToken
}

// OauthClient is a registered OAuth client of this platform. System clients
// are keyed by a stable `name@clients` key and have no owner; external
// clients are owned by the user that registered them.
type OauthClient struct {
	ID          string
	Key         string
	DisplayName string
	AppURI      string
	CallbackURI string
	OwnerID     string
	CreatedAt   time.Time
}

func (c OauthClient) IsSystem() bool {
	return strings.TrimSpace(c.Key) != ""
}

// AccessToken is an opaque, persisted, revocable credential bound to a
// (user, client, scopes) triple.
type AccessToken struct {
	Key        string
	ClientID   string
	UserID     string
	Scopes     []string
	CreatedAt  time.Time
	AccessedAt time.Time
	ExpiresAt  time.Time
}

func (t AccessToken) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

type RefreshToken struct {
	Key        string
	ClientID   string
	UserID     string
	Scopes     []string
	CreatedAt  time.Time
	AccessedAt time.Time
}

// ArchivedProfile is the temporally merged record of everything scraped about
// one external account. Username and attributes each carry their own validity
// window and retrieval bookkeeping.
type ArchivedProfile struct {
	Remote     ExternalRef
	FirstSeen  time.Time
	Username   *TemporalField[string]
	Attributes map[string]*TemporalField[int64]
}

// ProfileSnapshot is one scrape result handed to an archive store.
type ProfileSnapshot struct {
	Remote     ExternalRef
	CapturedAt time.Time
	Attributes map[string]int64
}

func (s ProfileSnapshot) Validate() error {
	if err := s.Remote.Validate(); err != nil {
		return err
	}
	if s.CapturedAt.IsZero() {
		return fmt.Errorf("core: snapshot capture time is required")
	}
	return nil
}
