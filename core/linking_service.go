package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// LinkedAccount pairs the link state of one slot with whatever the archive
// knows about the currently linked external account.
type LinkedAccount struct {
	Link    VersionedLink
	Profile *ArchivedProfile
}

// LinkedView is the per-slot linked view of one local user, enriched with
// archived profiles.
type LinkedView map[LinkSlot]LinkedAccount

type LoginExternalInput struct {
	Provider Provider
	Server   string
	Username string
	Password string
}

// LoginResult is a fresh external login: the cached session plus the profile
// observed while logging in.
type LoginResult struct {
	Session ExternalSession
	Profile ArchivedProfile
}

// LinkingService is the identity façade. It is the only component that talks
// to the external provider clients; link and token stores stay pure
// persistence behind it.
type LinkingService struct {
	links    LinkStore
	tokens   TokenStore
	archives map[Provider]ArchiveStore
	clients  map[Provider]ExternalClient
	clock    ClockService
	logger   Logger
}

type LinkingServiceDeps struct {
	Links    LinkStore
	Tokens   TokenStore
	Archives map[Provider]ArchiveStore
	Clients  map[Provider]ExternalClient
	Clock    ClockService
	Logger   Logger
}

func NewLinkingService(deps LinkingServiceDeps) (*LinkingService, error) {
	if deps.Links == nil {
		return nil, fmt.Errorf("core: link store is required")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("core: token store is required")
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	archives := map[Provider]ArchiveStore{}
	for provider, archive := range deps.Archives {
		if archive != nil {
			archives[provider] = archive
		}
	}
	clients := map[Provider]ExternalClient{}
	for provider, client := range deps.Clients {
		if client != nil {
			clients[provider] = client
		}
	}
	return &LinkingService{
		links:    deps.Links,
		tokens:   deps.Tokens,
		archives: archives,
		clients:  clients,
		clock:    deps.Clock,
		logger:   ensureLogger(deps.Logger, "linking"),
	}, nil
}

// GetLinkedView returns every slot for the user, with the archived profile of
// the currently linked account where one exists.
func (s *LinkingService) GetLinkedView(ctx context.Context, userID string) (LinkedView, error) {
	if s == nil {
		return nil, fmt.Errorf("core: linking service is not configured")
	}
	links, err := s.links.GetLinksFromUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := LinkedView{}
	for slot, link := range links {
		account := LinkedAccount{Link: link}
		if link.Current != nil {
			if archive := s.archives[slot.Provider]; archive != nil {
				profile, err := archive.GetProfile(ctx, link.Current.Remote)
				if err != nil {
					return nil, err
				}
				account.Profile = profile
			}
		}
		view[slot] = account
	}
	return view, nil
}

func (s *LinkingService) GetLinkFromExternal(ctx context.Context, ref ExternalRef) (VersionedLink, error) {
	if s == nil {
		return VersionedLink{}, fmt.Errorf("core: linking service is not configured")
	}
	return s.links.GetLinkFromExternal(ctx, ref)
}

// TouchLink binds an external account to a user, recording the identity in
// the provider archive first so even a conflicting attempt leaves a trace of
// the observed account.
func (s *LinkingService) TouchLink(ctx context.Context, in TouchLinkInput) (VersionedLink, error) {
	if s == nil {
		return VersionedLink{}, fmt.Errorf("core: linking service is not configured")
	}
	if err := in.Remote.Validate(); err != nil {
		return VersionedLink{}, err
	}
	if err := s.touchArchiveIdentity(ctx, in.Remote); err != nil {
		return VersionedLink{}, err
	}
	link, err := s.links.TouchLink(ctx, in)
	if err != nil {
		return VersionedLink{}, err
	}
	s.logger.Info("linked external account",
		"provider", in.Remote.Provider,
		"server", in.Remote.Server,
		"external_id", in.Remote.ID,
		"user_id", in.UserID,
	)
	return link, nil
}

// DeleteLink unconditionally unlinks the external account.
func (s *LinkingService) DeleteLink(ctx context.Context, in DeleteLinkInput) (VersionedLink, error) {
	if s == nil {
		return VersionedLink{}, fmt.Errorf("core: linking service is not configured")
	}
	link, err := s.links.DeleteLink(ctx, in)
	if err != nil {
		return VersionedLink{}, err
	}
	s.logger.Info("unlinked external account",
		"provider", in.Remote.Provider,
		"server", in.Remote.Server,
		"external_id", in.Remote.ID,
	)
	return link, nil
}

// LoginExternal creates a live session on the external server with the given
// credentials, caches it, and archives the profile observed during login.
func (s *LinkingService) LoginExternal(ctx context.Context, in LoginExternalInput) (LoginResult, error) {
	if s == nil {
		return LoginResult{}, fmt.Errorf("core: linking service is not configured")
	}
	client, err := s.clientFor(in.Provider)
	if err != nil {
		return LoginResult{}, err
	}
	if !in.Provider.HasServer(in.Server) {
		return LoginResult{}, fmt.Errorf("%w: %q is not a %s server", ErrInvalidServer, in.Server, in.Provider)
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return LoginResult{}, fmt.Errorf("%w: external username is required", ErrInvalidCredentials)
	}

	handle, err := client.CreateSession(ctx, in.Server, username, in.Password)
	if err != nil {
		return LoginResult{}, err
	}

	profile, err := s.touchArchiveSnapshot(ctx, handle.Profile)
	if err != nil {
		return LoginResult{}, err
	}
	session, err := s.tokens.TouchSession(ctx, handle.Profile.Remote, handle.Key)
	if err != nil {
		return LoginResult{}, err
	}
	s.logger.Info("external login",
		"provider", in.Provider,
		"server", in.Server,
		"external_id", handle.Profile.Remote.ID,
	)
	return LoginResult{Session: session, Profile: profile}, nil
}

// AuthenticateSession revalidates a cached session key against the external
// server. A dead session is revoked and reported as InvalidCredentials; a
// live one refreshes both the session record and the archive.
func (s *LinkingService) AuthenticateSession(ctx context.Context, provider Provider, server string, key string) (LoginResult, error) {
	if s == nil {
		return LoginResult{}, fmt.Errorf("core: linking service is not configured")
	}
	client, err := s.clientFor(provider)
	if err != nil {
		return LoginResult{}, err
	}
	if !provider.HasServer(server) {
		return LoginResult{}, fmt.Errorf("%w: %q is not a %s server", ErrInvalidServer, server, provider)
	}

	snapshot, err := client.TestSession(ctx, server, key)
	if err != nil {
		return LoginResult{}, err
	}
	if snapshot == nil {
		if revokeErr := s.tokens.RevokeSession(ctx, provider, server, key); revokeErr != nil {
			s.logger.Error("revoke dead session", "error", revokeErr)
		}
		return LoginResult{}, fmt.Errorf("%w: external session is no longer valid", ErrInvalidCredentials)
	}

	profile, err := s.touchArchiveSnapshot(ctx, *snapshot)
	if err != nil {
		return LoginResult{}, err
	}
	session, err := s.tokens.TouchSession(ctx, snapshot.Remote, key)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Session: session, Profile: profile}, nil
}

// GetSession returns the last known session for an external user. Callers
// treat the result as advisory; the external side may have invalidated it.
func (s *LinkingService) GetSession(ctx context.Context, user ExternalRef) (*ExternalSession, error) {
	if s == nil {
		return nil, fmt.Errorf("core: linking service is not configured")
	}
	return s.tokens.GetSession(ctx, user)
}

// RevokeSession drops a cached session key. Revoking an unknown key is a
// no-op; the external session itself is left to the provider.
func (s *LinkingService) RevokeSession(ctx context.Context, provider Provider, server string, key string) error {
	if s == nil {
		return fmt.Errorf("core: linking service is not configured")
	}
	return s.tokens.RevokeSession(ctx, provider, server, key)
}

// RefreshProfile scrapes the external account and folds the snapshot into
// the archive.
func (s *LinkingService) RefreshProfile(ctx context.Context, ref ExternalRef) (ArchivedProfile, error) {
	if s == nil {
		return ArchivedProfile{}, fmt.Errorf("core: linking service is not configured")
	}
	if err := ref.Validate(); err != nil {
		return ArchivedProfile{}, err
	}
	client, err := s.clientFor(ref.Provider)
	if err != nil {
		return ArchivedProfile{}, err
	}
	snapshot, err := client.FetchProfile(ctx, ref.Server, ref.ID)
	if err != nil {
		return ArchivedProfile{}, err
	}
	return s.touchArchiveSnapshot(ctx, snapshot)
}

// GetProfile reads the archived profile without touching the external side.
func (s *LinkingService) GetProfile(ctx context.Context, ref ExternalRef) (*ArchivedProfile, error) {
	if s == nil {
		return nil, fmt.Errorf("core: linking service is not configured")
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	archive := s.archives[ref.Provider]
	if archive == nil {
		return nil, fmt.Errorf("%w: no archive for provider %s", ErrNotFound, ref.Provider)
	}
	return archive.GetProfile(ctx, ref)
}

func (s *LinkingService) clientFor(provider Provider) (ExternalClient, error) {
	if _, err := ParseProvider(string(provider)); err != nil {
		return nil, err
	}
	client := s.clients[provider]
	if client == nil {
		return nil, fmt.Errorf("%w: no external client for provider %s", ErrNotFound, provider)
	}
	return client, nil
}

// touchArchiveIdentity records the bare identity ref ahead of a link action.
// A stale-observation rejection is ignored here: the archive already knows a
// newer view of the account and the link action should still proceed.
func (s *LinkingService) touchArchiveIdentity(ctx context.Context, ref ExternalRef) error {
	archive := s.archives[ref.Provider]
	if archive == nil {
		return nil
	}
	_, err := archive.TouchProfile(ctx, ProfileSnapshot{
		Remote:     ref,
		CapturedAt: s.clock.Now(),
	})
	if err != nil && !errors.Is(err, ErrStaleObservation) {
		return err
	}
	return nil
}

func (s *LinkingService) touchArchiveSnapshot(ctx context.Context, snapshot ProfileSnapshot) (ArchivedProfile, error) {
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = s.clock.Now()
	}
	archive := s.archives[snapshot.Remote.Provider]
	if archive == nil {
		return ArchivedProfile{Remote: snapshot.Remote}, nil
	}
	return archive.TouchProfile(ctx, snapshot)
}
