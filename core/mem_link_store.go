package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type externalKey struct {
	Provider Provider
	Server   string
	ID       string
}

func (r ExternalRef) key() externalKey {
	return externalKey{Provider: r.Provider, Server: r.Server, ID: r.ID}
}

// MemoryLinkStore is the in-process LinkStore. A single mutex makes every
// touch and delete an atomic read-modify-write; both indexes are mutated
// under the same critical section so they can never disagree.
type MemoryLinkStore struct {
	mu         sync.Mutex
	clock      ClockService
	byExternal map[externalKey]*VersionedLink
	byUser     map[string]map[LinkSlot]*VersionedLink
}

func NewMemoryLinkStore(clock ClockService) *MemoryLinkStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MemoryLinkStore{
		clock:      clock,
		byExternal: map[externalKey]*VersionedLink{},
		byUser:     map[string]map[LinkSlot]*VersionedLink{},
	}
}

func (s *MemoryLinkStore) GetLinkFromExternal(_ context.Context, ref ExternalRef) (VersionedLink, error) {
	if s == nil {
		return VersionedLink{}, fmt.Errorf("core: link store is not configured")
	}
	if err := ref.Validate(); err != nil {
		return VersionedLink{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.byExternal[ref.key()]
	if chain == nil {
		return VersionedLink{}, nil
	}
	return cloneVersionedLink(chain), nil
}

func (s *MemoryLinkStore) GetLinksFromUser(_ context.Context, userID string) (UserLinks, error) {
	if s == nil {
		return nil, fmt.Errorf("core: link store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("core: user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := UserLinks{}
	for _, provider := range Providers() {
		for _, server := range provider.Servers() {
			out[LinkSlot{Provider: provider, Server: server}] = VersionedLink{}
		}
	}
	for slot, chain := range s.byUser[userID] {
		out[slot] = cloneVersionedLink(chain)
	}
	return out, nil
}

// TouchLink binds an external account to a user. Re-linking the same pair is
// a no-op. An external account actively linked to a different user is a
// conflict. A user whose slot already holds a different account gets an
// implicit unlink of the old link, preserved in history on both sides.
func (s *MemoryLinkStore) TouchLink(_ context.Context, in TouchLinkInput) (VersionedLink, error) {
	if s == nil {
		return VersionedLink{}, fmt.Errorf("core: link store is not configured")
	}
	if err := in.Remote.Validate(); err != nil {
		return VersionedLink{}, err
	}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return VersionedLink{}, fmt.Errorf("core: user id is required")
	}
	actorID := strings.TrimSpace(in.ActorID)
	if actorID == "" {
		actorID = userID
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	extChain := s.ensureExternalLocked(in.Remote.key())
	if extChain.Current != nil {
		if extChain.Current.UserID != userID {
			return VersionedLink{}, fmt.Errorf(
				"%w: %s/%s account %s is linked to another user",
				ErrConflict, in.Remote.Provider, in.Remote.Server, in.Remote.ID,
			)
		}
		return cloneVersionedLink(extChain), nil
	}

	slot := in.Remote.Slot()
	userChain := s.ensureUserLocked(userID, slot)
	if userChain.Current != nil {
		s.unlinkLocked(userChain.Current, UserDot{Time: now, User: actorID})
	}

	link := Link{
		Link:   UserDot{Time: now, User: actorID},
		UserID: userID,
		Remote: in.Remote,
	}
	extChain.Current = &link
	current := link
	userChain.Current = &current

	return cloneVersionedLink(extChain), nil
}

// DeleteLink unconditionally unlinks the external account. Deleting an
// account with no active link is a no-op returning its history.
func (s *MemoryLinkStore) DeleteLink(_ context.Context, in DeleteLinkInput) (VersionedLink, error) {
	if s == nil {
		return VersionedLink{}, fmt.Errorf("core: link store is not configured")
	}
	if err := in.Remote.Validate(); err != nil {
		return VersionedLink{}, err
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.byExternal[in.Remote.key()]
	if chain == nil {
		return VersionedLink{}, nil
	}
	if chain.Current != nil {
		actor := strings.TrimSpace(in.ActorID)
		if actor == "" {
			actor = chain.Current.UserID
		}
		s.unlinkLocked(chain.Current, UserDot{Time: now, User: actor})
	}
	return cloneVersionedLink(chain), nil
}

// unlinkLocked closes the active link and pushes it into history on both the
// external side and the user side.
func (s *MemoryLinkStore) unlinkLocked(active *Link, dot UserDot) {
	closed := *active
	closed.Unlink = &dot

	extChain := s.ensureExternalLocked(active.Remote.key())
	if extChain.Current != nil && extChain.Current.UserID == active.UserID {
		extChain.Old = append(extChain.Old, closed)
		extChain.Current = nil
	}

	userChain := s.ensureUserLocked(active.UserID, active.Remote.Slot())
	if userChain.Current != nil && userChain.Current.Remote.SameAccount(active.Remote) {
		userChain.Old = append(userChain.Old, closed)
		userChain.Current = nil
	}
}

func (s *MemoryLinkStore) ensureExternalLocked(key externalKey) *VersionedLink {
	chain := s.byExternal[key]
	if chain == nil {
		chain = &VersionedLink{}
		s.byExternal[key] = chain
	}
	return chain
}

func (s *MemoryLinkStore) ensureUserLocked(userID string, slot LinkSlot) *VersionedLink {
	slots := s.byUser[userID]
	if slots == nil {
		slots = map[LinkSlot]*VersionedLink{}
		s.byUser[userID] = slots
	}
	chain := slots[slot]
	if chain == nil {
		chain = &VersionedLink{}
		slots[slot] = chain
	}
	return chain
}

func cloneVersionedLink(chain *VersionedLink) VersionedLink {
	if chain == nil {
		return VersionedLink{}
	}
	out := VersionedLink{}
	if chain.Current != nil {
		current := *chain.Current
		out.Current = &current
	}
	if len(chain.Old) > 0 {
		out.Old = append([]Link(nil), chain.Old...)
	}
	return out
}

var _ LinkStore = (*MemoryLinkStore)(nil)
