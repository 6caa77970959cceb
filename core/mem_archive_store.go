package core

import (
	"context"
	"fmt"
	"sync"
)

// MemoryArchiveStore keeps temporally merged profiles for one provider
// family. Merges are all-or-nothing: a stale snapshot leaves the stored
// profile untouched.
type MemoryArchiveStore struct {
	mu       sync.Mutex
	provider Provider
	profiles map[externalKey]*ArchivedProfile
}

func NewMemoryArchiveStore(provider Provider) (*MemoryArchiveStore, error) {
	if _, err := ParseProvider(string(provider)); err != nil {
		return nil, err
	}
	return &MemoryArchiveStore{
		provider: provider,
		profiles: map[externalKey]*ArchivedProfile{},
	}, nil
}

func (s *MemoryArchiveStore) Provider() Provider {
	if s == nil {
		return ""
	}
	return s.provider
}

// TouchProfile folds one scrape into the archived record. The first snapshot
// for an account creates the record; later ones merge each field under the
// temporal rules, rejecting observations older than what is already known.
func (s *MemoryArchiveStore) TouchProfile(_ context.Context, snapshot ProfileSnapshot) (ArchivedProfile, error) {
	if s == nil {
		return ArchivedProfile{}, fmt.Errorf("core: archive store is not configured")
	}
	if err := snapshot.Validate(); err != nil {
		return ArchivedProfile{}, err
	}
	if snapshot.Remote.Provider != s.provider {
		return ArchivedProfile{}, fmt.Errorf(
			"%w: %s snapshot offered to the %s archive",
			ErrInvalidProvider, snapshot.Remote.Provider, s.provider,
		)
	}
	capturedAt := snapshot.CapturedAt.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.profiles[snapshot.Remote.key()]
	next := cloneArchivedProfile(stored)
	if next == nil {
		next = &ArchivedProfile{
			Remote:     snapshot.Remote,
			FirstSeen:  capturedAt,
			Attributes: map[string]*TemporalField[int64]{},
		}
	} else {
		next.Remote.Username = snapshot.Remote.Username
	}

	if snapshot.Remote.Username != "" {
		merged, err := MergeObservation(next.Username, capturedAt, snapshot.Remote.Username)
		if err != nil {
			return ArchivedProfile{}, err
		}
		next.Username = merged
	}
	for name, value := range snapshot.Attributes {
		merged, err := MergeObservation(next.Attributes[name], capturedAt, value)
		if err != nil {
			return ArchivedProfile{}, err
		}
		next.Attributes[name] = merged
	}

	s.profiles[snapshot.Remote.key()] = next
	return *cloneArchivedProfile(next), nil
}

func (s *MemoryArchiveStore) GetProfile(_ context.Context, ref ExternalRef) (*ArchivedProfile, error) {
	if s == nil {
		return nil, fmt.Errorf("core: archive store is not configured")
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneArchivedProfile(s.profiles[ref.key()]), nil
}

func cloneArchivedProfile(profile *ArchivedProfile) *ArchivedProfile {
	if profile == nil {
		return nil
	}
	next := *profile
	next.Username = profile.Username.Clone()
	next.Attributes = make(map[string]*TemporalField[int64], len(profile.Attributes))
	for name, field := range profile.Attributes {
		next.Attributes[name] = field.Clone()
	}
	return &next
}

var _ ArchiveStore = (*MemoryArchiveStore)(nil)
