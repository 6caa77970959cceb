package core

import (
	"fmt"
	"sort"
	"strings"
)

// ScopeBase is implicitly granted to every token; requesting it is legal but
// redundant. ScopeOffline additionally grants a refresh token on exchange.
const (
	ScopeBase    = "base"
	ScopeOffline = "offline"
)

// ScopeSet is a set of recognized scope tokens. The zero value is not usable;
// build one through ScopeRegistry.Parse so unknown scopes are rejected.
type ScopeSet map[string]struct{}

func (s ScopeSet) Contains(scope string) bool {
	_, ok := s[normalizeScope(scope)]
	return ok
}

// Slice returns the scopes in deterministic order, always including "base".
func (s ScopeSet) Slice() []string {
	out := make([]string, 0, len(s)+1)
	seen := false
	for scope := range s {
		if scope == ScopeBase {
			seen = true
		}
		out = append(out, scope)
	}
	if !seen {
		out = append(out, ScopeBase)
	}
	sort.Strings(out)
	return out
}

func (s ScopeSet) Offline() bool {
	return s.Contains(ScopeOffline)
}

// ScopeRegistry is the closed set of scopes this deployment recognizes.
type ScopeRegistry struct {
	known map[string]struct{}
}

func NewScopeRegistry(extra ...string) *ScopeRegistry {
	known := map[string]struct{}{
		ScopeBase:    {},
		ScopeOffline: {},
	}
	for _, scope := range extra {
		normalized := normalizeScope(scope)
		if normalized == "" {
			continue
		}
		known[normalized] = struct{}{}
	}
	return &ScopeRegistry{known: known}
}

// Parse reads a space-separated RFC 6749 scope string. An empty string is the
// implicit base grant. Unrecognized scopes are a hard failure, never silently
// dropped.
func (r *ScopeRegistry) Parse(raw string) (ScopeSet, error) {
	set := ScopeSet{ScopeBase: {}}
	for _, token := range strings.Fields(raw) {
		normalized := normalizeScope(token)
		if normalized == "" {
			continue
		}
		if r == nil || !r.knownScope(normalized) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidScope, token)
		}
		set[normalized] = struct{}{}
	}
	return set, nil
}

// FromSlice rebuilds a set from persisted scope tokens without re-validating
// against the registry; stored tokens were validated at issuance.
func ScopeSetFromSlice(scopes []string) ScopeSet {
	set := ScopeSet{ScopeBase: {}}
	for _, scope := range scopes {
		normalized := normalizeScope(scope)
		if normalized == "" {
			continue
		}
		set[normalized] = struct{}{}
	}
	return set
}

func (r *ScopeRegistry) knownScope(scope string) bool {
	if r == nil {
		return false
	}
	_, ok := r.known[scope]
	return ok
}

func normalizeScope(scope string) string {
	return strings.TrimSpace(strings.ToLower(scope))
}
