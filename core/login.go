package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// LoginType tags the result of classifying a raw login string.
type LoginType string

const (
	LoginTypeUserID         LoginType = "user_id"
	LoginTypeUsername       LoginType = "username"
	LoginTypeEmail          LoginType = "email"
	LoginTypeUuid           LoginType = "uuid"
	LoginTypeOauthClientID  LoginType = "oauth_client_id"
	LoginTypeOauthClientKey LoginType = "oauth_client_key"
)

// Login is a classified login string. For suffixed forms, Value holds the
// bare identifier with the suffix stripped, except client keys which keep
// their canonical `name@clients` form.
type Login struct {
	Type  LoginType
	Value string
}

const (
	userLoginSuffix   = "@users"
	clientLoginSuffix = "@clients"
)

var (
	usernamePattern  = regexp.MustCompile(`^[a-z_][a-z0-9_]{1,31}$`)
	clientKeyPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{1,31}$`)
	emailPattern     = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// ParseLogin classifies a raw login in a fixed priority order: suffixed
// username, client key, email, username, uuid. Anything else is a structured
// ErrInvalidLogin, never a silent fallback.
func ParseLogin(raw string) (Login, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Login{}, fmt.Errorf("%w: empty login", ErrInvalidLogin)
	}

	if bare, ok := strings.CutSuffix(trimmed, userLoginSuffix); ok {
		if isUuid(bare) {
			return Login{Type: LoginTypeUserID, Value: bare}, nil
		}
		if usernamePattern.MatchString(bare) {
			return Login{Type: LoginTypeUsername, Value: bare}, nil
		}
		return Login{}, fmt.Errorf("%w: %q", ErrInvalidLogin, raw)
	}

	if bare, ok := strings.CutSuffix(trimmed, clientLoginSuffix); ok {
		if isUuid(bare) {
			return Login{Type: LoginTypeOauthClientID, Value: bare}, nil
		}
		if clientKeyPattern.MatchString(bare) {
			return Login{Type: LoginTypeOauthClientKey, Value: trimmed}, nil
		}
		return Login{}, fmt.Errorf("%w: %q", ErrInvalidLogin, raw)
	}

	if emailPattern.MatchString(trimmed) {
		return Login{Type: LoginTypeEmail, Value: trimmed}, nil
	}
	if usernamePattern.MatchString(trimmed) {
		return Login{Type: LoginTypeUsername, Value: trimmed}, nil
	}
	if isUuid(trimmed) {
		return Login{Type: LoginTypeUuid, Value: trimmed}, nil
	}
	return Login{}, fmt.Errorf("%w: %q", ErrInvalidLogin, raw)
}

// ClientRef addresses an OAuth client either by uuid or by its stable
// `name@clients` key. Exactly one side is set.
type ClientRef struct {
	ID  string
	Key string
}

func (r ClientRef) Validate() error {
	hasID := strings.TrimSpace(r.ID) != ""
	hasKey := strings.TrimSpace(r.Key) != ""
	if hasID == hasKey {
		return fmt.Errorf("core: client ref requires exactly one of id or key")
	}
	return nil
}

// ParseClientRef reads the transport form of a client reference: a uuid for
// external clients, or the `name@clients` key form for system clients.
func ParseClientRef(raw string) (ClientRef, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ClientRef{}, fmt.Errorf("%w: empty client ref", ErrInvalidLogin)
	}
	if isUuid(trimmed) {
		return ClientRef{ID: trimmed}, nil
	}
	if bare, ok := strings.CutSuffix(trimmed, clientLoginSuffix); ok && clientKeyPattern.MatchString(bare) {
		return ClientRef{Key: trimmed}, nil
	}
	if clientKeyPattern.MatchString(trimmed) {
		return ClientRef{Key: trimmed + clientLoginSuffix}, nil
	}
	return ClientRef{}, fmt.Errorf("%w: %q is not a client id or key", ErrInvalidLogin, raw)
}

func isUuid(value string) bool {
	if len(value) != 36 {
		return false
	}
	_, err := uuid.Parse(value)
	return err == nil
}
