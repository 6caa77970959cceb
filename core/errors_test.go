package core

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestFederationErrorMapper(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		category goerrors.Category
		code     int
		textCode string
	}{
		{name: "conflict", err: ErrConflict, category: goerrors.CategoryConflict, code: http.StatusConflict, textCode: FederationErrorConflict},
		{name: "not found", err: ErrNotFound, category: goerrors.CategoryNotFound, code: http.StatusNotFound, textCode: FederationErrorNotFound},
		{name: "invalid credentials", err: ErrInvalidCredentials, category: goerrors.CategoryAuth, code: http.StatusUnauthorized, textCode: FederationErrorInvalidCredentials},
		{name: "invalid scope", err: ErrInvalidScope, category: goerrors.CategoryBadInput, code: http.StatusBadRequest, textCode: FederationErrorInvalidScope},
		{name: "expired", err: ErrExpired, category: goerrors.CategoryAuth, code: http.StatusUnauthorized, textCode: FederationErrorExpired},
		{name: "replayed", err: ErrReplayed, category: goerrors.CategoryConflict, code: http.StatusConflict, textCode: FederationErrorReplayed},
		{name: "stale observation", err: ErrStaleObservation, category: goerrors.CategoryConflict, code: http.StatusConflict, textCode: FederationErrorStaleObservation},
		{name: "invalid login", err: ErrInvalidLogin, category: goerrors.CategoryBadInput, code: http.StatusBadRequest, textCode: FederationErrorInvalidLogin},
		{name: "invalid provider", err: ErrInvalidProvider, category: goerrors.CategoryBadInput, code: http.StatusBadRequest, textCode: FederationErrorBadInput},
		{name: "wrapped sentinel", err: fmt.Errorf("touch link: %w", ErrConflict), category: goerrors.CategoryConflict, code: http.StatusConflict, textCode: FederationErrorConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := federationErrorMapper(tc.err)
			if mapped == nil {
				t.Fatalf("expected mapped error")
			}
			if mapped.Category != tc.category {
				t.Fatalf("expected category %s, got %s", tc.category, mapped.Category)
			}
			if mapped.Code != tc.code {
				t.Fatalf("expected code %d, got %d", tc.code, mapped.Code)
			}
			if mapped.TextCode != tc.textCode {
				t.Fatalf("expected text code %s, got %s", tc.textCode, mapped.TextCode)
			}
		})
	}

	t.Run("nil error", func(t *testing.T) {
		if federationErrorMapper(nil) != nil {
			t.Fatalf("expected nil for nil error")
		}
	})

	t.Run("existing envelope keeps its identity", func(t *testing.T) {
		original := goerrors.New("boom", goerrors.CategoryConflict).WithTextCode("CUSTOM_CODE")
		mapped := federationErrorMapper(original)
		if mapped.TextCode != "CUSTOM_CODE" {
			t.Fatalf("expected custom text code to survive, got %s", mapped.TextCode)
		}
		if mapped.Code != http.StatusConflict {
			t.Fatalf("expected http code to be filled in, got %d", mapped.Code)
		}
	})
}

func TestAuthorizationErrorFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want AuthorizationErrorCode
	}{
		{name: "nil", err: nil, want: ""},
		{name: "invalid scope", err: ErrInvalidScope, want: AuthorizationErrorInvalidScope},
		{name: "invalid credentials", err: ErrInvalidCredentials, want: AuthorizationErrorAccessDenied},
		{name: "expired", err: ErrExpired, want: AuthorizationErrorAccessDenied},
		{name: "replayed", err: ErrReplayed, want: AuthorizationErrorAccessDenied},
		{name: "not found", err: ErrNotFound, want: AuthorizationErrorUnauthorizedClient},
		{name: "invalid login", err: ErrInvalidLogin, want: AuthorizationErrorInvalidRequest},
		{name: "unknown", err: fmt.Errorf("boom"), want: AuthorizationErrorServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AuthorizationErrorFor(tc.err); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestAuthorizationRedirect(t *testing.T) {
	location, ok := AuthorizationRedirect("https://app.example.com/callback", ErrInvalidScope, "xyz")
	if !ok {
		t.Fatalf("expected a redirect")
	}
	target, err := url.Parse(location)
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	query := target.Query()
	if query.Get("error") != string(AuthorizationErrorInvalidScope) {
		t.Fatalf("expected invalid_scope error, got %q", query.Get("error"))
	}
	if query.Get("error_description") == "" {
		t.Fatalf("expected an error description")
	}
	if query.Get("state") != "xyz" {
		t.Fatalf("expected state to round trip, got %q", query.Get("state"))
	}

	if _, ok := AuthorizationRedirect("", ErrInvalidScope, ""); ok {
		t.Fatalf("expected no redirect without a redirect uri")
	}
	if _, ok := AuthorizationRedirect("https://app.example.com/callback", nil, ""); ok {
		t.Fatalf("expected no redirect without an error")
	}
}
