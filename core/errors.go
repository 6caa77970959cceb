package core

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Sentinel errors for errors.Is checks. Service boundaries wrap these into
// go-errors envelopes carrying a category, HTTP code and text code.
var (
	ErrConflict           = errors.New("core: link conflict")
	ErrNotFound           = errors.New("core: not found")
	ErrInvalidCredentials = errors.New("core: invalid credentials")
	ErrInvalidScope       = errors.New("core: invalid scope")
	ErrExpired            = errors.New("core: expired")
	ErrReplayed           = errors.New("core: grant code replayed")
	ErrStaleObservation   = errors.New("core: stale observation")
	ErrInvalidLogin       = errors.New("core: invalid login")
)

const (
	FederationErrorBadInput           = "FEDERATION_BAD_INPUT"
	FederationErrorConflict           = "FEDERATION_LINK_CONFLICT"
	FederationErrorNotFound           = "FEDERATION_NOT_FOUND"
	FederationErrorInvalidCredentials = "FEDERATION_INVALID_CREDENTIALS"
	FederationErrorInvalidScope       = "FEDERATION_INVALID_SCOPE"
	FederationErrorExpired            = "FEDERATION_EXPIRED"
	FederationErrorReplayed           = "FEDERATION_CODE_REPLAYED"
	FederationErrorStaleObservation   = "FEDERATION_STALE_OBSERVATION"
	FederationErrorInvalidLogin       = "FEDERATION_INVALID_LOGIN"
	FederationErrorInternal           = "FEDERATION_INTERNAL_ERROR"
)

func federationErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureFederationErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrConflict):
		return newFederationError(err.Error(), goerrors.CategoryConflict, FederationErrorConflict)
	case errors.Is(err, ErrNotFound):
		return newFederationError(err.Error(), goerrors.CategoryNotFound, FederationErrorNotFound)
	case errors.Is(err, ErrInvalidCredentials):
		return newFederationError(err.Error(), goerrors.CategoryAuth, FederationErrorInvalidCredentials)
	case errors.Is(err, ErrInvalidScope):
		return newFederationError(err.Error(), goerrors.CategoryBadInput, FederationErrorInvalidScope)
	case errors.Is(err, ErrExpired):
		return newFederationError(err.Error(), goerrors.CategoryAuth, FederationErrorExpired)
	case errors.Is(err, ErrReplayed):
		return newFederationError(err.Error(), goerrors.CategoryConflict, FederationErrorReplayed)
	case errors.Is(err, ErrStaleObservation):
		return newFederationError(err.Error(), goerrors.CategoryConflict, FederationErrorStaleObservation)
	case errors.Is(err, ErrInvalidLogin):
		return newFederationError(err.Error(), goerrors.CategoryBadInput, FederationErrorInvalidLogin)
	case errors.Is(err, ErrInvalidProvider), errors.Is(err, ErrInvalidServer):
		return newFederationError(err.Error(), goerrors.CategoryBadInput, FederationErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureFederationErrorEnvelope(mapped)
}

func newFederationError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureFederationErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureFederationErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = federationHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultFederationTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultFederationTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return FederationErrorBadInput
	case goerrors.CategoryNotFound:
		return FederationErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return FederationErrorInvalidCredentials
	case goerrors.CategoryConflict:
		return FederationErrorConflict
	default:
		return FederationErrorInternal
	}
}

func federationHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// AuthorizationErrorCode is the RFC 6749 §4.1.2.1 error taxonomy exposed to
// OAuth transports.
type AuthorizationErrorCode string

const (
	AuthorizationErrorInvalidRequest          AuthorizationErrorCode = "invalid_request"
	AuthorizationErrorUnauthorizedClient      AuthorizationErrorCode = "unauthorized_client"
	AuthorizationErrorAccessDenied            AuthorizationErrorCode = "access_denied"
	AuthorizationErrorUnsupportedResponseType AuthorizationErrorCode = "unsupported_response_type"
	AuthorizationErrorInvalidScope            AuthorizationErrorCode = "invalid_scope"
	AuthorizationErrorServerError             AuthorizationErrorCode = "server_error"
	AuthorizationErrorTemporarilyUnavailable  AuthorizationErrorCode = "temporarily_unavailable"
)

// AuthorizationErrorFor maps a domain failure onto the RFC taxonomy.
func AuthorizationErrorFor(err error) AuthorizationErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidScope):
		return AuthorizationErrorInvalidScope
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrExpired), errors.Is(err, ErrReplayed):
		return AuthorizationErrorAccessDenied
	case errors.Is(err, ErrNotFound):
		return AuthorizationErrorUnauthorizedClient
	case errors.Is(err, ErrInvalidLogin), errors.Is(err, ErrInvalidProvider), errors.Is(err, ErrInvalidServer):
		return AuthorizationErrorInvalidRequest
	default:
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			switch richErr.Category {
			case goerrors.CategoryBadInput, goerrors.CategoryValidation:
				return AuthorizationErrorInvalidRequest
			case goerrors.CategoryAuth, goerrors.CategoryAuthz:
				return AuthorizationErrorAccessDenied
			case goerrors.CategoryNotFound:
				return AuthorizationErrorUnauthorizedClient
			case goerrors.CategoryRateLimit:
				return AuthorizationErrorTemporarilyUnavailable
			}
		}
		return AuthorizationErrorServerError
	}
}

// AuthorizationRedirect encodes an authorization failure into the redirect
// URI query string per RFC 6749. It reports false when no redirect URI is
// known, in which case the caller must report the error in band.
func AuthorizationRedirect(redirectURI string, err error, state string) (string, bool) {
	redirectURI = strings.TrimSpace(redirectURI)
	if redirectURI == "" || err == nil {
		return "", false
	}
	target, parseErr := url.Parse(redirectURI)
	if parseErr != nil {
		return "", false
	}
	query := target.Query()
	query.Set("error", string(AuthorizationErrorFor(err)))
	if description := strings.TrimSpace(err.Error()); description != "" {
		query.Set("error_description", description)
	}
	if strings.TrimSpace(state) != "" {
		query.Set("state", state)
	}
	target.RawQuery = query.Encode()
	return target.String(), true
}
