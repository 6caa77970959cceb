package core

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GrantCodeIssuer is the fixed `iss` claim of every grant code.
const GrantCodeIssuer = "etwin"

const DefaultGrantCodeTTL = 5 * time.Minute

// GrantCode is the verified claim set of an authorization code: a stateless,
// short-lived credential exchanged exactly once for an access token.
type GrantCode struct {
	UserID    string
	Audience  []string
	Scopes    []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ForClient reports whether the code was granted to the given client, by id
// or by system key.
func (c GrantCode) ForClient(client OauthClient) bool {
	for _, aud := range c.Audience {
		if aud == client.ID {
			return true
		}
		if client.IsSystem() && aud == client.Key {
			return true
		}
	}
	return false
}

type grantCodeClaims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// GrantCodeSigner issues and verifies the compact signed JWT acting as the
// authorization code. Verification is pure: expiry is enforced from the
// injected clock, independent of store availability.
type GrantCodeSigner struct {
	secret []byte
	ttl    time.Duration
	clock  ClockService
}

func NewGrantCodeSigner(secret []byte, ttl time.Duration, clock ClockService) (*GrantCodeSigner, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("core: grant code secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultGrantCodeTTL
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &GrantCodeSigner{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		clock:  clock,
	}, nil
}

// Issue signs a grant code for the (user, client, scopes) triple. For system
// clients the audience carries both the client id and its key.
func (s *GrantCodeSigner) Issue(userID string, client OauthClient, scopes ScopeSet) (string, error) {
	if s == nil {
		return "", fmt.Errorf("core: grant code signer is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("core: grant code subject is required")
	}
	audience := []string{client.ID}
	if client.IsSystem() {
		audience = append(audience, client.Key)
	}
	now := s.clock.Now()
	claims := grantCodeClaims{
		Scopes: scopes.Slice(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    GrantCodeIssuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("core: sign grant code: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry, and returns the decoded claims.
func (s *GrantCodeSigner) Verify(code string) (GrantCode, error) {
	if s == nil {
		return GrantCode{}, fmt.Errorf("core: grant code signer is not configured")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return GrantCode{}, fmt.Errorf("%w: empty grant code", ErrInvalidCredentials)
	}

	claims := &grantCodeClaims{}
	_, err := jwt.ParseWithClaims(code, claims,
		func(token *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(GrantCodeIssuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return GrantCode{}, fmt.Errorf("%w: grant code expired", ErrExpired)
		}
		return GrantCode{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	out := GrantCode{
		UserID:   claims.Subject,
		Audience: append([]string(nil), claims.Audience...),
		Scopes:   append([]string(nil), claims.Scopes...),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// TTL is the validity window Issue stamps into each code.
func (s *GrantCodeSigner) TTL() time.Duration {
	if s == nil {
		return 0
	}
	return s.ttl
}

// GrantCodeReplayKey derives the replay-ledger key from the raw code so the
// ledger never stores the bearer credential itself.
func GrantCodeReplayKey(code string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(code)))
	return "grant_code:" + hex.EncodeToString(sum[:])
}
