package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN       = 1 << 15
	scryptR       = 8
	scryptP       = 1
	scryptKeyLen  = 32
	scryptSaltLen = 16
)

// ScryptHasher derives client-secret hashes with scrypt. The encoded form
// carries its own parameters so they can be raised later without breaking
// stored hashes.
type ScryptHasher struct {
	N      int
	R      int
	P      int
	KeyLen int
}

func NewScryptHasher() ScryptHasher {
	return ScryptHasher{N: scryptN, R: scryptR, P: scryptP, KeyLen: scryptKeyLen}
}

func (h ScryptHasher) Hash(secret []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("security: secret is required")
	}
	n, r, p, keyLen := h.params()
	salt := make([]byte, scryptSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("security: generate salt: %w", err)
	}
	derived, err := scrypt.Key(secret, salt, n, r, p, keyLen)
	if err != nil {
		return nil, fmt.Errorf("security: derive key: %w", err)
	}
	encoded := fmt.Sprintf("scrypt$%d$%d$%d$%s$%s",
		n, r, p,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(derived),
	)
	return []byte(encoded), nil
}

// Verify compares in constant time over the derived key. A malformed stored
// hash verifies as false, never as an error, so callers cannot distinguish
// corruption from mismatch.
func (h ScryptHasher) Verify(hash []byte, secret []byte) bool {
	if len(hash) == 0 || len(secret) == 0 {
		return false
	}
	parts := strings.Split(string(hash), "$")
	if len(parts) != 6 || parts[0] != "scrypt" {
		return false
	}
	n, errN := strconv.Atoi(parts[1])
	r, errR := strconv.Atoi(parts[2])
	p, errP := strconv.Atoi(parts[3])
	if errN != nil || errR != nil || errP != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false
	}
	derived, err := scrypt.Key(secret, salt, n, r, p, len(expected))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(derived, expected) == 1
}

func (h ScryptHasher) params() (n, r, p, keyLen int) {
	n, r, p, keyLen = h.N, h.R, h.P, h.KeyLen
	if n <= 1 {
		n = scryptN
	}
	if r <= 0 {
		r = scryptR
	}
	if p <= 0 {
		p = scryptP
	}
	if keyLen <= 0 {
		keyLen = scryptKeyLen
	}
	return n, r, p, keyLen
}
