package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// stubHasher is a transparent SecretHasher so tests can assert on hashing
// behavior without paying scrypt cost.
type stubHasher struct{}

func (stubHasher) Hash(secret []byte) ([]byte, error) {
	return append([]byte("hashed:"), secret...), nil
}

func (stubHasher) Verify(hash []byte, secret []byte) bool {
	return string(hash) == "hashed:"+string(secret)
}

type sequenceUuidGenerator struct {
	next int
}

func (g *sequenceUuidGenerator) Next() uuid.UUID {
	g.next++
	return uuid.MustParse(fmt.Sprintf("00000000-0000-4000-8000-%012d", g.next))
}

func testEpoch() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func hammerfestRef(id string, username string) ExternalRef {
	return ExternalRef{
		Provider: ProviderHammerfest,
		Server:   ServerHammerfestFr,
		ID:       id,
		Username: username,
	}
}
