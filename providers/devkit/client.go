package devkit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-federation/core"
)

// Account is one seeded external account a DevClient can log into.
type Account struct {
	Server     string
	ID         string
	Username   string
	Password   string
	Attributes map[string]int64
}

// DevClient is an in-process core.ExternalClient for local development and
// tests. It serves seeded accounts, mints deterministic session keys, and
// lets tests invalidate sessions out of band the way a real server would.
type DevClient struct {
	provider core.Provider
	clock    core.ClockService

	mu         sync.Mutex
	accounts   map[string]*Account
	sessions   map[string]string
	sessionSeq int
}

func NewDevClient(provider core.Provider, clock core.ClockService) (*DevClient, error) {
	if _, err := core.ParseProvider(string(provider)); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &DevClient{
		provider: provider,
		clock:    clock,
		accounts: map[string]*Account{},
		sessions: map[string]string{},
	}, nil
}

func (c *DevClient) Provider() core.Provider {
	if c == nil {
		return ""
	}
	return c.provider
}

// RegisterAccount seeds an account. Re-registering the same (server, id)
// replaces it.
func (c *DevClient) RegisterAccount(account Account) error {
	if c == nil {
		return fmt.Errorf("devkit: client is not configured")
	}
	if !c.provider.HasServer(account.Server) {
		return fmt.Errorf("devkit: %q is not a %s server", account.Server, c.provider)
	}
	if strings.TrimSpace(account.ID) == "" || strings.TrimSpace(account.Username) == "" {
		return fmt.Errorf("devkit: account id and username are required")
	}
	copied := account
	copied.Attributes = copyAttributes(account.Attributes)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[accountKey(account.Server, account.ID)] = &copied
	return nil
}

func (c *DevClient) CreateSession(_ context.Context, server string, username string, password string) (core.ExternalSessionHandle, error) {
	if c == nil {
		return core.ExternalSessionHandle{}, fmt.Errorf("devkit: client is not configured")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	account := c.findByUsernameLocked(server, username)
	if account == nil || account.Password != password {
		return core.ExternalSessionHandle{}, fmt.Errorf("%w: bad external login", core.ErrInvalidCredentials)
	}

	c.sessionSeq++
	key := fmt.Sprintf("dev-session-%d", c.sessionSeq)
	c.sessions[sessionKey(server, key)] = account.ID
	return core.ExternalSessionHandle{
		Key:     key,
		Profile: c.snapshotLocked(account),
	}, nil
}

// TestSession returns the profile behind a live session, or nil when the
// session was invalidated.
func (c *DevClient) TestSession(_ context.Context, server string, key string) (*core.ProfileSnapshot, error) {
	if c == nil {
		return nil, fmt.Errorf("devkit: client is not configured")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	accountID, ok := c.sessions[sessionKey(server, key)]
	if !ok {
		return nil, nil
	}
	account := c.accounts[accountKey(server, accountID)]
	if account == nil {
		return nil, nil
	}
	snapshot := c.snapshotLocked(account)
	return &snapshot, nil
}

func (c *DevClient) FetchProfile(_ context.Context, server string, externalID string) (core.ProfileSnapshot, error) {
	if c == nil {
		return core.ProfileSnapshot{}, fmt.Errorf("devkit: client is not configured")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	account := c.accounts[accountKey(server, externalID)]
	if account == nil {
		return core.ProfileSnapshot{}, fmt.Errorf("%w: account %s on %s", core.ErrNotFound, externalID, server)
	}
	return c.snapshotLocked(account), nil
}

// InvalidateSession simulates the external server killing a session out of
// band.
func (c *DevClient) InvalidateSession(server string, key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionKey(server, key))
}

// SetAttribute mutates a seeded account so later scrapes observe a change.
func (c *DevClient) SetAttribute(server string, externalID string, name string, value int64) error {
	if c == nil {
		return fmt.Errorf("devkit: client is not configured")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	account := c.accounts[accountKey(server, externalID)]
	if account == nil {
		return fmt.Errorf("%w: account %s on %s", core.ErrNotFound, externalID, server)
	}
	if account.Attributes == nil {
		account.Attributes = map[string]int64{}
	}
	account.Attributes[name] = value
	return nil
}

func (c *DevClient) snapshotLocked(account *Account) core.ProfileSnapshot {
	return core.ProfileSnapshot{
		Remote: core.ExternalRef{
			Provider: c.provider,
			Server:   account.Server,
			ID:       account.ID,
			Username: account.Username,
		},
		CapturedAt: c.clock.Now(),
		Attributes: copyAttributes(account.Attributes),
	}
}

func (c *DevClient) findByUsernameLocked(server string, username string) *Account {
	username = strings.TrimSpace(username)
	for _, account := range c.accounts {
		if account.Server == server && account.Username == username {
			return account
		}
	}
	return nil
}

func accountKey(server, id string) string {
	return server + "/" + id
}

func sessionKey(server, key string) string {
	return server + "#" + key
}

func copyAttributes(attributes map[string]int64) map[string]int64 {
	if len(attributes) == 0 {
		return map[string]int64{}
	}
	out := make(map[string]int64, len(attributes))
	for name, value := range attributes {
		out[name] = value
	}
	return out
}

var _ core.ExternalClient = (*DevClient)(nil)
