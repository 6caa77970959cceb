package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	federation "github.com/goliatone/go-federation"
	"github.com/goliatone/go-federation/core"
)

var testDBSequence atomic.Int64

// newTestDB opens a private in-memory SQLite database with the core schema
// applied from the embedded migrations.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:sqlstore-test-%d?mode=memory&cache=shared&_foreign_keys=on", testDBSequence.Add(1))
	sqldb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	migration, err := fs.ReadFile(federation.GetCoreMigrationsFS(), "data/sql/migrations/sqlite/00001_federation_core_schema.up.sql")
	if err != nil {
		t.Fatalf("read core schema migration: %v", err)
	}
	if _, err := db.ExecContext(context.Background(), string(migration)); err != nil {
		t.Fatalf("apply core schema migration: %v", err)
	}
	return db
}

// stubTestHasher mirrors core test doubles: transparent hashing keeps scrypt
// out of the store tests.
type stubTestHasher struct{}

func (stubTestHasher) Hash(secret []byte) ([]byte, error) {
	return append([]byte("hashed:"), secret...), nil
}

func (stubTestHasher) Verify(hash []byte, secret []byte) bool {
	return string(hash) == "hashed:"+string(secret)
}

func newTestFactory(t *testing.T, clock core.ClockService) *RepositoryFactory {
	t.Helper()
	db := newTestDB(t)
	factory := NewRepositoryFactory(stubTestHasher{})
	factory.SetClock(clock)
	if _, err := factory.BuildStores(db); err != nil {
		t.Fatalf("build stores: %v", err)
	}
	return factory
}

func testStoreEpoch() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func hammerfestTestRef(id string, username string) core.ExternalRef {
	return core.ExternalRef{
		Provider: core.ProviderHammerfest,
		Server:   core.ServerHammerfestFr,
		ID:       id,
		Username: username,
	}
}

func TestRepositoryFactory_BuildStores(t *testing.T) {
	factory := newTestFactory(t, nil)

	if factory.LinkStore() == nil {
		t.Fatalf("expected link store")
	}
	if factory.TokenStore() == nil {
		t.Fatalf("expected token store")
	}
	if factory.OauthProviderStore() == nil {
		t.Fatalf("expected oauth provider store")
	}
	if factory.ReplayLedger() == nil {
		t.Fatalf("expected replay ledger")
	}
	for _, provider := range core.Providers() {
		if factory.ArchiveStore(provider) == nil {
			t.Fatalf("expected archive store for %s", provider)
		}
	}
	if factory.ArchiveStore("myspace") != nil {
		t.Fatalf("expected no archive store for unknown provider")
	}
	if factory.DB() == nil {
		t.Fatalf("expected bun handle")
	}
}

func TestRepositoryFactory_RequiresCollaborators(t *testing.T) {
	if _, err := NewRepositoryFactory(nil).BuildStores(newTestDB(t)); err == nil {
		t.Fatalf("expected error without a secret hasher")
	}
	if _, err := NewRepositoryFactory(stubTestHasher{}).BuildStores(nil); err == nil {
		t.Fatalf("expected error without a persistence client")
	}
	if _, err := NewRepositoryFactory(stubTestHasher{}).BuildStores("not-a-db"); err == nil {
		t.Fatalf("expected error for unsupported client type")
	}
}

func TestRepositoryFactory_ServesCoreService(t *testing.T) {
	clock := core.NewVirtualClock(testStoreEpoch())
	factory := newTestFactory(t, clock)

	service, err := core.NewService(core.DefaultConfig(),
		core.WithClock(clock),
		core.WithSecretHasher(stubTestHasher{}),
		core.WithTokenSecret([]byte("factory-test-secret")),
		core.WithRepositoryFactory(factory),
		core.WithPersistenceClient(factory.DB()),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := service.Dependencies()
	if deps.LinkStore != factory.LinkStore() {
		t.Fatalf("expected service to use the SQL link store")
	}
	if deps.OauthStore != factory.OauthProviderStore() {
		t.Fatalf("expected service to use the SQL oauth store")
	}

	link, err := service.Linking().TouchLink(context.Background(), core.TouchLinkInput{
		Remote: hammerfestTestRef("123", "alice_hf"),
		UserID: "user-a",
	})
	if err != nil {
		t.Fatalf("touch link through service: %v", err)
	}
	if link.Current == nil || link.Current.UserID != "user-a" {
		t.Fatalf("unexpected link: %#v", link.Current)
	}
}
