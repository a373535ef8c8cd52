package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-hookrelay/core"
	hookmigrations "github.com/goliatone/go-hookrelay/migrations"
	sqlstore "github.com/goliatone/go-hookrelay/store/sql"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-hookrelay-tests"
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:hookrelay-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = hookmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != hookmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, hookmigrations.WithValidationTargets(hookmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"hook_proxies",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "hook_proxies" {
		t.Fatalf("expected hook_proxies table, got %q", tableName)
	}
}

func TestProxyStore_CreateLookupRoundTrip(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewProxyStore(client)
	if err != nil {
		t.Fatalf("new proxy store: %v", err)
	}
	ctx := context.Background()

	created, err := store.Create(ctx, core.Proxy{
		RoutingKey: "tenant-a",
		Platform:   "GitHub",
		Active:     true,
		Secret:     "tenant-secret",
	})
	if err != nil {
		t.Fatalf("create proxy: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated proxy id")
	}
	if created.Platform != "github" {
		t.Fatalf("expected normalized platform, got %q", created.Platform)
	}

	found, err := store.Lookup(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, found.ID)
	}
	if found.Secret != "tenant-secret" {
		t.Fatalf("expected secret preserved, got %q", found.Secret)
	}
	if !found.Active {
		t.Fatal("expected active record")
	}
}

func TestProxyStore_LookupAbsentIsTypedNotFound(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewProxyStore(client)
	if err != nil {
		t.Fatalf("new proxy store: %v", err)
	}

	_, err = store.Lookup(context.Background(), "absent")
	if !errors.Is(err, core.ErrProxyNotFound) {
		t.Fatalf("expected ErrProxyNotFound, got %v", err)
	}
}

func TestProxyStore_IncrementEventCount(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewProxyStore(client)
	if err != nil {
		t.Fatalf("new proxy store: %v", err)
	}
	ctx := context.Background()

	created, err := store.Create(ctx, core.Proxy{
		RoutingKey: "tenant-b",
		Platform:   "zoom",
		Active:     true,
	})
	if err != nil {
		t.Fatalf("create proxy: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := store.IncrementEventCount(ctx, created.ID); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}
	found, err := store.Lookup(ctx, "tenant-b")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found.EventCount != 3 {
		t.Fatalf("expected event count 3, got %d", found.EventCount)
	}

	if err := store.IncrementEventCount(ctx, "b8e1c1a0-0000-0000-0000-000000000000"); !errors.Is(err, core.ErrProxyNotFound) {
		t.Fatalf("expected ErrProxyNotFound for unknown id, got %v", err)
	}
}

func TestProxyStore_SaveUpdatesRecord(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewProxyStore(client)
	if err != nil {
		t.Fatalf("new proxy store: %v", err)
	}
	ctx := context.Background()

	created, err := store.Create(ctx, core.Proxy{
		RoutingKey: "tenant-c",
		Platform:   "github",
		Active:     true,
		Secret:     "old",
	})
	if err != nil {
		t.Fatalf("create proxy: %v", err)
	}

	created.Secret = "rotated"
	created.Active = false
	saved, err := store.Save(ctx, created)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Secret != "rotated" || saved.Active {
		t.Fatalf("expected rotated inactive record, got %+v", saved)
	}
}
