package testdb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/forgo/nemesis/api/internal/database"
)

// TestDB is one isolated namespace on the test server, with the schema applied.
type TestDB struct {
	DB        database.Database
	Namespace string
	Database  string

	t      *testing.T
	closed atomic.Bool
}

var (
	migrationOnce sync.Once
	migrations    []database.Migration
	migrationErr  error

	counter atomic.Int64
)

const (
	setupTimeout = 30 * time.Second
	opTimeout    = 10 * time.Second
)

// configFromEnv reads TEST_DB_*. ok is false when TEST_DB_HOST is unset,
// meaning no test database is available.
func configFromEnv() (cfg database.Config, ok bool) {
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		return database.Config{}, false
	}

	return database.Config{
		Host:           host,
		Port:           envOr("TEST_DB_PORT", "8000"),
		TLS:            os.Getenv("TEST_DB_TLS") == "true",
		User:           envOr("TEST_DB_USER", "root"),
		Password:       envOr("TEST_DB_PASSWORD", "root"),
		ConnectTimeout: 5 * time.Second,
		QueryTimeout:   opTimeout,
	}, true
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// uniqueNamespace names a namespace no other test in this or a parallel run uses
func uniqueNamespace() string {
	return fmt.Sprintf("test_%d_%d_%d", os.Getpid(), time.Now().UnixNano(), counter.Add(1))
}

// loadMigrations reads the schema files once per test binary
func loadMigrations() ([]database.Migration, error) {
	migrationOnce.Do(func() {
		dir, err := database.FindMigrationsDir(os.Getenv("NEMESIS_ROOT"))
		if err != nil {
			migrationErr = err
			return
		}
		migrations, migrationErr = database.LoadMigrations(dir)
	})
	return migrations, migrationErr
}

// New connects to the test server, creates a fresh namespace and applies
// the migrations. The test is skipped when TEST_DB_HOST is unset. The
// namespace is removed when the test ends; calling Close earlier is allowed.
func New(t *testing.T) *TestDB {
	t.Helper()

	cfg, ok := configFromEnv()
	if !ok {
		t.Skip("testdb: TEST_DB_HOST not set, skipping integration test")
	}

	migs, err := loadMigrations()
	if err != nil {
		t.Fatalf("testdb: failed to load migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	cfg.Namespace = uniqueNamespace()
	cfg.Database = "test"

	db := database.NewSurrealDB(cfg)
	if err := db.Connect(ctx); err != nil {
		t.Fatalf("testdb: failed to connect: %v", err)
	}

	tdb := &TestDB{
		DB:        db,
		Namespace: cfg.Namespace,
		Database:  cfg.Database,
		t:         t,
	}
	t.Cleanup(tdb.Close)

	if err := database.Migrate(ctx, db, migs); err != nil {
		t.Fatalf("testdb: %v", err)
	}
	return tdb
}

// Close removes the namespace and disconnects. It is safe to call twice.
func (tdb *TestDB) Close() {
	if tdb.DB == nil || !tdb.closed.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// Namespace names come from uniqueNamespace, never from input.
	_ = tdb.DB.Execute(ctx, fmt.Sprintf("REMOVE NAMESPACE IF EXISTS %s", tdb.Namespace), nil)
	_ = tdb.DB.Close()
}

// Ctx returns a context bounded for a single test operation. The context is
// released when the test ends.
func (tdb *TestDB) Ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	tdb.t.Cleanup(cancel)
	return ctx
}

// MustExec executes a query and fails the test on error.
func (tdb *TestDB) MustExec(query string, vars map[string]interface{}) {
	tdb.t.Helper()
	if err := tdb.DB.Execute(tdb.Ctx(), query, vars); err != nil {
		tdb.t.Fatalf("testdb: exec failed: %v\nQuery: %s", err, query)
	}
}
