package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupSQLiteDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(Config{
		Type:       TypeSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(MigrationSource(""), nil); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// setupPostgresDB starts a throwaway Postgres container. It needs Docker and
// is opt-in through CRACKSCAN_PG_TESTS=1.
func setupPostgresDB(t *testing.T) *DB {
	t.Helper()
	if os.Getenv("CRACKSCAN_PG_TESTS") != "1" {
		t.Skip("set CRACKSCAN_PG_TESTS=1 to run Postgres tests")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("crackscan_test"),
		postgres.WithUsername("crackscan_test"),
		postgres.WithPassword("crackscan_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	db, err := NewDB(Config{
		Type:     TypePostgres,
		Host:     host,
		Port:     port.Int(),
		User:     "crackscan_test",
		Password: "crackscan_test_password",
		Name:     "crackscan_test",
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(MigrationSource(""), nil); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}
