// Package testing provides test utilities and database setup for testing the landing page backend
package testing

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Belgarat/freedownloadlandingpage/config"
	"github.com/Belgarat/freedownloadlandingpage/database"
	"github.com/Belgarat/freedownloadlandingpage/models"
	"gorm.io/gorm"
)

// TestDB wraps a migrated database that lives for the duration of one test
type TestDB struct {
	DB   *gorm.DB
	Path string
}

// TestDBConfig returns the database configuration used by tests: a sqlite file under dir
func TestDBConfig(dir string) config.DatabaseConfig {
	return config.DatabaseConfig{
		Backend:    config.DatabaseBackendSQLite,
		SQLitePath: filepath.Join(dir, "landing_test.db"),
		// a single connection serialises writers; repositories reuse the transaction from ctx
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		AutoMigrate:  true,
	}
}

// SetupTestDB opens a fresh sqlite database in a temporary directory and migrates it.
// The database is closed when the test finishes.
func SetupTestDB(t testing.TB) *TestDB {
	t.Helper()
	return setupTestDB(t, TestDBConfig(t.TempDir()))
}

// SetupPooledTestDB is SetupTestDB with a pool of conns connections, for tests that
// race writers against each other the way concurrent requests do.
func SetupPooledTestDB(t testing.TB, conns int) *TestDB {
	t.Helper()
	cfg := TestDBConfig(t.TempDir())
	cfg.MaxOpenConns = conns
	cfg.MaxIdleConns = conns
	return setupTestDB(t, cfg)
}

func setupTestDB(t testing.TB, cfg config.DatabaseConfig) *TestDB {
	t.Helper()

	db, _, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		t.Fatalf("failed to migrate test database: %v", err)
	}

	tdb := &TestDB{DB: db, Path: cfg.SQLitePath}
	t.Cleanup(func() {
		if err := tdb.TeardownTestDB(); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})
	return tdb
}

// TeardownTestDB closes the connection pool. The file goes away with the temp dir.
func (tdb *TestDB) TeardownTestDB() error {
	return database.Close(tdb.DB)
}

// ClearAllTables removes every row while keeping the schema
func (tdb *TestDB) ClearAllTables() error {
	tables := []string{
		models.AnalyticsCounter{}.TableName(),
		models.AnalyticsEvent{}.TableName(),
		models.DownloadToken{}.TableName(),
		models.ConfigUsage{}.TableName(),
		models.VisitorAssignment{}.TableName(),
		models.ABTest{}.TableName(),
	}
	for _, t := range models.AllConfigTypes {
		tables = append(tables, t.TableName())
	}

	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}
	return nil
}

// CreateTestContext creates a context for testing
func CreateTestContext() context.Context {
	return context.Background()
}
