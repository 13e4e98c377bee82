// Package database selects and opens the relational backend behind the repositories
package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Backend is one of the interchangeable stores. It is chosen once at startup.
type Backend interface {
	// Name identifies the backend in logs and health output
	Name() string
	// Dialector returns the gorm dialector for this backend
	Dialector() gorm.Dialector
	// Configure tunes the connection pool after the connection is opened
	Configure(db *gorm.DB) error
}

// NewBackend returns the backend selected by cfg.Backend
func NewBackend(cfg config.DatabaseConfig) (Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.DatabaseBackendSQLite:
		return &SQLiteBackend{cfg: cfg}, nil
	case config.DatabaseBackendSupabase, config.DatabaseBackendPostgres:
		return &PostgresBackend{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("unsupported database backend %q", cfg.Backend)
	}
}

// SQLiteBackend stores everything in a local database file
type SQLiteBackend struct {
	cfg config.DatabaseConfig
}

func (b *SQLiteBackend) Name() string { return config.DatabaseBackendSQLite }

func (b *SQLiteBackend) Dialector() gorm.Dialector {
	return sqlite.Open(SQLiteDSN(b.cfg.SQLitePath))
}

func (b *SQLiteBackend) Configure(db *gorm.DB) error {
	if dir := filepath.Dir(b.cfg.SQLitePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// one writer at a time; readers share the pool
	sqlDB.SetMaxOpenConns(b.cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(b.cfg.MaxIdleConns)
	return nil
}

// SQLiteDSN builds the connection string for a database file with WAL and a busy timeout
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
}

// PostgresBackend talks to a hosted Postgres instance such as Supabase
type PostgresBackend struct {
	cfg config.DatabaseConfig
}

func (b *PostgresBackend) Name() string { return config.DatabaseBackendPostgres }

func (b *PostgresBackend) Dialector() gorm.Dialector {
	return postgres.Open(PostgresDSN(b.cfg))
}

func (b *PostgresBackend) Configure(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(b.cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(b.cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(b.cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(b.cfg.ConnMaxIdleTime)
	return nil
}

// PostgresDSN prefers DATABASE_URL and falls back to the discrete settings
func PostgresDSN(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
}

// Open connects to the configured backend and verifies the connection
func Open(cfg config.DatabaseConfig) (*gorm.DB, Backend, error) {
	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, nil, err
	}

	db, err := gorm.Open(backend.Dialector(), &gorm.Config{
		Logger: newGormLogger(cfg),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s database: %w", backend.Name(), err)
	}

	if err := backend.Configure(db); err != nil {
		return nil, nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, backend, nil
}

// Close releases the connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newGormLogger(cfg config.DatabaseConfig) logger.Interface {
	if !cfg.SlowQueryLog {
		return logger.Default.LogMode(logger.Silent)
	}
	return logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// HealthCheck pings the database within the given timeout
func HealthCheck(db *gorm.DB, timeout time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := contextWithTimeout(timeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func contextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
