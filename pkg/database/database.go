// Package database opens the durable store behind the domain services.
// Two drivers are supported: PostgreSQL for deployments and SQLite for
// development and tests.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/lib/pq"
)

// DB wraps the sql.DB connection
type DB struct {
	*sql.DB
	driver string
}

// Config holds store configuration
type Config struct {
	Driver          string // "sqlite" or "postgres"
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Timeout         time.Duration
}

// Open connects to the configured store and ensures the schema exists.
func Open(config Config) (*DB, error) {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	driver := config.Driver
	switch driver {
	case "", "sqlite":
		driver = "sqlite"
	case "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", config.Driver)
	}

	dsn := config.DSN
	if driver == "sqlite" && dsn == "" {
		dsn = "mangahub.db"
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if driver == "sqlite" {
		// A single writer avoids SQLITE_BUSY under concurrent handlers.
		sqlDB.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{DB: sqlDB, driver: driver}

	if err := db.ensureSchema(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}

// OpenMemory opens an in-memory SQLite store, used by tests and the seed
// script.
func OpenMemory() (*DB, error) {
	return Open(Config{Driver: "sqlite", DSN: ":memory:"})
}

// Driver reports which driver backs the connection.
func (db *DB) Driver() string {
	return db.driver
}

// HealthCheck performs a store health check with timeout
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("health check returned unexpected value: %d", result)
	}
	return nil
}
