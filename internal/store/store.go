package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/limaJavier/timetabler/internal/config"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the run-history database named by cfg and applies the schema
func Open(ctx context.Context, cfg config.StoreConfig) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		db, err = openSQLite(cfg.DSN)
	case DriverPostgres:
		db, err = openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s store: %w", db.DriverName(), err)
	}
	return db, nil
}

func openSQLite(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	// Every connection to ":memory:" sees its own database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	return db, nil
}

func openPostgres(ctx context.Context, cfg config.StoreConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open(DriverPostgres, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}
