package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults and ensures the
// schema exists.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{Client: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		reg_no     TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS staff (
		reg_no     TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS log_entries (
		id             TEXT PRIMARY KEY,
		reg_no         TEXT NOT NULL,
		name           TEXT,
		department     TEXT,
		user_type      TEXT NOT NULL DEFAULT 'UNKNOWN',
		check_in_time  TIMESTAMPTZ NOT NULL,
		check_out_time TIMESTAMPTZ
	);

	-- at most one open entry per reg_no; also serves the scan hot path
	CREATE UNIQUE INDEX IF NOT EXISTS idx_log_entries_open
		ON log_entries (reg_no) WHERE check_out_time IS NULL;

	CREATE INDEX IF NOT EXISTS idx_log_entries_unresolved
		ON log_entries (reg_no) WHERE name IS NULL;
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
