package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect selects SQL syntax differences between the supported drivers.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
)

// DialectFor maps a configured driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported sql driver %q", driver)
}

// DriverName is the name registered with database/sql.
func (d Dialect) DriverName() string { return string(d) }

func (d Dialect) schema() []string {
	switch d {
	case MySQL:
		return []string{
			`CREATE TABLE IF NOT EXISTS kv_entries (
				k VARCHAR(191) PRIMARY KEY,
				v LONGTEXT NOT NULL,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
			)`,
		}
	case Postgres:
		return []string{
			`CREATE TABLE IF NOT EXISTS kv_entries (
				k TEXT PRIMARY KEY,
				v TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
		}
	default:
		return []string{
			`CREATE TABLE IF NOT EXISTS kv_entries (
				k TEXT PRIMARY KEY,
				v TEXT NOT NULL,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,
		}
	}
}

// UpsertQuery writes one key, replacing any previous value.
func (d Dialect) UpsertQuery() string {
	switch d {
	case MySQL:
		return `INSERT INTO kv_entries (k, v) VALUES (?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v)`
	case Postgres:
		return `INSERT INTO kv_entries (k, v) VALUES ($1, $2) ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v, updated_at = NOW()`
	default:
		return `INSERT INTO kv_entries (k, v) VALUES (?, ?) ON CONFLICT (k) DO UPDATE SET v = excluded.v, updated_at = CURRENT_TIMESTAMP`
	}
}

func (d Dialect) SelectQuery() string {
	if d == Postgres {
		return `SELECT v FROM kv_entries WHERE k = $1`
	}
	return `SELECT v FROM kv_entries WHERE k = ?`
}

func (d Dialect) DeleteQuery() string {
	if d == Postgres {
		return `DELETE FROM kv_entries WHERE k = $1`
	}
	return `DELETE FROM kv_entries WHERE k = ?`
}

// Migrate creates the key-value table. It is safe to run repeatedly.
func Migrate(ctx context.Context, conn *sql.DB, d Dialect) error {
	for _, q := range d.schema() {
		if _, err := conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate %s: %w", d, err)
		}
	}
	return nil
}
