package dao

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"cryptocagua/db"
)

// SQLStore keeps entries in the kv_entries table of a SQL database.
type SQLStore struct {
	db      *sql.DB
	dialect db.Dialect
}

func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	dialect, err := db.DialectFor(driver)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx, conn, dialect); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return NewSQLStore(conn, dialect), nil
}

// NewSQLStore wraps an open connection whose schema is already migrated.
func NewSQLStore(conn *sql.DB, dialect db.Dialect) *SQLStore {
	return &SQLStore{db: conn, dialect: dialect}
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, s.dialect.SelectQuery(), key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.UpsertQuery(), key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.DeleteQuery(), key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }
