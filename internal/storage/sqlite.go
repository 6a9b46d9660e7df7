package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite holds the record tables
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the database file and creates the record tables
func OpenSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; sqlite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS conversations (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		record TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS speakers (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		record TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SQLiteCollection is a Collection backed by one table
type SQLiteCollection[T any] struct {
	db    *sql.DB
	table string
}

// NewSQLiteCollection binds kind (KindConversations or KindSpeakers) to its table
func NewSQLiteCollection[T any](s *SQLite, kind string) (*SQLiteCollection[T], error) {
	switch kind {
	case KindConversations, KindSpeakers:
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
	return &SQLiteCollection[T]{db: s.db, table: kind}, nil
}

func (c *SQLiteCollection[T]) Get(ctx context.Context, id string) (*T, error) {
	var raw string
	err := c.db.QueryRowContext(ctx, `SELECT record FROM `+c.table+` WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", c.table, id, err)
	}

	var record T
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", c.table, id, err)
	}
	return &record, nil
}

func (c *SQLiteCollection[T]) Put(ctx context.Context, id string, record *T) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", c.table, id, err)
	}

	query := `
	INSERT INTO ` + c.table + ` (id, record, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at
	`
	if _, err := c.db.ExecContext(ctx, query, id, string(data), time.Now()); err != nil {
		return fmt.Errorf("save %s %s: %w", c.table, id, err)
	}
	return nil
}

func (c *SQLiteCollection[T]) Delete(ctx context.Context, id string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM `+c.table+` WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", c.table, id, err)
	}
	return nil
}

// List returns records in insertion order. Undecodable rows are skipped.
func (c *SQLiteCollection[T]) List(ctx context.Context) ([]*T, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT record FROM `+c.table+` ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.table, err)
	}
	defer rows.Close()

	records := []*T{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			continue
		}
		var record T
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", c.table, err)
	}
	return records, nil
}
