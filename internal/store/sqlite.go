package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	_ "modernc.org/sqlite"
)

var tableName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// OpenSQLite opens a SQLite database through the pure-Go modernc driver.
// A single connection is kept so ":memory:" databases are shared by every
// table and writes are serialised by the driver.
func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: configure sqlite: %w", err)
	}
	return db, nil
}

// SQLTable implements Table as a three-column SQLite table holding the
// JSON snapshot next to its id and version.
type SQLTable[T Record] struct {
	db   *sql.DB
	name string
}

// NewSQLTable creates the backing table if needed.
func NewSQLTable[T Record](ctx context.Context, db *sql.DB, name string) (*SQLTable[T], error) {
	if !tableName.MatchString(name) {
		return nil, fmt.Errorf("store: invalid table name %q", name)
	}
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id      TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			body    TEXT NOT NULL
		)`, name))
	if err != nil {
		return nil, fmt.Errorf("store: create table %s: %w", name, err)
	}
	return &SQLTable[T]{db: db, name: name}, nil
}

func (t *SQLTable[T]) Get(ctx context.Context, id string) (T, error) {
	var body string
	err := t.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT body FROM %s WHERE id = ?`, t.name), id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("store: get %s/%s: %w", t.name, id, err)
	}
	return decode[T]([]byte(body))
}

func (t *SQLTable[T]) Insert(ctx context.Context, v T) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", v.StoreKey(), err)
	}
	res, err := t.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, version, body) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`, t.name),
		v.StoreKey(), v.StoreVersion(), string(body))
	if err != nil {
		return fmt.Errorf("store: insert %s/%s: %w", t.name, v.StoreKey(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: insert %s/%s: %w", t.name, v.StoreKey(), err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, v.StoreKey())
	}
	return nil
}

func (t *SQLTable[T]) Update(ctx context.Context, v T) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", v.StoreKey(), err)
	}
	res, err := t.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET version = ?, body = ? WHERE id = ? AND version = ?`, t.name),
		v.StoreVersion(), string(body), v.StoreKey(), v.StoreVersion()-1)
	if err != nil {
		return fmt.Errorf("store: update %s/%s: %w", t.name, v.StoreKey(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update %s/%s: %w", t.name, v.StoreKey(), err)
	}
	if n == 1 {
		return nil
	}

	var stored int64
	err = t.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT version FROM %s WHERE id = ?`, t.name), v.StoreKey()).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, v.StoreKey())
	}
	if err != nil {
		return fmt.Errorf("store: update %s/%s: %w", t.name, v.StoreKey(), err)
	}
	return fmt.Errorf("%w: %s stored at version %d, got %d", ErrVersionConflict, v.StoreKey(), stored, v.StoreVersion())
}

func (t *SQLTable[T]) Find(ctx context.Context, match func(T) bool) ([]T, error) {
	rows, err := t.db.QueryContext(ctx, fmt.Sprintf(`SELECT body FROM %s ORDER BY rowid`, t.name))
	if err != nil {
		return nil, fmt.Errorf("store: scan %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", t.name, err)
		}
		v, err := decode[T]([]byte(body))
		if err != nil {
			return nil, err
		}
		if match == nil || match(v) {
			out = append(out, v)
		}
	}
	return out, rows.Err()
}
