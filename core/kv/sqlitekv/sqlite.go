// Package sqlitekv stores ordered key-value pairs in a single SQLite file.
// Keys are BLOBs, which SQLite compares with memcmp, so range scans follow
// bytewise order.
package sqlitekv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"basegraph.app/triage/core/kv"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   BLOB PRIMARY KEY,
	value BLOB NOT NULL
) WITHOUT ROWID`

type Store struct {
	db *sql.DB
}

var _ kv.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating kv table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite get: %w", err)
	}
	return value, true, nil
}

func (s *Store) Put(ctx context.Context, key, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("sqlite put: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key []byte) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

func (s *Store) Scan(ctx context.Context, r kv.Range, fn kv.ScanFunc) error {
	where, args := rangeClause(r)
	query := `SELECT key, value FROM kv` + where + ` ORDER BY key`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite scan: %w", err)
	}
	var pairs []kv.Pair
	for rows.Next() {
		var p kv.Pair
		if err := rows.Scan(&p.Key, &p.Value); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite scan row: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("sqlite scan rows: %w", err)
	}
	rows.Close()

	// The pool holds a single connection, so the cursor must be closed
	// before callbacks touch the store again.
	return kv.Emit(ctx, pairs, fn)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func rangeClause(r kv.Range) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if r.Start != nil {
		op := ">"
		if r.IncludeStart {
			op = ">="
		}
		conds = append(conds, "key "+op+" ?")
		args = append(args, r.Start)
	}
	if r.End != nil {
		op := "<"
		if r.IncludeEnd {
			op = "<="
		}
		conds = append(conds, "key "+op+" ?")
		args = append(args, r.End)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
