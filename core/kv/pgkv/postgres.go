// Package pgkv keeps ordered key-value pairs in a Postgres table. BYTEA
// comparison is bytewise, so ORDER BY key matches kv ordering.
package pgkv

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"basegraph.app/triage/core/kv"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type Config struct {
	DSN string

	// With PgBouncer, this can be relatively low per replica.
	MaxConns int32

	MinConns int32

	// Table defaults to triage_kv.
	Table string
}

type Store struct {
	pool  *pgxpool.Pool
	table string
}

var _ kv.Store = (*Store)(nil)

// New connects, pings and ensures the kv table exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	table := cfg.Table
	if table == "" {
		table = "triage_kv"
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 10
	}

	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	} else {
		poolCfg.MinConns = 2
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{pool: pool, table: table}
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+table+` (
		key   BYTEA PRIMARY KEY,
		value BYTEA NOT NULL
	)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating kv table: %w", err)
	}
	return s, nil
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM `+s.table+` WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres get: %w", err)
	}
	return value, true, nil
}

func (s *Store) Put(ctx context.Context, key, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.table+` (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("postgres put: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key []byte) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres delete: %w", err)
	}
	return nil
}

func (s *Store) Scan(ctx context.Context, r kv.Range, fn kv.ScanFunc) error {
	where, args := rangeClause(r)
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM `+s.table+where+` ORDER BY key`, args...)
	if err != nil {
		return fmt.Errorf("postgres scan: %w", err)
	}
	pairs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (kv.Pair, error) {
		var p kv.Pair
		err := row.Scan(&p.Key, &p.Value)
		return p, err
	})
	if err != nil {
		return fmt.Errorf("postgres scan rows: %w", err)
	}
	return kv.Emit(ctx, pairs, fn)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
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
		args = append(args, r.Start)
		conds = append(conds, "key "+op+" $"+strconv.Itoa(len(args)))
	}
	if r.End != nil {
		op := "<"
		if r.IncludeEnd {
			op = "<="
		}
		args = append(args, r.End)
		conds = append(conds, "key "+op+" $"+strconv.Itoa(len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
