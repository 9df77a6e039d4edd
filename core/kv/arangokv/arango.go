// Package arangokv keeps ordered key-value pairs as documents in one
// ArangoDB collection. Raw keys are stored hex-encoded in field k, which
// preserves bytewise order under AQL string comparison.
package arangokv

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"

	"basegraph.app/triage/core/kv"
)

type Config struct {
	URL        string
	Username   string
	Password   string
	Database   string
	Collection string // defaults to triage_kv
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("arangodb URL is required")
	}
	if c.Username == "" {
		return fmt.Errorf("arangodb username is required")
	}
	if c.Database == "" {
		return fmt.Errorf("arangodb database name is required")
	}
	return nil
}

type Store struct {
	db         arangodb.Database
	collection string
}

var _ kv.Store = (*Store)(nil)

// New connects and creates the database and collection when missing.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("arangodb config: %w", err)
	}
	if cfg.Collection == "" {
		cfg.Collection = "triage_kv"
	}

	endpoint := connection.NewRoundRobinEndpoints([]string{cfg.URL})
	conn := connection.NewHttp2Connection(connection.DefaultHTTP2ConfigurationWrapper(endpoint, true))
	if err := conn.SetAuthentication(connection.NewBasicAuth(cfg.Username, cfg.Password)); err != nil {
		return nil, fmt.Errorf("arangodb auth: %w", err)
	}
	client := arangodb.NewClient(conn)

	exists, err := client.DatabaseExists(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("check database exists: %w", err)
	}
	if !exists {
		if _, err := client.CreateDatabase(ctx, cfg.Database, nil); err != nil {
			return nil, fmt.Errorf("create database: %w", err)
		}
		slog.InfoContext(ctx, "arangodb database created", "database", cfg.Database)
	}

	db, err := client.GetDatabase(ctx, cfg.Database, nil)
	if err != nil {
		return nil, fmt.Errorf("get database: %w", err)
	}

	colExists, err := db.CollectionExists(ctx, cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("check collection %s exists: %w", cfg.Collection, err)
	}
	if !colExists {
		colType := arangodb.CollectionTypeDocument
		if _, err := db.CreateCollectionV2(ctx, cfg.Collection, &arangodb.CreateCollectionPropertiesV2{Type: &colType}); err != nil {
			return nil, fmt.Errorf("create collection %s: %w", cfg.Collection, err)
		}
		slog.InfoContext(ctx, "arangodb collection created", "collection", cfg.Collection)
	}

	return &Store{db: db, collection: cfg.Collection}, nil
}

type document struct {
	K string `json:"k"`
	V string `json:"v"`
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	cursor, err := s.db.Query(ctx, `FOR d IN @@col FILTER d._key == @id LIMIT 1 RETURN { k: d.k, v: d.v }`,
		&arangodb.QueryOptions{BindVars: map[string]any{
			"@col": s.collection,
			"id":   docKey(key),
		}})
	if err != nil {
		return nil, false, fmt.Errorf("arangodb get: %w", err)
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return nil, false, nil
	}
	var doc document
	if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
		return nil, false, fmt.Errorf("arangodb read document: %w", err)
	}
	value, err := base64.StdEncoding.DecodeString(doc.V)
	if err != nil {
		return nil, false, fmt.Errorf("arangodb decode value: %w", err)
	}
	return value, true, nil
}

func (s *Store) Put(ctx context.Context, key, value []byte) error {
	cursor, err := s.db.Query(ctx, `
		UPSERT { _key: @id }
		INSERT { _key: @id, k: @k, v: @v }
		UPDATE { v: @v }
		IN @@col`,
		&arangodb.QueryOptions{BindVars: map[string]any{
			"@col": s.collection,
			"id":   docKey(key),
			"k":    hex.EncodeToString(key),
			"v":    base64.StdEncoding.EncodeToString(value),
		}})
	if err != nil {
		return fmt.Errorf("arangodb put: %w", err)
	}
	return cursor.Close()
}

func (s *Store) Delete(ctx context.Context, key []byte) error {
	cursor, err := s.db.Query(ctx, `REMOVE { _key: @id } IN @@col OPTIONS { ignoreErrors: true }`,
		&arangodb.QueryOptions{BindVars: map[string]any{
			"@col": s.collection,
			"id":   docKey(key),
		}})
	if err != nil {
		return fmt.Errorf("arangodb delete: %w", err)
	}
	return cursor.Close()
}

// TODO: ensure a persistent index on k; range scans sort the full
// collection today.
func (s *Store) Scan(ctx context.Context, r kv.Range, fn kv.ScanFunc) error {
	filter, bindVars := rangeFilter(r)
	bindVars["@col"] = s.collection

	cursor, err := s.db.Query(ctx, `FOR d IN @@col`+filter+` SORT d.k RETURN { k: d.k, v: d.v }`,
		&arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return fmt.Errorf("arangodb scan: %w", err)
	}

	var pairs []kv.Pair
	for cursor.HasMore() {
		var doc document
		if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
			cursor.Close()
			return fmt.Errorf("arangodb read document: %w", err)
		}
		p, err := decodePair(doc)
		if err != nil {
			cursor.Close()
			return err
		}
		pairs = append(pairs, p)
	}
	if err := cursor.Close(); err != nil {
		return fmt.Errorf("arangodb close cursor: %w", err)
	}

	return kv.Emit(ctx, pairs, fn)
}

func (s *Store) Close() error {
	return nil
}

// docKey maps an arbitrary key onto a valid fixed-length document _key.
func docKey(key []byte) string {
	hash := md5.Sum(key)
	return hex.EncodeToString(hash[:])
}

func decodePair(doc document) (kv.Pair, error) {
	key, err := hex.DecodeString(doc.K)
	if err != nil {
		return kv.Pair{}, fmt.Errorf("arangodb decode key: %w", err)
	}
	value, err := base64.StdEncoding.DecodeString(doc.V)
	if err != nil {
		return kv.Pair{}, fmt.Errorf("arangodb decode value: %w", err)
	}
	return kv.Pair{Key: key, Value: value}, nil
}

func rangeFilter(r kv.Range) (string, map[string]any) {
	var conds []string
	bindVars := map[string]any{}
	if r.Start != nil {
		op := ">"
		if r.IncludeStart {
			op = ">="
		}
		conds = append(conds, "d.k "+op+" @start")
		bindVars["start"] = hex.EncodeToString(r.Start)
	}
	if r.End != nil {
		op := "<"
		if r.IncludeEnd {
			op = "<="
		}
		conds = append(conds, "d.k "+op+" @end")
		bindVars["end"] = hex.EncodeToString(r.End)
	}
	if len(conds) == 0 {
		return "", bindVars
	}
	return " FILTER " + strings.Join(conds, " AND "), bindVars
}
