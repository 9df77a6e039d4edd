// Package wire assembles the triage components from configuration. The
// server, the standalone worker and triagectl all build through here so
// they share storage layout and scoring behaviour.
package wire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"basegraph.app/triage/common/llm"
	"basegraph.app/triage/core/config"
	"basegraph.app/triage/core/kv"
	"basegraph.app/triage/core/kv/arangokv"
	"basegraph.app/triage/core/kv/pgkv"
	"basegraph.app/triage/core/kv/rediskv"
	"basegraph.app/triage/core/kv/sqlitekv"
	"basegraph.app/triage/internal/queue"
	"basegraph.app/triage/internal/scoring"
	"basegraph.app/triage/internal/service"
	"basegraph.app/triage/internal/store"
	"basegraph.app/triage/internal/worker"
)

type App struct {
	KV      kv.Store
	Tickets store.TicketStore
	Engine  *scoring.Engine
	Events  queue.Producer
	Service service.TicketService
	Clock   clockwork.Clock
}

// Build opens storage and the event stream and wires the service on top.
// The caller owns the returned App and must Close it.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	clock := clockwork.NewRealClock()

	backend, err := NewScoringBackend(cfg.Scorer)
	if err != nil {
		return nil, err
	}

	kvStore, err := OpenKV(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	events, err := NewProducer(ctx, cfg.Events)
	if err != nil {
		kvStore.Close()
		return nil, err
	}

	tickets := store.NewTicketStore(kvStore, clock)
	engine := scoring.NewEngine(clock, backend)

	return &App{
		KV:      kvStore,
		Tickets: tickets,
		Engine:  engine,
		Events:  events,
		Service: service.NewTicketService(tickets, engine, events),
		Clock:   clock,
	}, nil
}

func (a *App) SchedulerDeps() worker.SchedulerDeps {
	return worker.SchedulerDeps{
		Store:  a.Tickets,
		Scorer: a.Engine,
		Events: a.Events,
		Clock:  a.Clock,
	}
}

func (a *App) Close() error {
	return errors.Join(a.Events.Close(), a.KV.Close())
}

// OpenKV opens the configured ordered key-value backend.
func OpenKV(ctx context.Context, cfg config.StorageConfig) (kv.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return kv.NewMemory(), nil
	case config.BackendSQLite:
		s, err := sqlitekv.Open(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite storage: %w", err)
		}
		slog.InfoContext(ctx, "sqlite storage opened", "path", cfg.Path)
		return s, nil
	case config.BackendRedis:
		client, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("opening redis storage: %w", err)
		}
		slog.InfoContext(ctx, "redis storage connected", "namespace", cfg.RedisNamespace)
		return rediskv.New(client, cfg.RedisNamespace), nil
	case config.BackendPostgres:
		s, err := pgkv.New(ctx, pgkv.Config{
			DSN:      cfg.PostgresDSN,
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres storage: %w", err)
		}
		slog.InfoContext(ctx, "postgres storage connected")
		return s, nil
	case config.BackendArangoDB:
		s, err := arangokv.New(ctx, arangokv.Config{
			URL:      cfg.ArangoURL,
			Username: cfg.ArangoUsername,
			Password: cfg.ArangoPassword,
			Database: cfg.ArangoDatabase,
		})
		if err != nil {
			return nil, fmt.Errorf("opening arangodb storage: %w", err)
		}
		slog.InfoContext(ctx, "arangodb storage connected", "database", cfg.ArangoDatabase)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// NewScoringBackend returns the LLM adjustment backend, or nil when no
// provider is configured. A nil backend keeps scoring deterministic.
func NewScoringBackend(cfg config.ScorerConfig) (scoring.Backend, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	client, err := llm.New(llm.Config{
		Provider:  llm.Provider(cfg.Provider),
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("creating scorer llm client: %w", err)
	}
	return scoring.NewLLMBackend(client, cfg.MaxRetries), nil
}

// NewProducer returns a Redis stream producer, or a no-op producer when the
// event stream is not configured.
func NewProducer(ctx context.Context, cfg config.EventsConfig) (queue.Producer, error) {
	if !cfg.Enabled() {
		return queue.NewNoopProducer(), nil
	}

	client, err := NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("opening event stream: %w", err)
	}
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Stream)
	return queue.NewRedisProducer(client, cfg.Stream, slog.Default()), nil
}

// NewRedisClient parses url and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}
