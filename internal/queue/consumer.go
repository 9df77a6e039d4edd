package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/triage/common/logger"
)

type ConsumerConfig struct {
	Stream    string        // Redis stream name
	Group     string        // Redis consumer group name
	Consumer  string        // Redis consumer name
	BatchSize int64         // Number of events to read per call
	Block     time.Duration // How long to block/poll for new events
}

// RedisConsumer reads ticket events through a consumer group so several
// downstream readers can share the stream.
type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewRedisConsumer(ctx context.Context, client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	consumer := &RedisConsumer{
		client: client,
		cfg:    cfg,
	}

	if err := consumer.ensureGroup(ctx); err != nil {
		return nil, err
	}

	return consumer, nil
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	// Starting from "0" instead of "$" replays events already on the stream
	// when the group is first created.
	if err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err(); err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

// Read returns the next batch of undelivered events. Entries that fail to
// parse are acknowledged and dropped.
func (c *RedisConsumer) Read(ctx context.Context) ([]Event, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "triage.queue.consumer",
	})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Event{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var events []Event
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			event, parseErr := ParseEvent(msg.ID, msg.Values)
			if parseErr != nil {
				slog.ErrorContext(ctx, "failed to parse event",
					"error", parseErr,
					"raw_message_id", msg.ID,
					"stream", c.cfg.Stream)
				_ = c.Ack(ctx, msg.ID)
				continue
			}
			events = append(events, event)
		}
	}

	if len(events) > 0 {
		slog.DebugContext(ctx, "read events from stream",
			"count", len(events),
			"stream", c.cfg.Stream,
			"consumer", c.cfg.Consumer)
	}

	return events, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, id string) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	return nil
}
