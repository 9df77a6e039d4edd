// Package rediskv implements kv.Store on Redis. Keys live in a sorted set
// with every score at zero so ZRANGEBYLEX yields them in bytewise order;
// values live in a hash keyed by the same member.
package rediskv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"basegraph.app/triage/core/kv"
)

const scanBatch = 500

type Store struct {
	client    *redis.Client
	keysKey   string
	valuesKey string
}

var _ kv.Store = (*Store)(nil)

// New wraps an already connected client. namespace prefixes the two Redis
// keys the store uses.
func New(client *redis.Client, namespace string) *Store {
	if namespace == "" {
		namespace = "triage"
	}
	return &Store{
		client:    client,
		keysKey:   namespace + ":kv:keys",
		valuesKey: namespace + ":kv:values",
	}
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	value, err := s.client.HGet(ctx, s.valuesKey, string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis hget: %w", err)
	}
	return value, true, nil
}

func (s *Store) Put(ctx context.Context, key, value []byte) error {
	member := string(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.valuesKey, member, value)
		pipe.ZAdd(ctx, s.keysKey, redis.Z{Score: 0, Member: member})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key []byte) error {
	member := string(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, s.keysKey, member)
		pipe.HDel(ctx, s.valuesKey, member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (s *Store) Scan(ctx context.Context, r kv.Range, fn kv.ScanFunc) error {
	min, max := LexBounds(r)
	for {
		members, err := s.client.ZRangeByLex(ctx, s.keysKey, &redis.ZRangeBy{
			Min:   min,
			Max:   max,
			Count: scanBatch,
		}).Result()
		if err != nil {
			return fmt.Errorf("redis zrangebylex: %w", err)
		}
		if len(members) == 0 {
			return nil
		}

		values, err := s.client.HMGet(ctx, s.valuesKey, members...).Result()
		if err != nil {
			return fmt.Errorf("redis hmget: %w", err)
		}

		pairs := make([]kv.Pair, 0, len(members))
		for i, member := range members {
			raw, ok := values[i].(string)
			if !ok {
				// Deleted between ZRANGEBYLEX and HMGET.
				continue
			}
			pairs = append(pairs, kv.Pair{Key: []byte(member), Value: []byte(raw)})
		}

		stopped := false
		err = kv.Emit(ctx, pairs, func(key, value []byte) error {
			err := fn(key, value)
			if errors.Is(err, kv.ErrStopScan) {
				stopped = true
			}
			return err
		})
		if err != nil || stopped {
			return err
		}
		if len(members) < scanBatch {
			return nil
		}
		min = "(" + members[len(members)-1]
	}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// LexBounds converts a kv.Range into ZRANGEBYLEX min/max arguments.
func LexBounds(r kv.Range) (string, string) {
	min, max := "-", "+"
	if r.Start != nil {
		if r.IncludeStart {
			min = "[" + string(r.Start)
		} else {
			min = "(" + string(r.Start)
		}
	}
	if r.End != nil {
		if r.IncludeEnd {
			max = "[" + string(r.End)
		} else {
			max = "(" + string(r.End)
		}
	}
	return min, max
}
