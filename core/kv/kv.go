package kv

import (
	"bytes"
	"context"
	"errors"
)

// ErrStopScan can be returned from a ScanFunc to end a scan early without
// failing it.
var ErrStopScan = errors.New("stop scan")

// Store is an ordered key-value substrate. Keys compare bytewise; Scan
// yields pairs in ascending key order.
type Store interface {
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	Put(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
	Scan(ctx context.Context, r Range, fn ScanFunc) error
	Close() error
}

// ScanFunc receives each pair of a scan. Slices are owned by the callee.
type ScanFunc func(key, value []byte) error

// Range bounds a scan. A nil Start or End leaves that side unbounded.
type Range struct {
	Start        []byte
	End          []byte
	IncludeStart bool
	IncludeEnd   bool
}

// PrefixRange covers every key that begins with prefix.
func PrefixRange(prefix []byte) Range {
	return Range{
		Start:        prefix,
		End:          PrefixEnd(prefix),
		IncludeStart: true,
	}
}

// PrefixEnd returns the smallest key greater than every key with the given
// prefix, or nil when no such key exists (prefix is all 0xff).
func PrefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// Contains reports whether key falls inside r.
func (r Range) Contains(key []byte) bool {
	return r.afterStart(key) && r.beforeEnd(key)
}

func (r Range) afterStart(key []byte) bool {
	if r.Start == nil {
		return true
	}
	c := bytes.Compare(key, r.Start)
	return c > 0 || (c == 0 && r.IncludeStart)
}

func (r Range) beforeEnd(key []byte) bool {
	if r.End == nil {
		return true
	}
	c := bytes.Compare(key, r.End)
	return c < 0 || (c == 0 && r.IncludeEnd)
}

// Collect runs a scan and returns its pairs. Convenient for small ranges and
// tests.
func Collect(ctx context.Context, s Store, r Range) ([]Pair, error) {
	var pairs []Pair
	err := s.Scan(ctx, r, func(key, value []byte) error {
		pairs = append(pairs, Pair{Key: key, Value: value})
		return nil
	})
	return pairs, err
}

type Pair struct {
	Key   []byte
	Value []byte
}

// Emit feeds collected pairs to fn, honouring ErrStopScan and ctx.
// Backends that read a batch before calling back use it so the callback
// may issue further store operations without holding a cursor open.
func Emit(ctx context.Context, pairs []Pair, fn ScanFunc) error {
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(p.Key, p.Value); err != nil {
			if errors.Is(err, ErrStopScan) {
				return nil
			}
			return err
		}
	}
	return nil
}
