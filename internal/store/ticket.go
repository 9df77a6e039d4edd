package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"basegraph.app/triage/common/logger"
	"basegraph.app/triage/core/kv"
	"basegraph.app/triage/internal/model"
)

type ticketStore struct {
	kv    kv.Store
	clock clockwork.Clock

	// Serialises read-old / reindex / write sequences.
	mu sync.Mutex
}

func NewTicketStore(backend kv.Store, clock clockwork.Clock) TicketStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ticketStore{kv: backend, clock: clock}
}

func withComponent(ctx context.Context) context.Context {
	return logger.WithLogFields(ctx, logger.LogFields{Component: "triage.store.tickets"})
}

// writeMode restricts which existing-record states a write accepts.
type writeMode int

const (
	upsert writeMode = iota
	createOnly
	updateOnly
)

func (s *ticketStore) Store(ctx context.Context, t *model.Ticket) (string, error) {
	return s.write(ctx, t, upsert)
}

func (s *ticketStore) Create(ctx context.Context, t *model.Ticket) (string, error) {
	return s.write(ctx, t, createOnly)
}

func (s *ticketStore) Update(ctx context.Context, t *model.Ticket) error {
	_, err := s.write(ctx, t, updateOnly)
	return err
}

func (s *ticketStore) write(ctx context.Context, t *model.Ticket, mode writeMode) (string, error) {
	if t.ID == "" {
		return "", ErrMissingID
	}
	ctx = withComponent(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists, err := s.kv.Get(ctx, primaryKey(t.ID))
	if err != nil {
		return "", fmt.Errorf("reading ticket: %w", err)
	}
	switch {
	case mode == createOnly && exists:
		return "", ErrAlreadyExists
	case mode == updateOnly && !exists:
		return "", ErrNotFound
	}

	prev, err := s.fetch(ctx, t.ID)
	if err != nil {
		return "", err
	}

	rec := t.Clone()
	switch {
	case prev != nil:
		rec.CreatedAt = prev.CreatedAt
	case rec.CreatedAt.IsZero():
		rec.CreatedAt = s.clock.Now().UTC()
	}

	next := indexKeys(rec)
	if prev != nil {
		keep := make(map[string]struct{}, len(next))
		for _, k := range next {
			keep[k] = struct{}{}
		}
		for _, k := range indexKeys(prev) {
			if _, ok := keep[k]; ok {
				continue
			}
			if err := s.kv.Delete(ctx, []byte(k)); err != nil {
				return "", fmt.Errorf("removing stale index entry: %w", err)
			}
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encoding ticket: %w", err)
	}
	if err := s.kv.Put(ctx, primaryKey(rec.ID), data); err != nil {
		return "", fmt.Errorf("writing ticket: %w", err)
	}

	for _, k := range next {
		if err := s.kv.Put(ctx, []byte(k), indexMarker); err != nil {
			return "", fmt.Errorf("writing index entry: %w", err)
		}
	}

	t.CreatedAt = rec.CreatedAt
	return rec.ID, nil
}

func (s *ticketStore) Get(ctx context.Context, id string) (*model.Ticket, error) {
	data, found, err := s.kv.Get(ctx, primaryKey(id))
	if err != nil {
		return nil, fmt.Errorf("reading ticket: %w", err)
	}
	if !found {
		return nil, ErrNotFound
	}
	var t model.Ticket
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decoding ticket %s: %w", id, err)
	}
	return &t, nil
}

func (s *ticketStore) Delete(ctx context.Context, id string) (bool, error) {
	ctx = withComponent(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	data, found, err := s.kv.Get(ctx, primaryKey(id))
	if err != nil {
		return false, fmt.Errorf("reading ticket: %w", err)
	}
	if !found {
		return false, nil
	}

	var t model.Ticket
	if err := json.Unmarshal(data, &t); err != nil {
		// Its index entries cannot be derived; they are filtered out on
		// fetch-back once the primary record is gone.
		slog.WarnContext(ctx, "deleting malformed ticket without index cleanup",
			"ticket_id", id, "error", err)
	} else {
		for _, k := range indexKeys(&t) {
			if err := s.kv.Delete(ctx, []byte(k)); err != nil {
				return false, fmt.Errorf("removing index entry: %w", err)
			}
		}
	}

	if err := s.kv.Delete(ctx, primaryKey(id)); err != nil {
		return false, fmt.Errorf("deleting ticket: %w", err)
	}
	return true, nil
}

func (s *ticketStore) Search(ctx context.Context, q Query) ([]*model.Ticket, error) {
	ctx = withComponent(ctx)

	var (
		tickets []*model.Ticket
		err     error
	)
	if q.empty() {
		tickets, err = s.scanAll(ctx)
	} else {
		tickets, err = s.searchIndexes(ctx, q)
	}
	if err != nil {
		return nil, err
	}

	sortByUrgency(tickets)

	limit := q.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > 0 && len(tickets) > limit {
		tickets = tickets[:limit]
	}
	return tickets, nil
}

func (s *ticketStore) searchIndexes(ctx context.Context, q Query) ([]*model.Ticket, error) {
	var ranges []kv.Range
	if q.hasTimeRange() {
		ranges = append(ranges, createdRange(q.Start, q.End))
	}
	if q.MinUrgency != nil {
		ranges = append(ranges, urgencyRange(*q.MinUrgency))
	}
	if q.Status != nil {
		ranges = append(ranges, kv.PrefixRange([]byte(valuePrefix(dimStatus, textComponent(string(*q.Status))))))
	}

	var ids []string
	seen := make(map[string]struct{})
	for _, r := range ranges {
		found, err := s.scanIDs(ctx, r)
		if err != nil {
			return nil, err
		}
		for _, id := range found {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	tickets := make([]*model.Ticket, 0, len(ids))
	for _, id := range ids {
		t, err := s.fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		if t == nil || !matchesAny(t, q) {
			continue
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

func (s *ticketStore) Pending(ctx context.Context) ([]*model.Ticket, error) {
	status := model.StatusPending
	return s.Search(ctx, Query{Status: &status, Limit: Unlimited})
}

func (s *ticketStore) DueBefore(ctx context.Context, threshold time.Time) ([]*model.Ticket, error) {
	ctx = withComponent(ctx)

	prefix := dimensionPrefix(dimDeadline)
	ids, err := s.scanIDs(ctx, kv.Range{
		Start:        []byte(prefix),
		End:          []byte(prefix + timeComponent(threshold) + ";"),
		IncludeStart: true,
	})
	if err != nil {
		return nil, err
	}

	cutoff := threshold.UnixMilli()
	seen := make(map[string]struct{}, len(ids))
	tickets := make([]*model.Ticket, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		t, err := s.fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		if t == nil || t.Deadline == nil || t.Deadline.UnixMilli() > cutoff {
			continue
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

func (s *ticketStore) Stats(ctx context.Context) (*model.TicketStats, error) {
	ctx = withComponent(ctx)

	tickets, err := s.scanAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &model.TicketStats{
		Total:     len(tickets),
		ByStatus:  make(map[string]int),
		ByUrgency: make(map[string]int),
		ByType:    make(map[string]int),
	}
	for _, t := range tickets {
		stats.ByStatus[string(t.Status)]++
		stats.ByUrgency[urgencyBucket(t.Urgency)]++

		typ := t.NormalizedType()
		if typ == "" {
			typ = "unknown"
		}
		stats.ByType[typ]++
	}
	return stats, nil
}

// fetch returns the stored ticket or nil. Malformed records are logged and
// treated as absent: read paths skip them and Store overwrites them.
func (s *ticketStore) fetch(ctx context.Context, id string) (*model.Ticket, error) {
	data, found, err := s.kv.Get(ctx, primaryKey(id))
	if err != nil {
		return nil, fmt.Errorf("reading ticket: %w", err)
	}
	if !found {
		return nil, nil
	}
	var t model.Ticket
	if err := json.Unmarshal(data, &t); err != nil {
		slog.WarnContext(ctx, "skipping malformed ticket record", "ticket_id", id, "error", err)
		return nil, nil
	}
	return &t, nil
}

func (s *ticketStore) scanAll(ctx context.Context) ([]*model.Ticket, error) {
	var tickets []*model.Ticket
	err := s.kv.Scan(ctx, kv.PrefixRange([]byte(primaryPrefix)), func(key, value []byte) error {
		var t model.Ticket
		if err := json.Unmarshal(value, &t); err != nil {
			slog.WarnContext(ctx, "skipping malformed ticket record", "key", string(key), "error", err)
			return nil
		}
		tickets = append(tickets, &t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning tickets: %w", err)
	}
	return tickets, nil
}

func (s *ticketStore) scanIDs(ctx context.Context, r kv.Range) ([]string, error) {
	var ids []string
	err := s.kv.Scan(ctx, r, func(key, _ []byte) error {
		id, ok := idFromIndexKey(key)
		if !ok {
			slog.WarnContext(ctx, "skipping malformed index key", "key", string(key))
			return nil
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning index: %w", err)
	}
	return ids, nil
}

// createdRange spans whole milliseconds at both ends; ';' sorts right
// after ':' so the end bound covers every id at that millisecond.
func createdRange(start, end *time.Time) kv.Range {
	prefix := dimensionPrefix(dimCreated)
	r := kv.Range{
		Start:        []byte(prefix),
		End:          kv.PrefixEnd([]byte(prefix)),
		IncludeStart: true,
	}
	if start != nil {
		r.Start = []byte(prefix + timeComponent(*start) + ":")
	}
	if end != nil {
		r.End = []byte(prefix + timeComponent(*end) + ";")
	}
	return r
}

// urgencyRange starts at the bucket holding minUrgency. Entries are rounded
// to one decimal, so the first bucket may hold tickets just below the
// minimum; matchesAny drops them.
func urgencyRange(minUrgency float64) kv.Range {
	prefix := dimensionPrefix(dimUrgency)
	floor := math.Max(0, math.Floor(minUrgency*10)/10)
	return kv.Range{
		Start:        []byte(prefix + urgencyComponent(floor) + ":"),
		End:          kv.PrefixEnd([]byte(prefix)),
		IncludeStart: true,
	}
}

func matchesAny(t *model.Ticket, q Query) bool {
	if q.hasTimeRange() {
		ms := t.CreatedAt.UnixMilli()
		inRange := (q.Start == nil || ms >= q.Start.UnixMilli()) &&
			(q.End == nil || ms <= q.End.UnixMilli())
		if inRange {
			return true
		}
	}
	if q.MinUrgency != nil && t.Urgency >= *q.MinUrgency {
		return true
	}
	if q.Status != nil && t.Status == *q.Status {
		return true
	}
	return false
}

func sortByUrgency(tickets []*model.Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		a, b := tickets[i], tickets[j]
		if a.Urgency != b.Urgency {
			return a.Urgency > b.Urgency
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// urgencyBucket floors to one decimal. The epsilon keeps values like 0.3,
// whose float product lands just under 3, in their own bucket.
func urgencyBucket(u float64) string {
	return fmt.Sprintf("%.1f", math.Floor(u*10+1e-9)/10)
}
