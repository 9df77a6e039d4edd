package store

import (
	"context"
	"errors"
	"time"

	"basegraph.app/triage/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned by Create when the id is already stored.
var ErrAlreadyExists = errors.New("already exists")

// ErrMissingID is returned when a ticket is stored without an id.
var ErrMissingID = errors.New("ticket id is required")

const (
	// DefaultLimit applies when Query.Limit is zero.
	DefaultLimit = 50
	// Unlimited disables result truncation.
	Unlimited = -1
)

// Query is a set of search predicates. Every supplied predicate widens the
// result: a ticket is returned when it satisfies any one of them. An empty
// query returns every ticket.
type Query struct {
	Start      *time.Time // created at or after
	End        *time.Time // created at or before
	MinUrgency *float64
	Status     *model.Status
	Limit      int
}

func (q Query) hasTimeRange() bool {
	return q.Start != nil || q.End != nil
}

func (q Query) empty() bool {
	return !q.hasTimeRange() && q.MinUrgency == nil && q.Status == nil
}

// TicketStore persists tickets and maintains their secondary indexes.
type TicketStore interface {
	// Store writes t and reindexes it, removing index entries left by the
	// previously stored version. CreatedAt is kept from the first store.
	Store(ctx context.Context, t *model.Ticket) (string, error)
	// Create stores a ticket whose id is not yet taken.
	Create(ctx context.Context, t *model.Ticket) (string, error)
	// Update rewrites an existing ticket and returns ErrNotFound once it
	// has been deleted.
	Update(ctx context.Context, t *model.Ticket) error
	Get(ctx context.Context, id string) (*model.Ticket, error)
	Delete(ctx context.Context, id string) (bool, error)
	// Search results are ordered by urgency desc, then created_at desc.
	Search(ctx context.Context, q Query) ([]*model.Ticket, error)
	Pending(ctx context.Context) ([]*model.Ticket, error)
	// DueBefore returns tickets whose deadline is at or before threshold,
	// earliest first.
	DueBefore(ctx context.Context, threshold time.Time) ([]*model.Ticket, error)
	Stats(ctx context.Context) (*model.TicketStats, error)
}
