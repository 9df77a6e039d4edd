package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/queue"
	"basegraph.app/triage/internal/scoring"
	"basegraph.app/triage/internal/store"
)

type mockTicketStore struct {
	storeFn     func(ctx context.Context, t *model.Ticket) (string, error)
	createFn    func(ctx context.Context, t *model.Ticket) (string, error)
	updateFn    func(ctx context.Context, t *model.Ticket) error
	getFn       func(ctx context.Context, id string) (*model.Ticket, error)
	deleteFn    func(ctx context.Context, id string) (bool, error)
	searchFn    func(ctx context.Context, q store.Query) ([]*model.Ticket, error)
	pendingFn   func(ctx context.Context) ([]*model.Ticket, error)
	dueBeforeFn func(ctx context.Context, threshold time.Time) ([]*model.Ticket, error)
	statsFn     func(ctx context.Context) (*model.TicketStats, error)
}

func (m *mockTicketStore) Store(ctx context.Context, t *model.Ticket) (string, error) {
	if m.storeFn != nil {
		return m.storeFn(ctx, t)
	}
	return t.ID, nil
}

func (m *mockTicketStore) Create(ctx context.Context, t *model.Ticket) (string, error) {
	if m.createFn != nil {
		return m.createFn(ctx, t)
	}
	return t.ID, nil
}

func (m *mockTicketStore) Update(ctx context.Context, t *model.Ticket) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, t)
	}
	return nil
}

func (m *mockTicketStore) Get(ctx context.Context, id string) (*model.Ticket, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockTicketStore) Delete(ctx context.Context, id string) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return false, nil
}

func (m *mockTicketStore) Search(ctx context.Context, q store.Query) ([]*model.Ticket, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return nil, nil
}

func (m *mockTicketStore) Pending(ctx context.Context) ([]*model.Ticket, error) {
	if m.pendingFn != nil {
		return m.pendingFn(ctx)
	}
	return nil, nil
}

func (m *mockTicketStore) DueBefore(ctx context.Context, threshold time.Time) ([]*model.Ticket, error) {
	if m.dueBeforeFn != nil {
		return m.dueBeforeFn(ctx, threshold)
	}
	return nil, nil
}

func (m *mockTicketStore) Stats(ctx context.Context) (*model.TicketStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &model.TicketStats{}, nil
}

type mockScorer struct {
	scoreFn func(ctx context.Context, t *model.Ticket) scoring.Result
}

func (m *mockScorer) Score(ctx context.Context, t *model.Ticket) scoring.Result {
	if m.scoreFn != nil {
		return m.scoreFn(ctx, t)
	}
	return scoring.Result{Score: 0.5, Summary: "scored"}
}

type recordingProducer struct {
	mu     sync.Mutex
	events []queue.Event
	fail   bool
}

func (p *recordingProducer) Publish(_ context.Context, e queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("stream unavailable")
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func (p *recordingProducer) Events() []queue.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.Event(nil), p.events...)
}
