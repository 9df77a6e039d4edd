package handler_test

import (
	"context"
	"time"

	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/service"
)

type mockTicketService struct {
	submitFn    func(ctx context.Context, params service.SubmitParams) (*service.SubmitResult, error)
	getFn       func(ctx context.Context, id string) (*model.Ticket, error)
	searchFn    func(ctx context.Context, params service.SearchParams) (*service.SearchResult, error)
	deleteFn    func(ctx context.Context, id string) (bool, error)
	pendingFn   func(ctx context.Context) ([]*model.Ticket, error)
	dueBeforeFn func(ctx context.Context, threshold time.Time) ([]*model.Ticket, error)
	statsFn     func(ctx context.Context) (*model.TicketStats, error)
}

func (m *mockTicketService) Submit(ctx context.Context, params service.SubmitParams) (*service.SubmitResult, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, params)
	}
	return &service.SubmitResult{}, nil
}

func (m *mockTicketService) Get(ctx context.Context, id string) (*model.Ticket, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, service.ErrTicketNotFound
}

func (m *mockTicketService) Search(ctx context.Context, params service.SearchParams) (*service.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, params)
	}
	return &service.SearchResult{}, nil
}

func (m *mockTicketService) Delete(ctx context.Context, id string) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return false, nil
}

func (m *mockTicketService) Pending(ctx context.Context) ([]*model.Ticket, error) {
	if m.pendingFn != nil {
		return m.pendingFn(ctx)
	}
	return nil, nil
}

func (m *mockTicketService) DueBefore(ctx context.Context, threshold time.Time) ([]*model.Ticket, error) {
	if m.dueBeforeFn != nil {
		return m.dueBeforeFn(ctx, threshold)
	}
	return nil, nil
}

func (m *mockTicketService) Stats(ctx context.Context) (*model.TicketStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &model.TicketStats{}, nil
}
