package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"basegraph.app/triage/common/id"
	"basegraph.app/triage/common/logger"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/queue"
	"basegraph.app/triage/internal/scoring"
	"basegraph.app/triage/internal/store"
)

var (
	ErrInvalidTicket   = errors.New("invalid ticket")
	ErrMissingTicketID = errors.New("ticket id is required")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrTicketExists    = errors.New("ticket already exists")
)

// Mirrors worker.Scorer - defined here to avoid import cycles.
type Scorer interface {
	Score(ctx context.Context, t *model.Ticket) scoring.Result
}

type SubmitParams struct {
	ID                string
	Type              string
	Description       string
	Value             *float64
	Currency          string
	Recipient         *model.Recipient
	Deadline          *time.Time
	RequiredApprovals int
	Approvals         []model.Approval
}

type SubmitResult struct {
	ID      string
	Urgency float64
	Summary string
	Tags    []string
}

type SearchParams struct {
	Start      *time.Time
	End        *time.Time
	MinUrgency *float64
	Status     *model.Status
	Limit      int
}

type SearchResult struct {
	Tickets []*model.Ticket
	Count   int
}

type TicketService interface {
	Submit(ctx context.Context, params SubmitParams) (*SubmitResult, error)
	Get(ctx context.Context, id string) (*model.Ticket, error)
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)
	Delete(ctx context.Context, id string) (bool, error)
	Pending(ctx context.Context) ([]*model.Ticket, error)
	DueBefore(ctx context.Context, threshold time.Time) ([]*model.Ticket, error)
	Stats(ctx context.Context) (*model.TicketStats, error)
}

type ticketService struct {
	tickets store.TicketStore
	scorer  Scorer
	events  queue.Producer
}

func NewTicketService(tickets store.TicketStore, scorer Scorer, events queue.Producer) TicketService {
	if events == nil {
		events = queue.NewNoopProducer()
	}
	return &ticketService{
		tickets: tickets,
		scorer:  scorer,
		events:  events,
	}
}

func (s *ticketService) Submit(ctx context.Context, params SubmitParams) (*SubmitResult, error) {
	if err := validateSubmit(params); err != nil {
		return nil, err
	}

	ticketID := strings.TrimSpace(params.ID)
	if ticketID == "" {
		ticketID = id.NewString()
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		TicketID:  &ticketID,
		Component: "triage.service.tickets",
	})
	sc := logger.StartSpan(ctx, "ticket.submit")
	defer sc.End()
	ctx = sc.Context()

	t := &model.Ticket{
		ID:                ticketID,
		Type:              strings.TrimSpace(params.Type),
		Description:       strings.TrimSpace(params.Description),
		Value:             params.Value,
		Currency:          strings.TrimSpace(params.Currency),
		Recipient:         params.Recipient,
		Deadline:          params.Deadline,
		RequiredApprovals: params.RequiredApprovals,
		Approvals:         params.Approvals,
		Status:            model.StatusPending,
	}

	result := s.scorer.Score(ctx, t)
	result.ApplyTo(t)

	if _, err := s.tickets.Create(ctx, t); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrTicketExists
		}
		sc.RecordError(err)
		return nil, fmt.Errorf("storing ticket: %w", err)
	}
	sc.SetAttributes(attribute.Float64("ticket.urgency", t.Urgency))

	slog.InfoContext(ctx, "ticket submitted", "urgency", t.Urgency, "tags", t.Tags)

	s.publish(ctx, queue.Event{
		Type:     queue.EventTicketSubmitted,
		TicketID: t.ID,
		Urgency:  &t.Urgency,
		TraceID:  logger.TraceID(ctx),
	})

	return &SubmitResult{
		ID:      t.ID,
		Urgency: t.Urgency,
		Summary: t.Summary,
		Tags:    t.Tags,
	}, nil
}

func validateSubmit(params SubmitParams) error {
	if strings.TrimSpace(params.Type) == "" && strings.TrimSpace(params.Description) == "" {
		return fmt.Errorf("%w: type or description is required", ErrInvalidTicket)
	}
	if params.RequiredApprovals < 0 {
		return fmt.Errorf("%w: required_approvals must not be negative", ErrInvalidTicket)
	}
	return nil
}

func (s *ticketService) Get(ctx context.Context, ticketID string) (*model.Ticket, error) {
	if strings.TrimSpace(ticketID) == "" {
		return nil, ErrMissingTicketID
	}

	t, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("getting ticket: %w", err)
	}
	return t, nil
}

func (s *ticketService) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	tickets, err := s.tickets.Search(ctx, store.Query{
		Start:      params.Start,
		End:        params.End,
		MinUrgency: params.MinUrgency,
		Status:     params.Status,
		Limit:      params.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("searching tickets: %w", err)
	}
	return &SearchResult{Tickets: tickets, Count: len(tickets)}, nil
}

func (s *ticketService) Delete(ctx context.Context, ticketID string) (bool, error) {
	if strings.TrimSpace(ticketID) == "" {
		return false, ErrMissingTicketID
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		TicketID:  &ticketID,
		Component: "triage.service.tickets",
	})

	deleted, err := s.tickets.Delete(ctx, ticketID)
	if err != nil {
		return false, fmt.Errorf("deleting ticket: %w", err)
	}
	if deleted {
		slog.InfoContext(ctx, "ticket deleted")
		s.publish(ctx, queue.Event{
			Type:     queue.EventTicketDeleted,
			TicketID: ticketID,
			TraceID:  logger.TraceID(ctx),
		})
	}
	return deleted, nil
}

func (s *ticketService) Pending(ctx context.Context) ([]*model.Ticket, error) {
	tickets, err := s.tickets.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pending tickets: %w", err)
	}
	return tickets, nil
}

func (s *ticketService) DueBefore(ctx context.Context, threshold time.Time) ([]*model.Ticket, error) {
	tickets, err := s.tickets.DueBefore(ctx, threshold)
	if err != nil {
		return nil, fmt.Errorf("listing due tickets: %w", err)
	}
	return tickets, nil
}

func (s *ticketService) Stats(ctx context.Context) (*model.TicketStats, error) {
	stats, err := s.tickets.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing ticket stats: %w", err)
	}
	return stats, nil
}

// Event delivery is best effort; a lost event never fails the request.
func (s *ticketService) publish(ctx context.Context, e queue.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "publishing ticket event failed", "error", err, "event_type", e.Type)
	}
}
