package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"

	"basegraph.app/triage/common/logger"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/queue"
	"basegraph.app/triage/internal/store"
)

const (
	DefaultInterval  = time.Minute
	DefaultThreshold = 0.1
)

type SchedulerConfig struct {
	Interval time.Duration
	// A ticket is rewritten only when its urgency moves by strictly more
	// than Threshold.
	Threshold float64
}

type SchedulerDeps struct {
	Store  store.TicketStore
	Scorer Scorer
	Events queue.Producer  // optional
	Clock  clockwork.Clock // optional, real clock by default
}

// TickResult counts what one re-triage pass did.
type TickResult struct {
	Checked int
	Updated int
	Failed  int
}

// Scheduler periodically re-scores pending tickets and persists those whose
// urgency moved past the threshold. It is owned by whoever started it and
// only stops through Stop or its context.
type Scheduler struct {
	deps SchedulerDeps
	cfg  SchedulerConfig

	ticks atomic.Int64

	started   bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewScheduler builds a scheduler without starting its loop. Tick can be
// driven by hand, as the admin CLI does.
func NewScheduler(deps SchedulerDeps, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Threshold < 0 {
		cfg.Threshold = DefaultThreshold
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Events == nil {
		deps.Events = queue.NewNoopProducer()
	}
	return &Scheduler{
		deps:      deps,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// StartScheduler starts the loop in a goroutine and returns its handle.
func StartScheduler(ctx context.Context, deps SchedulerDeps, cfg SchedulerConfig) *Scheduler {
	s := NewScheduler(deps, cfg)
	s.started = true
	go s.run(ctx)
	return s
}

func (s *Scheduler) run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "triage.worker.scheduler",
	})

	defer close(s.stoppedCh)

	ticker := s.deps.Clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "retriage scheduler started",
		"interval", s.cfg.Interval,
		"threshold", s.cfg.Threshold)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			slog.InfoContext(ctx, "retriage scheduler stopping")
			return
		case <-ticker.Chan():
			s.Tick(ctx)
		}
	}
}

// Stop cancels the ticker and waits for an in-flight tick to finish.
// Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.started {
		<-s.stoppedCh
	}
}

// Tick runs one re-triage pass. It never fails: per-ticket errors and
// panics are logged and counted, and a panic outside a ticket ends the pass
// with the counts gathered so far.
func (s *Scheduler) Tick(ctx context.Context) (result TickResult) {
	seq := s.ticks.Add(1)
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		TickID:    &seq,
		Component: "triage.worker.scheduler",
	})

	sc := logger.StartSpan(ctx, "retriage.tick")
	defer sc.End()
	ctx = sc.Context()

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in retriage tick", "panic", r)
			sc.RecordError(fmt.Errorf("panic: %v", r))
		}
	}()

	start := s.deps.Clock.Now()

	pending, err := s.deps.Store.Pending(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "loading pending tickets failed", "error", err)
		sc.RecordError(err)
		return result
	}

	for _, t := range pending {
		result.Checked++
		updated, err := s.retriageSafe(ctx, t)
		if err != nil {
			result.Failed++
			slog.ErrorContext(ctx, "retriage failed", "error", err, "ticket_id", t.ID)
			continue
		}
		if updated {
			result.Updated++
		}
	}

	sc.SetAttributes(
		attribute.Int("retriage.checked", result.Checked),
		attribute.Int("retriage.updated", result.Updated),
		attribute.Int("retriage.failed", result.Failed),
	)

	slog.InfoContext(ctx, "retriage tick completed",
		"checked", result.Checked,
		"updated", result.Updated,
		"failed", result.Failed,
		"duration_ms", s.deps.Clock.Since(start).Milliseconds())

	return result
}

func (s *Scheduler) retriageSafe(ctx context.Context, t *model.Ticket) (updated bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in retriage", "panic", r, "ticket_id", t.ID)
			updated, err = false, fmt.Errorf("panic: %v", r)
		}
	}()
	return s.retriage(ctx, t)
}

func (s *Scheduler) retriage(ctx context.Context, t *model.Ticket) (bool, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{TicketID: &t.ID})

	result := s.deps.Scorer.Score(ctx, t)
	delta := math.Abs(result.Score - t.Urgency)
	if delta <= s.cfg.Threshold {
		slog.DebugContext(ctx, "urgency within threshold, skipping", "delta", delta)
		return false, nil
	}

	previous := t.Urgency
	next := t.Clone()
	result.ApplyTo(next)
	now := s.deps.Clock.Now().UTC()
	next.LastUpdated = &now

	if err := s.deps.Store.Update(ctx, next); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.InfoContext(ctx, "ticket deleted during retriage, skipping")
			return false, nil
		}
		return false, fmt.Errorf("storing re-triaged ticket: %w", err)
	}

	slog.InfoContext(ctx, "ticket re-triaged",
		"previous_urgency", previous,
		"urgency", next.Urgency)

	if err := s.deps.Events.Publish(ctx, queue.Event{
		Type:     queue.EventTicketRetriaged,
		TicketID: next.ID,
		Urgency:  &next.Urgency,
		Previous: &previous,
		TraceID:  logger.TraceID(ctx),
	}); err != nil {
		slog.WarnContext(ctx, "publishing retriage event failed", "error", err)
	}

	return true, nil
}
