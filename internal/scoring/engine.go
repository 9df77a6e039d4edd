// Package scoring computes ticket urgency: a deterministic weighted blend of
// five factors, optionally nudged by an external text backend, plus a
// summary and up to five tags.
package scoring

import (
	"context"
	"log/slog"
	"math"

	"github.com/jonboulle/clockwork"

	"basegraph.app/triage/common/logger"
	"basegraph.app/triage/internal/model"
)

const (
	// MaxAdjustment bounds the external correction in either direction.
	MaxAdjustment = 0.2
	// MaxTags caps the tags attached to a ticket.
	MaxTags = 5
)

// Backend turns a prompt into free text. Implementations may fail or panic;
// the engine treats both as "no adjustment".
type Backend interface {
	Adjust(ctx context.Context, prompt string) (string, error)
}

// Result is the outcome of scoring one ticket.
type Result struct {
	Score     float64
	Breakdown model.UrgencyBreakdown
	Summary   string
	Tags      []string
}

// ApplyTo copies the score fields onto t.
func (r Result) ApplyTo(t *model.Ticket) {
	breakdown := r.Breakdown
	t.Urgency = r.Score
	t.UrgencyBreakdown = &breakdown
	t.Summary = r.Summary
	t.Tags = append([]string(nil), r.Tags...)
}

type Engine struct {
	clock   clockwork.Clock
	backend Backend
}

// NewEngine builds an engine. backend may be nil, in which case scoring is
// purely deterministic.
func NewEngine(clock clockwork.Clock, backend Backend) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{clock: clock, backend: backend}
}

// Score never fails. Backend errors degrade to the deterministic result.
func (e *Engine) Score(ctx context.Context, t *model.Ticket) Result {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		TicketID:  logger.Ptr(t.ID),
		Component: "triage.scoring.engine",
	})

	now := e.clock.Now()
	factors := computeFactors(t, now)
	base := baseScore(factors)

	result := Result{
		Score: base,
		Breakdown: model.UrgencyBreakdown{
			BaseUrgency: base,
			Factors:     factors,
		},
	}

	var adj *adjustment
	if e.backend != nil {
		adj = e.adjust(ctx, t, base)
	}

	if adj != nil {
		result.Breakdown.ExternalAdjustment = adj.Adjustment
		result.Score = clamp(base+adj.Adjustment, 0, 1)
		result.Summary = adj.Summary
		result.Tags = adj.Tags
	}
	if result.Summary == "" {
		result.Summary = fallbackSummary(t)
	}
	if len(result.Tags) == 0 {
		result.Tags = fallbackTags(t, now)
	}

	slog.DebugContext(ctx, "ticket scored",
		"base", base,
		"score", result.Score,
		"adjusted", adj != nil)

	return result
}

func (e *Engine) adjust(ctx context.Context, t *model.Ticket, base float64) (adj *adjustment) {
	defer func() {
		if r := recover(); r != nil {
			slog.WarnContext(ctx, "scoring backend panicked, ignoring adjustment", "panic", r)
			adj = nil
		}
	}()

	reply, err := e.backend.Adjust(ctx, buildPrompt(t, base))
	if err != nil {
		slog.WarnContext(ctx, "scoring backend failed, ignoring adjustment", "error", err)
		return nil
	}

	parsed, ok := parseAdjustment(reply)
	if !ok {
		slog.WarnContext(ctx, "scoring backend reply unusable, ignoring adjustment",
			"reply", logger.Truncate(reply, 200))
		return nil
	}
	return parsed
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
