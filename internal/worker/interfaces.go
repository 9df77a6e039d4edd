package worker

import (
	"context"

	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/scoring"
)

// Scorer abstracts the scoring engine for testability.
type Scorer interface {
	Score(ctx context.Context, t *model.Ticket) scoring.Result
}
