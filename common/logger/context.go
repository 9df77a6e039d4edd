package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are added to every record logged with a context that carries them.
type LogFields struct {
	TicketID  *string // Ticket being scored, stored or re-triaged
	TickID    *int64  // Scheduler tick sequence number
	RequestID *string // HTTP request id
	EventType *string // Ticket event type (e.g. "ticket.submitted")
	Component string  // OTel semantic convention style, e.g. "triage.worker.scheduler"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, newer non-nil values win.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields returns the fields on ctx, or zero LogFields.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.TicketID != nil {
		result.TicketID = next.TicketID
	}
	if next.TickID != nil {
		result.TickID = next.TickID
	}
	if next.RequestID != nil {
		result.RequestID = next.RequestID
	}
	if next.EventType != nil {
		result.EventType = next.EventType
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful inline: logger.WithLogFields(ctx, logger.LogFields{TicketID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate shortens s to maxLen bytes, appending "..." if it was cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
