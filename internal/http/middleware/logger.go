package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"basegraph.app/triage/common/logger"
)

// Logger writes one access line per request. Requests addressing a single
// ticket carry its id in the context log fields for the handler's own logs.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		fields := logger.LogFields{Component: "triage.http"}
		ticketID := c.Param("id")
		if ticketID != "" {
			fields.TicketID = &ticketID
		}
		c.Request = c.Request.WithContext(logger.WithLogFields(c.Request.Context(), fields))

		c.Next()

		if c.FullPath() == "/health" && c.Writer.Status() < 400 {
			return
		}

		ctx := c.Request.Context()
		status := c.Writer.Status()
		attrs := accessAttrs(c, status, time.Since(start))

		switch {
		case status >= 500:
			slog.ErrorContext(ctx, "request failed", attrs...)
		case status >= 400:
			slog.WarnContext(ctx, "request rejected", attrs...)
		default:
			slog.InfoContext(ctx, "request served", attrs...)
		}
	}
}

func accessAttrs(c *gin.Context, status int, latency time.Duration) []any {
	attrs := []any{
		"method", c.Request.Method,
		"route", c.FullPath(),
		"status", status,
		"latency_ms", latency.Milliseconds(),
		"bytes", c.Writer.Size(),
	}
	if q := c.Request.URL.RawQuery; q != "" {
		attrs = append(attrs, "query", q)
	}

	fields := logger.GetLogFields(c.Request.Context())
	if fields.RequestID != nil {
		attrs = append(attrs, "request_id", *fields.RequestID)
	}
	if fields.TicketID != nil {
		attrs = append(attrs, "ticket_id", *fields.TicketID)
	}
	if len(c.Errors) > 0 {
		attrs = append(attrs, "errors", c.Errors.String())
	}
	return attrs
}
