package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"basegraph.app/triage/common/logger"
)

// Recovery turns a handler panic into a 500 and logs it with the request id
// so the failing call can be matched to the caller's report.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			ctx := c.Request.Context()

			attrs := []any{
				"panic", r,
				"method", c.Request.Method,
				"route", c.FullPath(),
				"stack", string(debug.Stack()),
			}
			if rid := logger.GetLogFields(ctx).RequestID; rid != nil {
				attrs = append(attrs, "request_id", *rid)
			} else if rid := c.Writer.Header().Get(RequestIDHeader); rid != "" {
				attrs = append(attrs, "request_id", rid)
			}
			slog.ErrorContext(ctx, "panic recovered in handler", attrs...)

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "internal server error",
			})
		}()
		c.Next()
	}
}
