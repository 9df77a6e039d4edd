package middleware

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/triage/common/id"
	"basegraph.app/triage/common/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID echoes the caller's X-Request-ID, or mints one, and attaches it
// to the request context log fields.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = id.NewString()
		}

		ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{RequestID: &requestID})
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}
