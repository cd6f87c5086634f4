package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nox-relay/internal/middleware"
	"nox-relay/internal/observability"
)

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}

	requestID := c.GetHeader(observability.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

// userIDFromContext returns the relay user id named by the caller, if any.
// Relay users are anonymous, so this is informational only.
func userIDFromContext(c *gin.Context) string {
	if id := c.GetString("userID"); id != "" {
		return id
	}
	return c.GetHeader("X-User-Id")
}
