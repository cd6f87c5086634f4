package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nox-relay/internal/observability"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// RequestID makes sure every request carries an X-Request-Id, generating one
// when the caller did not send it. The id is echoed on the response and
// written back to the request so the websocket handshake can pick it up.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(observability.HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
			c.Request.Header.Set(observability.HeaderRequestID, id)
		}
		c.Set(RequestIDKey, id)
		c.Header(observability.HeaderRequestID, id)
		c.Next()
	}
}
