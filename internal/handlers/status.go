package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nox-relay/internal/repositories"
)

type connectionCounter interface {
	ClientCount() int
}

// StatusHandler serves the read-only status query.
type StatusHandler struct {
	users repositories.UserRepository
	chats repositories.ChatRepository
	conns connectionCounter
	now   func() time.Time
}

func NewStatusHandler(users repositories.UserRepository, chats repositories.ChatRepository, conns connectionCounter) *StatusHandler {
	return &StatusHandler{users: users, chats: chats, conns: conns, now: time.Now}
}

// Health reports aggregate counts. It never touches relay state.
func (h *StatusHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	resp := gin.H{
		"status":    "ok",
		"users":     h.users.Count(ctx),
		"chats":     h.chats.Count(ctx),
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
	}
	if h.conns != nil {
		resp["connections"] = h.conns.ClientCount()
	}
	c.JSON(http.StatusOK, resp)
}
