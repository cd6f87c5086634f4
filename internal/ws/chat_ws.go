package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"nox-relay/internal/observability"
)

const lifecycleRoutingKey = "ws_events.relay"

// HandlerConfig tunes connection limits for the websocket endpoint.
type HandlerConfig struct {
	AllowedOrigins    []string
	MaxMessageSize    int64
	SendBufferSize    int
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// ChatWebSocketHandler upgrades relay connections and wires them to the hub
// and the event sink.
type ChatWebSocketHandler struct {
	ctx      context.Context
	hub      *Hub
	sink     EventSink
	cfg      HandlerConfig
	upgrader websocket.Upgrader
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler. ctx bounds the
// lifetime of every connection it accepts.
func NewChatWebSocketHandler(ctx context.Context, hub *Hub, sink EventSink, cfg HandlerConfig) *ChatWebSocketHandler {
	policy := newOriginPolicy(cfg.AllowedOrigins)
	return &ChatWebSocketHandler{
		ctx:  ctx,
		hub:  hub,
		sink: sink,
		cfg:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
	}
}

// Handle upgrades the connection and registers the client.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("nox-relay/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(info.ConnID, conn, h.cfg.SendBufferSize)
	client.Info = info
	client.SetRateLimit(h.cfg.RateLimitRequests, h.cfg.RateLimitWindow)
	h.hub.AddClient(client)

	observability.IncWSActive()
	h.publishLifecycle(ctx, "ws_connect", info, "")

	go client.writePump()
	go h.serve(client)
}

func (h *ChatWebSocketHandler) serve(client *Client) {
	reason := client.readPump(h.ctx, h.sink, h.cfg.MaxMessageSize)

	h.sink.SubmitDisconnect(h.ctx, client.ID)
	h.hub.RemoveClient(client.ID)
	observability.DecWSActive()
	h.publishLifecycle(context.Background(), "ws_disconnect", client.Info, reason)
}

func (h *ChatWebSocketHandler) publishLifecycle(ctx context.Context, event string, info ConnInfo, reason string) {
	observability.IncWSEvent(event)
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "relay",
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	envelope := observability.NewEventEnvelope("ws_events", event, payload)
	_ = observability.PublishEvent(ctx, lifecycleRoutingKey, envelope, observability.BuildHeaders(info.RequestID, info.TraceID))
}

// RejectNonUpgrade answers plain HTTP requests on the websocket route.
func RejectNonUpgrade(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "websocket upgrade required"})
		return
	}
	c.Next()
}
