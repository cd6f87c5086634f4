package ws

import (
	"context"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"nox-relay/internal/observability"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// EventSink receives inbound frames and disconnects from the transport.
type EventSink interface {
	Submit(ctx context.Context, connID string, frame []byte) bool
	SubmitDisconnect(ctx context.Context, connID string) bool
}

// Client is a single websocket connection registered with the hub.
type Client struct {
	ID      string
	Info    ConnInfo
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
}

// NewClient builds a client with a buffered send queue. conn may be nil when
// the client is only used as a delivery target.
func NewClient(id string, conn *websocket.Conn, bufferSize int) *Client {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Client{
		ID:   id,
		conn: conn,
		send: make(chan []byte, bufferSize),
	}
}

// SetRateLimit allows at most requests inbound frames per window, with bursts
// up to requests.
func (c *Client) SetRateLimit(requests int, window time.Duration) {
	if requests <= 0 || window <= 0 {
		c.limiter = nil
		return
	}
	c.limiter = rate.NewLimiter(rate.Every(window/time.Duration(requests)), requests)
}

// Send exposes the outbound queue.
func (c *Client) Send() <-chan []byte {
	return c.send
}

func (c *Client) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

// readPump forwards frames to sink until the connection fails and returns
// the close reason.
func (c *Client) readPump(ctx context.Context, sink EventSink, maxMessageSize int64) string {
	if maxMessageSize > 0 {
		c.conn.SetReadLimit(maxMessageSize)
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("websocket read deadline error: conn_id=%s err=%v", c.ID, err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("websocket read error: conn_id=%s err=%v", c.ID, err)
			}
			return err.Error()
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if !c.allow() {
			observability.IncEventDropped("rate_limited")
			continue
		}
		if !sink.Submit(ctx, c.ID, frame) {
			return "relay stopped"
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("websocket write error: conn_id=%s err=%v", c.ID, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
