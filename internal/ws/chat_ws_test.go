package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nox-relay/internal/models"
)

type submittedFrame struct {
	connID string
	frame  string
}

type recordingSink struct {
	frames      chan submittedFrame
	disconnects chan string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		frames:      make(chan submittedFrame, 8),
		disconnects: make(chan string, 8),
	}
}

func (s *recordingSink) Submit(ctx context.Context, connID string, frame []byte) bool {
	s.frames <- submittedFrame{connID: connID, frame: string(frame)}
	return true
}

func (s *recordingSink) SubmitDisconnect(ctx context.Context, connID string) bool {
	s.disconnects <- connID
	return true
}

func setupServer(t *testing.T, hub *Hub, sink EventSink) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler := NewChatWebSocketHandler(context.Background(), hub, sink, HandlerConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		MaxMessageSize: 1024,
		SendBufferSize: 8,
	})
	router := gin.New()
	router.GET("/ws", RejectNonUpgrade, handler.Handle)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func TestChatWebSocketRoundTrip(t *testing.T) {
	hub := NewHub()
	sink := newRecordingSink()
	srv := setupServer(t, hub, sink)

	conn, _, err := dial(t, srv, "http://localhost:3000")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"user:random"}`)))

	var got submittedFrame
	select {
	case got = <-sink.frames:
	case <-time.After(2 * time.Second):
		t.Fatal("frame was not submitted")
	}
	assert.Equal(t, `{"type":"user:random"}`, got.frame)
	assert.Equal(t, 1, hub.ClientCount())

	hub.SendTo(got.connID, models.Event{Type: models.EventUserFound, Data: []models.User{}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event models.Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, models.EventUserFound, event.Type)

	require.NoError(t, conn.Close())
	select {
	case connID := <-sink.disconnects:
		assert.Equal(t, got.connID, connID)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect was not submitted")
	}
}

func TestChatWebSocketRejectsDisallowedOrigin(t *testing.T) {
	srv := setupServer(t, NewHub(), newRecordingSink())

	_, resp, err := dial(t, srv, "http://evil.example")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRejectNonUpgrade(t *testing.T) {
	srv := setupServer(t, NewHub(), newRecordingSink())

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
