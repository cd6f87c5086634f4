package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPublisher struct {
	err   error
	calls int
	key   string
}

func (s *stubPublisher) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	s.calls++
	s.key = routingKey
	return s.err
}

func TestIPFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "10.0.0.5:4312"
	assert.Equal(t, "10.0.0.5", IPFromRequest(req))

	req.Header.Set("X-Real-Ip", "172.16.0.1")
	assert.Equal(t, "172.16.0.1", IPFromRequest(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", IPFromRequest(req))
}

func TestDeviceIDFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?deviceId=query-device", nil)
	assert.Equal(t, "query-device", DeviceIDFromRequest(req))

	req.Header.Set(HeaderDeviceID, "header-device")
	assert.Equal(t, "header-device", DeviceIDFromRequest(req))
}

func TestBuildHeaders(t *testing.T) {
	assert.Empty(t, BuildHeaders("", ""))
	assert.Empty(t, BuildHeaders("", "00000000000000000000000000000000"))

	headers := BuildHeaders("req-1", "abc")
	assert.Equal(t, "req-1", headers["x-request-id"])
	assert.Equal(t, "abc", headers["trace_id"])
}

func TestPublishEvent(t *testing.T) {
	t.Cleanup(func() { SetPublisher(nil) })

	SetPublisher(nil)
	require.NoError(t, PublishEvent(context.Background(), "ws_events.relay", NewEventEnvelope("ws_events", "ws_connect", nil), nil))

	stub := &stubPublisher{}
	SetPublisher(stub)
	require.NoError(t, PublishEvent(context.Background(), "ws_events.relay", NewEventEnvelope("ws_events", "ws_connect", nil), nil))
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, "ws_events.relay", stub.key)

	before := testutil.ToFloat64(amqpPublishErrorsTotal)
	stub.err = errors.New("channel closed")
	require.Error(t, PublishEvent(context.Background(), "ws_events.relay", nil, nil))
	assert.Equal(t, before+1, testutil.ToFloat64(amqpPublishErrorsTotal))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(HTTPMetricsMiddleware())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/health", "200"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/health", "200")))
}

func TestEventCounters(t *testing.T) {
	before := testutil.ToFloat64(eventsDroppedTotal.WithLabelValues("unit_test"))
	IncEventDropped("unit_test")
	assert.Equal(t, before+1, testutil.ToFloat64(eventsDroppedTotal.WithLabelValues("unit_test")))

	expired := testutil.ToFloat64(messagesExpiredTotal)
	AddMessagesExpired(3)
	assert.Equal(t, expired+3, testutil.ToFloat64(messagesExpiredTotal))
}

func TestRegisterStateGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterStateGauges(reg, func() float64 { return 2 }, func() float64 { return 1 }))

	count, err := testutil.GatherAndCount(reg, "relay_users", "relay_chats")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
