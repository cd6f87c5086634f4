package observability

import (
	"net"
	"net/http"
	"strings"
)

const (
	HeaderRequestID = "X-Request-Id"
	HeaderDeviceID  = "X-Device-Id"
)

// DeviceIDFromRequest prefers the device header and falls back to the
// deviceId query parameter, since browsers cannot set headers on a
// websocket handshake.
func DeviceIDFromRequest(r *http.Request) string {
	if id := r.Header.Get(HeaderDeviceID); id != "" {
		return id
	}
	return r.URL.Query().Get("deviceId")
}

func RequestIDFromRequest(r *http.Request) string {
	return r.Header.Get(HeaderRequestID)
}

func IPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := r.Header.Get("X-Real-Ip"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
