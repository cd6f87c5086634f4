package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the relay settings read from the environment.
type Config struct {
	Port              string
	GRPCPort          string
	Environment       string
	AllowedOrigins    []string
	MaxMessageSize    int64
	RateLimitRequests int
	RateLimitWindow   time.Duration
	SweepInterval     time.Duration
	InboxSize         int
	SendBufferSize    int
	AMQPURL           string
	AMQPExchange      string
	OTLPEndpoint      string
	DebugRoutes       bool
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to load .env: %v", err)
	}

	return Config{
		Port:              getEnv("PORT", "3001"),
		GRPCPort:          getEnv("GRPC_PORT", "3002"),
		Environment:       getEnv("APP_ENV", "development"),
		AllowedOrigins:    splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://192.168.1.111:3000")),
		MaxMessageSize:    int64(getEnvInt("MAX_MESSAGE_SIZE", 64*1024)),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 20),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Second),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", time.Minute),
		InboxSize:         getEnvInt("INBOX_SIZE", 256),
		SendBufferSize:    getEnvInt("SEND_BUFFER_SIZE", 64),
		AMQPURL:           getEnv("AMQP_URL", ""),
		AMQPExchange:      getEnv("AMQP_EXCHANGE", "relay.events"),
		OTLPEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		DebugRoutes:       getEnvBool("DEBUG_ROUTES", false),
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || parsed < 0 {
		log.Printf("invalid %s=%q, using %d", key, val, fallback)
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil || parsed <= 0 {
		log.Printf("invalid %s=%q, using %s", key, val, fallback)
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		log.Printf("invalid %s=%q, using %t", key, val, fallback)
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
