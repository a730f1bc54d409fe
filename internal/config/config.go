package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Queue processor tuning. Invalid values are corrected to defaults by
	// processor.Config.Normalize, not treated as startup errors.
	Workers       int
	BatchSize     int
	PollInterval  time.Duration
	RetryInterval time.Duration
	MaxRetries    int

	// Delivery rate limiting: maximum deliveries per second across the pool.
	DeliveryRate int

	// Optional secondary delivery transport. Empty URL disables it.
	WebhookURL     string
	WebhookTimeout time.Duration

	// Websocket hub
	PongWait       time.Duration
	WriteWait      time.Duration
	IdleTimeout    time.Duration
	SweepInterval  time.Duration
	SendBufferSize int

	// Auth
	JWTSecret string
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		Workers:       getInt("QUEUE_WORKERS", 5),
		BatchSize:     getInt("QUEUE_BATCH_SIZE", 10),
		PollInterval:  getDuration("QUEUE_POLL_INTERVAL", 5*time.Second),
		RetryInterval: getDuration("QUEUE_RETRY_INTERVAL", 30*time.Second),
		MaxRetries:    getInt("QUEUE_MAX_RETRIES", 3),

		DeliveryRate: getInt("DELIVERY_RATE_PER_SEC", 100),

		WebhookURL:     getEnv("WEBHOOK_URL", ""),
		WebhookTimeout: getDuration("WEBHOOK_TIMEOUT", 10*time.Second),

		PongWait:       getDuration("WS_PONG_WAIT", 60*time.Second),
		WriteWait:      getDuration("WS_WRITE_WAIT", 10*time.Second),
		IdleTimeout:    getDuration("WS_IDLE_TIMEOUT", 10*time.Minute),
		SweepInterval:  getDuration("WS_SWEEP_INTERVAL", 5*time.Minute),
		SendBufferSize: getInt("WS_SEND_BUFFER", 64),

		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
