package config

import (
	"os"
	"time"
)

type Config struct {
	DatabaseURL    string
	RedisURL       string
	KafkaBrokers   string
	NatsURL        string
	JaegerEndpoint string
	Port           string

	// WebhookSecret signs aggregator callbacks (HMAC-SHA256 over the body).
	WebhookSecret string

	// WaitWindow is how long an order may stay pending before it expires.
	WaitWindow time.Duration

	// ManualFallbackAfter is when the buyer-facing manual-confirmation
	// affordance appears; must be shorter than WaitWindow.
	ManualFallbackAfter time.Duration

	// StaleSweepThreshold is the cutoff age for the operator-triggered
	// "process old orders" sweep.
	StaleSweepThreshold time.Duration
}

func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	waitWindow := duration("ORDER_WAIT_WINDOW", 15*time.Minute)
	return &Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		KafkaBrokers:        os.Getenv("KAFKA_BROKERS"),
		NatsURL:             os.Getenv("NATS_URL"),
		JaegerEndpoint:      os.Getenv("JAEGER_ENDPOINT"),
		Port:                port,
		WebhookSecret:       os.Getenv("WEBHOOK_SECRET"),
		WaitWindow:          waitWindow,
		ManualFallbackAfter: duration("MANUAL_FALLBACK_AFTER", 5*time.Minute),
		StaleSweepThreshold: duration("STALE_SWEEP_THRESHOLD", waitWindow),
	}
}

func duration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
