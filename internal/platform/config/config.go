package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration. FromEnv builds it from the
// environment so main stays lean; everything has a development default except
// credentials.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	AuditTopic    string
	WebhookURL    string
	JWTSigningKey string
	SystemToken   string
	SweepInterval time.Duration
	SweepLockTTL  time.Duration
	StoreTimeout  time.Duration
}

func FromEnv() Config {
	return Config{
		Addr:          envOr("CASEFLOW_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("CASEFLOW_DATABASE_URL"),
		RedisURL:      os.Getenv("CASEFLOW_REDIS_URL"),
		KafkaBrokers:  splitList(os.Getenv("CASEFLOW_KAFKA_BROKERS")),
		AuditTopic:    envOr("CASEFLOW_AUDIT_TOPIC", "caseflow.audit"),
		WebhookURL:    os.Getenv("CASEFLOW_WEBHOOK_URL"),
		JWTSigningKey: envOr("CASEFLOW_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		SystemToken:   os.Getenv("CASEFLOW_SYSTEM_TOKEN"),
		SweepInterval: durationOr("CASEFLOW_SWEEP_INTERVAL", 5*time.Minute),
		SweepLockTTL:  durationOr("CASEFLOW_SWEEP_LOCK_TTL", 2*time.Minute),
		StoreTimeout:  durationOr("CASEFLOW_STORE_TIMEOUT", 10*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
