package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment so main
// stays lean.
type Config struct {
	Addr          string
	JWTSigningKey string

	PostgresDSN string

	Redis RedisConfig
	Kafka KafkaConfig

	// WebhookTimeout bounds a single outbound delivery attempt.
	WebhookTimeout time.Duration

	// RetentionInterval drives the periodic retention sweep. Zero disables
	// the scheduler; rules can still be applied on demand over HTTP.
	RetentionInterval time.Duration
}

// RedisConfig configures the broadcast channel client.
type RedisConfig struct {
	URL              string
	BroadcastChannel string
	PoolSize         int
	MinIdleConns     int
	DialTimeout      time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

// KafkaConfig configures the audit stream mirror.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:          envOr("PEICOLLAB_ADDR", ":8080"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:              os.Getenv("REDIS_URL"),
			BroadcastChannel: envOr("BROADCAST_CHANNEL", "system-events"),
			PoolSize:         10,
			MinIdleConns:     2,
			DialTimeout:      5 * time.Second,
			ReadTimeout:      3 * time.Second,
			WriteTimeout:     3 * time.Second,
		},
		Kafka: KafkaConfig{
			AuditTopic: envOr("KAFKA_AUDIT_TOPIC", "audit-events"),
		},
		WebhookTimeout:    durationOr("WEBHOOK_TIMEOUT", 10*time.Second),
		RetentionInterval: durationOr("RETENTION_INTERVAL", 0),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	return cfg
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
