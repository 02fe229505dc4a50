package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "consentgate/pkg/platform/strings"
)

// Server captures configuration for the reference consent authority.
type Server struct {
	Addr          string
	JWTSigningKey string
	// DatabaseURL selects the Postgres store; empty falls back to memory.
	DatabaseURL string
	Redis       RedisConfig
	// KafkaBrokers enables the Kafka audit sink; empty keeps audit in memory.
	KafkaBrokers  []string
	AuditTopic    string
	OTPCodeTTL    time.Duration
	AgeSessionTTL time.Duration
}

// RedisConfig carries connection settings for the optional Redis cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("CONSENTGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default; override in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("CONSENTGATE_KAFKA_BROKERS"); raw != "" {
		brokers = platformstrings.DedupeAndTrim(strings.Split(raw, ","))
	}
	topic := os.Getenv("CONSENTGATE_AUDIT_TOPIC")
	if topic == "" {
		topic = "consentgate.audit"
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		DatabaseURL:   os.Getenv("CONSENTGATE_DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("CONSENTGATE_REDIS_URL"),
			PoolSize:     envInt("CONSENTGATE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CONSENTGATE_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers:  brokers,
		AuditTopic:    topic,
		OTPCodeTTL:    envDuration("CONSENTGATE_OTP_TTL", 10*time.Minute),
		AgeSessionTTL: envDuration("CONSENTGATE_AGE_SESSION_TTL", time.Hour),
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}
