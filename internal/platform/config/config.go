package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration. FromEnv builds it from
// environment variables so main stays lean.
type Server struct {
	Addr string

	Oracle  OracleConfig
	Watcher WatcherConfig

	// JournalCapacity bounds the in-memory activity journal (ring buffer).
	JournalCapacity int

	// PostgresURL selects the Postgres-backed store when set; the in-memory
	// store is used otherwise.
	PostgresURL string

	Redis RedisConfig

	// KafkaBrokers enables the pipeline event publisher when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	// JWTSigningKey enables bearer auth on mutating endpoints when set.
	JWTSigningKey string
}

// OracleConfig points at an OpenAI-compatible chat completions endpoint.
// An empty APIKey disables the oracle entirely; agents then run on their
// deterministic fallback rules.
type OracleConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// WatcherConfig drives the proposal feed poller. An empty FeedURL disables
// the watcher; proposals then arrive only via HTTP submission.
type WatcherConfig struct {
	FeedURL      string
	PollInterval time.Duration
}

// RedisConfig holds connection settings for the optional Redis-backed
// registration ledger.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr: envOr("AGORA_ADDR", ":8080"),
		Oracle: OracleConfig{
			BaseURL: envOr("AGORA_ORACLE_URL", "https://api.groq.com/openai/v1"),
			APIKey:  os.Getenv("AGORA_ORACLE_KEY"),
			Model:   envOr("AGORA_ORACLE_MODEL", "llama3-8b-8192"),
			Timeout: envDuration("AGORA_ORACLE_TIMEOUT", 5*time.Second),
		},
		Watcher: WatcherConfig{
			FeedURL:      os.Getenv("AGORA_FEED_URL"),
			PollInterval: envDuration("AGORA_POLL_INTERVAL", 5*time.Second),
		},
		JournalCapacity: envInt("AGORA_JOURNAL_CAPACITY", 1000),
		PostgresURL:     os.Getenv("AGORA_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("AGORA_REDIS_URL"),
			PoolSize:     envInt("AGORA_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("AGORA_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("AGORA_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("AGORA_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("AGORA_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		KafkaTopic:    envOr("AGORA_KAFKA_TOPIC", "agora.pipeline.events"),
		JWTSigningKey: os.Getenv("AGORA_JWT_SIGNING_KEY"),
	}

	if brokers := os.Getenv("AGORA_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
