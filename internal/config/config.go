// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "chain-audit").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "chain-audit-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTSessionTTL is the session token lifetime (e.g. "24h").
	JWTSessionTTL string `mapstructure:"JWT_SESSION_TTL"`
	// ChallengeTTLRaw is how long an issued auth challenge stays redeemable (e.g. "10m").
	ChallengeTTLRaw string `mapstructure:"CHALLENGE_TTL"`
	// ChallengeGCInterval is how often consumed/expired challenges are swept (e.g. "1h").
	ChallengeGCInterval string `mapstructure:"CHALLENGE_GC_INTERVAL"`
	// ChallengeRetention is how long expired challenges are kept before the sweep deletes them (e.g. "720h").
	ChallengeRetention string `mapstructure:"CHALLENGE_RETENTION"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// OTLPEndpoint is the OpenTelemetry collector endpoint (e.g. http://localhost:4317).
	// Empty disables export; no-op providers are installed.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// Anchor feed (optional). When Kafka brokers are set, the server emits
	// anchor events to Kafka.
	// AnchorKafkaBrokers is a comma-separated list of broker addresses (e.g. "localhost:9092").
	AnchorKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AnchorKafkaTopic is the Kafka topic for anchor events.
	AnchorKafkaTopic string `mapstructure:"ANCHOR_KAFKA_TOPIC"`

	// Worker-only: Loki URL the anchor worker pushes the feed to (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the anchor worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "chain-audit")
	v.SetDefault("JWT_AUDIENCE", "chain-audit-api")
	v.SetDefault("JWT_SESSION_TTL", "24h")
	v.SetDefault("CHALLENGE_TTL", "10m")
	v.SetDefault("CHALLENGE_GC_INTERVAL", "1h")
	v.SetDefault("CHALLENGE_RETENTION", "720h") // 30d
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("ANCHOR_KAFKA_TOPIC", "chain-audit-anchor")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "chain-audit-anchor-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	return &cfg, nil
}

// SessionTTL parses JWTSessionTTL as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTSessionTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// ChallengeTTL parses CHALLENGE_TTL as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) ChallengeTTL() time.Duration {
	d, err := time.ParseDuration(c.ChallengeTTLRaw)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// GCInterval parses CHALLENGE_GC_INTERVAL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) GCInterval() time.Duration {
	d, err := time.ParseDuration(c.ChallengeGCInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// GCRetention parses CHALLENGE_RETENTION as a time.Duration. Returns 720h (30d) if unset or invalid.
func (c *Config) GCRetention() time.Duration {
	d, err := time.ParseDuration(c.ChallengeRetention)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// AnchorKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the anchor feed is enabled (non-empty list) and to create the producer.
func (c *Config) AnchorKafkaBrokersList() []string {
	if c == nil || c.AnchorKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.AnchorKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
