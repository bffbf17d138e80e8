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
	// HTTPAddr is the address the HTTP API listens on (e.g. :3001).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment (e.g. "development", "production"). Used with ResetTokenReturnToClient to refuse dev token exposure in production.
	Env string `mapstructure:"APP_ENV"`
	// AppBaseURL is the public URL of the web app; reset and invite links are built from it.
	AppBaseURL string `mapstructure:"APP_BASE_URL"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL selects the Redis token store and rate limiter (e.g. redis://localhost:6379/0). Empty keeps both in process.
	RedisURL string `mapstructure:"REDIS_URL"`

	// SessionTTLRaw is the fixed session lifetime (e.g. "720h").
	SessionTTLRaw string `mapstructure:"SESSION_TTL"`
	// LoginMaxAttempts is the number of consecutive failures that locks an identity.
	LoginMaxAttempts int `mapstructure:"LOGIN_MAX_ATTEMPTS"`
	// LoginLockoutRaw is how long a locked identity stays locked (e.g. "15m").
	LoginLockoutRaw string `mapstructure:"LOGIN_LOCKOUT"`
	// ResetTokenTTLRaw is the reset token lifetime (e.g. "30m").
	ResetTokenTTLRaw string `mapstructure:"RESET_TOKEN_TTL"`
	// InviteTokenTTLHours is the default invite lifetime in hours.
	InviteTokenTTLHours int `mapstructure:"INVITE_TOKEN_TTL_HOURS"`
	// SweepIntervalRaw is how often expired tokens and lockouts are purged.
	SweepIntervalRaw string `mapstructure:"SWEEP_INTERVAL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// ResetTokenReturnToClient when true returns reset tokens in the forgot-password response. Development only; Load fails when Env is production.
	ResetTokenReturnToClient bool `mapstructure:"RESET_TOKEN_RETURN_TO_CLIENT"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA); used with JWT_PUBLIC_KEY for RS256/ES256 mobile access tokens.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the mobile access token lifetime (e.g. "1h").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`

	// OTel (optional). Empty endpoint installs no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	ServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`

	// Audit streaming (optional). When Kafka brokers are set, audit events are also published to Kafka.
	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuditKafkaTopic is the Kafka topic for audit events.
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// Worker-only: Loki URL for the audit worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the audit worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":3001")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SESSION_TTL", "720h") // 30d
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 10)
	v.SetDefault("LOGIN_LOCKOUT", "15m")
	v.SetDefault("RESET_TOKEN_TTL", "30m")
	v.SetDefault("INVITE_TOKEN_TTL_HOURS", 72)
	v.SetDefault("SWEEP_INTERVAL", "1h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("RESET_TOKEN_RETURN_TO_CLIENT", false)
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "dfp-neo-auth")
	v.SetDefault("JWT_AUDIENCE", "dfp-neo-mobile")
	v.SetDefault("JWT_ACCESS_TTL", "1h")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "dfp-neo-auth")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "dfp-neo-audit")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "dfp-neo-audit-worker")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.ResetTokenReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: RESET_TOKEN_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.LoginMaxAttempts < 1 {
		return nil, errors.New("config: LOGIN_MAX_ATTEMPTS must be at least 1")
	}
	for key, raw := range map[string]string{
		"SESSION_TTL":     cfg.SessionTTLRaw,
		"LOGIN_LOCKOUT":   cfg.LoginLockoutRaw,
		"RESET_TOKEN_TTL": cfg.ResetTokenTTLRaw,
		"SWEEP_INTERVAL":  cfg.SweepIntervalRaw,
	} {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return nil, errors.New("config: " + key + " must be a positive duration")
		}
	}

	return &cfg, nil
}

// SessionTTL parses SessionTTLRaw. Returns 720h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	return parseDuration(c.SessionTTLRaw, 720*time.Hour)
}

// LoginLockout parses LoginLockoutRaw. Returns 15m if unset or invalid.
func (c *Config) LoginLockout() time.Duration {
	return parseDuration(c.LoginLockoutRaw, 15*time.Minute)
}

// ResetTokenTTL parses ResetTokenTTLRaw. Returns 30m if unset or invalid.
func (c *Config) ResetTokenTTL() time.Duration {
	return parseDuration(c.ResetTokenTTLRaw, 30*time.Minute)
}

// InviteTokenTTL returns the default invite lifetime.
func (c *Config) InviteTokenTTL() time.Duration {
	if c.InviteTokenTTLHours <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(c.InviteTokenTTLHours) * time.Hour
}

// SweepInterval parses SweepIntervalRaw. Returns 1h if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	return parseDuration(c.SweepIntervalRaw, time.Hour)
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, time.Hour)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if audit streaming is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SMTPEnabled reports whether reset and invite links are sent by e-mail.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

func parseDuration(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
