package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	AuthMode       string   `mapstructure:"AUTH_MODE"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string   `mapstructure:"REDIS_URL"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	DefaultBranch  string   `mapstructure:"DEFAULT_BRANCH"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`

	AuthTokenTTL time.Duration `mapstructure:"AUTH_TOKEN_TTL"`

	StorageBackend       string        `mapstructure:"STORAGE_BACKEND"`
	StorageBucket        string        `mapstructure:"STORAGE_BUCKET"`
	StorageEndpoint      string        `mapstructure:"STORAGE_ENDPOINT"`
	StorageRegion        string        `mapstructure:"STORAGE_REGION"`
	StorageAccessKeyID   string        `mapstructure:"STORAGE_ACCESS_KEY_ID"`
	StorageSecretKey     string        `mapstructure:"STORAGE_SECRET_ACCESS_KEY"`
	StoragePublicBaseURL string        `mapstructure:"STORAGE_PUBLIC_BASE_URL"`
	StorageSignedURLTTL  time.Duration `mapstructure:"STORAGE_SIGNED_URL_TTL"`
	PreviewCacheTTL      time.Duration `mapstructure:"PREVIEW_CACHE_TTL"`
	UploadMaxSize        string        `mapstructure:"UPLOAD_MAX_SIZE"`

	KafkaBrokers           []string `mapstructure:"KAFKA_BROKERS"`
	QueueEventsTopic       string   `mapstructure:"QUEUE_EVENTS_TOPIC"`
	QueueAvgServiceMinutes int      `mapstructure:"QUEUE_AVG_SERVICE_MINUTES"`
	ClinicTimezone         string   `mapstructure:"CLINIC_TIMEZONE"`

	TLSEnabled  bool   `mapstructure:"TLS_ENABLED"`
	TLSCertFile string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string `mapstructure:"TLS_KEY_FILE"`
}

var envKeys = []string{
	"PORT", "ENV", "AUTH_MODE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"AUTH_TOKEN_TTL", "DEFAULT_BRANCH", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"STORAGE_BACKEND", "STORAGE_BUCKET", "STORAGE_ENDPOINT", "STORAGE_REGION",
	"STORAGE_ACCESS_KEY_ID", "STORAGE_SECRET_ACCESS_KEY", "STORAGE_PUBLIC_BASE_URL", "UPLOAD_MAX_SIZE",
	"STORAGE_SIGNED_URL_TTL", "PREVIEW_CACHE_TTL", "KAFKA_BROKERS", "QUEUE_EVENTS_TOPIC",
	"QUEUE_AVG_SERVICE_MINUTES", "CLINIC_TIMEZONE", "TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // "" -> inferred from ENV
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("AUTH_TOKEN_TTL", "12h")
	v.SetDefault("DEFAULT_BRANCH", "main")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("STORAGE_BACKEND", "s3")
	v.SetDefault("STORAGE_BUCKET", "patient-files")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "15m")
	v.SetDefault("PREVIEW_CACHE_TTL", "10m")
	v.SetDefault("UPLOAD_MAX_SIZE", "25M")
	v.SetDefault("QUEUE_EVENTS_TOPIC", "queue-events")
	v.SetDefault("QUEUE_AVG_SERVICE_MINUTES", 15)
	v.SetDefault("CLINIC_TIMEZONE", "Local")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.ResolvedAuthMode() == "development" {
		log.Println("WARNING: development auth is active; every request without a token is treated as admin.")
	}

	return cfg, nil
}

// splitList normalizes comma separated values. Depending on the source viper
// hands back either one "a, b" element or untrimmed pieces, so both are
// re-split and trimmed. Empty entries are dropped.
func splitList(parsed []string, raw string) []string {
	joined := strings.Join(parsed, ",")
	if joined == "" {
		joined = raw
	}
	var out []string
	for _, s := range strings.Split(joined, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise:
//   - ENV=development → "development"
//   - AUTH_ISSUER set → "external" (hosted identity provider, JWKS)
//   - otherwise       → "standalone" (tokens issued by /auth/login)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	if c.AuthIssuer != "" {
		return "external"
	}
	return "standalone"
}

// Location returns the clinic time zone used to decide what "today" is for
// treatment dates.
func (c *Config) Location() *time.Location {
	if c.ClinicTimezone == "" || c.ClinicTimezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	switch mode {
	case "development":
	case "external":
		if c.AuthIssuer == "" {
			return fmt.Errorf("AUTH_ISSUER must be set when AUTH_MODE is \"external\" (current ENV=%q)", c.Env)
		}
	case "standalone":
		if len(c.AuthSigningKey) < 32 {
			return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters in standalone auth mode")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be \"development\", \"standalone\", or \"external\", got %q", mode)
	}

	switch c.StorageBackend {
	case "s3", "memory":
	default:
		return fmt.Errorf("STORAGE_BACKEND must be \"s3\" or \"memory\", got %q", c.StorageBackend)
	}
	if c.StorageBucket == "" {
		return fmt.Errorf("STORAGE_BUCKET is required")
	}
	if c.QueueAvgServiceMinutes < 0 {
		return fmt.Errorf("QUEUE_AVG_SERVICE_MINUTES must not be negative")
	}
	if c.ClinicTimezone != "" && c.ClinicTimezone != "Local" {
		if _, err := time.LoadLocation(c.ClinicTimezone); err != nil {
			return fmt.Errorf("CLINIC_TIMEZONE is not a valid IANA zone: %w", err)
		}
	}

	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
