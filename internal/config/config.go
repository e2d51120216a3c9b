package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Attachment backends
const (
	AttachmentsDisabled = "disabled"
	AttachmentsS3       = "s3"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"dev"`

	// Storage
	StoreDriver string        `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string        `env:"DATABASE_URL"`
	AutoMigrate bool          `env:"AUTO_MIGRATE" envDefault:"true"`
	LockTimeout time.Duration `env:"LOCK_TIMEOUT" envDefault:"2s"`

	// Auth
	SupabaseURL     string `env:"SUPABASE_URL"`
	SupabaseKey     string `env:"SUPABASE_KEY"`
	SupabaseJWKSURL string `env:"JWKS_URL"` // defaults to SupabaseURL + /auth/v1/.well-known/jwks.json
	AuthDisabled    bool   `env:"AUTH_DISABLED" envDefault:"false"`
	DevUserID       string `env:"DEV_USER_ID" envDefault:"00000000-0000-0000-0000-000000000001"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// Generation
	AnthropicAPIKey      string `env:"ANTHROPIC_API_KEY"`
	DefaultProvider      string `env:"DEFAULT_PROVIDER" envDefault:"lorem"`
	RegenerateMaxRetries uint64 `env:"REGENERATE_MAX_RETRIES" envDefault:"5"`

	// Attachments
	AttachmentsBackend string `env:"ATTACHMENTS_BACKEND" envDefault:"disabled"`
	S3Bucket           string `env:"S3_BUCKET"`
	S3Prefix           string `env:"S3_PREFIX"`
	S3UsePathStyle     bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`

	// Observability
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	LogLevel       string `env:"LOG_LEVEL"`
	LogDir         string `env:"LOG_DIR"`
	LogMaxFiles    int    `env:"LOG_MAX_FILES" envDefault:"10"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	// Missing .env is fine in production
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.SupabaseJWKSURL == "" && cfg.SupabaseURL != "" {
		cfg.SupabaseJWKSURL = strings.TrimRight(cfg.SupabaseURL, "/") + "/auth/v1/.well-known/jwks.json"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "prod"
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.AttachmentsBackend {
	case AttachmentsDisabled:
	case AttachmentsS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when ATTACHMENTS_BACKEND=%s", AttachmentsS3)
		}
	default:
		return fmt.Errorf("unsupported ATTACHMENTS_BACKEND %q", c.AttachmentsBackend)
	}

	if c.AuthDisabled && c.IsProduction() {
		return fmt.Errorf("AUTH_DISABLED cannot be used in production")
	}
	if !c.AuthDisabled && c.SupabaseJWKSURL == "" {
		return fmt.Errorf("SUPABASE_URL or JWKS_URL is required unless AUTH_DISABLED=true")
	}
	return nil
}
