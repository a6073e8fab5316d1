package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":8080"`
	AdminAddr string `env:"ADMIN_ADDR" envDefault:":9091"`

	RootDomain        string   `env:"ROOT_DOMAIN" envDefault:"example.com"`
	MainSiteHosts     []string `env:"MAIN_SITE_HOSTS" envSeparator:","`
	DefaultTenantName string   `env:"DEFAULT_TENANT_NAME" envDefault:"Default Clinic"`

	TenantCacheTTL       time.Duration `env:"TENANT_CACHE_TTL" envDefault:"60s"`
	TenantLookupAttempts int           `env:"TENANT_LOOKUP_ATTEMPTS" envDefault:"3"`
	TenantLookupBackoff  time.Duration `env:"TENANT_LOOKUP_BACKOFF" envDefault:"100ms"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	PostgresURL   string `env:"POSTGRES_URL"`
	RedisURL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	AdminKeyCacheTTL time.Duration `env:"ADMIN_KEY_CACHE_TTL" envDefault:"5m"`
	AdminKeys        []string      `env:"ADMIN_KEYS" envSeparator:","`
	JWTSecret        string        `env:"JWT_SECRET"`
	JWTExpiry        time.Duration `env:"JWT_EXPIRY" envDefault:"12h"`

	AuditStream        string        `env:"AUDIT_STREAM" envDefault:"tenant_audit"`
	AuditDLQStream     string        `env:"AUDIT_DLQ_STREAM" envDefault:"tenant_audit_dlq"`
	AuditGroup         string        `env:"AUDIT_GROUP" envDefault:"tenant-auditors"`
	InvalidationChan   string        `env:"INVALIDATION_CHANNEL" envDefault:"tenant_invalidations"`
	AuditBatchSize     int           `env:"AUDIT_BATCH_SIZE" envDefault:"500"`
	AuditRetryCount    int           `env:"AUDIT_RETRY_COUNT" envDefault:"3"`
	AuditRetryBackoff  time.Duration `env:"AUDIT_RETRY_BACKOFF" envDefault:"1s"`
	AuditClaimIdle     time.Duration `env:"AUDIT_CLAIM_IDLE" envDefault:"30s"`
	PIIRedactionFields []string      `env:"PII_REDACTION_FIELDS" envSeparator:"," envDefault:"owner_email,owner_phone,email,phone,password"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsDevelopment reports whether the synthesized default tenant and loud
// programming-error handling are enabled.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// ValidateServer checks the settings only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

func (c *Config) validate() error {
	switch c.AppEnv {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.AppEnv)
	}
	switch c.StorageDriver {
	case StorageMemory:
		if !c.IsDevelopment() {
			return fmt.Errorf("STORAGE_DRIVER=%s is only allowed in development", StorageMemory)
		}
		if len(c.AdminKeys) == 0 {
			return fmt.Errorf("ADMIN_KEYS is required when STORAGE_DRIVER=%s", StorageMemory)
		}
	case StoragePostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required when STORAGE_DRIVER=%s", StoragePostgres)
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.TenantLookupAttempts < 1 {
		return fmt.Errorf("TENANT_LOOKUP_ATTEMPTS must be at least 1")
	}
	return nil
}
