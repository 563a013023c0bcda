// Package config handles application configuration loading from environment
// variables. The CMS and the public site each get their own struct; both are
// populated with cleanenv from env tags and their defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	// defaultSecret is the development-only signing secret for API tokens.
	defaultSecret = "dev-secret-change-me"

	// defaultSeedPassword is the development-only admin password.
	defaultSeedPassword = "admin"
)

// Config holds all CMS configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host      string `env:"APP_HOST" env-default:"0.0.0.0"`
	Port      string `env:"APP_PORT" env-default:"3001"`
	Env       string `env:"APP_ENV" env-default:"development"` // "development", "production", "testing"
	ServerURL string `env:"SERVER_URL" env-default:"http://localhost:3001"`

	// PostgreSQL connection. DatabaseURL wins over the discrete fields.
	DatabaseURL string `env:"DATABASE_URL"`
	DBHost      string `env:"POSTGRES_HOST" env-default:"localhost"`
	DBPort      string `env:"POSTGRES_PORT" env-default:"5432"`
	DBUser      string `env:"POSTGRES_USER" env-default:"folio"`
	DBPassword  string `env:"POSTGRES_PASSWORD" env-default:"changeme"`
	DBName      string `env:"POSTGRES_DB" env-default:"folio"`

	// API token signing
	Secret   string        `env:"CMS_SECRET" env-default:"dev-secret-change-me"`
	TokenTTL time.Duration `env:"TOKEN_TTL" env-default:"2h"`

	// Cross-origin access for the site and admin front ends.
	SiteDomain  string   `env:"SITE_DOMAIN"`
	AdminDomain string   `env:"ADMIN_DOMAIN"`
	CORSOrigins []string `env:"CORS_ORIGINS" env-separator:","`

	// Valkey (Redis-compatible cache + sessions)
	ValkeyHost     string `env:"VALKEY_HOST" env-default:"localhost"`
	ValkeyPort     string `env:"VALKEY_PORT" env-default:"6379"`
	ValkeyPassword string `env:"VALKEY_PASSWORD"`

	// S3-compatible object storage for media uploads
	S3Endpoint   string `env:"S3_ENDPOINT"`
	S3Region     string `env:"S3_REGION" env-default:"us-east-1"`
	S3AccessKey  string `env:"S3_ACCESS_KEY"`
	S3SecretKey  string `env:"S3_SECRET_KEY"`
	S3Bucket     string `env:"S3_BUCKET" env-default:"folio-media"`
	S3PublicURL  string `env:"S3_PUBLIC_URL"`
	MaxUploadMiB int64  `env:"MAX_UPLOAD_MIB" env-default:"20"`

	// Seed admin account
	SeedAdminEmail    string `env:"SEED_ADMIN_EMAIL" env-default:"admin@folio.local"`
	SeedAdminPassword string `env:"SEED_ADMIN_PASSWORD" env-default:"admin"`
}

// SiteConfig holds configuration for the public site renderer.
type SiteConfig struct {
	Host string `env:"SITE_HOST" env-default:"0.0.0.0"`
	Port string `env:"SITE_PORT" env-default:"3000"`
	Env  string `env:"APP_ENV" env-default:"development"`

	// CMSInternalURL is preferred for server-side fetches; CMSPublicURL is
	// the fallback when the site runs outside the CMS network.
	CMSInternalURL string        `env:"CMS_INTERNAL_URL"`
	CMSPublicURL   string        `env:"CMS_PUBLIC_URL" env-default:"http://localhost:3001"`
	FetchTimeout   time.Duration `env:"FETCH_TIMEOUT" env-default:"5s"`
	StaleTTL       time.Duration `env:"STALE_TTL" env-default:"24h"`

	ValkeyHost     string `env:"VALKEY_HOST" env-default:"localhost"`
	ValkeyPort     string `env:"VALKEY_PORT" env-default:"6379"`
	ValkeyPassword string `env:"VALKEY_PASSWORD"`
}

// Load reads CMS configuration from environment variables. Returns an error
// if critical values are left at their development defaults in production.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" && cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
		if cfg.Secret == defaultSecret {
			return nil, fmt.Errorf("CMS_SECRET must be set in production")
		}
		if cfg.SeedAdminPassword == defaultSeedPassword {
			return nil, fmt.Errorf("SEED_ADMIN_PASSWORD must be set in production")
		}
	}

	return cfg, nil
}

// LoadSite reads the public site configuration from environment variables.
func LoadSite() (*SiteConfig, error) {
	cfg := &SiteConfig{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// AllowedOrigins returns the CORS allow-list: explicit CORS_ORIGINS plus
// https origins derived from SITE_DOMAIN and ADMIN_DOMAIN. In development
// the local site is always allowed.
func (c *Config) AllowedOrigins() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(origin string) {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" || seen[origin] {
			return
		}
		seen[origin] = true
		out = append(out, origin)
	}

	for _, o := range c.CORSOrigins {
		add(o)
	}
	if c.SiteDomain != "" {
		add("https://" + c.SiteDomain)
	}
	if c.AdminDomain != "" {
		add("https://" + c.AdminDomain)
	}
	add(c.ServerURL)
	if c.IsDev() {
		add("http://localhost:3000")
	}
	return out
}

// Addr returns the site listen address (host:port).
func (c *SiteConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the site is running in development mode.
func (c *SiteConfig) IsDev() bool {
	return c.Env == "development"
}

// CMSBaseURL returns the URL used for server-side CMS fetches.
func (c *SiteConfig) CMSBaseURL() string {
	if c.CMSInternalURL != "" {
		return strings.TrimRight(c.CMSInternalURL, "/")
	}
	return strings.TrimRight(c.CMSPublicURL, "/")
}
