package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sundayezeilo/shortlink/codegen"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	App       AppConfig
	Links     LinksConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"SERVER_PORT" required:"true"`
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	BaseURL         string        `envconfig:"SERVER_BASE_URL" required:"true"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base URL must be absolute, got %q", c.BaseURL)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// Addr returns the host:port the server listens on.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// DatabaseConfig holds database connection configuration.
//
// URL may carry <username> and <password> placeholders so it can be kept in
// version control; the credentials come from their own variables.
type DatabaseConfig struct {
	URL      string `envconfig:"DATABASE_URL" required:"true"`
	Name     string `envconfig:"DATABASE_NAME" required:"true"`
	User     string `envconfig:"DATABASE_USERNAME" required:"true"`
	Password string `envconfig:"DATABASE_PASSWORD" required:"true"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns int32  `envconfig:"DB_MIN_CONNS" default:"1"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url cannot be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if c.Password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max connections must be positive")
	}
	if c.MinConns < 0 {
		return fmt.Errorf("min connections cannot be negative")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min connections (%d) cannot be greater than max connections (%d)", c.MinConns, c.MaxConns)
	}
	if _, err := c.ConnectionString(); err != nil {
		return err
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection URL with credentials
// and database name applied.
func (c *DatabaseConfig) ConnectionString() (string, error) {
	raw := strings.NewReplacer("<username>", "user", "<password>", "pass").Replace(c.URL)

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid database url: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("database url scheme must be postgres or postgresql, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("database url must include host")
	}

	u.User = url.UserPassword(c.User, c.Password)
	u.Path = "/" + c.Name
	return u.String(), nil
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" required:"true"`   // development, staging, production, test
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"` // debug, info, warn, error
}

// Validate validates the app configuration.
func (c *AppConfig) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Environment)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

// LinksConfig controls code generation.
type LinksConfig struct {
	CodeLength     int `envconfig:"CODE_LENGTH" default:"6"`
	CodeGenRetries int `envconfig:"CODE_GEN_RETRIES" default:"1"`
}

// Validate validates the links configuration.
func (c *LinksConfig) Validate() error {
	if c.CodeLength < codegen.MinLength || c.CodeLength > codegen.MaxLength {
		return fmt.Errorf("code length must be between %d and %d, got %d", codegen.MinLength, codegen.MaxLength, c.CodeLength)
	}
	if c.CodeGenRetries < 1 {
		return fmt.Errorf("code generation attempts must be at least 1, got %d", c.CodeGenRetries)
	}
	return nil
}

// RateLimitConfig controls the per-client limit on link creation.
type RateLimitConfig struct {
	Enabled bool    `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RPS     float64 `envconfig:"RATE_LIMIT_RPS" default:"5"`
	Burst   int     `envconfig:"RATE_LIMIT_BURST" default:"10"`

	// Comma separated IPs or CIDRs of reverse proxies whose
	// X-Forwarded-For header is believed.
	TrustedProxies []string `envconfig:"RATE_LIMIT_TRUSTED_PROXIES"`
}

// TrustedPrefixes parses TrustedProxies. A bare address becomes a single
// host prefix.
func (c *RateLimitConfig) TrustedPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Validate validates the rate limit configuration.
func (c *RateLimitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RPS <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if c.Burst <= 0 {
		return fmt.Errorf("burst must be positive")
	}
	if _, err := c.TrustedPrefixes(); err != nil {
		return err
	}
	return nil
}

type section struct {
	name     string
	spec     any
	validate func() error
}

// Load loads configuration from environment variables only.
func Load() (*Config, error) {
	cfg := &Config{}

	sections := []section{
		{"Server", &cfg.Server, cfg.Server.Validate},
		{"Database", &cfg.Database, cfg.Database.Validate},
		{"App", &cfg.App, cfg.App.Validate},
		{"Links", &cfg.Links, cfg.Links.Validate},
		{"RateLimit", &cfg.RateLimit, cfg.RateLimit.Validate},
	}
	for _, s := range sections {
		if err := envconfig.Process("", s.spec); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", s.name, err)
		}
	}

	return cfg, nil
}
