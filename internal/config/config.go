// ABOUTME: Configuration loading and parsing for courier-gateway
// ABOUTME: Supports YAML files with env var expansion, env overrides, and duration parsing

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultDownstreamURL is the agent endpoint used when none is configured.
const DefaultDownstreamURL = "https://culltique-joel-production.up.railway.app/langgraph/ask"

// DefaultDownstreamTimeout bounds each chat request end to end.
const DefaultDownstreamTimeout = 30 * time.Second

// DefaultSessionTTL is the lifetime of sessions minted by the dev provider.
const DefaultSessionTTL = 30 * 24 * time.Hour

// minSecretLength mirrors the session codec's HMAC requirement.
const minSecretLength = 32

// Session strategies
const (
	StrategyJWT      = "jwt"
	StrategyDatabase = "database"
	StrategyNone     = "none"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the complete courier-gateway configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Downstream DownstreamConfig `yaml:"downstream"`
	Session    SessionConfig    `yaml:"session"`
	Database   DatabaseConfig   `yaml:"database"`
	Tailscale  TailscaleConfig  `yaml:"tailscale"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DownstreamConfig points at the remote agent service.
type DownstreamConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// SessionConfig selects how inbound session cookies are read.
type SessionConfig struct {
	Strategy   string        `yaml:"strategy"` // jwt | database | none
	Secret     string        `yaml:"secret"`
	CookieName string        `yaml:"cookie_name"`
	TTL        time.Duration `yaml:"-"`

	TTLRaw string `yaml:"ttl"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	HTTPS     bool   `yaml:"https"`  // Serve HTTPS with Tailscale certs on :443
	Funnel    bool   `yaml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig holds OpenTelemetry tracing configuration
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// envOverrides lists the environment variables that win over the file.
type envOverrides struct {
	DownstreamURL string `env:"BACKEND_API_URL"`
	HTTPAddr      string `env:"COURIER_HTTP_ADDR"`
	SessionSecret string `env:"COURIER_SESSION_SECRET"`
	DBPath        string `env:"COURIER_DB_PATH"`
	LogLevel      string `env:"COURIER_LOG_LEVEL"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded, then the
// override variables (BACKEND_API_URL, COURIER_*) are applied.
// An empty path skips the file and builds the config from defaults and env.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		// Expand environment variables in the raw YAML content
		expandedData := expandEnvVars(string(data))

		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnv layers the override variables on top of the file values.
func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if o.DownstreamURL != "" {
		cfg.Downstream.URL = o.DownstreamURL
	}
	if o.HTTPAddr != "" {
		cfg.Server.HTTPAddr = o.HTTPAddr
	}
	if o.SessionSecret != "" {
		cfg.Session.Secret = o.SessionSecret
	}
	if o.DBPath != "" {
		cfg.Database.Path = o.DBPath
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	return nil
}

// applyDefaults fills unset fields.
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = "localhost:8080"
	}
	if c.Downstream.URL == "" {
		c.Downstream.URL = DefaultDownstreamURL
	}
	if c.Downstream.Timeout == 0 {
		c.Downstream.Timeout = DefaultDownstreamTimeout
	}
	if c.Session.Strategy == "" {
		c.Session.Strategy = StrategyNone
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "courier.session-token"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = DefaultSessionTTL
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "courier-gateway"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("%w: server.http_addr is required (or enable tailscale)", ErrInvalid)
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("%w: tailscale.hostname is required when tailscale is enabled", ErrInvalid)
	}

	u, err := url.Parse(c.Downstream.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: downstream.url must be an http(s) URL, got %q", ErrInvalid, c.Downstream.URL)
	}
	if c.Downstream.Timeout < 0 {
		return fmt.Errorf("%w: downstream.timeout must be positive", ErrInvalid)
	}

	switch c.Session.Strategy {
	case StrategyJWT:
		if len(c.Session.Secret) < minSecretLength {
			return fmt.Errorf("%w: session.secret must be at least %d bytes for the jwt strategy", ErrInvalid, minSecretLength)
		}
	case StrategyDatabase:
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database.path is required for the database strategy", ErrInvalid)
		}
	case StrategyNone:
	default:
		return fmt.Errorf("%w: unknown session.strategy %q (want jwt, database or none)", ErrInvalid, c.Session.Strategy)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown logging.level %q", ErrInvalid, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown logging.format %q", ErrInvalid, c.Logging.Format)
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("%w: telemetry.endpoint is required when telemetry is enabled", ErrInvalid)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Downstream.TimeoutRaw != "" {
		cfg.Downstream.Timeout, err = time.ParseDuration(cfg.Downstream.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing downstream.timeout %q: %w", cfg.Downstream.TimeoutRaw, err)
		}
	}

	if cfg.Session.TTLRaw != "" {
		cfg.Session.TTL, err = time.ParseDuration(cfg.Session.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session.ttl %q: %w", cfg.Session.TTLRaw, err)
		}
	}

	return nil
}
