// ABOUTME: Configuration loading for courier-chat
// ABOUTME: Loads TOML config from the XDG path with environment variable expansion

package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/2389/courier-gateway/internal/markdown"
	"github.com/2389/courier-gateway/internal/session"
)

type Config struct {
	Gateway GatewayConfig `toml:"gateway"`
	Session SessionConfig `toml:"session"`
	Render  RenderConfig  `toml:"render"`
}

type GatewayConfig struct {
	URL string `toml:"url"`
}

type SessionConfig struct {
	// Token is the session cookie value issued by the provider. Empty means
	// the chat runs anonymously.
	Token      string `toml:"token"`
	CookieName string `toml:"cookie_name"`
}

type RenderConfig struct {
	Width int  `toml:"width"`
	Color bool `toml:"color"`
}

// getConfigPath returns the path to the chat config file.
// Priority: COURIER_CHAT_CONFIG env var > XDG_CONFIG_HOME/courier/chat.toml > ~/.config/courier/chat.toml
func getConfigPath() string {
	if envPath := os.Getenv("COURIER_CHAT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "chat.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "courier", "chat.toml")
}

func defaultConfig() Config {
	return Config{
		Gateway: GatewayConfig{URL: "http://localhost:8080"},
		Session: SessionConfig{CookieName: session.DefaultCookieName},
		Render:  RenderConfig{Width: markdown.DefaultWidth, Color: true},
	}
}

// Load reads config from the given path, expanding environment variables.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if _, err := toml.Decode(expandEnvVars(string(data)), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if token := os.Getenv("COURIER_SESSION_TOKEN"); token != "" {
		cfg.Session.Token = token
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = session.DefaultCookieName
	}
	if cfg.Render.Width <= 0 {
		cfg.Render.Width = markdown.DefaultWidth
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required")
	}
	u, err := url.Parse(c.Gateway.URL)
	if err != nil {
		return fmt.Errorf("gateway.url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("gateway.url must use http or https scheme")
	}
	return nil
}
