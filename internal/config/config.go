// Package config provides configuration for the toolgate interception
// layer: which outbound endpoints to intercept, request debug logging, and
// the optional local debug API. Configuration is loaded from a YAML file;
// all fields have working defaults so an empty file is valid.
package config

import (
	"fmt"
	"os"

	"github.com/router-for-me/toolgate/internal/reqlog"
	"gopkg.in/yaml.v3"
)

// Config is the application configuration, loaded from a YAML file.
type Config struct {
	// Endpoints lists URL substrings identifying chat-completion endpoints
	// whose bodies are intercepted. A request matches when its URL contains
	// any entry.
	Endpoints []string `yaml:"endpoints" json:"endpoints"`

	// SessionHeader names the outbound request header carrying the host
	// session identifier.
	SessionHeader string `yaml:"session-header" json:"session-header"`

	// RequestLog configures on-disk request debug logging.
	RequestLog reqlog.Config `yaml:"request-log" json:"request-log"`

	// DebugAPI configures the local inspection endpoint.
	DebugAPI DebugAPIConfig `yaml:"debug-api" json:"debug-api"`
}

// DebugAPIConfig holds the debug/inspection API settings.
type DebugAPIConfig struct {
	// Enabled starts the debug API server.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Addr is the listen address. Keep this loopback-bound; the API has no
	// authentication.
	Addr string `yaml:"addr" json:"addr"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Endpoints: []string{
			"/chat/completions",
			"/v1/responses",
			"/v1/messages",
			"generativelanguage.googleapis.com",
			"aiplatform.googleapis.com",
			"/converse",
		},
		SessionHeader: "X-Session-Id",
		RequestLog:    reqlog.DefaultConfig(),
		DebugAPI: DebugAPIConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8427",
		},
	}
}

// Load reads path and merges it over the defaults. A missing file returns
// the defaults without error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.SessionHeader == "" {
		cfg.SessionHeader = "X-Session-Id"
	}
	return cfg, nil
}
