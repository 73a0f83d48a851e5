// Package config loads aguimock settings from a JSONC file with sensible
// defaults for local development.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ServerConfig holds mock agent server settings
type ServerConfig struct {
	Address        string   `json:"address"`
	AllowedOrigins []string `json:"allowed_origins"`

	// QAPath points to the knowledge base file. Empty means the data set
	// embedded in the binary.
	QAPath string `json:"qa_path"`

	DataDir   string `json:"data_dir"`
	LogDir    string `json:"log_dir"`
	LogFormat string `json:"log_format"` // text or json

	// Emission pacing, all in milliseconds. The thinking delay is drawn
	// uniformly from [min, max].
	ThinkingDelayMinMs int `json:"thinking_delay_min_ms"`
	ThinkingDelayMaxMs int `json:"thinking_delay_max_ms"`
	CharDelayMs        int `json:"char_delay_ms"`

	// StreamTimeoutMs bounds one run end to end; the run degrades to an
	// error event when exceeded.
	StreamTimeoutMs int `json:"stream_timeout_ms"`

	RateLimitPerSecond float64 `json:"rate_limit_per_second"`
	RateLimitBurst     int     `json:"rate_limit_burst"`

	// QAReloadCron re-reads qa_path on this schedule. Empty disables it.
	QAReloadCron string `json:"qa_reload_cron"`

	// FeedbackRetentionDays prunes feedback rows older than this many
	// days during nightly maintenance. Zero keeps everything.
	FeedbackRetentionDays int `json:"feedback_retention_days"`
}

// ClientConfig holds chat client settings
type ClientConfig struct {
	ServerURL string `json:"server_url"`
	DataDir   string `json:"data_dir"`
}

// Config is the full aguimock.jsonc document
type Config struct {
	Server ServerConfig `json:"server"`
	Client ClientConfig `json:"client"`
}

// Default returns the built-in configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:               ":3001",
			AllowedOrigins:        []string{"*"},
			DataDir:               "data",
			LogDir:                "data/logs",
			LogFormat:             "text",
			ThinkingDelayMinMs:    300,
			ThinkingDelayMaxMs:    800,
			CharDelayMs:           20,
			StreamTimeoutMs:       60_000,
			RateLimitPerSecond:    10,
			RateLimitBurst:        20,
			QAReloadCron:          "",
			FeedbackRetentionDays: 0,
		},
		Client: ClientConfig{
			ServerURL: "http://localhost:3001",
			DataDir:   "data",
		},
	}
}

// Load reads a JSONC config file and overlays it on the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(StripJSONComments(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	s := &c.Server
	if s.Address == "" {
		return fmt.Errorf("server.address cannot be empty")
	}
	if s.ThinkingDelayMinMs < 0 || s.ThinkingDelayMaxMs < s.ThinkingDelayMinMs {
		return fmt.Errorf("invalid thinking delay range [%d, %d]",
			s.ThinkingDelayMinMs, s.ThinkingDelayMaxMs)
	}
	if s.CharDelayMs < 0 {
		return fmt.Errorf("char_delay_ms cannot be negative")
	}
	if s.StreamTimeoutMs <= 0 {
		return fmt.Errorf("stream_timeout_ms must be positive")
	}
	if s.LogFormat != "text" && s.LogFormat != "json" {
		return fmt.Errorf("log_format must be text or json, got %q", s.LogFormat)
	}
	return nil
}
