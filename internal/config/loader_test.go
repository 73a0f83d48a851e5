package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStripJSONComments(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"line comment", "{\n// comment\n\"a\": 1\n}", "{\n\n\"a\": 1\n}"},
		{"block comment", `{/* x */"a": 1}`, `{"a": 1}`},
		{"slashes inside string", `{"url": "http://x"}`, `{"url": "http://x"}`},
		{"no comments", `{"a": 1}`, `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(StripJSONComments([]byte(tt.input))); got != tt.want {
				t.Errorf("StripJSONComments() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aguimock.jsonc")
	content := `{
		// local overrides
		"server": {
			"address": ":9999",
			"char_delay_ms": 5
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Address != ":9999" {
		t.Errorf("Address = %q, want :9999", cfg.Server.Address)
	}
	if cfg.Server.CharDelayMs != 5 {
		t.Errorf("CharDelayMs = %d, want 5", cfg.Server.CharDelayMs)
	}
	// untouched fields keep their defaults
	if cfg.Server.ThinkingDelayMinMs != 300 || cfg.Server.ThinkingDelayMaxMs != 800 {
		t.Errorf("thinking delay = [%d, %d], want defaults [300, 800]",
			cfg.Server.ThinkingDelayMinMs, cfg.Server.ThinkingDelayMaxMs)
	}
	if cfg.Client.ServerURL != "http://localhost:3001" {
		t.Errorf("Client.ServerURL = %q, want default", cfg.Client.ServerURL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"bad json", `{`},
		{"empty address", `{"server": {"address": ""}}`},
		{"inverted delay range", `{"server": {"thinking_delay_min_ms": 900, "thinking_delay_max_ms": 100}}`},
		{"bad log format", `{"server": {"log_format": "xml"}}`},
		{"zero stream timeout", `{"server": {"stream_timeout_ms": 0}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".jsonc")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() accepted invalid config")
			}
		})
	}
}

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}
