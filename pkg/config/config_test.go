package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/crm-proxy/pkg/ratelimit"
)

// clearEnv unsets every variable Load reads so host settings do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HUBSPOT_API_TOKEN", "HUBSPOT_BASE_URL", "PORT", "SERVER_ADDR",
		"LOG_LEVEL", "LOG_PRETTY", "THROTTLE_MODE", "THROTTLE_DELAY",
		"REDIS_URL", "REDIS_PASSWORD",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Address != ":8000" {
		t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, ":8000")
	}
	if cfg.Throttle.Delay != 1200*time.Millisecond {
		t.Errorf("Throttle.Delay = %v, want 1.2s", cfg.Throttle.Delay)
	}
	if cfg.Throttle.Mode != string(ratelimit.ModeSequence) {
		t.Errorf("Throttle.Mode = %q, want %q", cfg.Throttle.Mode, ratelimit.ModeSequence)
	}
	if cfg.Pagination.PageSize != 100 {
		t.Errorf("Pagination.PageSize = %d, want 100", cfg.Pagination.PageSize)
	}
	if cfg.CRM.BaseURL != "https://api.hubapi.com" {
		t.Errorf("CRM.BaseURL = %q", cfg.CRM.BaseURL)
	}
	if cfg.CRM.Token != "" {
		t.Error("CRM.Token should have no default")
	}
}

func TestLoad_RequiresToken(t *testing.T) {
	clearEnv(t)

	if _, err := Load(""); err == nil {
		t.Fatal("Load() error = nil, want missing token error")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HUBSPOT_API_TOKEN", "secret-token")
	t.Setenv("HUBSPOT_BASE_URL", "http://localhost:9999")
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("THROTTLE_MODE", "redis")
	t.Setenv("THROTTLE_DELAY", "250ms")
	t.Setenv("REDIS_URL", "redis:6379")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CRM.Token != "secret-token" {
		t.Errorf("CRM.Token = %q", cfg.CRM.Token)
	}
	if cfg.CRM.BaseURL != "http://localhost:9999" {
		t.Errorf("CRM.BaseURL = %q", cfg.CRM.BaseURL)
	}
	if cfg.Server.Address != ":9000" {
		t.Errorf("Server.Address = %q, want :9000", cfg.Server.Address)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Pretty {
		t.Errorf("Logging = %+v, want debug/pretty", cfg.Logging)
	}
	if cfg.Throttle.Mode != "redis" || cfg.Throttle.Delay != 250*time.Millisecond {
		t.Errorf("Throttle = %+v, want redis/250ms", cfg.Throttle)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad delay", key: "THROTTLE_DELAY", value: "soon"},
		{name: "bad pretty flag", key: "LOG_PRETTY", value: "maybe"},
		{name: "unknown mode", key: "THROTTLE_MODE", value: "bucket"},
		{name: "unknown log level", key: "LOG_LEVEL", value: "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("HUBSPOT_API_TOKEN", "token")
			t.Setenv(tt.key, tt.value)

			if _, err := Load(""); err == nil {
				t.Errorf("Load() with %s=%q: error = nil, want error", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)

	content := `
server:
  address: ":7000"
  allowed_origin: "https://dashboard.example.com"
crm:
  token: "file-token"
  timeout: 5s
throttle:
  mode: process
  delay: 2s
pagination:
  page_size: 50
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	// Environment wins over the file.
	t.Setenv("THROTTLE_DELAY", "1500ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Address != ":7000" {
		t.Errorf("Server.Address = %q, want :7000", cfg.Server.Address)
	}
	if cfg.Server.AllowedOrigin != "https://dashboard.example.com" {
		t.Errorf("Server.AllowedOrigin = %q", cfg.Server.AllowedOrigin)
	}
	if cfg.CRM.Token != "file-token" {
		t.Errorf("CRM.Token = %q, want file-token", cfg.CRM.Token)
	}
	if cfg.CRM.Timeout != 5*time.Second {
		t.Errorf("CRM.Timeout = %v, want 5s", cfg.CRM.Timeout)
	}
	if cfg.Throttle.Mode != "process" {
		t.Errorf("Throttle.Mode = %q, want process", cfg.Throttle.Mode)
	}
	if cfg.Throttle.Delay != 1500*time.Millisecond {
		t.Errorf("Throttle.Delay = %v, want 1.5s", cfg.Throttle.Delay)
	}
	if cfg.Pagination.PageSize != 50 {
		t.Errorf("Pagination.PageSize = %d, want 50", cfg.Pagination.PageSize)
	}
	// Untouched sections keep their defaults.
	if cfg.CRM.BaseURL != "https://api.hubapi.com" {
		t.Errorf("CRM.BaseURL = %q, want default", cfg.CRM.BaseURL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("HUBSPOT_API_TOKEN", "token")

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() error = nil, want file error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{name: "valid", modify: func(c *Config) {}, valid: true},
		{name: "empty address", modify: func(c *Config) { c.Server.Address = "" }},
		{name: "blank token", modify: func(c *Config) { c.CRM.Token = "   " }},
		{name: "empty base url", modify: func(c *Config) { c.CRM.BaseURL = "" }},
		{name: "negative delay", modify: func(c *Config) { c.Throttle.Delay = -time.Second }},
		{name: "zero delay", modify: func(c *Config) { c.Throttle.Delay = 0 }, valid: true},
		{name: "redis without addr", modify: func(c *Config) {
			c.Throttle.Mode = "redis"
			c.Redis.Addr = ""
		}},
		{name: "zero page size", modify: func(c *Config) { c.Pagination.PageSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.CRM.Token = "token"
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
			if !tt.valid && err == nil {
				t.Error("Validate() error = nil, want error")
			}
		})
	}
}

func TestConfigString_MasksToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CRM.Token = "pat-na1-abcdef1234"

	s := cfg.String()
	if strings.Contains(s, "abcdef") {
		t.Errorf("String() leaks token: %s", s)
	}
	if !strings.Contains(s, "1234") {
		t.Errorf("String() = %s, want last four token characters", s)
	}
}
