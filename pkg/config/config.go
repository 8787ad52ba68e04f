// Package config loads proxy configuration: defaults, then an optional
// YAML file, then environment overrides, then validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/crm-proxy/pkg/logging"
	"github.com/Sternrassler/crm-proxy/pkg/ratelimit"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Config is the complete proxy configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	CRM        CRMConfig        `yaml:"crm"`
	Throttle   ThrottleConfig   `yaml:"throttle"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Pagination PaginationConfig `yaml:"pagination"`
}

// ServerConfig configures the inbound HTTP server.
type ServerConfig struct {
	Address string `yaml:"address"`

	// HandlerTimeout bounds one inbound request, including every page fetched.
	HandlerTimeout time.Duration `yaml:"handler_timeout"`

	// AllowedOrigin is sent as Access-Control-Allow-Origin.
	AllowedOrigin string `yaml:"allowed_origin"`
}

// CRMConfig configures the upstream API.
type CRMConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// ThrottleConfig configures outbound pacing.
type ThrottleConfig struct {
	Mode  string        `yaml:"mode"` // sequence | process | redis
	Delay time.Duration `yaml:"delay"`
}

// RedisConfig is only used by the redis throttle mode.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// PaginationConfig configures aggregation.
type PaginationConfig struct {
	PageSize int `yaml:"page_size"`
}

// DefaultConfig returns the default configuration. The CRM token has no
// default and must come from the file or HUBSPOT_API_TOKEN.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        ":8000",
			HandlerTimeout: 10 * time.Minute,
			AllowedOrigin:  "*",
		},
		CRM: CRMConfig{
			BaseURL: "https://api.hubapi.com",
			Timeout: 30 * time.Second,
		},
		Throttle: ThrottleConfig{
			Mode:  string(ratelimit.ModeSequence),
			Delay: ratelimit.DefaultDelay,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
		Pagination: PaginationConfig{
			PageSize: 100,
		},
	}
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, errors.Wrap(err, "load config file")
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, errors.Wrap(err, "apply environment overrides")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) error {
	if token := os.Getenv("HUBSPOT_API_TOKEN"); token != "" {
		cfg.CRM.Token = token
	}

	if baseURL := os.Getenv("HUBSPOT_BASE_URL"); baseURL != "" {
		cfg.CRM.BaseURL = baseURL
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Address = ":" + port
	}

	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		cfg.Server.Address = addr
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	if pretty := os.Getenv("LOG_PRETTY"); pretty != "" {
		v, err := strconv.ParseBool(pretty)
		if err != nil {
			return errors.Wrapf(err, "parse LOG_PRETTY %q", pretty)
		}
		cfg.Logging.Pretty = v
	}

	if mode := os.Getenv("THROTTLE_MODE"); mode != "" {
		cfg.Throttle.Mode = mode
	}

	if delay := os.Getenv("THROTTLE_DELAY"); delay != "" {
		d, err := time.ParseDuration(delay)
		if err != nil {
			return errors.Wrapf(err, "parse THROTTLE_DELAY %q", delay)
		}
		cfg.Throttle.Delay = d
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.Addr = redisURL
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	return nil
}

// Validate checks the configuration for missing or inconsistent values.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return errors.New("server address cannot be empty")
	}

	if strings.TrimSpace(c.CRM.Token) == "" {
		return errors.New("crm token is required (set HUBSPOT_API_TOKEN)")
	}

	if c.CRM.BaseURL == "" {
		return errors.New("crm base url cannot be empty")
	}

	mode := ratelimit.Mode(c.Throttle.Mode)
	if !mode.Valid() {
		return errors.Newf("invalid throttle mode: %s", c.Throttle.Mode)
	}

	if c.Throttle.Delay < 0 {
		return errors.Newf("throttle delay must not be negative: %s", c.Throttle.Delay)
	}

	if mode == ratelimit.ModeRedis && c.Redis.Addr == "" {
		return errors.New("redis throttle mode requires redis.addr")
	}

	if c.Pagination.PageSize < 1 {
		return errors.New("pagination page size must be at least 1")
	}

	if !logging.ValidLevel(logging.LogLevel(c.Logging.Level)) {
		return errors.Newf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// String returns a representation safe for logging; the token is masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Address: %s, CRM: %s, Token: %s, Throttle: %s/%s, LogLevel: %s}",
		c.Server.Address, c.CRM.BaseURL, maskToken(c.CRM.Token), c.Throttle.Mode, c.Throttle.Delay, c.Logging.Level)
}

func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}
