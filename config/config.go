// Package config loads the ambient settings for a uProtocol uEntity host
// process: which address its WebSocket transport listens on, how its
// endpoint registry behaves, logging, and optional message signing.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a uEntity host process.
type Config struct {
	Transport TransportConfig `yaml:"transport" json:"transport"`
	RPC       RPCConfig       `yaml:"rpc" json:"rpc"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Security  SecurityConfig  `yaml:"security" json:"security"`
}

// TransportConfig holds WebSocket transport configuration.
type TransportConfig struct {
	// Address the WebSocket transport listens on (e.g. ":8080").
	Address string `yaml:"address" json:"address"`

	// ReadTimeout is a frame read timeout. transport/ws does not read it;
	// its hub uses a fixed read deadline.
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// WriteTimeout is a frame write timeout. transport/ws does not read it;
	// it uses a fixed write deadline.
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// MaxPayloadSize is a message size limit in bytes. transport/ws does not
	// read it; its hub applies a fixed 512 KiB read limit.
	MaxPayloadSize int64 `yaml:"max_payload_size" json:"max_payload_size"`

	// PingInterval is used by internal/examplesrv as its heartbeat publish
	// interval. The transport/ws hub does not read it; it pings peers on a
	// fixed period.
	PingInterval time.Duration `yaml:"ping_interval" json:"ping_interval"`
}

// RPCConfig holds RPC-related defaults. The rpc package does not read this
// section.
type RPCConfig struct {
	// DefaultRequestTTL is used by internal/examplesrv as the lifetime of a
	// subscription claim that arrives without one. rpc.Server does not read
	// it; it applies its own fixed 10-second default to requests with no ttl.
	DefaultRequestTTL time.Duration `yaml:"default_request_ttl" json:"default_request_ttl"`

	// MaxListeners is an endpoint count limit (0 = unlimited). Validate
	// rejects negative values; no code in this module enforces the limit.
	MaxListeners int `yaml:"max_listeners" json:"max_listeners"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level" json:"level"`

	// Format is the log encoding (console, json).
	Format string `yaml:"format" json:"format"`

	// Output is the log output (stdout, stderr, or a file path).
	Output string `yaml:"output" json:"output"`
}

// SecurityConfig holds optional message-signing configuration.
type SecurityConfig struct {
	// RequireSignedMessages flags that inbound messages are to be signed.
	// No code in this module reads it; no transport or server verifies
	// signatures on its own.
	RequireSignedMessages bool `yaml:"require_signed_messages" json:"require_signed_messages"`

	// AllowedOrigins is passed by internal/examplesrv to ws.NewHub as the
	// accepted HTTP Origin header values for a WebSocket upgrade; "*" or an
	// empty list allows any.
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`

	// RateLimitPerMinute is an inbound message rate per peer. Validate
	// rejects negative values; no code in this module enforces the limit.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Transport: TransportConfig{
			Address:        ":8080",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxPayloadSize: 512 * 1024,
			PingInterval:   30 * time.Second,
		},
		RPC: RPCConfig{
			DefaultRequestTTL: 10 * time.Second,
			MaxListeners:      0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Security: SecurityConfig{
			RequireSignedMessages: false,
			AllowedOrigins:        []string{"*"},
			RateLimitPerMinute:    60,
		},
	}
}

// Load loads configuration from an optional file, then applies environment
// variable overrides (which take precedence), then validates the result.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("config: failed to load config file: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}
	return nil
}

// loadFromEnv overrides configuration with environment variables prefixed
// UP_, e.g. UP_TRANSPORT_ADDRESS, UP_LOG_LEVEL.
func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("UP_TRANSPORT_ADDRESS"); v != "" {
		cfg.Transport.Address = v
	}
	if v := os.Getenv("UP_TRANSPORT_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Transport.ReadTimeout = d
		}
	}
	if v := os.Getenv("UP_TRANSPORT_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Transport.WriteTimeout = d
		}
	}
	if v := os.Getenv("UP_TRANSPORT_MAX_PAYLOAD_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Transport.MaxPayloadSize = n
		}
	}
	if v := os.Getenv("UP_TRANSPORT_PING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Transport.PingInterval = d
		}
	}

	if v := os.Getenv("UP_RPC_DEFAULT_REQUEST_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RPC.DefaultRequestTTL = d
		}
	}
	if v := os.Getenv("UP_RPC_MAX_LISTENERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RPC.MaxListeners = n
		}
	}

	if v := os.Getenv("UP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("UP_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("UP_LOG_OUTPUT"); v != "" {
		cfg.Logging.Output = v
	}

	if v := os.Getenv("UP_SECURITY_REQUIRE_SIGNED_MESSAGES"); v != "" {
		cfg.Security.RequireSignedMessages = parseBool(v)
	}
	if v := os.Getenv("UP_SECURITY_ALLOWED_ORIGINS"); v != "" {
		cfg.Security.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("UP_SECURITY_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Security.RateLimitPerMinute = n
		}
	}

	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// Validate checks that cfg is internally consistent.
func (c *Config) Validate() error {
	if c.Transport.Address == "" {
		return fmt.Errorf("transport address cannot be empty")
	}
	if c.Transport.MaxPayloadSize <= 0 {
		return fmt.Errorf("max payload size must be positive")
	}
	if c.Transport.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.Transport.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.RPC.DefaultRequestTTL <= 0 {
		return fmt.Errorf("default request ttl must be positive")
	}
	if c.RPC.MaxListeners < 0 {
		return fmt.Errorf("max listeners cannot be negative")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("invalid log level: %s (must be one of: %v)", c.Logging.Level, validLogLevels)
	}
	validLogFormats := []string{"console", "json"}
	if !contains(validLogFormats, strings.ToLower(c.Logging.Format)) {
		return fmt.Errorf("invalid log format: %s (must be one of: %v)", c.Logging.Format, validLogFormats)
	}

	if c.Security.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate limit cannot be negative")
	}

	return nil
}

func contains(slice []string, item string) bool {
	item = strings.ToLower(item)
	for _, s := range slice {
		if strings.ToLower(s) == item {
			return true
		}
	}
	return false
}

// SaveToFile writes cfg to path, using YAML or JSON encoding inferred from
// the file extension.
func (c *Config) SaveToFile(path string) error {
	ext := strings.ToLower(filepath.Ext(path))

	var data []byte
	var err error
	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// IsDebug reports whether the configured log level is "debug".
func (c *Config) IsDebug() bool {
	return strings.ToLower(c.Logging.Level) == "debug"
}
