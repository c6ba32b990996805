// Package config loads the chatflow runtime configuration.
//
// Values are resolved in order: built-in defaults, the YAML file named by
// CHATFLOW_CONFIG (or passed to Load), then environment variables. A .env file
// in the working directory is loaded into the environment first, without
// overriding variables that are already set.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/chatflow/internal/sanitize"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigFile names the optional YAML config file.
const EnvConfigFile = "CHATFLOW_CONFIG"

type Config struct {
	Addr            string         `yaml:"addr"`
	LogLevel        string         `yaml:"log_level"`
	LogFormat       string         `yaml:"log_format"`
	RemoteTimeout   time.Duration  `yaml:"remote_timeout"`
	IdleTimeout     time.Duration  `yaml:"idle_timeout"` // zero disables eviction
	JanitorInterval time.Duration  `yaml:"janitor_interval"`
	MaxInputSize    int            `yaml:"max_input_size"`
	TransitionsPath string         `yaml:"transitions"`
	LocaleDir       string         `yaml:"locale_dir"`
	StoreDir        string         `yaml:"store_dir"` // file sessions when Redis is off
	Redis           RedisConfig    `yaml:"redis"`
	OpenAI          OpenAIConfig   `yaml:"openai"`
	Security        SecurityConfig `yaml:"security"`
}

type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// SecurityConfig protects sessions at rest. Keys are base64 encoded AES-256 keys.
type SecurityConfig struct {
	EncryptionKey string   `yaml:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys"`
	PIIKeys       []string `yaml:"pii_keys"` // regular expressions on preference keys
}

// Enabled reports whether a store middleware must be installed.
func (c SecurityConfig) Enabled() bool {
	return c.EncryptionKey != "" || len(c.PIIKeys) > 0
}

// Keys decodes the active and fallback keys. The active key is nil when encryption is off.
func (c SecurityConfig) Keys() ([]byte, [][]byte, error) {
	if c.EncryptionKey == "" {
		return nil, nil, nil
	}
	active, err := decodeKey(c.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("encryption_key: %w", err)
	}
	fallbacks := make([][]byte, 0, len(c.FallbackKeys))
	for i, k := range c.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("fallback_keys[%d]: %w", i, err)
		}
		fallbacks = append(fallbacks, key)
	}
	return active, fallbacks, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Enabled reports whether sessions and completions should go through Redis.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// Enabled reports whether the remote completion and translation services are configured.
func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:            ":8080",
		LogLevel:        "info",
		LogFormat:       "text",
		RemoteTimeout:   3 * time.Second,
		JanitorInterval: time.Minute,
		MaxInputSize:    sanitize.DefaultMaxInputSize,
		Redis: RedisConfig{
			CacheTTL: 10 * time.Minute,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
	}
}

// Load resolves the configuration. An empty path falls back to CHATFLOW_CONFIG;
// when neither is set no file is read.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = nil
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					*dst = append(*dst, item)
				}
			}
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("CHATFLOW_ADDR", &c.Addr)
	str("CHATFLOW_LOG_LEVEL", &c.LogLevel)
	str("CHATFLOW_LOG_FORMAT", &c.LogFormat)
	dur("CHATFLOW_REMOTE_TIMEOUT", &c.RemoteTimeout)
	dur("CHATFLOW_IDLE_TIMEOUT", &c.IdleTimeout)
	dur("CHATFLOW_JANITOR_INTERVAL", &c.JanitorInterval)
	num(sanitize.EnvMaxInputSize, &c.MaxInputSize)
	str("CHATFLOW_TRANSITIONS", &c.TransitionsPath)
	str("CHATFLOW_LOCALE_DIR", &c.LocaleDir)
	str("CHATFLOW_STORE_DIR", &c.StoreDir)
	str("CHATFLOW_REDIS_ADDR", &c.Redis.Addr)
	str("CHATFLOW_REDIS_PASSWORD", &c.Redis.Password)
	num("CHATFLOW_REDIS_DB", &c.Redis.DB)
	dur("CHATFLOW_SESSION_TTL", &c.Redis.SessionTTL)
	dur("CHATFLOW_CACHE_TTL", &c.Redis.CacheTTL)
	str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	str("OPENAI_MODEL", &c.OpenAI.Model)
	str("CHATFLOW_ENCRYPTION_KEY", &c.Security.EncryptionKey)
	list("CHATFLOW_FALLBACK_KEYS", &c.Security.FallbackKeys)
	list("CHATFLOW_PII_KEYS", &c.Security.PIIKeys)

	return errors.Join(errs...)
}

// Validate rejects negative durations and sizes, unknown log formats and malformed keys.
func (c Config) Validate() error {
	switch {
	case c.RemoteTimeout <= 0:
		return fmt.Errorf("remote_timeout must be positive, got %s", c.RemoteTimeout)
	case c.IdleTimeout < 0:
		return fmt.Errorf("idle_timeout must not be negative, got %s", c.IdleTimeout)
	case c.IdleTimeout > 0 && c.JanitorInterval <= 0:
		return fmt.Errorf("janitor_interval must be positive when idle_timeout is set")
	case c.MaxInputSize < 0:
		return fmt.Errorf("max_input_size must not be negative, got %d", c.MaxInputSize)
	case c.Redis.SessionTTL < 0 || c.Redis.CacheTTL < 0:
		return fmt.Errorf("redis TTLs must not be negative")
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	_, _, err := c.Security.Keys()
	return err
}
