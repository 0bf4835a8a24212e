package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/quire/internal/logging"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override (QUIRE_STORE_DRIVER, ...).
const EnvPrefix = "QUIRE"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// Config holds all application configuration
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Definitions DefinitionsConfig `mapstructure:"definitions"`
	Store       StoreConfig       `mapstructure:"store"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Server      ServerConfig      `mapstructure:"server"`
	Security    SecurityConfig    `mapstructure:"security"`
	Actions     ActionsConfig     `mapstructure:"actions"`
	Input       InputConfig       `mapstructure:"input"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// DefinitionsConfig locates assessment definitions.
type DefinitionsConfig struct {
	Dir string `mapstructure:"dir"`
}

// StoreConfig selects where session snapshots live.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	// Path is the directory (file) or database file (sqlite).
	Path string `mapstructure:"path"`
}

// RedisConfig holds the redis store and lock settings.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
	// LockTTL bounds how long a session lock survives a crashed holder.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	MCPPort int    `mapstructure:"mcp_port"`
	Metrics bool   `mapstructure:"metrics"`
}

// SecurityConfig holds the store middleware settings.
type SecurityConfig struct {
	// EncryptionKey is a hex encoded 32-byte AES key. Empty disables encryption.
	EncryptionKey string `mapstructure:"encryption_key"`
	// FallbackKeys are previous keys still accepted for decryption.
	FallbackKeys []string `mapstructure:"fallback_keys"`
	// PIIFields are regular expressions of answer identifiers to mask.
	PIIFields []string `mapstructure:"pii_fields"`
}

// ActionsConfig points at the allow-list of custom action processes.
type ActionsConfig struct {
	File string `mapstructure:"file"`
}

// InputConfig bounds respondent answers, in bytes and items.
type InputConfig struct {
	MaxTextSize  int `mapstructure:"max_text_size"`
	MaxOtherSize int `mapstructure:"max_other_size"`
	MaxItems     int `mapstructure:"max_items"`
}

// New returns a viper instance with defaults and environment overrides set up.
// Callers may bind command-line flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("definitions.dir", ".")

	v.SetDefault("store.driver", DriverFile)
	v.SetDefault("store.path", ".quire/sessions")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "quire:session:")
	v.SetDefault("redis.ttl", time.Duration(0))
	v.SetDefault("redis.lock_ttl", 30*time.Second)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mcp_port", 8081)
	v.SetDefault("server.metrics", true)

	v.SetDefault("security.encryption_key", "")
	v.SetDefault("security.fallback_keys", []string{})
	v.SetDefault("security.pii_fields", []string{})

	v.SetDefault("actions.file", "actions.yaml")

	v.SetDefault("input.max_text_size", 4096)
	v.SetDefault("input.max_other_size", 512)
	v.SetDefault("input.max_items", 64)
}

// Load reads the optional YAML file at path into v and decodes the result.
// An empty path looks for quire.yaml in the working directory; a missing
// default file is not an error, a missing explicit one is.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("quire")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	switch c.Store.Driver {
	case DriverMemory, DriverRedis:
	case DriverFile, DriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store.path is required for the %s driver", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	if c.Store.Driver == DriverRedis && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required for the redis driver"))
	}
	if c.Redis.TTL < 0 || c.Redis.LockTTL < 0 {
		errs = append(errs, errors.New("redis ttl values cannot be negative"))
	}

	if c.Security.EncryptionKey != "" {
		if _, err := decodeKey(c.Security.EncryptionKey); err != nil {
			errs = append(errs, fmt.Errorf("security.encryption_key: %w", err))
		}
	}
	for i, k := range c.Security.FallbackKeys {
		if _, err := decodeKey(k); err != nil {
			errs = append(errs, fmt.Errorf("security.fallback_keys[%d]: %w", i, err))
		}
	}
	for _, p := range c.Security.PIIFields {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("security.pii_fields: %w", err))
		}
	}

	if c.Input.MaxTextSize < 0 || c.Input.MaxOtherSize < 0 || c.Input.MaxItems < 0 {
		errs = append(errs, errors.New("input limits cannot be negative"))
	}

	return errors.Join(errs...)
}

// EncryptionKeys returns the decoded active and fallback keys. A nil active
// key means encryption is disabled. Call after Validate.
func (c *Config) EncryptionKeys() (active []byte, fallback [][]byte) {
	if c.Security.EncryptionKey == "" {
		return nil, nil
	}
	active, _ = decodeKey(c.Security.EncryptionKey)
	for _, k := range c.Security.FallbackKeys {
		if b, err := decodeKey(k); err == nil {
			fallback = append(fallback, b)
		}
	}
	return active, fallback
}

func decodeKey(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("not hex: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(b))
	}
	return b, nil
}
