// Package config loads gqlmux settings from GQLMUX_* environment variables
// (and a .env file when present), applies defaults and validates them.
//
// Nested keys use a double underscore: GQLMUX_SERVER__ADDR sets server.addr.
// List values are comma separated.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	// Loads .env into the process environment before anything reads it.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "GQLMUX_"

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

type Config struct {
	Env      string         `koanf:"env" validate:"required,oneof=development production test"`
	Log      LogConfig      `koanf:"log"`
	Server   ServerConfig   `koanf:"server"`
	Executor ExecutorConfig `koanf:"executor"`
	Otel     OtelConfig     `koanf:"otel"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=console json"`

	// formatSet records an explicit format from the environment or SetLogFormat.
	formatSet bool
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	Path            string        `koanf:"path" validate:"required,startswith=/"`
	Timeout         time.Duration `koanf:"timeout" validate:"gte=0"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes" validate:"gte=0"`
	Pretty          bool          `koanf:"pretty"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	MetadataHeaders []string      `koanf:"metadata_headers"`
}

type ExecutorConfig struct {
	Service        string        `koanf:"service" validate:"required"`
	Endpoints      []string      `koanf:"endpoints" validate:"required,min=1,dive,required"`
	RPCTimeout     time.Duration `koanf:"rpc_timeout" validate:"gte=0"`
	MaxConns       int           `koanf:"max_conns" validate:"gte=1"`
	MaxConcurrency int           `koanf:"max_concurrency" validate:"gte=1"`
	ParseCacheSize int           `koanf:"parse_cache_size" validate:"gte=1"`
}

type OtelConfig struct {
	Endpoint string `koanf:"endpoint"`
	Service  string `koanf:"service" validate:"required"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path" validate:"required,startswith=/"`
}

// Development reports whether errors should be rendered for local debugging.
func (c *Config) Development() bool { return c.Env == EnvDevelopment }

var defaults = map[string]any{
	"env":                       EnvProduction,
	"log.level":                 "info",
	"log.format":                "json",
	"server.addr":               ":8080",
	"server.path":               "/graphql",
	"server.timeout":            "10s",
	"server.max_body_bytes":     1 << 20,
	"server.pretty":             false,
	"executor.service":          "gqlmux.v1.Executor",
	"executor.rpc_timeout":      "3s",
	"executor.max_conns":        2,
	"executor.max_concurrency":  8,
	"executor.parse_cache_size": 512,
	"otel.service":              "gqlmux",
	"metrics.enabled":           true,
	"metrics.path":              "/metrics",
}

// Load reads defaults and the environment. It does not validate, so that
// command-line flags can still fill in required values; call Validate after.
func Load() (*Config, error) {
	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("config: default %s: %w", key, err)
		}
	}
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	_, cfg.Log.formatSet = os.LookupEnv(EnvPrefix + "LOG__FORMAT")
	cfg.ApplyEnvDefaults()
	return cfg, nil
}

// SetLogFormat sets an explicit log format that ApplyEnvDefaults keeps.
func (c *Config) SetLogFormat(format string) {
	c.Log.Format = format
	c.Log.formatSet = true
}

// ApplyEnvDefaults fills settings whose default depends on Env: the log
// format is console in development and json elsewhere unless set
// explicitly. Call it again after overriding Env.
func (c *Config) ApplyEnvDefaults() {
	if c.Log.formatSet {
		return
	}
	if c.Env == EnvDevelopment {
		c.Log.Format = "console"
	} else {
		c.Log.Format = "json"
	}
}

var validate = validator.New()

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
