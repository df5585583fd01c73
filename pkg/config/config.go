// Package config loads the settings shared by the conduit commands from
// flags, the environment, an optional .env file and an optional conduit.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/marshallshelly/conduit/pkg/runtime"
)

// Keys understood by Load. Each can be set as CONDUIT_<KEY> in the
// environment; the database URL also falls back to DATABASE_URL.
const (
	KeyDB            = "db"
	KeyMigrationsDir = "migrations_dir"
	KeyLogLevel      = "log_level"
	KeyLogFormat     = "log_format"
	KeyMaxConns      = "max_conns"
	KeyMinConns      = "min_conns"
)

// EnvPrefix is prepended to every key when reading the environment.
const EnvPrefix = "CONDUIT"

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config holds resolved settings.
type Config struct {
	DatabaseURL   string `mapstructure:"db"`
	MigrationsDir string `mapstructure:"migrations_dir"`
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	MaxConns      int32  `mapstructure:"max_conns"`
	MinConns      int32  `mapstructure:"min_conns"`
}

// New returns a viper instance with defaults and environment bindings in
// place. Callers bind flags onto it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyMigrationsDir, "./migrations")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, FormatConsole)
	v.SetDefault(KeyMaxConns, 10)
	v.SetDefault(KeyMinConns, 0)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyDB, EnvPrefix+"_DB", "DATABASE_URL")

	v.SetConfigName("conduit")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	return v
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding ones already set. Missing files are
// ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the optional config file and decodes v into a Config.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that decoding cannot.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}
	switch c.LogFormat {
	case FormatConsole, FormatJSON:
	default:
		return fmt.Errorf("invalid %s %q: want %s or %s", KeyLogFormat, c.LogFormat, FormatConsole, FormatJSON)
	}
	if c.MaxConns < 0 || c.MinConns < 0 {
		return fmt.Errorf("connection limits must not be negative")
	}
	if c.MaxConns > 0 && c.MinConns > c.MaxConns {
		return fmt.Errorf("%s (%d) exceeds %s (%d)", KeyMinConns, c.MinConns, KeyMaxConns, c.MaxConns)
	}
	return nil
}

// Database returns the connection settings, or an error when no database
// URL is configured.
func (c *Config) Database() (*runtime.Config, error) {
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("no database configured: set --db, %s_DB or DATABASE_URL", EnvPrefix)
	}
	return &runtime.Config{
		URL:      c.DatabaseURL,
		MaxConns: c.MaxConns,
		MinConns: c.MinConns,
	}, nil
}
