// Package config loads runtime configuration from an optional YAML file,
// a .env file, and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := strings.TrimSpace(value.Value)
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
	Migrate  bool   `yaml:"migrate"`
}

// DSN returns URL when set, otherwise a libpq keyword/value string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds the Redis connection used by the rate limiter.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RateLimitConfig is a token bucket per client address.
type RateLimitConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Burst       int      `yaml:"burst"`
	RefillEvery Duration `yaml:"refill_every"`
	TTL         Duration `yaml:"ttl"`
	Prefix      string   `yaml:"prefix"`
}

// HTTPConfig holds server settings.
type HTTPConfig struct {
	Port            string   `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	IdleTimeout     Duration `yaml:"idle_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// Config is the complete runtime configuration.
type Config struct {
	Env       string          `yaml:"env"`
	LogLevel  string          `yaml:"log_level"`
	Storage   string          `yaml:"storage"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Default returns the local-development configuration.
func Default() Config {
	return Config{
		Env:      "development",
		LogLevel: "info",
		Storage:  DriverPostgres,
		HTTP: HTTPConfig{
			Port:            "8080",
			ReadTimeout:     Duration{10 * time.Second},
			WriteTimeout:    Duration{15 * time.Second},
			IdleTimeout:     Duration{60 * time.Second},
			ShutdownTimeout: Duration{15 * time.Second},
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			Name:     "slotbooking",
			SSLMode:  "disable",
			MaxConns: 20,
			MinConns: 2,
			Migrate:  true,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		RateLimit: RateLimitConfig{
			Enabled:     false,
			Burst:       20,
			RefillEvery: Duration{time.Second},
			TTL:         Duration{10 * time.Minute},
			Prefix:      "rl",
		},
	}
}

// Load builds the configuration. A .env file in the working directory is
// loaded when present; CONFIG_FILE names an optional YAML file. Environment
// variables override both.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setStr(&c.Env, "APP_ENV")
	setStr(&c.LogLevel, "LOG_LEVEL")
	setStr(&c.Storage, "STORAGE_DRIVER")
	setStr(&c.HTTP.Port, "PORT")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.HTTP.CORSOrigins = splitList(v)
	}

	setStr(&c.Database.URL, "DATABASE_URL")
	setStr(&c.Database.Host, "DB_HOST")
	setStr(&c.Database.Port, "DB_PORT")
	setStr(&c.Database.User, "DB_USER")
	setStr(&c.Database.Password, "DB_PASSWORD")
	setStr(&c.Database.Name, "DB_NAME")
	setStr(&c.Database.SSLMode, "DB_SSLMODE")

	setStr(&c.Redis.Addr, "REDIS_ADDR")
	setStr(&c.Redis.Password, "REDIS_PASSWORD")

	var errs []error
	errs = append(errs,
		setBool(&c.Database.Migrate, "DB_MIGRATE"),
		setInt(&c.Redis.DB, "REDIS_DB"),
		setBool(&c.RateLimit.Enabled, "RATE_LIMIT_ENABLED"),
		setInt(&c.RateLimit.Burst, "RATE_LIMIT_BURST"),
		setDuration(&c.RateLimit.RefillEvery, "RATE_LIMIT_REFILL_EVERY"),
	)
	return errors.Join(errs...)
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	switch c.Storage {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage)
	}
	if strings.TrimSpace(c.HTTP.Port) == "" {
		return errors.New("port must be configured")
	}
	if c.Storage == DriverPostgres && c.Database.MaxConns <= 0 {
		return errors.New("database max_conns must be positive")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Burst <= 0 {
			return errors.New("rate limit burst must be positive")
		}
		if c.RateLimit.RefillEvery.Duration <= 0 {
			return errors.New("rate limit refill interval must be positive")
		}
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	dst.Duration = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
