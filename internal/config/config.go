// Package config loads process configuration once at start.
//
// ORDER OF PRECEDENCE (lowest first):
//  1. Defaults()
//  2. YAML file at CONFIG_PATH, when set
//  3. Environment variables
//
// There is no reload path; a change needs a restart.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"

	minSecretLen = 16
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	Env         string   `yaml:"env"`
	CORSOrigins []string `yaml:"cors_origins"`
	// StrictOwnership requires a session and resource ownership on every
	// mutation. Off, only the single-post and my-posts reads need a session.
	StrictOwnership bool `yaml:"strict_ownership"`
}

type StoreConfig struct {
	Driver        string `yaml:"driver"` // "mongo" or "sqlite"
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	SQLitePath    string `yaml:"sqlite_path"`
}

type AuthConfig struct {
	JWTSecret  string  `yaml:"jwt_secret"`
	RatePerSec float64 `yaml:"rate_per_sec"`
	RateBurst  int     `yaml:"rate_burst"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

type SchedulerConfig struct {
	// ReconcileSchedule is a six-field cron spec; empty disables the job.
	ReconcileSchedule string `yaml:"reconcile_schedule"`
}

func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        5000,
			Env:         EnvDevelopment,
			CORSOrigins: []string{"http://localhost:5173"},
		},
		Store: StoreConfig{
			Driver:        DriverMongo,
			MongoDatabase: "volunteerhub",
			SQLitePath:    "data/volunteerhub.db",
		},
		Auth: AuthConfig{
			RatePerSec: 1,
			RateBurst:  5,
		},
		Log: LogConfig{Level: "info"},
		Scheduler: SchedulerConfig{
			ReconcileSchedule: "0 */15 * * * *",
		},
	}
}

// Load reads configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with an injectable environment lookup.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Defaults()

	if path, ok := lookup("CONFIG_PATH"); ok && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.overrideWithEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) overrideWithEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	str("APP_ENV", &c.Server.Env)
	if v, ok := lookup("CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = splitList(v)
	}
	if v, ok := lookup("STRICT_OWNERSHIP"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("STRICT_OWNERSHIP: %w", err)
		}
		c.Server.StrictOwnership = b
	}

	str("STORE_DRIVER", &c.Store.Driver)
	str("MONGODB_URI", &c.Store.MongoURI)
	str("MONGODB_DATABASE", &c.Store.MongoDatabase)
	str("SQLITE_PATH", &c.Store.SQLitePath)

	str("JWT_SECRET", &c.Auth.JWTSecret)
	if v, ok := lookup("AUTH_RATE_PER_SEC"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("AUTH_RATE_PER_SEC: %w", err)
		}
		c.Auth.RatePerSec = f
	}
	if v, ok := lookup("AUTH_RATE_BURST"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AUTH_RATE_BURST: %w", err)
		}
		c.Auth.RateBurst = n
	}

	str("LOG_LEVEL", &c.Log.Level)
	// Set-but-empty RECONCILE_SCHEDULE disables the job.
	str("RECONCILE_SCHEDULE", &c.Scheduler.ReconcileSchedule)
	return nil
}

// Validate checks the values the server cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Server.Port))
	}
	if c.Server.Env != EnvDevelopment && c.Server.Env != EnvProduction {
		errs = append(errs, fmt.Errorf("env must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Server.Env))
	}

	switch c.Store.Driver {
	case DriverMongo:
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for the mongo driver"))
		}
		if c.Store.MongoDatabase == "" {
			errs = append(errs, errors.New("MONGODB_DATABASE is required for the mongo driver"))
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	if len(c.Auth.JWTSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLen))
	}
	if c.Auth.RatePerSec <= 0 {
		errs = append(errs, errors.New("auth rate must be positive"))
	}
	if c.Auth.RateBurst < 1 {
		errs = append(errs, errors.New("auth burst must be at least 1"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == EnvProduction
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
