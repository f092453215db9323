// Package config loads the server configuration.
//
// Sources are applied in order, each overriding the previous one:
// defaults, an optional YAML file, environment variables, command-line flags.
// The resulting Config is validated once and treated as read-only afterwards.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Refresh token store backends.
const (
	RefreshStoreAuto     = "auto"
	RefreshStoreMemory   = "memory"
	RefreshStoreRedis    = "redis"
	RefreshStoreDatabase = "database"
)

const minSecretLength = 32

// Config holds runtime settings for the server.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	HTTP     HTTPConfig     `yaml:"http"`
	// Dev ослабляет проверку секрета. Только для локальной разработки.
	Dev bool `yaml:"dev"`
}

// HTTPConfig настройки HTTP сервера.
type HTTPConfig struct {
	Addr            string          `yaml:"addr"`
	CORSOrigins     []string        `yaml:"cors_origins"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	// RequestTimeout bounds every storage call made while serving a request.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	TrustProxy     bool          `yaml:"trust_proxy"`
}

// RateLimitConfig limits requests per client IP on the auth endpoints.
// Rate 0 disables limiting.
type RateLimitConfig struct {
	Rate   int           `yaml:"rate"`
	Window time.Duration `yaml:"window"`
}

// DatabaseConfig настройки базы данных.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig настройки Redis.
type RedisConfig struct {
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix"`
}

// AuthConfig настройки аутентификации и токенов.
type AuthConfig struct {
	SecretKey                string        `yaml:"secret_key"`
	RefreshStore             string        `yaml:"refresh_store"`
	AccessTokenExpireMinutes int           `yaml:"access_token_expire_minutes"`
	RefreshTokenExpireDays   int           `yaml:"refresh_token_expire_days"`
	BcryptCost               int           `yaml:"bcrypt_cost"`
	JanitorInterval          time.Duration `yaml:"janitor_interval"`
}

// AccessTokenTTL returns the access token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenExpireMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime.
func (a AuthConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(a.RefreshTokenExpireDays) * 24 * time.Hour
}

// LogConfig настройки логирования.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with development-friendly defaults.
// SecretKey is empty and must be supplied.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8000",
			CORSOrigins:     []string{"http://localhost:3000"},
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  5 * time.Second,
			RateLimit: RateLimitConfig{
				Rate:   10,
				Window: time.Minute,
			},
		},
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			URL:             "taskkeeper.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			KeyPrefix: "taskkeeper:refresh:",
		},
		Auth: AuthConfig{
			RefreshStore:             RefreshStoreAuto,
			AccessTokenExpireMinutes: 30,
			RefreshTokenExpireDays:   7,
			BcryptCost:               bcrypt.DefaultCost,
			JanitorInterval:          10 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from args (without the program name) and
// the environment. getenv is usually os.Getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	fs, fv := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	cfg := Default()

	path := fv.configPath
	if path == "" {
		path = getenv("TASKKEEPER_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}

	fv.apply(fs, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config, getenv func(string) string) error {
	var errs []error

	if v := getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
		if getenv("DATABASE_DRIVER") == "" && isPostgresURL(v) {
			cfg.Database.Driver = DriverPostgres
		}
	}
	if v := getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = strings.ToLower(v)
	}
	if v := getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := getenv("REFRESH_STORE"); v != "" {
		cfg.Auth.RefreshStore = strings.ToLower(v)
	}
	if v := getenv("SECRET_KEY"); v != "" {
		cfg.Auth.SecretKey = v
	}
	if v := getenv("ACCESS_TOKEN_EXPIRE_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES: %w", err))
		}
		cfg.Auth.AccessTokenExpireMinutes = n
	}
	if v := getenv("REFRESH_TOKEN_EXPIRE_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("REFRESH_TOKEN_EXPIRE_DAYS: %w", err))
		}
		cfg.Auth.RefreshTokenExpireDays = n
	}
	if v := getenv("BCRYPT_COST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("BCRYPT_COST: %w", err))
		}
		cfg.Auth.BcryptCost = n
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		cfg.HTTP.CORSOrigins = splitList(v)
	}
	if v := getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT: %w", err))
		}
		cfg.HTTP.RequestTimeout = d
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := getenv("TASKKEEPER_DEV"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TASKKEEPER_DEV: %w", err))
		}
		cfg.Dev = b
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	return nil
}

// flagValues держит значения флагов до применения к Config.
type flagValues struct {
	configPath   string
	addr         string
	dbDriver     string
	dbURL        string
	redisURL     string
	refreshStore string
	logLevel     string
	dev          bool
}

func newFlagSet() (*flag.FlagSet, *flagValues) {
	fv := &flagValues{}
	fs := flag.NewFlagSet("taskkeeper-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&fv.configPath, "config", "", "path to YAML config file")
	fs.StringVar(&fv.addr, "addr", "", "HTTP listen address")
	fs.StringVar(&fv.dbDriver, "db-driver", "", "database driver (sqlite|postgres)")
	fs.StringVar(&fv.dbURL, "db-url", "", "database URL or sqlite file path")
	fs.StringVar(&fv.redisURL, "redis-url", "", "Redis URL for the refresh token store")
	fs.StringVar(&fv.refreshStore, "refresh-store", "", "refresh token store (auto|memory|redis|database)")
	fs.StringVar(&fv.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	fs.BoolVar(&fv.dev, "dev", false, "development mode")

	return fs, fv
}

// apply копирует в cfg только явно заданные флаги.
func (fv *flagValues) apply(fs *flag.FlagSet, cfg *Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.HTTP.Addr = fv.addr
		case "db-driver":
			cfg.Database.Driver = strings.ToLower(fv.dbDriver)
		case "db-url":
			cfg.Database.URL = fv.dbURL
		case "redis-url":
			cfg.Redis.URL = fv.redisURL
		case "refresh-store":
			cfg.Auth.RefreshStore = strings.ToLower(fv.refreshStore)
		case "log-level":
			cfg.Log.Level = strings.ToLower(fv.logLevel)
		case "dev":
			cfg.Dev = fv.dev
		}
	})
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	switch {
	case c.Auth.SecretKey == "":
		errs = append(errs, "auth.secret_key is required (set SECRET_KEY)")
	case !c.Dev && len(c.Auth.SecretKey) < minSecretLength:
		errs = append(errs, fmt.Sprintf("auth.secret_key must be at least %d bytes", minSecretLength))
	}

	if c.Auth.AccessTokenExpireMinutes <= 0 {
		errs = append(errs, "auth.access_token_expire_minutes must be positive")
	}
	if c.Auth.RefreshTokenExpireDays <= 0 {
		errs = append(errs, "auth.refresh_token_expire_days must be positive")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Sprintf("auth.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}

	switch c.Auth.RefreshStore {
	case RefreshStoreAuto, RefreshStoreMemory, RefreshStoreDatabase:
	case RefreshStoreRedis:
		if c.Redis.URL == "" {
			errs = append(errs, "redis.url is required for the redis refresh store")
		}
	default:
		errs = append(errs, "auth.refresh_store must be one of auto, memory, redis, database")
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, "database.driver must be sqlite or postgres")
	}
	if c.Database.URL == "" {
		errs = append(errs, "database.url is required")
	}

	if c.HTTP.Addr == "" {
		errs = append(errs, "http.addr is required")
	}
	if c.HTTP.RequestTimeout < 0 {
		errs = append(errs, "http.request_timeout must not be negative")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "log.level must be one of debug, info, warn, error")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, "log.format must be json or text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// EffectiveRefreshStore resolves "auto": Redis when a URL is configured,
// memory otherwise.
func (c *Config) EffectiveRefreshStore() string {
	if c.Auth.RefreshStore != RefreshStoreAuto {
		return c.Auth.RefreshStore
	}
	if c.Redis.URL != "" {
		return RefreshStoreRedis
	}
	return RefreshStoreMemory
}

func isPostgresURL(v string) bool {
	return strings.HasPrefix(v, "postgres://") || strings.HasPrefix(v, "postgresql://")
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
