/*
Package config loads service settings from the environment.

SOURCES (later wins):
  1. Built-in defaults
  2. .env file in the working directory, if present (godotenv)
  3. Process environment
  4. Command-line flags (applied by cmd/loyaltyd)

VARIABLES:
  PORT                     HTTP port (8080)
  DB_DRIVER                sqlite | postgres (sqlite)
  DB_PATH                  SQLite file, ":memory:" allowed (loyalty.db)
  DATABASE_URL             PostgreSQL DSN, required for postgres
  CODEGEN_URL              code generation service (http://localhost:5000)
  CODEGEN_CONNECT_TIMEOUT  dial timeout (5s)
  CODEGEN_READ_TIMEOUT     response timeout (10s)
  REDIS_URL                host:port or redis:// URL; empty logs notifications
  POINTS_RATE              points per currency unit (1)
  NOTIFY_BUFFER            notification queue size (256)
  SWEEP_INTERVAL           stale PENDING sweep period, 0 disables (0)
  SWEEP_STALE_AFTER        age at which PENDING counts as stale (15m)
  CORS_ORIGINS             comma-separated allowed origins
  LOG_LEVEL                debug | info | warn | error (info)
*/
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/loyalty-engine/rewards"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port int

	DBDriver    string
	DBPath      string
	DatabaseURL string

	CodegenURL            string
	CodegenConnectTimeout time.Duration
	CodegenReadTimeout    time.Duration

	RedisURL     string
	NotifyBuffer int

	PointsRate rewards.Rate

	SweepInterval   time.Duration
	SweepStaleAfter time.Duration

	CORSOrigins []string
	LogLevel    slog.Level
}

func Default() Config {
	return Config{
		Port:                  8080,
		DBDriver:              DriverSQLite,
		DBPath:                "loyalty.db",
		CodegenURL:            "http://localhost:5000",
		CodegenConnectTimeout: 5 * time.Second,
		CodegenReadTimeout:    10 * time.Second,
		NotifyBuffer:          256,
		PointsRate:            rewards.OneToOne,
		SweepStaleAfter:       15 * time.Minute,
		CORSOrigins:           []string{"http://localhost:4200", "http://localhost:5173"},
		LogLevel:              slog.LevelInfo,
	}
}

// Load reads .env (if any) and the environment on top of Default.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the process environment only.
func FromEnv() (Config, error) {
	cfg := Default()
	var errs []error

	cfg.Port = getInt("PORT", cfg.Port, &errs)
	cfg.DBDriver = strings.ToLower(getEnv("DB_DRIVER", cfg.DBDriver))
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.CodegenURL = getEnv("CODEGEN_URL", cfg.CodegenURL)
	cfg.CodegenConnectTimeout = getDuration("CODEGEN_CONNECT_TIMEOUT", cfg.CodegenConnectTimeout, &errs)
	cfg.CodegenReadTimeout = getDuration("CODEGEN_READ_TIMEOUT", cfg.CodegenReadTimeout, &errs)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.NotifyBuffer = getInt("NOTIFY_BUFFER", cfg.NotifyBuffer, &errs)
	cfg.SweepInterval = getDuration("SWEEP_INTERVAL", cfg.SweepInterval, &errs)
	cfg.SweepStaleAfter = getDuration("SWEEP_STALE_AFTER", cfg.SweepStaleAfter, &errs)

	if v := os.Getenv("POINTS_RATE"); v != "" {
		rate, err := rewards.ParseRate(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("POINTS_RATE: %w", err))
		} else {
			cfg.PointsRate = rate
		}
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the service can't start with.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for sqlite"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver))
	}
	if c.CodegenURL == "" {
		errs = append(errs, errors.New("CODEGEN_URL is required"))
	}
	if c.CodegenConnectTimeout <= 0 || c.CodegenReadTimeout <= 0 {
		errs = append(errs, errors.New("codegen timeouts must be positive"))
	}
	if c.SweepInterval < 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must not be negative"))
	}
	if c.SweepInterval > 0 && c.SweepStaleAfter <= 0 {
		errs = append(errs, errors.New("SWEEP_STALE_AFTER must be positive when sweeping"))
	}
	return errors.Join(errs...)
}

// =============================================================================
// HELPERS
// =============================================================================

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
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
