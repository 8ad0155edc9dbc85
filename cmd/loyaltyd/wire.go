package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/loyalty-engine/config"
	"github.com/warp/loyalty-engine/loyalty"
	"github.com/warp/loyalty-engine/notify"
	"github.com/warp/loyalty-engine/store/postgres"
	"github.com/warp/loyalty-engine/store/sqlite"
)

// loadConfig reads the environment, then applies the storage flags
// shared by every command.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("driver") {
		cfg.DBDriver, _ = flags.GetString("driver")
	}
	if flags.Changed("db") {
		cfg.DBPath, _ = flags.GetString("db")
	}
	if flags.Changed("database-url") {
		cfg.DatabaseURL, _ = flags.GetString("database-url")
	}
	return cfg, cfg.Validate()
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("driver", config.DriverSQLite, "storage engine (sqlite, postgres)")
	cmd.Flags().String("db", "loyalty.db", "SQLite database path (\":memory:\" allowed)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection string")
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

func openStore(ctx context.Context, cfg config.Config) (loyalty.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DatabaseURL)
	case config.DriverSQLite:
		return sqlite.New(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.DBDriver)
	}
}

// newPublisher picks Redis when configured, otherwise logs events.
// The returned close func is never nil.
func newPublisher(ctx context.Context, cfg config.Config, logger *slog.Logger) (notify.Publisher, func() error, error) {
	if cfg.RedisURL == "" {
		logger.Info("REDIS_URL not set, balance notifications go to the log")
		return notify.NewLogPublisher(logger), func() error { return nil }, nil
	}
	pub, err := notify.NewRedisPublisher(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return pub, pub.Close, nil
}
