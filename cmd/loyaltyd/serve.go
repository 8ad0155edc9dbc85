package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/loyalty-engine/api"
	"github.com/warp/loyalty-engine/codegen"
	"github.com/warp/loyalty-engine/loyalty"
	"github.com/warp/loyalty-engine/notify"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
	addStoreFlags(cmd)
	cmd.Flags().Int("port", 8080, "HTTP server port")
	cmd.Flags().String("codegen-url", "", "code generation service base URL")
	cmd.Flags().String("redis", "", "Redis address for balance notifications")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("codegen-url") {
		cfg.CodegenURL, _ = flags.GetString("codegen-url")
	}
	if flags.Changed("redis") {
		cfg.RedisURL, _ = flags.GetString("redis")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	// Initialize store
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	// Notifications
	pub, closePub, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize notifications: %w", err)
	}
	defer closePub()
	dispatcher := notify.NewDispatcher(pub, cfg.NotifyBuffer, logger)

	// Saga
	codes := codegen.NewClient(codegen.Config{
		BaseURL:        cfg.CodegenURL,
		ConnectTimeout: cfg.CodegenConnectTimeout,
		ReadTimeout:    cfg.CodegenReadTimeout,
	})
	saga := loyalty.NewSaga(store, store, codes, dispatcher,
		loyalty.WithRate(cfg.PointsRate),
		loyalty.WithLogger(logger),
	)

	// Optional sweep
	var sweeper *loyalty.Sweeper
	if cfg.SweepInterval > 0 {
		sweeper = loyalty.NewSweeper(store, cfg.SweepStaleAfter)
		sweeper.Logger = logger.With("component", "sweeper")
		sweeper.Start(cfg.SweepInterval)
	}

	handler := api.NewHandler(store, saga, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second + cfg.CodegenConnectTimeout + cfg.CodegenReadTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"port", cfg.Port, "driver", cfg.DBDriver, "codegen", cfg.CodegenURL, "points_rate", cfg.PointsRate.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	if sweeper != nil {
		sweeper.Stop()
	}
	dispatcher.Close()

	logger.Info("server stopped")
	return nil
}
