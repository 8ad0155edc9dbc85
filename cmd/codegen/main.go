// Command codegen runs the code generation service on its own port.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/warp/loyalty-engine/codegen"
)

func main() {
	var (
		port int
		size int
	)

	rootCmd := &cobra.Command{
		Use:          "codegen",
		Short:        "QR code generation service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(port, size)
		},
	}
	rootCmd.Flags().IntVar(&port, "port", 5000, "HTTP server port")
	rootCmd.Flags().IntVar(&size, "size", codegen.DefaultImageSize, "QR image edge in pixels")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(port, size int) error {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	svc := codegen.NewServer(logger)
	svc.ImageSize = size

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      svc.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("codegen service starting", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
