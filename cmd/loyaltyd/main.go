/*
main.go - loyaltyd entry point

PURPOSE:
  Runs the loyalty points service and its maintenance tasks.

COMMANDS:
  serve   HTTP API with graceful shutdown (and the stale PENDING sweep
          when SWEEP_INTERVAL > 0)
  seed    Insert accounts and venues
  sweep   Mark stale PENDING transactions FAILED once, then exit

CONFIGURATION:
  Environment and optional .env file, see config/config.go.
  Flags on each command override the environment.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweep, drain queued notifications
  4. Close database connection

EXAMPLES:
  loyaltyd serve --port 8080 --db ./data/loyalty.db
  loyaltyd seed --accounts 3 --venue "1:Harbour Bar:Pier 4"
  loyaltyd sweep --stale-after 30m
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "loyaltyd",
		Short:         "Loyalty points service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
