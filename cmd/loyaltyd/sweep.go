package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/loyalty-engine/loyalty"
)

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark stale PENDING transactions FAILED once",
		RunE:  runSweep,
	}
	addStoreFlags(cmd)
	cmd.Flags().Duration("stale-after", 0, "age at which PENDING counts as stale (default SWEEP_STALE_AFTER)")
	return cmd
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	staleAfter := cfg.SweepStaleAfter
	if cmd.Flags().Changed("stale-after") {
		staleAfter, _ = cmd.Flags().GetDuration("stale-after")
	}
	if staleAfter <= 0 {
		return fmt.Errorf("stale-after must be positive")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	sweeper := loyalty.NewSweeper(store, staleAfter)
	sweeper.Logger = newLogger(cfg).With("component", "sweeper")

	res, err := sweeper.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "failed %d, skipped %d, errors %d\n", res.Failed, res.Skipped, res.Errors)
	return nil
}
