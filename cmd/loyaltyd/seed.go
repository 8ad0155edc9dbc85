package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/warp/loyalty-engine/loyalty"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert accounts and venues",
		Long: `Insert accounts with a zero balance and venues.

Examples:
  loyaltyd seed --accounts 5
  loyaltyd seed --venue "1:Harbour Bar:Pier 4" --venue "2:The Anchor"`,
		RunE: runSeed,
	}
	addStoreFlags(cmd)
	cmd.Flags().Int("accounts", 0, "create accounts 1..N")
	cmd.Flags().StringArray("venue", nil, "venue as id:name[:location] (repeatable)")
	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	accounts, _ := cmd.Flags().GetInt("accounts")
	rawVenues, _ := cmd.Flags().GetStringArray("venue")

	venues := make([]loyalty.Venue, 0, len(rawVenues))
	for _, raw := range rawVenues {
		v, err := parseVenue(raw)
		if err != nil {
			return err
		}
		venues = append(venues, v)
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	for i := 1; i <= accounts; i++ {
		id := loyalty.AccountID(i)
		if _, err := store.GetAccount(ctx, id); err == nil {
			continue
		}
		if err := store.SaveAccount(ctx, loyalty.Account{ID: id}); err != nil {
			return err
		}
	}
	for _, v := range venues {
		if err := store.SaveVenue(ctx, v); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d accounts, %d venues\n", accounts, len(venues))
	return nil
}

func parseVenue(raw string) (loyalty.Venue, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return loyalty.Venue{}, fmt.Errorf("venue %q: want id:name[:location]", raw)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || id <= 0 {
		return loyalty.Venue{}, fmt.Errorf("venue %q: bad id", raw)
	}
	v := loyalty.Venue{ID: loyalty.VenueID(id), Name: strings.TrimSpace(parts[1])}
	if len(parts) == 3 {
		v.Location = strings.TrimSpace(parts[2])
	}
	return v, nil
}
