package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"daypick/internal/market"
	"daypick/internal/store"
	"daypick/internal/twse"
)

// runFetch pulls one day of close quotes from both boards and writes the
// merged day file.
func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	date := orToday(fetchDate)
	outDir := flagOr(cmd, "out-dir", cfg.Storage.DataDir)

	log.Info().
		Str("date", date.Format(market.DateFormat)).
		Str("out_dir", outDir).
		Msg("fetching daily quotes")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	bars, err := twse.NewClient(cfg.Fetch).FetchDay(ctx, date)
	if err != nil {
		if errors.Is(err, twse.ErrNoQuotes) {
			// Holidays publish nothing; that is not a failed fetch.
			log.Warn().Str("date", date.Format(market.DateFormat)).Msg("no quotes published")
			fmt.Printf("No quotes published for %s (market holiday?)\n", date.Format(market.DateFormat))
			return nil
		}
		return err
	}

	st := store.New(outDir)
	if err := st.WriteDay(date, bars); err != nil {
		return err
	}

	fmt.Printf("✅ Fetched %d quotes for %s\n", len(bars), date.Format(market.DateFormat))
	fmt.Printf("   File: %s\n", st.DayPath(date))
	return nil
}
