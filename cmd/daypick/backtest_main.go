package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"daypick/internal/backtest"
	"daypick/internal/market"
	"daypick/internal/report"
	"daypick/internal/store"
)

// runBacktest replays the selection loop over local history and writes
// the equity curve artifacts.
func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	start, end := backtestStart, backtestEnd
	hold, _ := cmd.Flags().GetInt("hold")
	maxPositions, _ := cmd.Flags().GetInt("max-positions")
	dataDir := flagOr(cmd, "data-dir", cfg.Storage.DataDir)
	outDir := flagOr(cmd, "out", cfg.Storage.OutDir)

	loadEnd := end
	if loadEnd.IsZero() {
		loadEnd = market.DayOf(time.Now())
	}
	h, meta, err := store.New(dataDir).LoadHistory(loadEnd, 0)
	if err != nil {
		return err
	}
	if dates := h.Dates(); len(dates) > 0 {
		if start.IsZero() {
			start = dates[0]
		}
		if end.IsZero() {
			end = dates[len(dates)-1]
		}
	}

	metaTable, err := sectorMeta(meta, cfg.Storage.ThemesMapping, "themes")
	if err != nil {
		return err
	}
	risk, err := loadRisk(cfg.Storage.RiskFlags)
	if err != nil {
		return err
	}

	log.Info().
		Str("start", start.Format(market.DateFormat)).
		Str("end", end.Format(market.DateFormat)).
		Int("hold", hold).
		Int("max_positions", maxPositions).
		Bool("protect", cfg.Protection.AutoSuspend).
		Msg("starting backtest")

	runner := backtest.NewRunner(cfg, backtest.Options{
		Start:        start,
		End:          end,
		HoldDays:     hold,
		MaxPositions: maxPositions,
		Protect:      cfg.Protection.AutoSuspend,
	})
	res, err := runner.Run(h, metaTable, risk)
	if err != nil {
		return err
	}

	artifacts, err := report.NewWriter(outDir).WriteBacktest(res, start, end)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Backtest completed: %d trades over %d dates\n", res.Trades, res.Days)
	fmt.Printf("   Equity: %.0f → %.0f (%+.2f%%)\n",
		res.InitialCapital, res.FinalEquity, res.TotalReturnPct)
	fmt.Printf("   JSON:  %s\n", artifacts.JSON)
	fmt.Printf("   Curve: %s\n", artifacts.Curve)
	return nil
}
