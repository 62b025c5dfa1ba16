package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"daypick/internal/config"
	"daypick/internal/demo"
	"daypick/internal/picker"
	"daypick/internal/report"
)

// runDemo generates a seeded synthetic market and scans its last day.
func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	date := orToday(demoDate)
	outDir := flagOr(cmd, "out", cfg.Storage.OutDir)

	if cmd.Flags().Changed("stocks") {
		cfg.Demo.NumStocks, _ = cmd.Flags().GetInt("stocks")
	}
	if cmd.Flags().Changed("sectors") {
		cfg.Demo.NumSectors, _ = cmd.Flags().GetInt("sectors")
	}
	if cmd.Flags().Changed("days") {
		cfg.Demo.HistoryDays, _ = cmd.Flags().GetInt("days")
	}
	if cmd.Flags().Changed("seed") {
		cfg.Demo.Seed, _ = cmd.Flags().GetInt64("seed")
	}
	// Without an explicit config the demo runs permissive, so the fallback
	// tiers keep the walkthrough populated on thin synthetic days.
	if !cmd.Flags().Changed("config") {
		cfg.Mode = config.ModePermissive
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Info().
		Int("stocks", cfg.Demo.NumStocks).
		Int("sectors", cfg.Demo.NumSectors).
		Int("days", cfg.Demo.HistoryDays).
		Int64("seed", cfg.Demo.Seed).
		Msg("generating synthetic market")

	m := demo.Generate(date, cfg.Demo)
	res := picker.New(cfg).Run(date, m.History(), m.MetaTable(), nil)

	artifacts, err := report.NewWriter(outDir).WithFeatures().WriteRun(res, m.MetaTable(), string(cfg.Mode))
	if err != nil {
		return err
	}

	fmt.Printf("✅ Demo completed: %d synthetic stocks, %d candidates\n",
		cfg.Demo.NumStocks, len(res.Candidates))
	fmt.Printf("   CSV:      %s\n", artifacts.CandidatesCSV)
	fmt.Printf("   MD:       %s\n", artifacts.SummaryMD)
	fmt.Printf("   Features: %s\n", artifacts.FeaturesCSV)
	return nil
}
