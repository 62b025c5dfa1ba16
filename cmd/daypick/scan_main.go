package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"daypick/internal/market"
	"daypick/internal/picker"
	"daypick/internal/report"
	"daypick/internal/store"
)

// runScan evaluates one trade date against local history and writes the
// run artifacts.
func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	date := orToday(scanDate)
	dataDir := flagOr(cmd, "data-dir", cfg.Storage.DataDir)
	outDir := flagOr(cmd, "out", cfg.Storage.OutDir)
	historyDays, _ := cmd.Flags().GetInt("history-days")
	sectorMode, _ := cmd.Flags().GetString("sector-mode")
	pgDSN := flagOr(cmd, "pg-dsn", cfg.Storage.PostgresDSN)
	redisAddr := flagOr(cmd, "redis-addr", cfg.Storage.RedisAddr)

	log.Info().
		Str("date", date.Format(market.DateFormat)).
		Str("data_dir", dataDir).
		Int("history_days", historyDays).
		Str("sector_mode", sectorMode).
		Str("mode", string(cfg.Mode)).
		Msg("starting scan")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	base := store.New(dataDir)
	var h *market.History
	var meta []market.StockMeta
	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer rdb.Close()
		ttl := time.Duration(cfg.Storage.RedisTTLSeconds) * time.Second
		h, meta, err = store.NewCachedStore(rdb, ttl, base, "daypick").LoadHistory(ctx, date, historyDays)
	} else {
		h, meta, err = base.LoadHistory(date, historyDays)
	}
	if err != nil {
		return err
	}

	metaTable, err := sectorMeta(meta, cfg.Storage.ThemesMapping, sectorMode)
	if err != nil {
		return err
	}
	risk, err := loadRisk(cfg.Storage.RiskFlags)
	if err != nil {
		return err
	}

	res := picker.New(cfg).Run(date, h, metaTable, risk)

	artifacts, err := report.NewWriter(outDir).WriteRun(res, metaTable, string(cfg.Mode))
	if err != nil {
		return err
	}

	if len(res.Candidates) > 0 {
		path := filepath.Join(outDir, "candidates_"+date.Format(market.DateFormat)+".parquet")
		if err := store.WriteCandidatesParquet(path, res.Candidates); err != nil {
			log.Warn().Err(err).Msg("failed to write parquet archive")
		}
	}

	if pgDSN != "" {
		db, err := store.OpenCandidateDB(pgDSN, 5*time.Second)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.SaveCandidates(ctx, res.Candidates); err != nil {
			return err
		}
		log.Info().Int("rows", len(res.Candidates)).Msg("archived candidates")
	}

	fmt.Printf("✅ Scan completed: %d candidates across %d strong sectors\n",
		len(res.Candidates), len(res.StrongSectors))
	fmt.Printf("   CSV:  %s\n", artifacts.CandidatesCSV)
	fmt.Printf("   JSON: %s\n", artifacts.CandidatesJSON)
	fmt.Printf("   MD:   %s\n", artifacts.SummaryMD)
	return nil
}
