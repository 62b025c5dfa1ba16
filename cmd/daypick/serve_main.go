package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"daypick/internal/market"
	"daypick/internal/metrics"
	"daypick/internal/monitor"
	"daypick/internal/picker"
	"daypick/internal/report"
	"daypick/internal/store"
)

// runServe starts the monitor with an on-demand scan hook wired to the
// local history and the configured archive layers.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	addr, _ := cmd.Flags().GetString("addr")
	dataDir := flagOr(cmd, "data-dir", cfg.Storage.DataDir)
	historyDays, _ := cmd.Flags().GetInt("history-days")
	sectorMode, _ := cmd.Flags().GetString("sector-mode")
	if sectorMode != "industry" && sectorMode != "themes" {
		return fmt.Errorf("sector mode %q must be industry or themes", sectorMode)
	}

	reg := metrics.NewRegistry()
	srv := monitor.NewServer(addr, version, reg)

	base := store.New(dataDir)
	var cached *store.CachedStore
	if cfg.Storage.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
		defer rdb.Close()
		ttl := time.Duration(cfg.Storage.RedisTTLSeconds) * time.Second
		cached = store.NewCachedStore(rdb, ttl, base, "daypick").WithStats(reg)
	}

	var archive *store.CandidateDB
	if cfg.Storage.PostgresDSN != "" {
		if archive, err = store.OpenCandidateDB(cfg.Storage.PostgresDSN, 5*time.Second); err != nil {
			return err
		}
		defer archive.Close()
		srv = srv.WithArchive(archive)
	}

	writer := report.NewWriter(cfg.Storage.OutDir)
	srv = srv.WithScan(func(ctx context.Context) (*picker.Result, string, error) {
		date := market.DayOf(time.Now())

		var h *market.History
		var meta []market.StockMeta
		var err error
		if cached != nil {
			h, meta, err = cached.LoadHistory(ctx, date, historyDays)
		} else {
			h, meta, err = base.LoadHistory(date, historyDays)
		}
		if err != nil {
			return nil, "", err
		}
		metaTable, err := sectorMeta(meta, cfg.Storage.ThemesMapping, sectorMode)
		if err != nil {
			return nil, "", err
		}
		risk, err := loadRisk(cfg.Storage.RiskFlags)
		if err != nil {
			return nil, "", err
		}

		res := picker.New(cfg).Run(date, h, metaTable, risk)

		artifacts, err := writer.WriteRun(res, metaTable, string(cfg.Mode))
		if err != nil {
			return nil, "", err
		}
		if archive != nil {
			if err := archive.SaveCandidates(ctx, res.Candidates); err != nil {
				log.Warn().Err(err).Msg("failed to archive candidates")
			}
		}
		return res, artifacts.RunID, nil
	})

	log.Info().
		Str("addr", addr).
		Str("data_dir", dataDir).
		Bool("cache", cached != nil).
		Bool("archive", archive != nil).
		Msg("starting monitor")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
