package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"daypick/internal/config"
	"daypick/internal/market"
	"daypick/internal/store"
)

// dateValue binds a YYYY-MM-DD flag straight to a UTC day.
type dateValue struct {
	day *time.Time
}

var _ pflag.Value = (*dateValue)(nil)

func newDateValue(day *time.Time) *dateValue { return &dateValue{day: day} }

func (d *dateValue) String() string {
	if d.day == nil || d.day.IsZero() {
		return ""
	}
	return d.day.Format(market.DateFormat)
}

func (d *dateValue) Set(s string) error {
	t, err := market.ParseDate(s)
	if err != nil {
		return fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	*d.day = t
	return nil
}

func (d *dateValue) Type() string { return "date" }

// orToday substitutes today for an unset date flag.
func orToday(d time.Time) time.Time {
	if d.IsZero() {
		return market.DayOf(time.Now())
	}
	return d
}

// loadConfig reads the persistent --config flag. An empty path keeps the
// built-in defaults so every command works without a config file. Connection
// settings accept env overrides, so a .env carries the credentials that do
// not belong in a committed config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	if v := os.Getenv("DAYPICK_REDIS_ADDR"); v != "" {
		cfg.Storage.RedisAddr = v
	}
	if v := os.Getenv("DAYPICK_PG_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	return &cfg, nil
}

// flagOr returns a string flag's value, or def when the flag is empty.
func flagOr(cmd *cobra.Command, name, def string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return def
}

// sectorMeta resolves each stock's sector from the themes mapping. Day
// files carry no industry column, so industry mode reads the same mapping
// and the first theme tag stands in for the industry code. An empty
// mapping path leaves every stock in the UNKNOWN bucket.
func sectorMeta(meta []market.StockMeta, mappingPath, mode string) (*market.MetaTable, error) {
	if mode != "industry" && mode != "themes" {
		return nil, fmt.Errorf("sector mode %q must be industry or themes", mode)
	}
	if mappingPath == "" {
		return market.NewMetaTable(meta), nil
	}
	themes, err := store.LoadThemes(mappingPath)
	if err != nil {
		return nil, err
	}
	return market.NewMetaTable(store.ApplyThemes(meta, themes)), nil
}

// loadRisk reads the optional broker restriction sidecar. An empty path
// means no restrictions.
func loadRisk(path string) (*market.RiskTable, error) {
	if path == "" {
		return nil, nil
	}
	return store.LoadRiskFlags(path)
}
