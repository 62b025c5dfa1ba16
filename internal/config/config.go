// Package config loads and validates the picker configuration. The file is
// a single YAML document; absent keys keep their defaults, and validation
// reports the first violated constraint so bad configs fail before any data
// is touched.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Mode selects between production filtering and experimentation fallbacks.
type Mode string

const (
	// ModeStrict disables every fallback: empty intermediate sets stay empty.
	ModeStrict Mode = "strict"
	// ModePermissive enables the demo relaxations: top-K sector fallback,
	// full-sector leader fallback and the widened follower band.
	ModePermissive Mode = "permissive"
)

// Config is the full picker configuration.
type Config struct {
	Mode     Mode           `yaml:"mode"`
	Universe UniverseConfig `yaml:"universe"`
	Sector   SectorConfig   `yaml:"sector"`
	Leader   LeaderConfig   `yaml:"leader"`
	Follower FollowerConfig `yaml:"follower"`
	Total    TotalWeights   `yaml:"total_score_weights"`
	Sizing   SizingConfig   `yaml:"position_sizing"`

	Demo       DemoConfig       `yaml:"demo"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Storage    StorageConfig    `yaml:"storage"`
	Protection ProtectionConfig `yaml:"protection"`
	Costs      CostsConfig      `yaml:"costs"`
}

// UniverseConfig bounds the eligible universe. Nil bounds are not applied.
type UniverseConfig struct {
	MinTurnover *float64 `yaml:"min_turnover"`
	MinPrice    *float64 `yaml:"min_price"`
	MaxPrice    *float64 `yaml:"max_price"`
}

// SectorConfig drives the sector aggregation and the strong-sector cut.
type SectorConfig struct {
	MtmLookback   int           `yaml:"mtm_lookback"`
	ThreshAvgPct  float64       `yaml:"thresh_avg_pct"`
	ThreshUpRatio float64       `yaml:"thresh_up_ratio"`
	ThreshMtmZ    float64       `yaml:"thresh_mtm_z"`
	FallbackTopK  int           `yaml:"fallback_top_k"`
	Weights       SectorWeights `yaml:"weights"`
}

// SectorWeights weighs the sector composite score.
type SectorWeights struct {
	AvgPctChangeZ float64 `yaml:"avg_pct_change_z"`
	MtmZ          float64 `yaml:"sector_mtm_z"`
	UpRatio       float64 `yaml:"up_ratio"`
}

// LeaderConfig drives leader selection. FallbackTopPct > 0 arms the
// percentile fallback tier; it stays unreachable at the zero default.
type LeaderConfig struct {
	ThreshPct      float64       `yaml:"thresh_leader_pct"`
	ThreshVolRatio float64       `yaml:"thresh_leader_vol_ratio"`
	ThreshPos      float64       `yaml:"thresh_leader_pos"`
	TopNPerSector  int           `yaml:"top_n_per_sector"`
	FallbackTopPct float64       `yaml:"top_pct_in_sector"`
	Weights        LeaderWeights `yaml:"weights"`
}

// LeaderWeights weighs the leader score.
type LeaderWeights struct {
	PctChangeZ float64 `yaml:"pct_change_z"`
	VolRatioZ  float64 `yaml:"vol_ratio_z"`
	PosInDay   float64 `yaml:"pos_in_day"`
}

// FollowerConfig drives follower selection.
type FollowerConfig struct {
	PctChangeMin   float64         `yaml:"pct_change_min"`
	PctChangeMax   float64         `yaml:"pct_change_max"`
	VolRatioMin    float64         `yaml:"vol_ratio_min"`
	VolRatioMax    float64         `yaml:"vol_ratio_max"`
	ThreshDistHigh float64         `yaml:"thresh_dist_20d_high"`
	Weights        FollowerWeights `yaml:"weights"`
}

// FollowerWeights weighs the follower score.
type FollowerWeights struct {
	PctChangeZ   float64 `yaml:"pct_change_z"`
	VolRatioZ    float64 `yaml:"vol_ratio_z"`
	OneMinusDist float64 `yaml:"one_minus_dist_20d_high"`
	PosInDay     float64 `yaml:"pos_in_day"`
}

// TotalWeights combines the three stage scores into score_total.
type TotalWeights struct {
	ScoreSector float64 `yaml:"score_sector"`
	ScoreLeader float64 `yaml:"score_leader"`
	ScoreFollow float64 `yaml:"score_follow"`
}

// SizingConfig bounds the suggested position per candidate.
type SizingConfig struct {
	Capital        float64 `yaml:"capital"`
	RiskPerTrade   float64 `yaml:"risk_per_trade"`
	MaxPositionPct float64 `yaml:"max_position_pct"`
	StopBufferPct  float64 `yaml:"stop_buffer_pct"`
}

// DemoConfig shapes the synthetic market used by the demo command.
type DemoConfig struct {
	NumStocks   int   `yaml:"num_stocks"`
	NumSectors  int   `yaml:"num_sectors"`
	HistoryDays int   `yaml:"history_days"`
	Seed        int64 `yaml:"seed"`
}

// FetchConfig tunes the exchange HTTP client.
type FetchConfig struct {
	TimeoutSeconds   int     `yaml:"timeout_seconds"`
	RetryCount       int     `yaml:"retry_count"`
	RetryWaitSeconds int     `yaml:"retry_wait_seconds"`
	RequestsPerSec   float64 `yaml:"requests_per_sec"`
}

// StorageConfig names the on-disk and service-backed stores. Empty Redis
// and Postgres settings disable those layers.
type StorageConfig struct {
	DataDir         string `yaml:"data_dir"`
	OutDir          string `yaml:"out_dir"`
	ThemesMapping   string `yaml:"themes_mapping"`
	RiskFlags       string `yaml:"risk_flags"`
	RedisAddr       string `yaml:"redis_addr"`
	RedisTTLSeconds int    `yaml:"redis_ttl_seconds"`
	PostgresDSN     string `yaml:"postgres_dsn"`
}

// ProtectionConfig tunes the equity protection state machine.
type ProtectionConfig struct {
	MaxDailyLossPct      float64 `yaml:"max_daily_loss_pct"`
	MaxDrawdownPct       float64 `yaml:"max_drawdown_pct"`
	ConsecutiveLossLimit int     `yaml:"consecutive_loss_limit"`
	RecoveryPeriodDays   int     `yaml:"recovery_period_days"`
	PositionScaling      bool    `yaml:"position_scaling"`
	AutoSuspend          bool    `yaml:"auto_suspend"`
}

// CostsConfig tunes the trading cost model.
type CostsConfig struct {
	Enabled            bool    `yaml:"enabled"`
	CommissionDiscount float64 `yaml:"commission_discount"`
	SlippageBps        float64 `yaml:"slippage_bps"`
	DayTrade           bool    `yaml:"day_trade"`
}

// Default returns the configuration used when keys are absent from the file.
func Default() Config {
	minTurnover := 5e7
	minPrice := 10.0
	maxPrice := 500.0
	return Config{
		Mode: ModeStrict,
		Universe: UniverseConfig{
			MinTurnover: &minTurnover,
			MinPrice:    &minPrice,
			MaxPrice:    &maxPrice,
		},
		Sector: SectorConfig{
			MtmLookback:   5,
			ThreshAvgPct:  1.5,
			ThreshUpRatio: 0.55,
			ThreshMtmZ:    0.5,
			FallbackTopK:  3,
			Weights:       SectorWeights{AvgPctChangeZ: 0.5, MtmZ: 0.3, UpRatio: 0.2},
		},
		Leader: LeaderConfig{
			ThreshPct:      4.0,
			ThreshVolRatio: 2.0,
			ThreshPos:      0.7,
			TopNPerSector:  1,
			FallbackTopPct: 0,
			Weights:        LeaderWeights{PctChangeZ: 0.5, VolRatioZ: 0.3, PosInDay: 0.2},
		},
		Follower: FollowerConfig{
			PctChangeMin:   1.0,
			PctChangeMax:   6.0,
			VolRatioMin:    1.2,
			VolRatioMax:    3.5,
			ThreshDistHigh: 0.05,
			Weights:        FollowerWeights{PctChangeZ: 0.35, VolRatioZ: 0.25, OneMinusDist: 0.2, PosInDay: 0.2},
		},
		Total: TotalWeights{ScoreSector: 0.3, ScoreLeader: 0.3, ScoreFollow: 0.4},
		Sizing: SizingConfig{
			Capital:        1_000_000,
			RiskPerTrade:   0.01,
			MaxPositionPct: 0.2,
			StopBufferPct:  0.005,
		},
		Demo: DemoConfig{NumStocks: 220, NumSectors: 12, HistoryDays: 40, Seed: 7},
		Fetch: FetchConfig{
			TimeoutSeconds:   20,
			RetryCount:       3,
			RetryWaitSeconds: 5,
			RequestsPerSec:   2,
		},
		Storage: StorageConfig{
			DataDir:         "data/market",
			OutDir:          "out",
			ThemesMapping:   "data/themes_mapping.csv",
			RedisTTLSeconds: 21600,
		},
		Protection: ProtectionConfig{
			MaxDailyLossPct:      2.0,
			MaxDrawdownPct:       10.0,
			ConsecutiveLossLimit: 3,
			RecoveryPeriodDays:   5,
			PositionScaling:      true,
			AutoSuspend:          true,
		},
		Costs: CostsConfig{
			Enabled:            false,
			CommissionDiscount: 0.6,
			SlippageBps:        5,
		},
	}
}

// Load reads a YAML config over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate enforces the constraints the pipeline assumes hold.
func (c *Config) Validate() error {
	if c.Mode != ModeStrict && c.Mode != ModePermissive {
		return fmt.Errorf("mode %q must be %q or %q", c.Mode, ModeStrict, ModePermissive)
	}
	if c.Universe.MinPrice != nil && c.Universe.MaxPrice != nil && *c.Universe.MinPrice > *c.Universe.MaxPrice {
		return fmt.Errorf("universe min_price %.2f above max_price %.2f", *c.Universe.MinPrice, *c.Universe.MaxPrice)
	}
	if c.Sector.MtmLookback < 1 {
		return fmt.Errorf("sector mtm_lookback %d must be >= 1", c.Sector.MtmLookback)
	}
	if c.Sector.ThreshUpRatio < 0 || c.Sector.ThreshUpRatio > 1 {
		return fmt.Errorf("sector thresh_up_ratio %.3f outside [0,1]", c.Sector.ThreshUpRatio)
	}
	if c.Sector.FallbackTopK < 1 {
		return fmt.Errorf("sector fallback_top_k %d must be >= 1", c.Sector.FallbackTopK)
	}
	if c.Leader.TopNPerSector < 1 {
		return fmt.Errorf("leader top_n_per_sector %d must be >= 1", c.Leader.TopNPerSector)
	}
	if c.Leader.FallbackTopPct < 0 || c.Leader.FallbackTopPct > 1 {
		return fmt.Errorf("leader top_pct_in_sector %.3f outside [0,1]", c.Leader.FallbackTopPct)
	}
	if c.Follower.PctChangeMin > c.Follower.PctChangeMax {
		return fmt.Errorf("follower pct_change band [%.2f,%.2f] inverted", c.Follower.PctChangeMin, c.Follower.PctChangeMax)
	}
	if c.Follower.VolRatioMin > c.Follower.VolRatioMax {
		return fmt.Errorf("follower vol_ratio band [%.2f,%.2f] inverted", c.Follower.VolRatioMin, c.Follower.VolRatioMax)
	}
	if c.Follower.ThreshDistHigh < 0 {
		return fmt.Errorf("follower thresh_dist_20d_high %.3f must be >= 0", c.Follower.ThreshDistHigh)
	}
	if c.Sizing.Capital <= 0 {
		return fmt.Errorf("position_sizing capital %.2f must be positive", c.Sizing.Capital)
	}
	if c.Sizing.RiskPerTrade <= 0 || c.Sizing.RiskPerTrade > 1 {
		return fmt.Errorf("position_sizing risk_per_trade %.4f outside (0,1]", c.Sizing.RiskPerTrade)
	}
	if c.Sizing.MaxPositionPct <= 0 || c.Sizing.MaxPositionPct > 1 {
		return fmt.Errorf("position_sizing max_position_pct %.4f outside (0,1]", c.Sizing.MaxPositionPct)
	}
	if c.Sizing.StopBufferPct < 0 || c.Sizing.StopBufferPct >= 1 {
		return fmt.Errorf("position_sizing stop_buffer_pct %.4f outside [0,1)", c.Sizing.StopBufferPct)
	}
	if c.Demo.NumStocks < 1 || c.Demo.NumSectors < 1 || c.Demo.HistoryDays < 1 {
		return fmt.Errorf("demo num_stocks/num_sectors/history_days must all be >= 1")
	}
	if c.Fetch.TimeoutSeconds < 1 {
		return fmt.Errorf("fetch timeout_seconds %d must be >= 1", c.Fetch.TimeoutSeconds)
	}
	if c.Fetch.RequestsPerSec <= 0 {
		return fmt.Errorf("fetch requests_per_sec %.2f must be positive", c.Fetch.RequestsPerSec)
	}
	if c.Protection.MaxDailyLossPct <= 0 || c.Protection.MaxDrawdownPct <= 0 {
		return fmt.Errorf("protection loss limits must be positive percentages")
	}
	if c.Costs.CommissionDiscount <= 0 || c.Costs.CommissionDiscount > 1 {
		return fmt.Errorf("costs commission_discount %.3f outside (0,1]", c.Costs.CommissionDiscount)
	}
	return nil
}

// Permissive reports whether demo fallbacks are enabled.
func (c *Config) Permissive() bool { return c.Mode == ModePermissive }
