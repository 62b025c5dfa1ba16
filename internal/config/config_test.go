package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daypick.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValidAndStrict(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ModeStrict, cfg.Mode)
	assert.False(t, cfg.Permissive())
	assert.Zero(t, cfg.Leader.FallbackTopPct, "percentile fallback must be unreachable by default")
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
mode: permissive
sector:
  mtm_lookback: 10
  thresh_avg_pct: 3.0
leader:
  top_pct_in_sector: 0.2
position_sizing:
  capital: 2500000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Permissive())
	assert.Equal(t, 10, cfg.Sector.MtmLookback)
	assert.Equal(t, 3.0, cfg.Sector.ThreshAvgPct)
	assert.Equal(t, 0.2, cfg.Leader.FallbackTopPct)
	assert.Equal(t, 2_500_000.0, cfg.Sizing.Capital)

	// Untouched keys keep their defaults.
	assert.Equal(t, 0.55, cfg.Sector.ThreshUpRatio)
	assert.Equal(t, 1, cfg.Leader.TopNPerSector)
	require.NotNil(t, cfg.Universe.MinTurnover)
	assert.Equal(t, 5e7, *cfg.Universe.MinTurnover)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Mode = "dryrun" }, "mode"},
		{"inverted price band", func(c *Config) { v := 600.0; c.Universe.MinPrice = &v }, "min_price"},
		{"zero lookback", func(c *Config) { c.Sector.MtmLookback = 0 }, "mtm_lookback"},
		{"up ratio above one", func(c *Config) { c.Sector.ThreshUpRatio = 1.2 }, "thresh_up_ratio"},
		{"zero top n", func(c *Config) { c.Leader.TopNPerSector = 0 }, "top_n_per_sector"},
		{"percentile above one", func(c *Config) { c.Leader.FallbackTopPct = 1.5 }, "top_pct_in_sector"},
		{"inverted pct band", func(c *Config) { c.Follower.PctChangeMin = 9; c.Follower.PctChangeMax = 2 }, "pct_change band"},
		{"inverted vol band", func(c *Config) { c.Follower.VolRatioMin = 5; c.Follower.VolRatioMax = 2 }, "vol_ratio band"},
		{"zero capital", func(c *Config) { c.Sizing.Capital = 0 }, "capital"},
		{"risk above one", func(c *Config) { c.Sizing.RiskPerTrade = 1.5 }, "risk_per_trade"},
		{"full stop buffer", func(c *Config) { c.Sizing.StopBufferPct = 1 }, "stop_buffer_pct"},
		{"zero rate", func(c *Config) { c.Fetch.RequestsPerSec = 0 }, "requests_per_sec"},
		{"bad discount", func(c *Config) { c.Costs.CommissionDiscount = 0 }, "commission_discount"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad_InvalidYAMLFailsFast(t *testing.T) {
	path := writeConfig(t, "sector: [not, a, mapping")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal config")
}
