package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daypick/internal/market"
)

func TestLoadRiskFlagsParsesLooseBools(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk_flags.csv")
	content := "stock_id,is_disposed,is_full_margin,liquidity_score,is_blacklist\n" +
		"2330,False,0,0.95,false\n" +
		"5483,True,1,,yes\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := LoadRiskFlags(path)
	require.NoError(t, err)

	tsmc := table.Flags("2330")
	assert.False(t, tsmc.IsDisposed)
	assert.False(t, tsmc.IsFullMargin)
	assert.False(t, tsmc.IsBlacklist)
	assert.Equal(t, 0.95, tsmc.LiquidityScore)

	flagged := table.Flags("5483")
	assert.True(t, flagged.IsDisposed)
	assert.True(t, flagged.IsFullMargin)
	assert.True(t, flagged.IsBlacklist)
	assert.False(t, market.Defined(flagged.LiquidityScore))

	assert.Equal(t, market.RiskFlags{}, table.Flags("0050"))
}

func TestLoadRiskFlagsMissingFileMeansNoRestrictions(t *testing.T) {
	table, err := LoadRiskFlags(filepath.Join(t.TempDir(), "absent.csv"))
	require.NoError(t, err)
	assert.Equal(t, market.RiskFlags{}, table.Flags("2330"))
}

func TestLoadRiskFlagsRequiresStockID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk_flags.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,is_disposed\n2330,true\n"), 0o644))
	_, err := LoadRiskFlags(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stock_id")
}
