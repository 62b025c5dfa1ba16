package demo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daypick/internal/config"
	"daypick/internal/market"
	"daypick/internal/picker"
)

func demoCfg() config.DemoConfig {
	return config.DemoConfig{NumStocks: 40, NumSectors: 6, HistoryDays: 30, Seed: 7}
}

func TestGenerateShape(t *testing.T) {
	asof := market.Date(2025, 6, 20) // a Friday
	m := Generate(asof, demoCfg())

	require.Len(t, m.Meta, 40)
	require.Len(t, m.Bars, 40*30)

	h := m.History()
	dates := h.Dates()
	require.Len(t, dates, 30)
	assert.Equal(t, asof, dates[len(dates)-1])
	for _, d := range dates {
		wd := d.Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
	}
}

func TestGenerateWeekendAnchorsToFriday(t *testing.T) {
	m := Generate(market.Date(2025, 6, 22), demoCfg()) // a Sunday
	last, ok := m.History().LastDate()
	require.True(t, ok)
	assert.Equal(t, market.Date(2025, 6, 20), last)
}

func TestGenerateDeterministic(t *testing.T) {
	asof := market.Date(2025, 6, 20)
	a := Generate(asof, demoCfg())
	b := Generate(asof, demoCfg())
	assert.Equal(t, a.Meta, b.Meta)
	assert.Equal(t, a.Bars, b.Bars)

	cfg := demoCfg()
	cfg.Seed = 8
	c := Generate(asof, cfg)
	assert.NotEqual(t, a.Bars, c.Bars, "a different seed moves the market")
}

func TestGenerateBarInvariants(t *testing.T) {
	m := Generate(market.Date(2025, 6, 20), demoCfg())

	sectors := make(map[string]bool)
	for _, md := range m.Meta {
		sectors[md.SectorID] = true
		assert.Contains(t, []string{"TWSE", "TPEX"}, md.Market)
	}
	assert.LessOrEqual(t, len(sectors), 6)

	prev := make(map[string]float64)
	for _, b := range m.Bars {
		assert.GreaterOrEqual(t, b.Close, 2.0, b.StockID)
		assert.GreaterOrEqual(t, b.High, b.Close, b.StockID)
		assert.LessOrEqual(t, b.Low, b.Close, b.StockID)
		assert.Greater(t, b.Volume, 0.0)
		assert.Greater(t, b.Turnover, 0.0)

		if p, ok := prev[b.StockID]; ok {
			assert.InDelta(t, (b.Close/p-1)*100, b.PctChange, 1e-9, b.StockID)
		}
		prev[b.StockID] = b.Close
	}
}

func TestGeneratedMarketRunsThroughEngine(t *testing.T) {
	m := Generate(market.Date(2025, 6, 20), demoCfg())
	h := m.History()
	last, ok := h.LastDate()
	require.True(t, ok)

	cfg := config.Default()
	cfg.Mode = config.ModePermissive
	res := picker.New(&cfg).Run(last, h, m.MetaTable(), nil)

	require.NotNil(t, res)
	assert.NotNil(t, res.Candidates)
	assert.NotEmpty(t, res.Sectors)
}
