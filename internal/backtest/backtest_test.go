package backtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daypick/internal/config"
	"daypick/internal/market"
	"daypick/internal/protect"
)

func fptr(v float64) *float64 { return &v }

func btConfig() *config.Config {
	cfg := config.Default()
	cfg.Mode = config.ModeStrict
	cfg.Universe = config.UniverseConfig{
		MinTurnover: fptr(1e6), MinPrice: fptr(10), MaxPrice: fptr(500),
	}
	cfg.Sector = config.SectorConfig{
		MtmLookback:   5,
		ThreshAvgPct:  3.0,
		ThreshUpRatio: 0.6,
		ThreshMtmZ:    1.0,
		FallbackTopK:  3,
		Weights:       config.SectorWeights{AvgPctChangeZ: 0.5, MtmZ: 0.3, UpRatio: 0.2},
	}
	cfg.Leader = config.LeaderConfig{
		ThreshPct:      8.0,
		ThreshVolRatio: 2.2,
		ThreshPos:      0.9,
		TopNPerSector:  1,
		Weights:        config.LeaderWeights{PctChangeZ: 0.5, VolRatioZ: 0.3, PosInDay: 0.2},
	}
	cfg.Follower = config.FollowerConfig{
		PctChangeMin:   2.0,
		PctChangeMax:   6.0,
		VolRatioMin:    1.2,
		VolRatioMax:    2.0,
		ThreshDistHigh: 0.05,
		Weights:        config.FollowerWeights{PctChangeZ: 0.35, VolRatioZ: 0.25, OneMinusDist: 0.2, PosInDay: 0.2},
	}
	cfg.Total = config.TotalWeights{ScoreSector: 0.3, ScoreLeader: 0.3, ScoreFollow: 0.4}
	cfg.Sizing = config.SizingConfig{
		Capital:        1_000_000,
		RiskPerTrade:   0.01,
		MaxPositionPct: 0.2,
		StopBufferPct:  0.005,
	}
	cfg.Costs.Enabled = false
	return &cfg
}

func btDay(i int) time.Time {
	return market.Date(2025, 6, 2).AddDate(0, 0, i)
}

// btFixture builds 26 days of a three-sector market. Day 24 produces three
// candidates in sector TECH (1001/1002/1003 behind leader 1000, sized at
// 1819/1941/1539 shares on a 1M book); day 25 settles them at the supplied
// open/close pairs.
func btFixture(t *testing.T, settle map[string][2]float64) (*market.History, *market.MetaTable) {
	t.Helper()

	var ids []string
	var meta []market.StockMeta
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("%d", 1000+i)
		ids = append(ids, id)
		sector := "TECH"
		if i >= 20 {
			sector = "TRAD"
		} else if i >= 10 {
			sector = "FIN"
		}
		meta = append(meta, market.StockMeta{StockID: id, SectorID: sector})
	}

	flat := func(d time.Time, id string, pct float64) market.DailyBar {
		return market.DailyBar{
			TradeDate: d, StockID: id,
			Open: 100, High: 101, Low: 99, Close: 100,
			PctChange: pct, Volume: 1000, Turnover: 1e7,
		}
	}

	var bars []market.DailyBar
	for i := 0; i < 24; i++ {
		d := btDay(i)
		for n, id := range ids {
			pct := 0.0
			if n < 10 && i >= 20 {
				pct = 2
			}
			bars = append(bars, flat(d, id, pct))
		}
	}

	eval := btDay(24)
	bars = append(bars, market.DailyBar{
		TradeDate: eval, StockID: "1000",
		Open: 101, High: 109, Low: 100, Close: 109,
		PctChange: 9, Volume: 2500, Turnover: 1e7,
	})
	followers := []struct {
		id       string
		pct, low float64
	}{{"1001", 4, 101}, {"1002", 3, 100.9}, {"1003", 5, 101}}
	for _, f := range followers {
		close := 100 + f.pct
		bars = append(bars, market.DailyBar{
			TradeDate: eval, StockID: f.id,
			Open: 101, High: close + 0.5, Low: f.low, Close: close,
			PctChange: f.pct, Volume: 1500, Turnover: 1e7,
		})
	}
	for k, pct := range []float64{3, 4, 4, 5, 3} {
		close := 100 + pct
		bars = append(bars, market.DailyBar{
			TradeDate: eval, StockID: fmt.Sprintf("%d", 1004+k),
			Open: 101, High: close + 0.5, Low: 101, Close: close,
			PctChange: pct, Volume: 1000, Turnover: 1e7,
		})
	}
	bars = append(bars, flat(eval, "1009", 0))
	for _, id := range ids[10:] {
		bars = append(bars, market.DailyBar{
			TradeDate: eval, StockID: id,
			Open: 100, High: 100, Low: 98.5, Close: 99,
			PctChange: -1, Volume: 1000, Turnover: 1e7,
		})
	}

	last := btDay(25)
	for _, id := range ids {
		b := flat(last, id, 0)
		if oc, ok := settle[id]; ok {
			b.Open, b.Close = oc[0], oc[1]
			b.High, b.Low = oc[0]+5, oc[1]-5
		}
		bars = append(bars, b)
	}

	return market.NewHistory(bars), market.NewMetaTable(meta)
}

func TestRunSettlesNextOpenToHoldClose(t *testing.T) {
	h, meta := btFixture(t, map[string][2]float64{
		"1001": {105, 108}, // +3 a share on 1819 shares
		"1002": {104, 103}, // -1 a share on 1941 shares
		"1003": {106, 110}, // +4 a share on 1539 shares
	})

	r := NewRunner(btConfig(), Options{Capital: 1_000_000, MaxPositions: 5, HoldDays: 2})
	res, err := r.Run(h, meta, nil)
	require.NoError(t, err)

	require.Len(t, res.Curve, 25)
	for _, p := range res.Curve[:24] {
		assert.Equal(t, 0, p.NumTrades)
		assert.InDelta(t, 1_000_000, p.Equity, 1e-9)
	}

	last := res.Curve[24]
	assert.Equal(t, btDay(25), last.TradeDate)
	assert.Equal(t, 3, last.NumTrades)
	assert.InDelta(t, 3*1819-1*1941+4*1539, last.PnL, 1e-9)
	assert.InDelta(t, 1_009_672, last.Equity, 1e-9)

	assert.Equal(t, 3, res.Trades)
	assert.Equal(t, 25, res.Days)
	assert.InDelta(t, 1_009_672, res.FinalEquity, 1e-9)
	assert.InDelta(t, 0.9672, res.TotalReturnPct, 1e-6)
	assert.Nil(t, res.Protection)
}

func TestRunMaxPositionsTakesTopRanked(t *testing.T) {
	h, meta := btFixture(t, map[string][2]float64{
		"1001": {105, 108},
		"1002": {104, 103},
		"1003": {106, 110},
	})

	r := NewRunner(btConfig(), Options{Capital: 1_000_000, MaxPositions: 1, HoldDays: 2})
	res, err := r.Run(h, meta, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Trades)
	assert.InDelta(t, 1_000_000+4*1539, res.FinalEquity, 1e-9, "only 1003, the top score, trades")
}

func TestRunNetsCostsWhenEnabled(t *testing.T) {
	h, meta := btFixture(t, map[string][2]float64{
		"1001": {105, 108},
		"1002": {104, 103},
		"1003": {106, 110},
	})

	cfg := btConfig()
	cfg.Costs = config.CostsConfig{Enabled: true, CommissionDiscount: 0.6, SlippageBps: 0}

	r := NewRunner(cfg, Options{Capital: 1_000_000, MaxPositions: 1, HoldDays: 2})
	res, err := r.Run(h, meta, nil)
	require.NoError(t, err)

	// Gross 6156 less commissions 139+145 and 0.3% sell tax 508.
	assert.InDelta(t, 1_000_000+6156-792, res.FinalEquity, 1e-9)
}

func TestRunProtectionBooksTheDay(t *testing.T) {
	h, meta := btFixture(t, map[string][2]float64{
		"1001": {105, 95},
		"1002": {104, 94},
		"1003": {106, 96},
	})

	r := NewRunner(btConfig(), Options{Capital: 1_000_000, MaxPositions: 5, HoldDays: 2, Protect: true})
	res, err := r.Run(h, meta, nil)
	require.NoError(t, err)

	// -10 a share across 1819+1941+1539 shares breaches the 2% daily stop.
	assert.InDelta(t, 947_010, res.FinalEquity, 1e-9)
	require.NotNil(t, res.Protection)
	assert.Equal(t, protect.StatusSuspended, res.Protection.Status)
}

func TestRunWindowTooShort(t *testing.T) {
	h, meta := btFixture(t, nil)
	r := NewRunner(btConfig(), Options{
		Capital: 500_000,
		Start:   btDay(24),
		End:     btDay(24),
	})
	res, err := r.Run(h, meta, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Curve)
	assert.Equal(t, 0, res.Days)
	assert.InDelta(t, 500_000, res.FinalEquity, 1e-9)
}

func TestRunRejectsInvertedWindow(t *testing.T) {
	h, meta := btFixture(t, nil)
	_, err := NewRunner(btConfig(), Options{Start: btDay(5), End: btDay(1)}).Run(h, meta, nil)
	assert.Error(t, err)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestRunStampsGeneratedAt(t *testing.T) {
	h, meta := btFixture(t, nil)
	stamp := time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)

	r := NewRunner(btConfig(), Options{Capital: 1_000_000}).WithClock(fixedClock{t: stamp})
	res, err := r.Run(h, meta, nil)
	require.NoError(t, err)
	assert.Equal(t, stamp, res.GeneratedAt)
}
