// Package demo fabricates a plausible market so the pipeline can run
// end to end with no fetched data: sectors carry their own daily drift,
// stocks add idiosyncratic noise on top, and volume swells with the size
// of the move. A fixed seed reproduces the same market every time.
package demo

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"daypick/internal/config"
	"daypick/internal/market"
)

// Market is one synthetic dataset.
type Market struct {
	Meta []market.StockMeta
	Bars []market.DailyBar
}

// History indexes the generated bars.
func (m Market) History() *market.History { return market.NewHistory(m.Bars) }

// MetaTable indexes the generated metadata.
func (m Market) MetaTable() *market.MetaTable { return market.NewMetaTable(m.Meta) }

// Generate builds cfg.HistoryDays business days of synthetic bars ending at
// asof for cfg.NumStocks stocks spread over cfg.NumSectors sectors.
func Generate(asof time.Time, cfg config.DemoConfig) Market {
	rng := rand.New(rand.NewSource(cfg.Seed))

	sectorIDs := make([]string, cfg.NumSectors)
	for j := range sectorIDs {
		sectorIDs[j] = fmt.Sprintf("S%02d", j)
	}

	stockIDs := make([]string, cfg.NumStocks)
	sectorOf := make([]string, cfg.NumStocks)
	meta := make([]market.StockMeta, cfg.NumStocks)
	for i := range stockIDs {
		stockIDs[i] = fmt.Sprintf("%d", 1000+i)
		sectorOf[i] = sectorIDs[rng.Intn(len(sectorIDs))]
		mkt := "TWSE"
		if rng.Float64() >= 0.7 {
			mkt = "TPEX"
		}
		meta[i] = market.StockMeta{
			StockID:   stockIDs[i],
			StockName: "Stock" + stockIDs[i],
			Market:    mkt,
			SectorID:  sectorOf[i],
		}
	}

	dates := businessDays(asof, cfg.HistoryDays)

	basePrice := make([]float64, cfg.NumStocks)
	baseTurnover := make([]float64, cfg.NumStocks)
	for i := range basePrice {
		basePrice[i] = uniform(rng, 18, 220)
		baseTurnover[i] = uniform(rng, 1.5e7, 2.5e8)
	}

	// One drift series per sector; members share the day's drift.
	drift := make(map[string][]float64, len(sectorIDs))
	for _, s := range sectorIDs {
		series := make([]float64, len(dates))
		for t := range series {
			series[t] = 0.001 + 0.02*rng.NormFloat64()
		}
		drift[s] = series
	}

	prevClose := append([]float64(nil), basePrice...)
	bars := make([]market.DailyBar, 0, len(dates)*cfg.NumStocks)
	for t, d := range dates {
		for i, sid := range stockIDs {
			ret := drift[sectorOf[i]][t] + 0.025*rng.NormFloat64()

			close := math.Max(2.0, prevClose[i]*(1.0+ret))
			open := close * (1.0 + 0.01*rng.NormFloat64())
			high := math.Max(open, close) * (1.0 + math.Abs(0.01*rng.NormFloat64()))
			low := math.Min(open, close) * (1.0 - math.Abs(0.01*rng.NormFloat64()))
			volume := math.Trunc(uniform(rng, 2000, 80000) * (1.0 + math.Abs(ret)*10))
			turnover := baseTurnover[i] * (0.4 + math.Abs(ret)*8) * uniform(rng, 0.7, 1.3)
			pct := (close/prevClose[i] - 1.0) * 100

			bars = append(bars, market.DailyBar{
				TradeDate: d,
				StockID:   sid,
				StockName: "Stock" + sid,
				Market:    meta[i].Market,
				Open:      open,
				High:      high,
				Low:       low,
				Close:     close,
				PctChange: pct,
				Volume:    volume,
				Turnover:  turnover,
			})
			prevClose[i] = close
		}
	}

	return Market{Meta: meta, Bars: bars}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

// businessDays returns the n weekdays ending at the last weekday on or
// before end, ascending.
func businessDays(end time.Time, n int) []time.Time {
	d := market.DayOf(end)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}

	out := make([]time.Time, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = d
		d = d.AddDate(0, 0, -1)
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, -1)
		}
	}
	return out
}
