// Package features derives the per-stock rolling-window features the picker
// stages consume. Every window feature needs a full window of defined
// history; anything short of that stays undefined and fails downstream
// filters instead of defaulting silently.
package features

import (
	"sort"
	"time"

	"daypick/internal/market"
	"daypick/internal/stats"
)

// Window sizes for the rolling features.
const (
	WindowShort = 5
	WindowMid   = 10
	WindowLong  = 20
)

// Set holds computed features indexed by (trade date, stock id).
type Set struct {
	rows  []market.DailyFeatures
	index map[time.Time]map[string]market.DailyFeatures
}

// Compute derives features for every bar in the history, one stock at a
// time. Insufficient history is not an error; the affected fields are
// undefined.
func Compute(h *market.History) *Set {
	s := &Set{index: make(map[time.Time]map[string]market.DailyFeatures)}
	for _, id := range h.StockIDs() {
		bars := h.Stock(id)
		closes := make([]float64, len(bars))
		highs := make([]float64, len(bars))
		vols := make([]float64, len(bars))
		for i, b := range bars {
			closes[i] = b.Close
			highs[i] = b.High
			vols[i] = b.Volume
		}

		ma5 := stats.RollingMean(closes, WindowShort)
		ma10 := stats.RollingMean(closes, WindowMid)
		ma20 := stats.RollingMean(closes, WindowLong)
		vol20 := stats.RollingMean(vols, WindowLong)
		high20 := stats.RollingMax(highs, WindowLong)

		for i, b := range bars {
			f := market.DailyFeatures{
				TradeDate: b.TradeDate,
				StockID:   b.StockID,
				MA5:       ma5[i],
				MA10:      ma10[i],
				MA20:      ma20[i],
				Vol20Avg:  vol20[i],
				VolRatio:  ratio(b.Volume, vol20[i]),
				High20:    high20[i],
			}
			f.Is20DayHigh = market.Defined(high20[i]) && market.Defined(b.Close) && b.Close >= high20[i]
			f.DistToHigh = distToHigh(high20[i], b.Close)
			f.IntradayPos = intradayPos(b)
			s.add(f)
		}
	}
	sort.SliceStable(s.rows, func(i, j int) bool {
		if !s.rows[i].TradeDate.Equal(s.rows[j].TradeDate) {
			return s.rows[i].TradeDate.Before(s.rows[j].TradeDate)
		}
		return s.rows[i].StockID < s.rows[j].StockID
	})
	return s
}

func (s *Set) add(f market.DailyFeatures) {
	s.rows = append(s.rows, f)
	day := s.index[f.TradeDate]
	if day == nil {
		day = make(map[string]market.DailyFeatures)
		s.index[f.TradeDate] = day
	}
	day[f.StockID] = f
}

// On returns the features for (date, stock) when computed.
func (s *Set) On(d time.Time, stockID string) (market.DailyFeatures, bool) {
	f, ok := s.index[d][stockID]
	return f, ok
}

// Rows returns all features sorted by (date, stock id).
func (s *Set) Rows() []market.DailyFeatures { return s.rows }

func ratio(num, den float64) float64 {
	if !market.Defined(num) || !market.Defined(den) || den == 0 {
		return market.NA()
	}
	return num / den
}

func distToHigh(high20, close float64) float64 {
	if !market.Defined(high20) || !market.Defined(close) || high20 == 0 {
		return market.NA()
	}
	return (high20 - close) / high20
}

// intradayPos places the close inside the day's range; a flat or
// limit-locked day (high == low) has no usable range.
func intradayPos(b market.DailyBar) float64 {
	if !market.Defined(b.High) || !market.Defined(b.Low) || !market.Defined(b.Close) {
		return market.NA()
	}
	rng := b.High - b.Low
	if rng == 0 {
		return market.NA()
	}
	return (b.Close - b.Low) / rng
}
