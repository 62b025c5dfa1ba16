package features

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daypick/internal/market"
)

// flatSeries builds n consecutive weekday bars with constant prices.
func flatSeries(id string, n int, close, volume float64) []market.DailyBar {
	bars := make([]market.DailyBar, 0, n)
	d := market.Date(2025, 1, 2)
	for len(bars) < n {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			bars = append(bars, market.DailyBar{
				TradeDate: d, StockID: id,
				Open: close, High: close + 1, Low: close - 1, Close: close,
				Volume: volume, Turnover: close * volume,
			})
		}
		d = d.AddDate(0, 0, 1)
	}
	return bars
}

func TestCompute_UndefinedUntilWindowFull(t *testing.T) {
	h := market.NewHistory(flatSeries("2330", 25, 100, 5000))
	set := Compute(h)
	dates := h.Dates()

	for i, d := range dates {
		f, ok := set.On(d, "2330")
		require.True(t, ok, "features missing on %s", d)

		assert.Equal(t, i >= 4, market.Defined(f.MA5), "MA5 day %d", i)
		assert.Equal(t, i >= 9, market.Defined(f.MA10), "MA10 day %d", i)
		assert.Equal(t, i >= 19, market.Defined(f.MA20), "MA20 day %d", i)
		assert.Equal(t, i >= 19, market.Defined(f.Vol20Avg), "Vol20Avg day %d", i)
		assert.Equal(t, i >= 19, market.Defined(f.VolRatio), "VolRatio day %d", i)
		assert.Equal(t, i >= 19, market.Defined(f.High20), "High20 day %d", i)
		assert.Equal(t, i >= 19, market.Defined(f.DistToHigh), "DistToHigh day %d", i)

		if i < 19 {
			assert.False(t, f.Is20DayHigh, "incomplete window can never flag a 20d high")
		}
	}
}

func TestCompute_RollingValues(t *testing.T) {
	// Rising closes 1..25 so the window means are easy to state.
	var bars []market.DailyBar
	d := market.Date(2025, 1, 2)
	for i := 0; len(bars) < 25; i++ {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			c := float64(len(bars) + 1)
			bars = append(bars, market.DailyBar{
				TradeDate: d, StockID: "1101",
				Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 1000,
			})
		}
		d = d.AddDate(0, 0, 1)
	}
	h := market.NewHistory(bars)
	set := Compute(h)
	dates := h.Dates()

	last, ok := set.On(dates[24], "1101")
	require.True(t, ok)

	assert.InDelta(t, 23.0, last.MA5, 1e-12, "mean of 21..25")
	assert.InDelta(t, 20.5, last.MA10, 1e-12, "mean of 16..25")
	assert.InDelta(t, 15.5, last.MA20, 1e-12, "mean of 6..25")
	assert.InDelta(t, 25.5, last.High20, 1e-12, "max high of days 6..25")
	assert.False(t, last.Is20DayHigh, "close 25 sits under high 25.5")
	assert.InDelta(t, 0.5/25.5, last.DistToHigh, 1e-12)
	assert.InDelta(t, 1.0, last.VolRatio, 1e-12)
	assert.InDelta(t, 0.5, last.IntradayPos, 1e-12, "close centered in range")
}

func TestCompute_FlatDayHasNoIntradayPos(t *testing.T) {
	d := market.Date(2025, 3, 3)
	h := market.NewHistory([]market.DailyBar{{
		TradeDate: d, StockID: "2330",
		Open: 100, High: 100, Low: 100, Close: 100, Volume: 10,
	}})

	f, ok := Compute(h).On(d, "2330")
	require.True(t, ok)
	assert.False(t, market.Defined(f.IntradayPos), "high == low leaves position undefined")
}

func TestCompute_ZeroAverageVolumeLeavesRatioUndefined(t *testing.T) {
	bars := flatSeries("4967", 21, 50, 0)
	// A burst on the last day against a dead 20-day average.
	bars[len(bars)-1].Volume = 80000

	h := market.NewHistory(bars)
	last := bars[len(bars)-1].TradeDate

	f, ok := Compute(h).On(last, "4967")
	require.True(t, ok)
	assert.False(t, market.Defined(f.VolRatio), "division by zero average resolves to undefined")
}

func TestCompute_GapInSeriesBreaksWindow(t *testing.T) {
	bars := flatSeries("3008", 25, 200, 3000)
	bars[22].Close = market.NA()

	h := market.NewHistory(bars)
	set := Compute(h)
	dates := h.Dates()

	f, ok := set.On(dates[24], "3008")
	require.True(t, ok)
	assert.False(t, market.Defined(f.MA5), "undefined close inside the window poisons it")
	assert.False(t, market.Defined(f.MA20))
}

func TestCompute_RowsSortedDeterministically(t *testing.T) {
	var bars []market.DailyBar
	for _, id := range []string{"2603", "1101", "2330"} {
		bars = append(bars, flatSeries(id, 3, 10, 100)...)
	}
	set := Compute(market.NewHistory(bars))

	rows := set.Rows()
	require.Len(t, rows, 9)
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		ok := prev.TradeDate.Before(cur.TradeDate) ||
			(prev.TradeDate.Equal(cur.TradeDate) && prev.StockID < cur.StockID)
		assert.True(t, ok, fmt.Sprintf("rows %d,%d out of order", i-1, i))
	}
}
