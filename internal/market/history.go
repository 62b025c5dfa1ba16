package market

import (
	"sort"
	"time"
)

// History is an immutable, indexed view over a window of daily bars. All
// accessors return data in deterministic order: dates ascending, stock ids
// ascending within a date.
type History struct {
	bars    []DailyBar
	byStock map[string][]DailyBar
	byDate  map[time.Time][]DailyBar
	dates   []time.Time
	stocks  []string
}

// NewHistory copies and indexes bars. Trade dates are normalized to UTC
// midnight so lookups by Date() keys always hit.
func NewHistory(bars []DailyBar) *History {
	h := &History{
		bars:    make([]DailyBar, len(bars)),
		byStock: make(map[string][]DailyBar),
		byDate:  make(map[time.Time][]DailyBar),
	}
	copy(h.bars, bars)
	for i := range h.bars {
		h.bars[i].TradeDate = DayOf(h.bars[i].TradeDate)
	}
	sort.SliceStable(h.bars, func(i, j int) bool {
		if !h.bars[i].TradeDate.Equal(h.bars[j].TradeDate) {
			return h.bars[i].TradeDate.Before(h.bars[j].TradeDate)
		}
		return h.bars[i].StockID < h.bars[j].StockID
	})
	for _, b := range h.bars {
		h.byStock[b.StockID] = append(h.byStock[b.StockID], b)
		h.byDate[b.TradeDate] = append(h.byDate[b.TradeDate], b)
	}
	for d := range h.byDate {
		h.dates = append(h.dates, d)
	}
	sort.Slice(h.dates, func(i, j int) bool { return h.dates[i].Before(h.dates[j]) })
	for id := range h.byStock {
		h.stocks = append(h.stocks, id)
	}
	sort.Strings(h.stocks)
	return h
}

// Len returns the total number of bars.
func (h *History) Len() int { return len(h.bars) }

// Bars returns all bars sorted by (date, stock id).
func (h *History) Bars() []DailyBar { return h.bars }

// Dates returns the distinct trade dates ascending.
func (h *History) Dates() []time.Time { return h.dates }

// LastDate returns the most recent trade date in the window.
func (h *History) LastDate() (time.Time, bool) {
	if len(h.dates) == 0 {
		return time.Time{}, false
	}
	return h.dates[len(h.dates)-1], true
}

// PrevDate returns the latest trade date strictly before d.
func (h *History) PrevDate(d time.Time) (time.Time, bool) {
	d = DayOf(d)
	i := sort.Search(len(h.dates), func(i int) bool { return !h.dates[i].Before(d) })
	if i == 0 {
		return time.Time{}, false
	}
	return h.dates[i-1], true
}

// Day returns the bars for one trade date, stock id ascending.
func (h *History) Day(d time.Time) []DailyBar { return h.byDate[DayOf(d)] }

// Stock returns one stock's bars, date ascending.
func (h *History) Stock(id string) []DailyBar { return h.byStock[id] }

// StockIDs returns the distinct stock ids ascending.
func (h *History) StockIDs() []string { return h.stocks }

// BarOn returns the bar for (date, stock) when present.
func (h *History) BarOn(d time.Time, stockID string) (DailyBar, bool) {
	for _, b := range h.byDate[DayOf(d)] {
		if b.StockID == stockID {
			return b, true
		}
	}
	return DailyBar{}, false
}

// Through returns a new History containing only bars dated <= d. Backtests
// use it to hand the engine a window that cannot see the future.
func (h *History) Through(d time.Time) *History {
	d = DayOf(d)
	var out []DailyBar
	for _, b := range h.bars {
		if !b.TradeDate.After(d) {
			out = append(out, b)
		}
	}
	return NewHistory(out)
}

