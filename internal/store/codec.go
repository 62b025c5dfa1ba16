package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"daypick/internal/market"
)

// DayColumns is the day-file schema in column order.
var DayColumns = []string{
	"trade_date", "stock_id", "name", "market",
	"open", "high", "low", "close", "pct_change",
	"volume", "turnover", "is_limit_up", "is_limit_down",
}

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// EncodeDay renders bars as day-file CSV, sorted by stock id so the same
// day always encodes to the same bytes.
func EncodeDay(bars []market.DailyBar) ([]byte, error) {
	sorted := make([]market.DailyBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StockID < sorted[j].StockID })

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(DayColumns); err != nil {
		return nil, err
	}
	for _, b := range sorted {
		rec := []string{
			market.DayOf(b.TradeDate).Format(market.DateFormat),
			b.StockID,
			b.StockName,
			b.Market,
			floatCell(b.Open),
			floatCell(b.High),
			floatCell(b.Low),
			floatCell(b.Close),
			floatCell(b.PctChange),
			floatCell(b.Volume),
			floatCell(b.Turnover),
			strconv.FormatBool(b.IsLimitUp),
			strconv.FormatBool(b.IsLimitDown),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// DecodeDay parses day-file CSV. A leading UTF-8 BOM, a legacy "date"
// header and a "stock_name" header are all accepted; blank numeric cells
// decode to NaN.
func DecodeDay(data []byte) ([]market.DailyBar, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse day csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("day csv is empty")
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[strings.TrimSpace(name)] = i
	}
	aliasColumn(col, "trade_date", "date")
	aliasColumn(col, "name", "stock_name")
	for _, name := range []string{"trade_date", "stock_id"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("day csv missing column %q", name)
		}
	}

	cell := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	bars := make([]market.DailyBar, 0, len(records)-1)
	for n, rec := range records[1:] {
		d, err := parseTradeDate(cell(rec, "trade_date"))
		if err != nil {
			return nil, fmt.Errorf("day csv row %d: %w", n+2, err)
		}
		bar := market.DailyBar{
			TradeDate:   d,
			StockID:     cell(rec, "stock_id"),
			StockName:   cell(rec, "name"),
			Market:      cell(rec, "market"),
			IsLimitUp:   looseBool(cell(rec, "is_limit_up")),
			IsLimitDown: looseBool(cell(rec, "is_limit_down")),
		}
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{"open", &bar.Open},
			{"high", &bar.High},
			{"low", &bar.Low},
			{"close", &bar.Close},
			{"pct_change", &bar.PctChange},
			{"volume", &bar.Volume},
			{"turnover", &bar.Turnover},
		} {
			v, err := naFloat(cell(rec, f.name))
			if err != nil {
				return nil, fmt.Errorf("day csv row %d column %q: %w", n+2, f.name, err)
			}
			*f.dst = v
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func aliasColumn(col map[string]int, canonical, alias string) {
	if _, ok := col[canonical]; ok {
		return
	}
	if i, ok := col[alias]; ok {
		col[canonical] = i
	}
}

// parseTradeDate accepts YYYY-MM-DD with an optional time suffix.
func parseTradeDate(s string) (time.Time, error) {
	trimmed := s
	if len(trimmed) > len(market.DateFormat) {
		trimmed = trimmed[:len(market.DateFormat)]
	}
	d, err := market.ParseDate(trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad trade_date %q", s)
	}
	return d, nil
}

// floatCell renders a numeric cell, leaving undefined values blank.
func floatCell(v float64) string {
	if !market.Defined(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// naFloat parses a numeric cell. Blank cells and the NA spellings other
// toolchains emit decode to NaN.
func naFloat(s string) (float64, error) {
	switch s {
	case "", "NA", "N/A", "NaN", "nan", "null", "None":
		return market.NA(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// looseBool accepts Go and pandas boolean spellings. Anything else is false.
func looseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "t", "yes", "y":
		return true
	}
	return false
}
