package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"daypick/internal/market"
)

// LoadRiskFlags reads the broker restriction sidecar. A missing file means
// no restrictions apply to any stock.
func LoadRiskFlags(path string) (*market.RiskTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return market.NewRiskTable(nil), nil
		}
		return nil, fmt.Errorf("failed to read risk flags: %w", err)
	}
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse risk flags: %w", err)
	}
	if len(records) == 0 {
		return market.NewRiskTable(nil), nil
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[strings.TrimSpace(name)] = i
	}
	if _, ok := col["stock_id"]; !ok {
		return nil, fmt.Errorf("risk flags missing column %q", "stock_id")
	}

	cell := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	rows := make([]market.RiskFlags, 0, len(records)-1)
	for _, rec := range records[1:] {
		id := cell(rec, "stock_id")
		if id == "" {
			continue
		}
		score, err := naFloat(cell(rec, "liquidity_score"))
		if err != nil {
			return nil, fmt.Errorf("risk flags: bad liquidity_score for %s: %w", id, err)
		}
		rows = append(rows, market.RiskFlags{
			StockID:        id,
			IsDisposed:     looseBool(cell(rec, "is_disposed")),
			IsFullMargin:   looseBool(cell(rec, "is_full_margin")),
			LiquidityScore: score,
			IsBlacklist:    looseBool(cell(rec, "is_blacklist")),
		})
	}
	return market.NewRiskTable(rows), nil
}
