package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"daypick/internal/market"
)

// LoadThemes reads the stock_id,themes sidecar. A stock's sector is the
// first entry of its ;-separated theme list.
func LoadThemes(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read themes mapping: %w", err)
	}
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse themes mapping: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("themes mapping is empty")
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[strings.TrimSpace(name)] = i
	}
	idCol, idOK := col["stock_id"]
	themesCol, themesOK := col["themes"]
	if !idOK || !themesOK {
		return nil, fmt.Errorf("themes mapping must have columns stock_id,themes")
	}

	out := make(map[string]string, len(records)-1)
	for _, rec := range records[1:] {
		if idCol >= len(rec) || themesCol >= len(rec) {
			continue
		}
		id := strings.TrimSpace(rec[idCol])
		if id == "" {
			continue
		}
		sector := strings.TrimSpace(strings.Split(rec[themesCol], ";")[0])
		if sector == "" {
			sector = market.SectorUnknown
		}
		out[id] = sector
	}
	return out, nil
}

// ApplyThemes assigns each stock its mapped sector. Unmapped stocks land in
// the UNKNOWN bucket.
func ApplyThemes(meta []market.StockMeta, themes map[string]string) []market.StockMeta {
	out := make([]market.StockMeta, len(meta))
	copy(out, meta)
	for i := range out {
		if sector, ok := themes[out[i].StockID]; ok {
			out[i].SectorID = sector
		} else if out[i].SectorID == "" {
			out[i].SectorID = market.SectorUnknown
		}
	}
	return out
}
