package market

import "sort"

// MetaTable indexes stock metadata by id. Stocks absent from the table map
// to the UNKNOWN sector.
type MetaTable struct {
	byID  map[string]StockMeta
	order []string
}

// NewMetaTable builds the index. Empty sector ids are normalized to UNKNOWN.
func NewMetaTable(rows []StockMeta) *MetaTable {
	t := &MetaTable{byID: make(map[string]StockMeta, len(rows))}
	for _, r := range rows {
		if r.SectorID == "" {
			r.SectorID = SectorUnknown
		}
		if _, dup := t.byID[r.StockID]; !dup {
			t.order = append(t.order, r.StockID)
		}
		t.byID[r.StockID] = r
	}
	sort.Strings(t.order)
	return t
}

// Get returns the metadata row for a stock.
func (t *MetaTable) Get(stockID string) (StockMeta, bool) {
	m, ok := t.byID[stockID]
	return m, ok
}

// SectorOf returns the sector for a stock, UNKNOWN when unmapped.
func (t *MetaTable) SectorOf(stockID string) string {
	if m, ok := t.byID[stockID]; ok {
		return m.SectorID
	}
	return SectorUnknown
}

// StockIDs returns the mapped stock ids ascending.
func (t *MetaTable) StockIDs() []string { return t.order }

// Len returns the number of mapped stocks.
func (t *MetaTable) Len() int { return len(t.byID) }

// RiskTable indexes risk flags by stock id. A nil table means no
// restrictions exist for any stock.
type RiskTable struct {
	byID map[string]RiskFlags
}

// NewRiskTable builds the index.
func NewRiskTable(rows []RiskFlags) *RiskTable {
	t := &RiskTable{byID: make(map[string]RiskFlags, len(rows))}
	for _, r := range rows {
		t.byID[r.StockID] = r
	}
	return t
}

// Flags returns the flags for a stock. Nil tables and unlisted stocks both
// resolve to the zero value, which restricts nothing.
func (t *RiskTable) Flags(stockID string) RiskFlags {
	if t == nil {
		return RiskFlags{}
	}
	return t.byID[stockID]
}
