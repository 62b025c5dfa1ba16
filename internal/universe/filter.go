// Package universe removes ineligible stocks before any ranking runs.
// Every predicate resolves a missing value to the side that fails it:
// missing turnover is zero against a floor, missing price is zero against
// a floor, missing risk flags restrict nothing.
package universe

import (
	"daypick/internal/config"
	"daypick/internal/market"
)

// Gate is one eligibility predicate's outcome for a stock-day row.
type Gate struct {
	Name      string      `json:"name"`
	Passed    bool        `json:"passed"`
	Value     interface{} `json:"value"`
	Threshold interface{} `json:"threshold"`
}

// Verdict collects the gate outcomes for one row.
type Verdict struct {
	StockID string `json:"stock_id"`
	Passed  bool   `json:"passed"`
	Gates   []Gate `json:"gates"`
}

// FailedGates names the gates the row did not clear.
func (v Verdict) FailedGates() []string {
	var out []string
	for _, g := range v.Gates {
		if !g.Passed {
			out = append(out, g.Name)
		}
	}
	return out
}

// Filter applies the configured eligibility predicates.
type Filter struct {
	cfg  config.UniverseConfig
	risk *market.RiskTable
}

// New builds a filter. risk may be nil, which restricts nothing.
func New(cfg config.UniverseConfig, risk *market.RiskTable) *Filter {
	return &Filter{cfg: cfg, risk: risk}
}

// Evaluate runs every gate for one row, in filter order.
func (f *Filter) Evaluate(b market.DailyBar) Verdict {
	v := Verdict{StockID: b.StockID, Passed: true}

	if f.cfg.MinTurnover != nil {
		turnover := market.Or(b.Turnover, 0)
		v.append(Gate{Name: "min_turnover", Passed: turnover >= *f.cfg.MinTurnover, Value: turnover, Threshold: *f.cfg.MinTurnover})
	}
	if f.cfg.MinPrice != nil {
		price := market.Or(b.Close, 0)
		v.append(Gate{Name: "min_price", Passed: price >= *f.cfg.MinPrice, Value: price, Threshold: *f.cfg.MinPrice})
	}
	if f.cfg.MaxPrice != nil {
		price := market.Or(b.Close, 0)
		v.append(Gate{Name: "max_price", Passed: price <= *f.cfg.MaxPrice, Value: price, Threshold: *f.cfg.MaxPrice})
	}

	flags := f.risk.Flags(b.StockID)
	v.append(Gate{Name: "not_disposed", Passed: !flags.IsDisposed, Value: flags.IsDisposed, Threshold: false})
	v.append(Gate{Name: "not_full_margin", Passed: !flags.IsFullMargin, Value: flags.IsFullMargin, Threshold: false})
	v.append(Gate{Name: "not_blacklisted", Passed: !flags.IsBlacklist, Value: flags.IsBlacklist, Threshold: false})

	return v
}

func (v *Verdict) append(g Gate) {
	v.Gates = append(v.Gates, g)
	if !g.Passed {
		v.Passed = false
	}
}

// Eligible keeps the rows that clear every gate, preserving input order.
func (f *Filter) Eligible(bars []market.DailyBar) []market.DailyBar {
	out := make([]market.DailyBar, 0, len(bars))
	for _, b := range bars {
		if f.Evaluate(b).Passed {
			out = append(out, b)
		}
	}
	return out
}

// FilterHistory applies the gates to every date in the window, producing
// the eligible universe the sector aggregation is computed from.
func (f *Filter) FilterHistory(h *market.History) *market.History {
	return market.NewHistory(f.Eligible(h.Bars()))
}
