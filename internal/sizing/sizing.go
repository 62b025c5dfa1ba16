// Package sizing converts a candidate's entry and stop levels into a
// risk-bounded share count. Sizing is undefined (nil fields) whenever the
// stop is missing or does not sit strictly below a positive entry; callers
// never receive a guessed stop.
package sizing

import (
	"math"

	"daypick/internal/config"
	"daypick/internal/market"
)

// Suggestion carries the sized position for one candidate. All fields are
// nil when sizing is undefined for the row.
type Suggestion struct {
	Stop          *float64
	PositionValue *float64
	Shares        *int64
	Lots          *int64
}

// SuggestStop derives the protective stop from the previous trading day's
// low, shaved by the configured buffer. Nil when the low is undefined.
func SuggestStop(prevLow float64, bufferPct float64) *float64 {
	if !market.Defined(prevLow) {
		return nil
	}
	stop := prevLow * (1.0 - bufferPct)
	return &stop
}

// Size computes the share suggestion for one entry/stop pair under the
// configured budget. Shares are capped by both the per-trade risk budget
// and the maximum position fraction, floored at zero, with lots in
// round-lot units.
func Size(cfg config.SizingConfig, entry float64, stop *float64) Suggestion {
	if stop == nil || !market.Defined(entry) || entry <= 0 || *stop <= 0 || *stop >= entry {
		return Suggestion{Stop: stop}
	}

	riskBudget := cfg.Capital * cfg.RiskPerTrade
	riskPerShare := entry - *stop
	byRisk := math.Floor(riskBudget / riskPerShare)
	byCap := math.Floor(cfg.Capital * cfg.MaxPositionPct / entry)

	shares := int64(math.Max(0, math.Min(byRisk, byCap)))
	lots := shares / market.RoundLot
	value := float64(shares) * entry

	return Suggestion{
		Stop:          stop,
		PositionValue: &value,
		Shares:        &shares,
		Lots:          &lots,
	}
}
