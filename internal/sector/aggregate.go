// Package sector aggregates the eligible universe into per-sector daily
// momentum rows and selects the strong sectors an evaluation date trades.
package sector

import (
	"sort"
	"time"

	"daypick/internal/config"
	"daypick/internal/market"
	"daypick/internal/stats"
)

// UpMoveThresholdPct is the daily gain that counts a stock into NumUp3.
const UpMoveThresholdPct = 3.0

// Table holds sector aggregates indexed by trade date.
type Table struct {
	rows   []market.SectorDaily
	byDate map[time.Time][]market.SectorDaily
}

// Aggregate computes one row per (date, sector) over the eligible history.
// Momentum is the trailing mean of the sector's average pct_change over
// lookback days; its z-score is cross-sectional across sectors per date,
// with zero-variance days standardizing to exactly 0. The composite score
// uses weights w and is computed for every sector, strong or not.
func Aggregate(h *market.History, meta *market.MetaTable, lookback int, w config.SectorWeights) *Table {
	t := &Table{byDate: make(map[time.Time][]market.SectorDaily)}

	// Per-sector series of average pct_change, date ascending, for the
	// momentum window.
	type sectorDay struct {
		avg, median, upRatio float64
		numUp3               int
	}
	perSector := make(map[string]map[time.Time]sectorDay)
	sectorIDs := make(map[string]bool)

	for _, d := range h.Dates() {
		groups := make(map[string][]float64)
		for _, b := range h.Day(d) {
			sid := meta.SectorOf(b.StockID)
			groups[sid] = append(groups[sid], b.PctChange)
		}
		for sid, pcts := range groups {
			up, up3 := 0, 0
			for _, p := range pcts {
				if market.Above(p, 0) {
					up++
				}
				if market.AtLeast(p, UpMoveThresholdPct) {
					up3++
				}
			}
			day := sectorDay{
				avg:     stats.Mean(pcts),
				median:  stats.Median(pcts),
				upRatio: float64(up) / float64(len(pcts)),
				numUp3:  up3,
			}
			if perSector[sid] == nil {
				perSector[sid] = make(map[time.Time]sectorDay)
			}
			perSector[sid][d] = day
			sectorIDs[sid] = true
		}
	}

	ids := make([]string, 0, len(sectorIDs))
	for sid := range sectorIDs {
		ids = append(ids, sid)
	}
	sort.Strings(ids)

	// Momentum per sector over its own date axis.
	momentum := make(map[string]map[time.Time]float64)
	for _, sid := range ids {
		var dates []time.Time
		for _, d := range h.Dates() {
			if _, ok := perSector[sid][d]; ok {
				dates = append(dates, d)
			}
		}
		avgs := make([]float64, len(dates))
		for i, d := range dates {
			avgs[i] = perSector[sid][d].avg
		}
		mtm := stats.RollingMean(avgs, lookback)
		momentum[sid] = make(map[time.Time]float64, len(dates))
		for i, d := range dates {
			momentum[sid][d] = mtm[i]
		}
	}

	// Assemble rows date by date; z-scores are cross-sectional per date.
	for _, d := range h.Dates() {
		var dayIDs []string
		for _, sid := range ids {
			if _, ok := perSector[sid][d]; ok {
				dayIDs = append(dayIDs, sid)
			}
		}
		avgs := make([]float64, len(dayIDs))
		mtms := make([]float64, len(dayIDs))
		for i, sid := range dayIDs {
			avgs[i] = perSector[sid][d].avg
			mtms[i] = momentum[sid][d]
		}
		avgZ := stats.Standardize(avgs)
		mtmZ := stats.Standardize(mtms)

		for i, sid := range dayIDs {
			sd := perSector[sid][d]
			row := market.SectorDaily{
				TradeDate: d,
				SectorID:  sid,
				AvgPct:    sd.avg,
				MedianPct: sd.median,
				UpRatio:   sd.upRatio,
				NumUp3:    sd.numUp3,
				Momentum:  momentum[sid][d],
				MomentumZ: mtmZ[i],
			}
			row.Score = w.AvgPctChangeZ*avgZ[i] +
				w.MtmZ*market.Or(row.MomentumZ, 0) +
				w.UpRatio*market.Or(row.UpRatio, 0)
			t.rows = append(t.rows, row)
			t.byDate[d] = append(t.byDate[d], row)
		}
	}
	return t
}

// Rows returns every aggregate sorted by (date, sector id).
func (t *Table) Rows() []market.SectorDaily { return t.rows }

// Day returns one date's aggregates, sector id ascending.
func (t *Table) Day(d time.Time) []market.SectorDaily { return t.byDate[d] }

// Strong returns the sectors passing all three strong-sector thresholds on
// one date. With zero passers and permissive mode, the top-K sectors by
// composite score stand in so experimentation never blocks downstream;
// strict mode returns the empty set as-is.
func Strong(day []market.SectorDaily, cfg config.SectorConfig, permissive bool) []market.SectorDaily {
	var out []market.SectorDaily
	for _, s := range day {
		if market.AtLeast(s.AvgPct, cfg.ThreshAvgPct) &&
			market.AtLeast(s.UpRatio, cfg.ThreshUpRatio) &&
			market.Or(s.MomentumZ, 0) >= cfg.ThreshMtmZ {
			out = append(out, s)
		}
	}
	if len(out) > 0 || !permissive {
		return out
	}

	ranked := make([]market.SectorDaily, len(day))
	copy(ranked, day)
	sort.SliceStable(ranked, func(i, j int) bool {
		return stats.ScoreLess(ranked[j].Score, ranked[i].Score)
	})
	if len(ranked) > cfg.FallbackTopK {
		ranked = ranked[:cfg.FallbackTopK]
	}
	return ranked
}
