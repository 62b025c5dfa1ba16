package picker

import (
	"math"
	"sort"

	"daypick/internal/market"
	"daypick/internal/stats"
)

// selectLeaders finds the stocks whose signature defines their sector's
// move: a large gain on surging volume, printing a 20-day high, closing
// near the top of the day's range. When no stock clears the strict
// predicate, two opt-in fallback tiers can relax it: the percentile tier
// (top_pct_in_sector > 0) keeps the top slice of each sector by
// pct_change, and permissive mode admits whole sectors ranked the same
// way. Selected rows are scored and truncated to the configured top N per
// sector.
func (e *Engine) selectLeaders(rows []*row) []scored {
	lc := e.cfg.Leader

	var picked []*row
	for _, r := range rows {
		if market.AtLeast(r.bar.PctChange, lc.ThreshPct) &&
			market.AtLeast(r.feat.VolRatio, lc.ThreshVolRatio) &&
			r.feat.Is20DayHigh &&
			market.AtLeast(r.feat.IntradayPos, lc.ThreshPos) {
			picked = append(picked, r)
		}
	}

	if len(picked) == 0 {
		switch {
		case lc.FallbackTopPct > 0:
			picked = topPercentByPct(rows, lc.FallbackTopPct)
		case e.cfg.Permissive():
			picked = append([]*row(nil), rows...)
		}
	}
	if len(picked) == 0 {
		return nil
	}

	out := make([]scored, 0, len(picked))
	for _, r := range picked {
		s := lc.Weights.PctChangeZ*market.Or(r.pctZ, 0) +
			lc.Weights.VolRatioZ*market.Or(r.volZ, 0) +
			lc.Weights.PosInDay*market.Or(r.feat.IntradayPos, 0)
		out = append(out, scored{r: r, score: s})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].r.sector != out[j].r.sector {
			return out[i].r.sector < out[j].r.sector
		}
		return stats.ScoreLess(out[j].score, out[i].score)
	})

	kept := out[:0]
	perSector := make(map[string]int)
	for _, s := range out {
		if perSector[s.r.sector] < lc.TopNPerSector {
			kept = append(kept, s)
			perSector[s.r.sector]++
		}
	}
	return kept
}

// topPercentByPct keeps each sector's top round(n*pct) stocks by
// pct_change, never fewer than one per sector.
func topPercentByPct(rows []*row, pct float64) []*row {
	bySector := make(map[string][]*row)
	var sectors []string
	for _, r := range rows {
		if _, seen := bySector[r.sector]; !seen {
			sectors = append(sectors, r.sector)
		}
		bySector[r.sector] = append(bySector[r.sector], r)
	}
	sort.Strings(sectors)

	var out []*row
	for _, sid := range sectors {
		g := append([]*row(nil), bySector[sid]...)
		sort.SliceStable(g, func(i, j int) bool {
			return stats.ScoreLess(g[j].bar.PctChange, g[i].bar.PctChange)
		})
		cut := int(math.Round(float64(len(g)) * pct))
		if cut < 1 {
			cut = 1
		}
		if cut > len(g) {
			cut = len(g)
		}
		out = append(out, g[:cut]...)
	}
	return out
}
