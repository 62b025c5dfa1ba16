package picker

import "daypick/internal/market"

// selectFollowers finds the stocks trailing their sector's move with a
// favorable entry profile: still climbing but inside the configured band,
// volume confirming without exhaustion, trading above both the 5- and
// 20-day averages and close to the recent high. Permissive mode falls
// back to the pct_change band alone when the strict predicate empties, so
// ranking behavior stays observable in demos.
func (e *Engine) selectFollowers(rows []*row) []scored {
	fc := e.cfg.Follower

	var picked []*row
	for _, r := range rows {
		if market.Within(r.bar.PctChange, fc.PctChangeMin, fc.PctChangeMax) &&
			market.Within(r.feat.VolRatio, fc.VolRatioMin, fc.VolRatioMax) &&
			market.Above(r.bar.Close, r.feat.MA5) &&
			market.Above(r.bar.Close, r.feat.MA20) &&
			market.AtMost(r.feat.DistToHigh, fc.ThreshDistHigh) {
			picked = append(picked, r)
		}
	}

	if len(picked) == 0 && e.cfg.Permissive() {
		for _, r := range rows {
			if market.Within(r.bar.PctChange, fc.PctChangeMin, fc.PctChangeMax) {
				picked = append(picked, r)
			}
		}
	}

	out := make([]scored, 0, len(picked))
	for _, r := range picked {
		s := fc.Weights.PctChangeZ*market.Or(r.pctZ, 0) +
			fc.Weights.VolRatioZ*market.Or(r.volZ, 0) +
			fc.Weights.OneMinusDist*(1.0-market.Or(r.feat.DistToHigh, 1.0)) +
			fc.Weights.PosInDay*market.Or(r.feat.IntradayPos, 0)
		out = append(out, scored{r: r, score: s})
	}
	return out
}
