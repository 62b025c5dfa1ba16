// Package picker runs the full candidate selection pipeline for one
// evaluation date: universe filter, sector strength, leader detection,
// follower scoring and position sizing. The engine is a pure function of
// (date, history window, metadata, config); it performs no I/O and keeps
// no state between runs, so callers may evaluate many dates in parallel
// with their own windows.
package picker

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"daypick/internal/config"
	"daypick/internal/features"
	"daypick/internal/market"
	"daypick/internal/sector"
	"daypick/internal/sizing"
	"daypick/internal/stats"
	"daypick/internal/universe"
)

// Engine evaluates one date against a history window.
type Engine struct {
	cfg *config.Config
}

// New builds an engine over a validated configuration.
func New(cfg *config.Config) *Engine {
	return &Engine{cfg: cfg}
}

// Result is the full product of one evaluation: the ranked candidates plus
// the intermediate tables collaborators persist and render. Candidates is
// never nil; an empty run keeps the full output schema with zero rows.
type Result struct {
	TradeDate     time.Time              `json:"trade_date"`
	Candidates    []market.CandidateRow  `json:"candidates"`
	Features      []market.DailyFeatures `json:"features"`
	Sectors       []market.SectorDaily   `json:"sectors"`
	StrongSectors []market.SectorDaily   `json:"strong_sectors"`
}

// row is the per-stock working state for the evaluation date.
type row struct {
	bar         market.DailyBar
	feat        market.DailyFeatures
	sector      string
	sectorScore float64
	pctZ        float64
	volZ        float64
}

// scored pairs a working row with one stage's composite score.
type scored struct {
	r     *row
	score float64
}

// Run evaluates tradeDate against the supplied window. Empty intermediate
// stages produce an empty, fully-schematized result, never an error. risk
// may be nil.
func (e *Engine) Run(tradeDate time.Time, h *market.History, meta *market.MetaTable, risk *market.RiskTable) *Result {
	tradeDate = market.DayOf(tradeDate)
	cfg := e.cfg

	fset := features.Compute(h)
	eligible := universe.New(cfg.Universe, risk).FilterHistory(h)
	sectors := sector.Aggregate(eligible, meta, cfg.Sector.MtmLookback, cfg.Sector.Weights)

	res := &Result{
		TradeDate:  tradeDate,
		Candidates: []market.CandidateRow{},
		Features:   fset.Rows(),
		Sectors:    sectors.Rows(),
	}

	strong := sector.Strong(sectors.Day(tradeDate), cfg.Sector, cfg.Permissive())
	res.StrongSectors = strong
	log.Debug().
		Str("date", tradeDate.Format(market.DateFormat)).
		Int("eligible", len(eligible.Day(tradeDate))).
		Int("strong_sectors", len(strong)).
		Msg("sector stage")
	if len(strong) == 0 {
		return res
	}

	rows := e.buildRows(tradeDate, eligible, fset, meta, strong)

	leaders := e.selectLeaders(rows)
	followers := e.selectFollowers(rows)
	log.Debug().
		Int("rows", len(rows)).
		Int("leaders", len(leaders)).
		Int("followers", len(followers)).
		Msg("picker stage")
	if len(leaders) == 0 || len(followers) == 0 {
		return res
	}

	best := bestLeaderPerSector(leaders)
	prevDate, hasPrev := h.PrevDate(tradeDate)

	for _, f := range followers {
		lead, ok := best[f.r.sector]
		if !ok {
			continue
		}

		cand := market.CandidateRow{
			TradeDate:   tradeDate,
			StockID:     f.r.bar.StockID,
			LeaderID:    lead.r.bar.StockID,
			SectorID:    f.r.sector,
			ScoreSector: market.Or(f.r.sectorScore, 0),
			ScoreLeader: lead.score,
			ScoreFollow: f.score,
		}
		cand.ScoreTotal = cfg.Total.ScoreSector*cand.ScoreSector +
			cfg.Total.ScoreLeader*market.Or(cand.ScoreLeader, 0) +
			cfg.Total.ScoreFollow*market.Or(cand.ScoreFollow, 0)

		cand.SuggestEntry = f.r.bar.Close
		var stop *float64
		if hasPrev {
			if pb, ok := h.BarOn(prevDate, f.r.bar.StockID); ok {
				stop = sizing.SuggestStop(pb.Low, cfg.Sizing.StopBufferPct)
			}
		}
		sz := sizing.Size(cfg.Sizing, cand.SuggestEntry, stop)
		cand.SuggestStop = sz.Stop
		cand.PositionValue = sz.PositionValue
		cand.Shares = sz.Shares
		cand.Lots = sz.Lots

		res.Candidates = append(res.Candidates, cand)
	}

	sort.SliceStable(res.Candidates, func(i, j int) bool {
		return stats.ScoreLess(res.Candidates[j].ScoreTotal, res.Candidates[i].ScoreTotal)
	})
	return res
}

// buildRows assembles the strong-sector working rows for the date and
// fills the sector-relative z columns both picker stages share.
func (e *Engine) buildRows(tradeDate time.Time, eligible *market.History, fset *features.Set, meta *market.MetaTable, strong []market.SectorDaily) []*row {
	strongScore := make(map[string]float64, len(strong))
	for _, s := range strong {
		strongScore[s.SectorID] = s.Score
	}

	var rows []*row
	for _, b := range eligible.Day(tradeDate) {
		sid := meta.SectorOf(b.StockID)
		sc, ok := strongScore[sid]
		if !ok {
			continue
		}
		f, ok := fset.On(tradeDate, b.StockID)
		if !ok {
			f = market.DailyFeatures{
				TradeDate: tradeDate, StockID: b.StockID,
				MA5: market.NA(), MA10: market.NA(), MA20: market.NA(),
				Vol20Avg: market.NA(), VolRatio: market.NA(), High20: market.NA(),
				DistToHigh: market.NA(), IntradayPos: market.NA(),
			}
		}
		rows = append(rows, &row{bar: b, feat: f, sector: sid, sectorScore: sc})
	}

	keys := make([]string, len(rows))
	pcts := make([]float64, len(rows))
	vols := make([]float64, len(rows))
	for i, r := range rows {
		keys[i] = r.sector
		pcts[i] = r.bar.PctChange
		vols[i] = r.feat.VolRatio
	}
	pctZ := stats.StandardizeBy(keys, pcts)
	volZ := stats.StandardizeBy(keys, vols)
	for i, r := range rows {
		r.pctZ = pctZ[i]
		r.volZ = volZ[i]
	}
	return rows
}

// bestLeaderPerSector collapses each sector's leaders to the single top
// scorer; ties keep the earlier row in the ranked order.
func bestLeaderPerSector(leaders []scored) map[string]scored {
	best := make(map[string]scored)
	for _, s := range leaders {
		cur, ok := best[s.r.sector]
		if !ok || stats.ScoreLess(cur.score, s.score) {
			best[s.r.sector] = s
		}
	}
	return best
}
