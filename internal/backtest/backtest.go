// Package backtest replays the candidate engine over a historical window.
// Each day is evaluated against only the history known by then, entries
// fill at the next day's open, exits at the close after the holding period,
// and position sizes track the running equity. Equity protection and the
// cost model plug in optionally.
package backtest

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"daypick/internal/config"
	"daypick/internal/costs"
	"daypick/internal/market"
	"daypick/internal/picker"
	"daypick/internal/protect"
)

// Clock supplies wall time so runs can be replayed under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Options selects the window and the execution assumptions.
type Options struct {
	Start        time.Time // zero means from the first date
	End          time.Time // zero means through the last date
	Capital      float64   // 0 falls back to the configured sizing capital
	RiskPerTrade float64   // 0 keeps the configured risk fraction
	MaxPositions int       // 0 defaults to 5
	HoldDays     int       // days between entry and exit close
	Protect      bool      // consult the equity guard between days
}

// CurvePoint is one equity observation, keyed by the entry date it settles.
type CurvePoint struct {
	TradeDate time.Time `json:"trade_date"`
	Equity    float64   `json:"equity"`
	NumTrades int       `json:"num_trades"`
	PnL       float64   `json:"pnl"`
}

// Result is a finished backtest.
type Result struct {
	GeneratedAt    time.Time      `json:"generated_at"`
	InitialCapital float64        `json:"initial_capital"`
	FinalEquity    float64        `json:"final_equity"`
	TotalReturnPct float64        `json:"total_return_pct"`
	Days           int            `json:"days"`
	Trades         int            `json:"trades"`
	Curve          []CurvePoint   `json:"curve"`
	Protection     *protect.Stats `json:"protection,omitempty"`
}

// Runner drives one backtest over a fixed configuration.
type Runner struct {
	cfg   *config.Config
	opts  Options
	clock Clock
}

// NewRunner builds a runner; options are validated at Run.
func NewRunner(cfg *config.Config, opts Options) *Runner {
	return &Runner{cfg: cfg, opts: opts, clock: systemClock{}}
}

// WithClock replaces the wall clock, for tests.
func (r *Runner) WithClock(c Clock) *Runner {
	r.clock = c
	return r
}

// Run replays the window against the supplied history. risk may be nil.
func (r *Runner) Run(h *market.History, meta *market.MetaTable, risk *market.RiskTable) (*Result, error) {
	opts := r.opts
	if !opts.Start.IsZero() && !opts.End.IsZero() && opts.Start.After(opts.End) {
		return nil, fmt.Errorf("backtest start %s after end %s",
			opts.Start.Format(market.DateFormat), opts.End.Format(market.DateFormat))
	}
	if opts.HoldDays < 0 {
		return nil, fmt.Errorf("hold days %d must be >= 0", opts.HoldDays)
	}
	maxPositions := opts.MaxPositions
	if maxPositions <= 0 {
		maxPositions = 5
	}
	capital := opts.Capital
	if capital <= 0 {
		capital = r.cfg.Sizing.Capital
	}

	var dates []time.Time
	for _, d := range h.Dates() {
		if !opts.Start.IsZero() && d.Before(market.DayOf(opts.Start)) {
			continue
		}
		if !opts.End.IsZero() && d.After(market.DayOf(opts.End)) {
			continue
		}
		dates = append(dates, d)
	}

	res := &Result{
		GeneratedAt:    r.clock.Now(),
		InitialCapital: capital,
		FinalEquity:    capital,
		Curve:          []CurvePoint{},
	}
	if len(dates) < 2 {
		log.Warn().Int("dates", len(dates)).Msg("backtest window too short")
		return res, nil
	}

	var guard *protect.Guard
	if opts.Protect {
		guard = protect.NewGuard(r.cfg.Protection, capital)
	}
	var model *costs.Model
	if r.cfg.Costs.Enabled {
		model = costs.NewModel(r.cfg.Costs)
	}

	equity := capital
	for i := 0; i+1 < len(dates); i++ {
		d, next := dates[i], dates[i+1]

		if guard != nil {
			guard.StartDay()
			if ok, reason := guard.CanTrade(); !ok {
				log.Warn().Str("date", d.Format(market.DateFormat)).Str("reason", reason).
					Msg("day skipped by equity protection")
				res.Curve = append(res.Curve, CurvePoint{TradeDate: next, Equity: equity})
				continue
			}
		}

		sizingCapital := equity
		if guard != nil {
			sizingCapital = equity * guard.Multiplier()
		}

		dayCfg := *r.cfg
		dayCfg.Sizing.Capital = sizingCapital
		if opts.RiskPerTrade > 0 {
			dayCfg.Sizing.RiskPerTrade = opts.RiskPerTrade
		}

		day := picker.New(&dayCfg).Run(d, h.Through(d), meta, risk)
		picks := day.Candidates
		if len(picks) > maxPositions {
			picks = picks[:maxPositions]
		}

		pnlTotal := 0.0
		trades := 0
		exitDate := dates[min(i+1+opts.HoldDays, len(dates)-1)]
		for _, pick := range picks {
			entryBar, ok := h.BarOn(next, pick.StockID)
			if !ok || !market.Defined(entryBar.Open) {
				continue
			}
			exitBar, ok := h.BarOn(exitDate, pick.StockID)
			if !ok || !market.Defined(exitBar.Close) {
				continue
			}
			if pick.Shares == nil || *pick.Shares <= 0 {
				continue
			}

			shares := *pick.Shares
			pnl := (exitBar.Close - entryBar.Open) * float64(shares)
			if model != nil {
				pnl = model.NetPnL(entryBar.Open, exitBar.Close, shares).Net.InexactFloat64()
			}
			pnlTotal += pnl
			trades++
		}

		equity += pnlTotal
		if guard != nil {
			guard.Update(pnlTotal, next)
		}
		res.Trades += trades
		res.Curve = append(res.Curve, CurvePoint{
			TradeDate: next,
			Equity:    equity,
			NumTrades: trades,
			PnL:       pnlTotal,
		})
		if trades > 0 {
			log.Debug().
				Str("date", d.Format(market.DateFormat)).
				Int("trades", trades).
				Float64("pnl", pnlTotal).
				Float64("equity", equity).
				Msg("backtest day settled")
		}
	}

	res.Days = len(res.Curve)
	res.FinalEquity = equity
	res.TotalReturnPct = (equity - capital) / capital * 100
	if guard != nil {
		stats := guard.Stats()
		res.Protection = &stats
	}
	log.Info().
		Int("days", res.Days).
		Int("trades", res.Trades).
		Float64("return_pct", res.TotalReturnPct).
		Msg("backtest finished")
	return res, nil
}
