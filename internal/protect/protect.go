// Package protect guards the equity curve during live runs and backtests.
// A state machine watches daily loss, drawdown and losing streaks, scales
// the allowed position size down as conditions worsen and suspends trading
// past the hard limits.
package protect

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"daypick/internal/config"
	"daypick/internal/market"
)

// Status is the guard's trading state.
type Status string

const (
	// StatusActive trades at full size.
	StatusActive Status = "active"
	// StatusReduced trades at half size after a losing streak.
	StatusReduced Status = "reduced"
	// StatusSuspended blocks trading entirely.
	StatusSuspended Status = "suspended"
	// StatusRecovery trades cautiously after a suspension or streak ends.
	StatusRecovery Status = "recovery"
)

// Guard tracks one account's equity and protection state. Methods are not
// safe for concurrent use; drive it from a single loop.
type Guard struct {
	cfg     config.ProtectionConfig
	initial float64
	capital float64
	peak    float64

	dailyPnL    float64
	drawdown    float64
	maxDrawdown float64

	state         Status
	wins          int
	losses        int
	suspendedAt   time.Time
	suspendReason string

	curve    []market.EquityPoint
	trades   int
	winners  int
	losers   int
	sumWins  float64
	sumLoss  float64
}

// NewGuard starts a guard at the given capital in the active state.
func NewGuard(cfg config.ProtectionConfig, capital float64) *Guard {
	return &Guard{
		cfg:     cfg,
		initial: capital,
		capital: capital,
		peak:    capital,
		state:   StatusActive,
	}
}

// Snapshot is the guard's view after one update.
type Snapshot struct {
	Capital    float64 `json:"capital"`
	PnL        float64 `json:"pnl"`
	DailyPnL   float64 `json:"daily_pnl"`
	Drawdown   float64 `json:"drawdown"`
	Status     Status  `json:"status"`
	Triggered  bool    `json:"triggered"`
	Multiplier float64 `json:"multiplier"`
}

// Update books one trade's pnl at ts, re-evaluates the protection rules and
// returns the resulting state. ts also drives the suspension clock, so
// replayed histories recover on their own timeline.
func (g *Guard) Update(pnl float64, ts time.Time) Snapshot {
	g.capital += pnl
	g.dailyPnL += pnl
	g.curve = append(g.curve, market.EquityPoint{Date: ts, Equity: g.capital})

	if g.capital > g.peak {
		g.peak = g.capital
	}
	g.drawdown = (g.peak - g.capital) / g.peak
	if g.drawdown > g.maxDrawdown {
		g.maxDrawdown = g.drawdown
	}

	g.trades++
	switch {
	case pnl > 0:
		g.wins++
		g.losses = 0
		g.winners++
		g.sumWins += pnl
	case pnl < 0:
		g.losses++
		g.wins = 0
		g.losers++
		g.sumLoss += pnl
	}

	triggered := g.check(ts)

	return Snapshot{
		Capital:    g.capital,
		PnL:        pnl,
		DailyPnL:   g.dailyPnL,
		Drawdown:   g.drawdown,
		Status:     g.state,
		Triggered:  triggered,
		Multiplier: g.Multiplier(),
	}
}

func (g *Guard) check(ts time.Time) bool {
	triggered := false

	if loss := g.dailyLossFrac(); loss >= g.cfg.MaxDailyLossPct/100 {
		g.suspend(ts, fmt.Sprintf("daily loss %.2f%% breached the %.2f%% limit",
			loss*100, g.cfg.MaxDailyLossPct))
		triggered = true
	}
	if g.drawdown >= g.cfg.MaxDrawdownPct/100 {
		g.suspend(ts, fmt.Sprintf("drawdown %.2f%% breached the %.2f%% limit",
			g.drawdown*100, g.cfg.MaxDrawdownPct))
		triggered = true
	}
	if g.losses >= g.cfg.ConsecutiveLossLimit {
		if g.state == StatusActive {
			g.state = StatusReduced
			log.Warn().Int("losses", g.losses).Msg("losing streak, position size reduced")
		}
		triggered = true
	}

	g.recover(ts)
	return triggered
}

func (g *Guard) dailyLossFrac() float64 {
	if g.dailyPnL >= 0 {
		return 0
	}
	return -g.dailyPnL / g.initial
}

func (g *Guard) suspend(ts time.Time, reason string) {
	if !g.cfg.AutoSuspend {
		log.Warn().Str("reason", reason).Msg("protection triggered, auto suspend disabled")
		return
	}
	g.state = StatusSuspended
	g.suspendedAt = ts
	g.suspendReason = reason
	log.Error().Str("reason", reason).Msg("trading suspended")
}

func (g *Guard) recover(ts time.Time) {
	switch g.state {
	case StatusSuspended:
		waited := ts.Sub(g.suspendedAt)
		if waited >= time.Duration(g.cfg.RecoveryPeriodDays)*24*time.Hour {
			g.state = StatusRecovery
			log.Info().Msg("suspension period over, entering recovery")
		}
	case StatusReduced:
		if g.wins >= 2 {
			g.state = StatusRecovery
			log.Info().Int("wins", g.wins).Msg("streak broken, entering recovery")
		}
	case StatusRecovery:
		if g.wins >= 3 && g.drawdown < g.cfg.MaxDrawdownPct/100/2 {
			g.state = StatusActive
			g.losses = 0
			log.Info().Msg("trading back to normal")
		}
	}
}

// Multiplier returns the position-size multiplier in [0,1] for the current
// state. With scaling disabled it is all-or-nothing.
func (g *Guard) Multiplier() float64 {
	if !g.cfg.PositionScaling {
		if g.state == StatusActive {
			return 1.0
		}
		return 0.0
	}

	var base float64
	switch g.state {
	case StatusSuspended:
		return 0.0
	case StatusReduced:
		base = 0.5
	case StatusRecovery:
		base = 0.7
	default:
		base = 1.0
	}

	ddFactor := 1.0
	if g.drawdown > 0 {
		ddFactor = max(0.5, 1.0-g.drawdown/(g.cfg.MaxDrawdownPct/100))
	}
	lossFactor := 1.0
	if g.losses > 0 {
		lossFactor = max(0.5, 1.0-0.1*float64(g.losses))
	}

	m := base * ddFactor * lossFactor
	return max(0.0, min(1.0, m))
}

// CanTrade reports whether new positions may open, with the blocking reason.
func (g *Guard) CanTrade() (bool, string) {
	if g.state == StatusSuspended {
		return false, "suspended: " + g.suspendReason
	}
	if loss := g.dailyLossFrac(); loss >= g.cfg.MaxDailyLossPct/100 {
		return false, fmt.Sprintf("daily loss limit %.1f%% reached", g.cfg.MaxDailyLossPct)
	}
	if g.drawdown >= g.cfg.MaxDrawdownPct/100 {
		return false, fmt.Sprintf("max drawdown %.1f%% reached", g.cfg.MaxDrawdownPct)
	}
	return true, ""
}

// StartDay resets the daily pnl accumulator at the session open.
func (g *Guard) StartDay() { g.dailyPnL = 0 }

// State returns the current trading state.
func (g *Guard) State() Status { return g.state }

// Capital returns the current equity.
func (g *Guard) Capital() float64 { return g.capital }

// Curve returns one equity point per booked trade, in booking order.
func (g *Guard) Curve() []market.EquityPoint { return g.curve }

// Stats summarizes the guarded run.
type Stats struct {
	InitialCapital     float64 `json:"initial_capital"`
	CurrentCapital     float64 `json:"current_capital"`
	PeakCapital        float64 `json:"peak_capital"`
	TotalPnL           float64 `json:"total_pnl"`
	TotalReturnPct     float64 `json:"total_return_pct"`
	CurrentDrawdownPct float64 `json:"current_drawdown_pct"`
	MaxDrawdownPct     float64 `json:"max_drawdown_pct"`
	Status             Status  `json:"status"`
	Trades             int     `json:"trades"`
	WinningTrades      int     `json:"winning_trades"`
	LosingTrades       int     `json:"losing_trades"`
	WinRatePct         float64 `json:"win_rate_pct"`
	ConsecutiveWins    int     `json:"consecutive_wins"`
	ConsecutiveLosses  int     `json:"consecutive_losses"`
	AvgProfit          float64 `json:"avg_profit"`
	AvgLoss            float64 `json:"avg_loss"`
	ProfitFactor       float64 `json:"profit_factor"`
	Multiplier         float64 `json:"multiplier"`
}

// Stats returns the run summary so far.
func (g *Guard) Stats() Stats {
	s := Stats{
		InitialCapital:     g.initial,
		CurrentCapital:     g.capital,
		PeakCapital:        g.peak,
		TotalPnL:           g.capital - g.initial,
		TotalReturnPct:     (g.capital - g.initial) / g.initial * 100,
		CurrentDrawdownPct: g.drawdown * 100,
		MaxDrawdownPct:     g.maxDrawdown * 100,
		Status:             g.state,
		Trades:             g.trades,
		WinningTrades:      g.winners,
		LosingTrades:       g.trades - g.winners,
		ConsecutiveWins:    g.wins,
		ConsecutiveLosses:  g.losses,
		Multiplier:         g.Multiplier(),
	}
	if g.trades > 0 {
		s.WinRatePct = float64(g.winners) / float64(g.trades) * 100
	}
	if g.winners > 0 {
		s.AvgProfit = g.sumWins / float64(g.winners)
	}
	if g.losers > 0 {
		s.AvgLoss = g.sumLoss / float64(g.losers)
		s.ProfitFactor = g.sumWins / -g.sumLoss
	}
	return s
}
