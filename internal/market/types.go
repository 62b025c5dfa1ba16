// Package market defines the tabular row types the picker pipeline consumes
// and produces, plus the undefined-value conventions shared by every stage.
package market

import "time"

// DateFormat is the wire format for trade dates across CSV, JSON and flags.
const DateFormat = "2006-01-02"

// RoundLot is the minimum tradable unit on TWSE/TPEX.
const RoundLot = 1000

// SectorUnknown marks stocks with no sector mapping.
const SectorUnknown = "UNKNOWN"

// DailyBar is one stock's snapshot for one trading day. Numeric fields use
// NaN for values the source did not report (see na.go). Bars are never
// mutated after load.
type DailyBar struct {
	TradeDate   time.Time `json:"trade_date"`
	StockID     string    `json:"stock_id"`
	StockName   string    `json:"stock_name,omitempty"`
	Market      string    `json:"market,omitempty"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	PctChange   float64   `json:"pct_change"`
	Volume      float64   `json:"volume"`
	Turnover    float64   `json:"turnover"`
	IsLimitUp   bool      `json:"is_limit_up"`
	IsLimitDown bool      `json:"is_limit_down"`
}

// StockMeta carries the caller-supplied classification for one stock.
type StockMeta struct {
	StockID   string `json:"stock_id"`
	StockName string `json:"stock_name"`
	Market    string `json:"market"`
	SectorID  string `json:"sector_id"`
}

// RiskFlags marks broker-level trading restrictions for one stock.
type RiskFlags struct {
	StockID        string  `json:"stock_id"`
	IsDisposed     bool    `json:"is_disposed"`
	IsFullMargin   bool    `json:"is_full_margin"`
	LiquidityScore float64 `json:"liquidity_score"`
	IsBlacklist    bool    `json:"is_blacklist"`
}

// DailyFeatures holds the rolling-window features for one (date, stock).
// Window fields are NaN until a full window of history exists; IntradayPos
// is NaN on flat or limit-locked days (high == low).
type DailyFeatures struct {
	TradeDate   time.Time `json:"trade_date"`
	StockID     string    `json:"stock_id"`
	MA5         float64   `json:"ma5"`
	MA10        float64   `json:"ma10"`
	MA20        float64   `json:"ma20"`
	Vol20Avg    float64   `json:"vol_20d_avg"`
	VolRatio    float64   `json:"vol_ratio_20d"`
	High20      float64   `json:"high_20d"`
	Is20DayHigh bool      `json:"is_20d_high"`
	DistToHigh  float64   `json:"dist_20d_high"`
	IntradayPos float64   `json:"pos_in_day"`
}

// SectorDaily is the cross-sectional aggregate for one (date, sector).
type SectorDaily struct {
	TradeDate time.Time `json:"trade_date"`
	SectorID  string    `json:"sector_id"`
	AvgPct    float64   `json:"avg_pct_change"`
	MedianPct float64   `json:"median_pct_change"`
	UpRatio   float64   `json:"up_ratio"`
	NumUp3    int       `json:"num_up_3"`
	Momentum  float64   `json:"sector_mtm"`
	MomentumZ float64   `json:"sector_mtm_z"`
	Score     float64   `json:"sector_score"`
}

// CandidateRow is one surviving (sector, follower) pairing with its suggested
// position. Pointer fields are null when sizing is undefined for the row.
type CandidateRow struct {
	TradeDate     time.Time `json:"trade_date"`
	StockID       string    `json:"stock_id"`
	LeaderID      string    `json:"leader_id"`
	SectorID      string    `json:"sector_id"`
	ScoreSector   float64   `json:"score_sector"`
	ScoreLeader   float64   `json:"score_leader"`
	ScoreFollow   float64   `json:"score_follow"`
	ScoreTotal    float64   `json:"score_total"`
	SuggestEntry  float64   `json:"suggest_entry"`
	SuggestStop   *float64  `json:"suggest_stop"`
	PositionValue *float64  `json:"position_value"`
	Shares        *int64    `json:"shares"`
	Lots          *int64    `json:"lots"`
}

// EquityPoint is one account-equity observation on a curve.
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}

// CandidateColumns is the output schema in column order. An empty result
// still carries this schema.
var CandidateColumns = []string{
	"trade_date", "stock_id", "leader_id", "sector_id",
	"score_sector", "score_leader", "score_follow", "score_total",
	"suggest_entry", "suggest_stop", "position_value", "shares", "lots",
}

// Date truncates t to a UTC calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DayOf normalizes any timestamp to its UTC calendar day, the canonical
// form trade dates travel in.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD trade date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateFormat, s)
}
