package report

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"daypick/internal/backtest"
	"daypick/internal/market"
)

// SectorColumns is the sector table schema in column order.
var SectorColumns = []string{
	"trade_date", "sector_id", "avg_pct_change", "median_pct_change",
	"up_ratio", "num_up_3", "sector_mtm", "sector_mtm_z", "sector_score",
}

// FeatureColumns is the feature table schema in column order.
var FeatureColumns = []string{
	"trade_date", "stock_id", "ma5", "ma10", "ma20", "vol_20d_avg",
	"vol_ratio_20d", "high_20d", "is_20d_high", "dist_20d_high", "pos_in_day",
}

// CandidatesCSV renders rows under the canonical output schema. An empty
// set still carries the header; null sizing cells are blank.
func CandidatesCSV(rows []market.CandidateRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(market.CandidateColumns); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := []string{
			market.DayOf(r.TradeDate).Format(market.DateFormat),
			r.StockID,
			r.LeaderID,
			r.SectorID,
			formatFloat(r.ScoreSector),
			formatFloat(r.ScoreLeader),
			formatFloat(r.ScoreFollow),
			formatFloat(r.ScoreTotal),
			formatFloat(r.SuggestEntry),
			floatPtrCell(r.SuggestStop),
			floatPtrCell(r.PositionValue),
			intPtrCell(r.Shares),
			intPtrCell(r.Lots),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// SectorsCSV renders the per-day sector aggregates.
func SectorsCSV(rows []market.SectorDaily) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(SectorColumns); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := []string{
			market.DayOf(r.TradeDate).Format(market.DateFormat),
			r.SectorID,
			formatFloat(r.AvgPct),
			formatFloat(r.MedianPct),
			formatFloat(r.UpRatio),
			strconv.Itoa(r.NumUp3),
			formatFloat(r.Momentum),
			formatFloat(r.MomentumZ),
			formatFloat(r.Score),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// FeaturesCSV renders the per-stock rolling features.
func FeaturesCSV(rows []market.DailyFeatures) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(FeatureColumns); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := []string{
			market.DayOf(r.TradeDate).Format(market.DateFormat),
			r.StockID,
			formatFloat(r.MA5),
			formatFloat(r.MA10),
			formatFloat(r.MA20),
			formatFloat(r.Vol20Avg),
			formatFloat(r.VolRatio),
			formatFloat(r.High20),
			strconv.FormatBool(r.Is20DayHigh),
			formatFloat(r.DistToHigh),
			formatFloat(r.IntradayPos),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// CurveCSV renders the per-day backtest equity curve.
func CurveCSV(points []backtest.CurvePoint) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"trade_date", "equity", "num_trades", "pnl"}); err != nil {
		return nil, err
	}
	for _, p := range points {
		rec := []string{
			market.DayOf(p.TradeDate).Format(market.DateFormat),
			formatFloat(p.Equity),
			strconv.Itoa(p.NumTrades),
			formatFloat(p.PnL),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// formatFloat renders a float cell, leaving undefined values blank.
func formatFloat(v float64) string {
	if !market.Defined(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func floatPtrCell(p *float64) string {
	if p == nil {
		return ""
	}
	return formatFloat(*p)
}

func intPtrCell(p *int64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(*p, 10)
}
