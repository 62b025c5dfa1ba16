package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"daypick/internal/market"
)

// CandidateRecord is the parquet row shape for candidate archives. Sizing
// columns are optional so null sizing stays distinguishable from zero.
type CandidateRecord struct {
	TradeDate     string   `parquet:"trade_date"`
	StockID       string   `parquet:"stock_id"`
	LeaderID      string   `parquet:"leader_id"`
	SectorID      string   `parquet:"sector_id"`
	ScoreSector   float64  `parquet:"score_sector"`
	ScoreLeader   float64  `parquet:"score_leader"`
	ScoreFollow   float64  `parquet:"score_follow"`
	ScoreTotal    float64  `parquet:"score_total"`
	SuggestEntry  float64  `parquet:"suggest_entry"`
	SuggestStop   *float64 `parquet:"suggest_stop,optional"`
	PositionValue *float64 `parquet:"position_value,optional"`
	Shares        *int64   `parquet:"shares,optional"`
	Lots          *int64   `parquet:"lots,optional"`
}

// WriteCandidatesParquet archives candidate rows as one parquet file.
func WriteCandidatesParquet(path string, rows []market.CandidateRow) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	records := make([]CandidateRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, CandidateRecord{
			TradeDate:     market.DayOf(row.TradeDate).Format(market.DateFormat),
			StockID:       row.StockID,
			LeaderID:      row.LeaderID,
			SectorID:      row.SectorID,
			ScoreSector:   row.ScoreSector,
			ScoreLeader:   row.ScoreLeader,
			ScoreFollow:   row.ScoreFollow,
			ScoreTotal:    row.ScoreTotal,
			SuggestEntry:  row.SuggestEntry,
			SuggestStop:   row.SuggestStop,
			PositionValue: row.PositionValue,
			Shares:        row.Shares,
			Lots:          row.Lots,
		})
	}
	return parquet.WriteFile(path, records)
}
