// Package report renders one picker run into date-stamped artifacts under
// the out directory: the candidate CSV and JSON, a Markdown summary and the
// intermediate sector and feature tables.
package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"daypick/internal/backtest"
	fsio "daypick/internal/io"
	"daypick/internal/market"
	"daypick/internal/picker"
)

// Artifacts lists the files one picker run produced.
type Artifacts struct {
	RunID          string `json:"run_id"`
	CandidatesCSV  string `json:"candidates_csv"`
	CandidatesJSON string `json:"candidates_json"`
	SummaryMD      string `json:"summary_md"`
	SectorsCSV     string `json:"sectors_csv"`
	FeaturesCSV    string `json:"features_csv,omitempty"`
}

// BacktestArtifacts lists the files one backtest produced.
type BacktestArtifacts struct {
	JSON  string `json:"backtest_json"`
	Curve string `json:"equity_curve_csv"`
}

// Summary is the JSON envelope around one run's candidate rows.
type Summary struct {
	RunID         string                `json:"run_id"`
	GeneratedAt   time.Time             `json:"generated_at"`
	TradeDate     string                `json:"trade_date"`
	Mode          string                `json:"mode"`
	StrongSectors []string              `json:"strong_sectors"`
	Rows          int                   `json:"rows"`
	Candidates    []market.CandidateRow `json:"candidates"`
}

// Writer writes run artifacts into one directory.
type Writer struct {
	dir          string
	withFeatures bool
	now          func() time.Time
	newID        func() string
}

// NewWriter returns a writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now, newID: uuid.NewString}
}

// WithFeatures also writes the per-stock feature table, which is large.
func (w *Writer) WithFeatures() *Writer {
	w.withFeatures = true
	return w
}

// WriteRun writes the artifacts for one picker run. An empty candidate set
// still produces a header-only CSV and an empty JSON array.
func (w *Writer) WriteRun(res *picker.Result, meta *market.MetaTable, mode string) (*Artifacts, error) {
	date := market.DayOf(res.TradeDate).Format(market.DateFormat)
	a := &Artifacts{
		RunID:          w.newID(),
		CandidatesCSV:  filepath.Join(w.dir, "candidates_"+date+".csv"),
		CandidatesJSON: filepath.Join(w.dir, "candidates_"+date+".json"),
		SummaryMD:      filepath.Join(w.dir, "candidates_"+date+".md"),
		SectorsCSV:     filepath.Join(w.dir, "sectors_"+date+".csv"),
	}

	data, err := CandidatesCSV(res.Candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to render candidates csv: %w", err)
	}
	if err := fsio.WriteFileAtomic(a.CandidatesCSV, data); err != nil {
		return nil, fmt.Errorf("failed to write candidates csv: %w", err)
	}

	summary := Summary{
		RunID:         a.RunID,
		GeneratedAt:   w.now().UTC(),
		TradeDate:     date,
		Mode:          mode,
		StrongSectors: sectorIDs(res.StrongSectors),
		Rows:          len(res.Candidates),
		Candidates:    res.Candidates,
	}
	if err := fsio.WriteJSONAtomic(a.CandidatesJSON, summary); err != nil {
		return nil, fmt.Errorf("failed to write candidates json: %w", err)
	}

	if err := fsio.WriteFileAtomic(a.SummaryMD, markdown(summary, res, meta)); err != nil {
		return nil, fmt.Errorf("failed to write summary markdown: %w", err)
	}

	data, err = SectorsCSV(res.Sectors)
	if err != nil {
		return nil, fmt.Errorf("failed to render sectors csv: %w", err)
	}
	if err := fsio.WriteFileAtomic(a.SectorsCSV, data); err != nil {
		return nil, fmt.Errorf("failed to write sectors csv: %w", err)
	}

	if w.withFeatures {
		a.FeaturesCSV = filepath.Join(w.dir, "features_"+date+".csv")
		data, err := FeaturesCSV(res.Features)
		if err != nil {
			return nil, fmt.Errorf("failed to render features csv: %w", err)
		}
		if err := fsio.WriteFileAtomic(a.FeaturesCSV, data); err != nil {
			return nil, fmt.Errorf("failed to write features csv: %w", err)
		}
	}

	log.Info().
		Str("run_id", a.RunID).
		Str("trade_date", date).
		Int("rows", len(res.Candidates)).
		Str("dir", w.dir).
		Msg("wrote run artifacts")
	return a, nil
}

// WriteBacktest writes the backtest result JSON and its equity curve CSV.
func (w *Writer) WriteBacktest(res *backtest.Result, start, end time.Time) (*BacktestArtifacts, error) {
	span := market.DayOf(start).Format(market.DateFormat) + "_" + market.DayOf(end).Format(market.DateFormat)
	a := &BacktestArtifacts{
		JSON:  filepath.Join(w.dir, "backtest_"+span+".json"),
		Curve: filepath.Join(w.dir, "equity_curve_"+span+".csv"),
	}

	if err := fsio.WriteJSONAtomic(a.JSON, res); err != nil {
		return nil, fmt.Errorf("failed to write backtest json: %w", err)
	}

	data, err := CurveCSV(res.Curve)
	if err != nil {
		return nil, fmt.Errorf("failed to render equity curve: %w", err)
	}
	if err := fsio.WriteFileAtomic(a.Curve, data); err != nil {
		return nil, fmt.Errorf("failed to write equity curve: %w", err)
	}

	log.Info().
		Str("span", span).
		Int("days", res.Days).
		Int("trades", res.Trades).
		Msg("wrote backtest artifacts")
	return a, nil
}

func sectorIDs(sectors []market.SectorDaily) []string {
	ids := make([]string, 0, len(sectors))
	for _, s := range sectors {
		ids = append(ids, s.SectorID)
	}
	return ids
}

// markdown renders the human summary: run metadata plus the top ten rows
// with stock names resolved from meta.
func markdown(s Summary, res *picker.Result, meta *market.MetaTable) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Candidates %s\n\n", s.TradeDate)
	fmt.Fprintf(&b, "- Run: `%s`\n", s.RunID)
	fmt.Fprintf(&b, "- Generated: %s\n", s.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Mode: %s\n", s.Mode)
	strong := "none"
	if len(s.StrongSectors) > 0 {
		strong = strings.Join(s.StrongSectors, ", ")
	}
	fmt.Fprintf(&b, "- Strong sectors: %s\n", strong)
	fmt.Fprintf(&b, "- Rows: %d\n\n", s.Rows)

	if len(res.Candidates) == 0 {
		b.WriteString("No candidates passed the gates.\n")
		return []byte(b.String())
	}

	b.WriteString("| # | stock | name | sector | leader | total | entry | stop | shares | lots |\n")
	b.WriteString("|---|-------|------|--------|--------|-------|-------|------|--------|------|\n")
	top := res.Candidates
	if len(top) > 10 {
		top = top[:10]
	}
	for i, r := range top {
		name := ""
		if meta != nil {
			if m, ok := meta.Get(r.StockID); ok {
				name = m.StockName
			}
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %.4f | %.2f | %s | %s | %s |\n",
			i+1, r.StockID, name, r.SectorID, r.LeaderID,
			r.ScoreTotal, r.SuggestEntry,
			mdFloat(r.SuggestStop), mdInt(r.Shares), mdInt(r.Lots))
	}
	return []byte(b.String())
}

func mdFloat(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *p)
}

func mdInt(p *int64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *p)
}
