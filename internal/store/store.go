// Package store persists the one-file-per-day market history and the
// classification sidecars the picker joins against. Day files are plain
// CSV named market_YYYY-MM-DD.csv; optional Redis, Postgres and Parquet
// layers sit on top of the same codec.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	fsio "daypick/internal/io"
	"daypick/internal/market"
)

// Store reads and writes day files under one directory.
type Store struct {
	dir string
}

// New returns a store rooted at dir. The directory is created on first write.
func New(dir string) *Store { return &Store{dir: dir} }

// Dir returns the store root.
func (s *Store) Dir() string { return s.dir }

// DayPath returns the canonical day-file path for a trade date.
func (s *Store) DayPath(date time.Time) string {
	return filepath.Join(s.dir, "market_"+market.DayOf(date).Format(market.DateFormat)+".csv")
}

// Dates lists the day-file dates at or before end, oldest first, keeping
// only the newest historyDays entries. historyDays <= 0 keeps everything.
func (s *Store) Dates(end time.Time, historyDays int) ([]time.Time, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read market dir %s: %w", s.dir, err)
	}
	day := market.DayOf(end)
	var dates []time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		d, ok := parseDayFilename(e.Name())
		if !ok || d.After(day) {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	if historyDays > 0 && len(dates) > historyDays {
		dates = dates[len(dates)-historyDays:]
	}
	return dates, nil
}

// LoadHistory loads the newest historyDays day files dated at or before end
// into one history. Stock metadata comes from the most recent file; sectors
// stay UNKNOWN until a themes mapping is applied.
func (s *Store) LoadHistory(end time.Time, historyDays int) (*market.History, []market.StockMeta, error) {
	dates, err := s.Dates(end, historyDays)
	if err != nil {
		return nil, nil, err
	}
	if len(dates) == 0 {
		return nil, nil, errNoDayFiles(s.dir, end)
	}
	h, meta, err := assembleHistory(dates, s.LoadDay)
	if err != nil {
		return nil, nil, err
	}
	log.Debug().
		Str("dir", s.dir).
		Int("days", len(dates)).
		Str("first", dates[0].Format(market.DateFormat)).
		Str("last", dates[len(dates)-1].Format(market.DateFormat)).
		Msg("loaded market history")
	return h, meta, nil
}

// LoadDay reads and decodes one day file.
func (s *Store) LoadDay(date time.Time) ([]market.DailyBar, error) {
	data, err := s.DayBytes(date)
	if err != nil {
		return nil, err
	}
	bars, err := DecodeDay(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(s.DayPath(date)), err)
	}
	return bars, nil
}

// DayBytes returns the raw CSV bytes of one day file.
func (s *Store) DayBytes(date time.Time) ([]byte, error) {
	return os.ReadFile(s.DayPath(date))
}

// WriteDay encodes bars and writes the day file atomically.
func (s *Store) WriteDay(date time.Time, bars []market.DailyBar) error {
	data, err := EncodeDay(bars)
	if err != nil {
		return err
	}
	return fsio.WriteFileAtomic(s.DayPath(date), data)
}

// MetaFromBars extracts one StockMeta per stock, first occurrence wins.
func MetaFromBars(bars []market.DailyBar) []market.StockMeta {
	seen := make(map[string]struct{}, len(bars))
	meta := make([]market.StockMeta, 0, len(bars))
	for _, b := range bars {
		if _, ok := seen[b.StockID]; ok {
			continue
		}
		seen[b.StockID] = struct{}{}
		meta = append(meta, market.StockMeta{
			StockID:   b.StockID,
			StockName: b.StockName,
			Market:    b.Market,
			SectorID:  market.SectorUnknown,
		})
	}
	return meta
}

func assembleHistory(dates []time.Time, load func(time.Time) ([]market.DailyBar, error)) (*market.History, []market.StockMeta, error) {
	var bars []market.DailyBar
	var newest []market.DailyBar
	for _, d := range dates {
		day, err := load(d)
		if err != nil {
			return nil, nil, err
		}
		bars = append(bars, day...)
		newest = day
	}
	return market.NewHistory(bars), MetaFromBars(newest), nil
}

func errNoDayFiles(dir string, end time.Time) error {
	return fmt.Errorf("no market_*.csv at or before %s in %s", market.DayOf(end).Format(market.DateFormat), dir)
}

// parseDayFilename extracts the trade date from a market_YYYY-MM-DD.csv name.
func parseDayFilename(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, "market_") || !strings.HasSuffix(name, ".csv") {
		return time.Time{}, false
	}
	s := strings.TrimSuffix(strings.TrimPrefix(name, "market_"), ".csv")
	d, err := market.ParseDate(s)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
