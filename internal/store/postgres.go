package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"daypick/internal/market"
)

// candidatesSchema is applied on connect. The primary key makes rerunning
// a date idempotent.
const candidatesSchema = `
CREATE TABLE IF NOT EXISTS candidates (
	trade_date     DATE             NOT NULL,
	stock_id       TEXT             NOT NULL,
	leader_id      TEXT             NOT NULL,
	sector_id      TEXT             NOT NULL,
	score_sector   DOUBLE PRECISION NOT NULL,
	score_leader   DOUBLE PRECISION NOT NULL,
	score_follow   DOUBLE PRECISION NOT NULL,
	score_total    DOUBLE PRECISION NOT NULL,
	suggest_entry  DOUBLE PRECISION NOT NULL,
	suggest_stop   DOUBLE PRECISION,
	position_value DOUBLE PRECISION,
	shares         BIGINT,
	lots           BIGINT,
	created_at     TIMESTAMPTZ      NOT NULL DEFAULT now(),
	PRIMARY KEY (trade_date, stock_id)
)`

const candidatesUpsert = `
	INSERT INTO candidates (trade_date, stock_id, leader_id, sector_id,
		score_sector, score_leader, score_follow, score_total,
		suggest_entry, suggest_stop, position_value, shares, lots)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (trade_date, stock_id) DO UPDATE SET
		leader_id = EXCLUDED.leader_id,
		sector_id = EXCLUDED.sector_id,
		score_sector = EXCLUDED.score_sector,
		score_leader = EXCLUDED.score_leader,
		score_follow = EXCLUDED.score_follow,
		score_total = EXCLUDED.score_total,
		suggest_entry = EXCLUDED.suggest_entry,
		suggest_stop = EXCLUDED.suggest_stop,
		position_value = EXCLUDED.position_value,
		shares = EXCLUDED.shares,
		lots = EXCLUDED.lots`

const candidatesSelect = `
	SELECT trade_date, stock_id, leader_id, sector_id,
		score_sector, score_leader, score_follow, score_total,
		suggest_entry, suggest_stop, position_value, shares, lots
	FROM candidates
	WHERE trade_date = $1
	ORDER BY score_total DESC, stock_id ASC`

const candidatesRecent = `
	SELECT trade_date, stock_id, leader_id, sector_id,
		score_sector, score_leader, score_follow, score_total,
		suggest_entry, suggest_stop, position_value, shares, lots
	FROM candidates
	ORDER BY trade_date DESC, score_total DESC, stock_id ASC
	LIMIT $1`

// CandidateDB archives picker output rows in Postgres.
type CandidateDB struct {
	db      *sqlx.DB
	timeout time.Duration
}

// OpenCandidateDB connects, verifies the connection and ensures the schema.
func OpenCandidateDB(dsn string, timeout time.Duration) (*CandidateDB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, candidatesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure candidates schema: %w", err)
	}
	return &CandidateDB{db: db, timeout: timeout}, nil
}

// NewCandidateDB wraps an existing connection without pinging it.
func NewCandidateDB(db *sqlx.DB, timeout time.Duration) *CandidateDB {
	return &CandidateDB{db: db, timeout: timeout}
}

// Close releases the connection pool.
func (c *CandidateDB) Close() error { return c.db.Close() }

// SaveCandidates upserts one run's rows inside a transaction. Rerunning a
// date replaces its rows instead of duplicating them.
func (c *CandidateDB) SaveCandidates(ctx context.Context, rows []market.CandidateRow) error {
	if len(rows) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, candidatesUpsert)
	if err != nil {
		return fmt.Errorf("failed to prepare candidates upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			market.DayOf(row.TradeDate), row.StockID, row.LeaderID, row.SectorID,
			row.ScoreSector, row.ScoreLeader, row.ScoreFollow, row.ScoreTotal,
			row.SuggestEntry, row.SuggestStop, row.PositionValue, row.Shares, row.Lots)
		if err != nil {
			return fmt.Errorf("failed to upsert candidate %s: %w", row.StockID, err)
		}
	}
	return tx.Commit()
}

// LoadCandidates returns one date's rows ordered by descending total score.
func (c *CandidateDB) LoadCandidates(ctx context.Context, date time.Time) ([]market.CandidateRow, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.db.QueryxContext(ctx, candidatesSelect, market.DayOf(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// RecentCandidates returns the newest n rows across dates, newest date
// first then descending total score. n defaults to 20.
func (c *CandidateDB) RecentCandidates(ctx context.Context, n int) ([]market.CandidateRow, error) {
	if n <= 0 {
		n = 20
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.db.QueryxContext(ctx, candidatesRecent, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent candidates: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

func scanCandidates(rows *sqlx.Rows) ([]market.CandidateRow, error) {
	var out []market.CandidateRow
	for rows.Next() {
		var row market.CandidateRow
		var stop, posValue sql.NullFloat64
		var shares, lots sql.NullInt64
		if err := rows.Scan(&row.TradeDate, &row.StockID, &row.LeaderID, &row.SectorID,
			&row.ScoreSector, &row.ScoreLeader, &row.ScoreFollow, &row.ScoreTotal,
			&row.SuggestEntry, &stop, &posValue, &shares, &lots); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		row.TradeDate = market.DayOf(row.TradeDate)
		if stop.Valid {
			v := stop.Float64
			row.SuggestStop = &v
		}
		if posValue.Valid {
			v := posValue.Float64
			row.PositionValue = &v
		}
		if shares.Valid {
			v := shares.Int64
			row.Shares = &v
		}
		if lots.Valid {
			v := lots.Int64
			row.Lots = &v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candidates: %w", err)
	}
	return out, nil
}
