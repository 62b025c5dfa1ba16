package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daypick/internal/market"
)

func candidateFixture() []market.CandidateRow {
	stop := 98.5
	posValue := 161595.0
	shares := int64(1539)
	lots := int64(1)
	return []market.CandidateRow{
		{
			TradeDate: d(10), StockID: "1003", LeaderID: "1000", SectorID: "TECH",
			ScoreSector: 1.1, ScoreLeader: 2.0, ScoreFollow: 0.6, ScoreTotal: 1.2,
			SuggestEntry: 105, SuggestStop: &stop, PositionValue: &posValue,
			Shares: &shares, Lots: &lots,
		},
		{
			TradeDate: d(10), StockID: "1001", LeaderID: "1000", SectorID: "TECH",
			ScoreSector: 1.1, ScoreLeader: 2.0, ScoreFollow: 0.48, ScoreTotal: 1.13,
			SuggestEntry: 104,
		},
	}
}

func newMockDB(t *testing.T) (*CandidateDB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewCandidateDB(sqlx.NewDb(mockDB, "postgres"), 5*time.Second), mock
}

func TestSaveCandidatesUpsertsInOneTransaction(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(candidatesUpsert))
	prep.ExpectExec().
		WithArgs(d(10), "1003", "1000", "TECH", 1.1, 2.0, 0.6, 1.2, 105.0, 98.5, 161595.0, int64(1539), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs(d(10), "1001", "1000", "TECH", 1.1, 2.0, 0.48, 1.13, 104.0, nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, db.SaveCandidates(context.Background(), candidateFixture()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveCandidatesEmptyIsNoOp(t *testing.T) {
	db, mock := newMockDB(t)
	require.NoError(t, db.SaveCandidates(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveCandidatesRollsBackOnExecError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(candidatesUpsert))
	prep.ExpectExec().WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := db.SaveCandidates(context.Background(), candidateFixture())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upsert candidate 1003")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadCandidatesScansNullSizing(t *testing.T) {
	db, mock := newMockDB(t)

	cols := []string{
		"trade_date", "stock_id", "leader_id", "sector_id",
		"score_sector", "score_leader", "score_follow", "score_total",
		"suggest_entry", "suggest_stop", "position_value", "shares", "lots",
	}
	mock.ExpectQuery(regexp.QuoteMeta(candidatesSelect)).
		WithArgs(d(10)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(d(10), "1003", "1000", "TECH", 1.1, 2.0, 0.6, 1.2, 105.0, 98.5, 161595.0, int64(1539), int64(1)).
			AddRow(d(10), "1001", "1000", "TECH", 1.1, 2.0, 0.48, 1.13, 104.0, nil, nil, nil, nil))

	rows, err := db.LoadCandidates(context.Background(), d(10))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "1003", first.StockID)
	assert.Equal(t, d(10), first.TradeDate)
	require.NotNil(t, first.SuggestStop)
	assert.Equal(t, 98.5, *first.SuggestStop)
	require.NotNil(t, first.Shares)
	assert.Equal(t, int64(1539), *first.Shares)

	second := rows[1]
	assert.Equal(t, "1001", second.StockID)
	assert.Nil(t, second.SuggestStop)
	assert.Nil(t, second.PositionValue)
	assert.Nil(t, second.Shares)
	assert.Nil(t, second.Lots)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadCandidatesQueryError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(candidatesSelect)).WillReturnError(errors.New("boom"))

	_, err := db.LoadCandidates(context.Background(), d(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query candidates")
}

func TestRecentCandidatesSpansDates(t *testing.T) {
	db, mock := newMockDB(t)

	cols := []string{"trade_date", "stock_id", "leader_id", "sector_id",
		"score_sector", "score_leader", "score_follow", "score_total",
		"suggest_entry", "suggest_stop", "position_value", "shares", "lots"}
	mock.ExpectQuery(regexp.QuoteMeta(candidatesRecent)).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(d(11), "2330", "2330", "TECH", 1.2, 2.1, 0.7, 1.3, 1030.0, nil, nil, nil, nil).
			AddRow(d(10), "1003", "1000", "TECH", 1.1, 2.0, 0.6, 1.2, 105.0, 98.5, 161595.0, int64(1539), int64(1)))

	rows, err := db.RecentCandidates(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].TradeDate.Equal(d(11)))
	assert.Nil(t, rows[0].Shares)
	assert.True(t, rows[1].TradeDate.Equal(d(10)))
	require.NotNil(t, rows[1].Shares)
	assert.Equal(t, int64(1539), *rows[1].Shares)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentCandidatesDefaultsLimit(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(candidatesRecent)).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"trade_date", "stock_id", "leader_id", "sector_id",
			"score_sector", "score_leader", "score_follow", "score_total",
			"suggest_entry", "suggest_stop", "position_value", "shares", "lots"}))

	rows, err := db.RecentCandidates(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
