package store

import (
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCandidatesParquetRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive", "candidates_2025-06-10.parquet")

	require.NoError(t, WriteCandidatesParquet(path, candidateFixture()))

	records, err := parquet.ReadFile[CandidateRecord](path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "2025-06-10", first.TradeDate)
	assert.Equal(t, "1003", first.StockID)
	assert.Equal(t, "1000", first.LeaderID)
	require.NotNil(t, first.SuggestStop)
	assert.Equal(t, 98.5, *first.SuggestStop)
	require.NotNil(t, first.Lots)
	assert.Equal(t, int64(1), *first.Lots)

	second := records[1]
	assert.Equal(t, "1001", second.StockID)
	assert.Nil(t, second.SuggestStop)
	assert.Nil(t, second.PositionValue)
	assert.Nil(t, second.Shares)
	assert.Nil(t, second.Lots)
}

func TestWriteCandidatesParquetEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	require.NoError(t, WriteCandidatesParquet(path, nil))

	records, err := parquet.ReadFile[CandidateRecord](path)
	require.NoError(t, err)
	assert.Empty(t, records)
}
