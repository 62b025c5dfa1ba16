package twse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daypick/internal/config"
	"daypick/internal/market"
)

func testClient(t *testing.T, twseHandler, tpexHandler http.HandlerFunc) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/twse", twseHandler)
	mux.HandleFunc("/tpex", tpexHandler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(config.FetchConfig{TimeoutSeconds: 5, RequestsPerSec: 1000})
	c.twseURL = srv.URL + "/twse"
	c.tpexURL = srv.URL + "/tpex"
	return c
}

func TestFetchDayMergesBothBoardsSorted(t *testing.T) {
	twse := func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "json", q.Get("response"))
		assert.Equal(t, "20250610", q.Get("date"))
		assert.Equal(t, "ALL", q.Get("type"))
		w.Write([]byte(`{
		  "stat": "OK",
		  "fields": ["證券代號", "證券名稱", "成交股數", "成交金額", "開盤價", "最高價", "最低價", "收盤價", "漲跌(+/-)", "漲跌價差"],
		  "data": [["2330", "台積電", "32,000,000", "33,000,000,000", "1,010.00", "1,035.00", "1,005.00", "1,030.00", "+", "20.00"]]
		}`))
	}
	tpex := func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "zh-tw", q.Get("l"))
		assert.Equal(t, "114/06/10", q.Get("d"))
		assert.Equal(t, "json", q.Get("o"))
		w.Write([]byte(`{"aaData": [
		  ["6488", "環球晶", "405.00", "+5.00", "400.00", "408.00", "398.00", "403.00", "2,000,000", "810,000,000"],
		  ["1565", "精華", "790.00", "-10.00", "798.00", "800.00", "788.00", "792.00", "300,000", "238,000,000"]
		]}`))
	}

	c := testClient(t, twse, tpex)
	bars, err := c.FetchDay(context.Background(), market.Date(2025, time.June, 10))
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, "1565", bars[0].StockID)
	assert.Equal(t, "TPEX", bars[0].Market)
	assert.Equal(t, "2330", bars[1].StockID)
	assert.Equal(t, "TWSE", bars[1].Market)
	assert.Equal(t, "6488", bars[2].StockID)
}

func TestFetchDayHoliday(t *testing.T) {
	twse := func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"stat":"很抱歉, 沒有符合條件的資料!"}`))
	}
	tpex := func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"iTotalRecords": 0}`))
	}

	c := testClient(t, twse, tpex)
	_, err := c.FetchDay(context.Background(), market.Date(2025, time.June, 8))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoQuotes)
	assert.Contains(t, err.Error(), "2025-06-08")
}

func TestFetchDayOneBoardDown(t *testing.T) {
	var tpexHits atomic.Int64
	twse := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusInternalServerError)
	}
	tpex := func(w http.ResponseWriter, r *http.Request) {
		tpexHits.Add(1)
		w.Write([]byte(`{"aaData": []}`))
	}

	c := testClient(t, twse, tpex)
	_, err := c.FetchDay(context.Background(), market.Date(2025, time.June, 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch TWSE quotes")
	assert.Contains(t, err.Error(), "http 500")
	assert.Equal(t, int64(0), tpexHits.Load(), "TPEX is not called after the TWSE leg fails")
}

func TestFetchDayBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int64
	failing := func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "upstream broke", http.StatusInternalServerError)
	}

	c := testClient(t, failing, failing)
	ctx := context.Background()
	day := market.Date(2025, time.June, 10)

	for i := 0; i < 3; i++ {
		_, err := c.FetchDay(ctx, day)
		require.Error(t, err)
	}
	_, err := c.FetchDay(ctx, day)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int64(3), hits.Load(), "open breaker stops hitting the upstream")
}

type recordingFetchStats struct {
	requests map[string]int
	errors   map[string]int
}

func newRecordingFetchStats() *recordingFetchStats {
	return &recordingFetchStats{requests: map[string]int{}, errors: map[string]int{}}
}

func (r *recordingFetchStats) RecordFetch(board string, err error) {
	r.requests[board]++
	if err != nil {
		r.errors[board]++
	}
}

func TestFetchDayReportsPerBoardStats(t *testing.T) {
	twse := func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"stat":"很抱歉, 沒有符合條件的資料!"}`))
	}
	tpex := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusInternalServerError)
	}

	stats := newRecordingFetchStats()
	c := testClient(t, twse, tpex).WithStats(stats)

	_, err := c.FetchDay(context.Background(), market.Date(2025, time.June, 10))
	require.Error(t, err)

	assert.Equal(t, 1, stats.requests["twse"])
	assert.Equal(t, 0, stats.errors["twse"])
	assert.Equal(t, 1, stats.requests["tpex"])
	assert.Equal(t, 1, stats.errors["tpex"])
}
