// Package twse fetches one day of close quotes from the Taiwan exchanges:
// the TWSE MI_INDEX report for the listed board and the TPEX daily close
// quotes for the OTC board.
package twse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"daypick/internal/config"
	"daypick/internal/market"
)

const (
	twseQuotesURL = "https://www.twse.com.tw/exchangeReport/MI_INDEX"
	tpexQuotesURL = "https://www.tpex.org.tw/web/stock/aftertrading/daily_close_quotes/stk_quote_result.php"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// ErrNoQuotes marks a date with nothing published: a holiday, a weekend,
// or a batch that has not landed yet.
var ErrNoQuotes = errors.New("no quotes published")

// FetchStats receives per-board request outcomes.
type FetchStats interface {
	RecordFetch(board string, err error)
}

// Client fetches daily close quotes through one shared rate limit and one
// circuit breaker per upstream.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	twse    *gobreaker.CircuitBreaker
	tpex    *gobreaker.CircuitBreaker
	stats   FetchStats

	twseURL string
	tpexURL string
}

// NewClient builds a client from the fetch section of the config.
func NewClient(cfg config.FetchConfig) *Client {
	httpc := resty.New().
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(time.Duration(cfg.RetryWaitSeconds) * time.Second).
		SetHeader("User-Agent", userAgent)

	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		http:    httpc,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		twse:    newBreaker("twse"),
		tpex:    newBreaker("tpex"),
		twseURL: twseQuotesURL,
		tpexURL: tpexQuotesURL,
	}
}

// WithStats reports each board's request outcomes to fs.
func (c *Client) WithStats(fs FetchStats) *Client {
	c.stats = fs
	return c
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}
	return gobreaker.NewCircuitBreaker(st)
}

// FetchDay fetches both boards for one trade date and merges them sorted
// by stock id. Returns ErrNoQuotes when neither board published rows.
func (c *Client) FetchDay(ctx context.Context, date time.Time) ([]market.DailyBar, error) {
	day := market.DayOf(date)

	listed, err := c.fetchTWSE(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch TWSE quotes: %w", err)
	}
	otc, err := c.fetchTPEX(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch TPEX quotes: %w", err)
	}

	bars := append(listed, otc...)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoQuotes, day.Format(market.DateFormat))
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].StockID < bars[j].StockID })

	log.Info().
		Str("trade_date", day.Format(market.DateFormat)).
		Int("twse", len(listed)).
		Int("tpex", len(otc)).
		Msg("fetched daily quotes")
	return bars, nil
}

func (c *Client) fetchTWSE(ctx context.Context, day time.Time) ([]market.DailyBar, error) {
	body, err := c.get(ctx, c.twse, c.twseURL, map[string]string{
		"response": "json",
		"date":     day.Format("20060102"),
		"type":     "ALL",
	})
	c.recordFetch("twse", err)
	if err != nil {
		return nil, err
	}
	return parseTWSE(body, day)
}

func (c *Client) fetchTPEX(ctx context.Context, day time.Time) ([]market.DailyBar, error) {
	body, err := c.get(ctx, c.tpex, c.tpexURL, map[string]string{
		"l": "zh-tw",
		"d": rocDate(day),
		"o": "json",
	})
	c.recordFetch("tpex", err)
	if err != nil {
		return nil, err
	}
	return parseTPEX(body, day)
}

func (c *Client) recordFetch(board string, err error) {
	if c.stats != nil {
		c.stats.RecordFetch(board, err)
	}
}

// get runs one rate-limited GET through the upstream's breaker.
func (c *Client) get(ctx context.Context, breaker *gobreaker.CircuitBreaker, url string, params map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(url)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("http %d from %s", resp.StatusCode(), url)
		}
		return resp.Body(), nil
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

// rocDate renders day on the Republic-of-China calendar, yyy/mm/dd, the
// format the TPEX endpoints take.
func rocDate(day time.Time) string {
	return fmt.Sprintf("%d/%02d/%02d", day.Year()-1911, int(day.Month()), day.Day())
}
