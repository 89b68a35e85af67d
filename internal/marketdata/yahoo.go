package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

const defaultYahooURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
// Requests share a rate limiter and are retried with exponential backoff on
// network errors, 429 and 5xx responses.
type YahooFetcher struct {
	BaseURL        string
	Client         *http.Client
	MaxElapsedTime time.Duration

	limiter *rate.Limiter
}

// NewYahooFetcher creates a fetcher allowing rps requests per second.
func NewYahooFetcher(rps float64, timeout time.Duration) *YahooFetcher {
	if rps <= 0 {
		rps = 2
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &YahooFetcher{
		BaseURL:        defaultYahooURL,
		Client:         &http.Client{Timeout: timeout},
		MaxElapsedTime: 30 * time.Second,
		limiter:        rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// yahooChart is the response structure from the chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch implements Fetcher.
func (f *YahooFetcher) Fetch(ctx context.Context, ticker string, r Range) (model.PriceSeries, error) {
	if r.Period == "" {
		r = DefaultRange
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return model.PriceSeries{}, fmt.Errorf("rate limiter: %w", err)
	}

	u := fmt.Sprintf("%s/%s?interval=%s&range=%s",
		strings.TrimRight(f.BaseURL, "/"), url.PathEscape(ticker), url.QueryEscape(r.Interval), url.QueryEscape(r.Period))

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")

		resp, err := f.Client.Do(req)
		if err != nil {
			return fmt.Errorf("yahoo fetch: %w", err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("yahoo read body: %w", err)
		}
		switch {
		case resp.StatusCode == http.StatusOK:
			body = b
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("yahoo: status %d", resp.StatusCode)
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("yahoo %s: %w", ticker, ErrNoData))
		default:
			return backoff.Permanent(fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, truncate(b, 200)))
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = f.MaxElapsedTime
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return model.PriceSeries{}, fmt.Errorf("fetch %s: %w", ticker, err)
	}

	bars, err := decodeChart(body)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("fetch %s: %w", ticker, err)
	}
	return model.PriceSeries{Ticker: ticker, Bars: bars}, nil
}

// decodeChart turns a chart response into ascending daily bars. Null rows
// are skipped and repeated dates keep the latest row.
func decodeChart(body []byte) ([]model.PriceBar, error) {
	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, ErrNoData
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.PriceBar, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		c := at(quote.Close, i)
		if c == nil {
			continue // null bar (holiday, halted session)
		}
		bar := model.PriceBar{
			Date:  dateOf(time.Unix(ts+result.Meta.GMTOffset, 0).UTC()),
			Close: *c,
		}
		if v := at(quote.Open, i); v != nil {
			bar.Open = *v
		}
		if v := at(quote.High, i); v != nil {
			bar.High = *v
		}
		if v := at(quote.Low, i); v != nil {
			bar.Low = *v
		}
		if v := at(quote.Volume, i); v != nil {
			bar.Volume = int64(*v)
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	out := bars[:1]
	for _, b := range bars[1:] {
		if b.Date.Equal(out[len(out)-1].Date) {
			out[len(out)-1] = b
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func at(vals []*float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
