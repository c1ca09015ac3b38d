package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/apex-analytics/apexfeed/internal/csvrepair"
	"github.com/apex-analytics/apexfeed/internal/types"
	"github.com/apex-analytics/apexfeed/pkg/errors"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"
	defaultTimeout = 30 * time.Second
)

// YahooProvider implements Provider using the Yahoo Finance chart API.
type YahooProvider struct {
	client   *http.Client
	baseURL  string
	interval string
}

// YahooOption configures a YahooProvider.
type YahooOption func(*YahooProvider)

// WithBaseURL overrides the API endpoint, used by tests.
func WithBaseURL(u string) YahooOption {
	return func(p *YahooProvider) {
		p.baseURL = u
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) YahooOption {
	return func(p *YahooProvider) {
		p.client = c
	}
}

// WithInterval overrides the bar interval (default "1d").
func WithInterval(interval string) YahooOption {
	return func(p *YahooProvider) {
		p.interval = interval
	}
}

// NewYahooProvider creates a chart-API provider with a 30 second timeout.
func NewYahooProvider(opts ...YahooOption) *YahooProvider {
	p := &YahooProvider{
		client:   &http.Client{Timeout: defaultTimeout},
		baseURL:  defaultBaseURL,
		interval: "1d",
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *YahooProvider) Name() string { return "yahoo" }

// yahooChart is the response structure of the chart API. Quote fields are
// decoded as pointers because the API emits JSON null for holiday gaps.
type yahooChart struct {
	Chart struct {
		Result []struct {
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

// Fetch downloads daily bars for [start, end) and returns them as a wide
// table with ticker-suffixed column names, mirroring what a flattened
// multi-level download produces.
func (p *YahooProvider) Fetch(ctx context.Context, ticker string, start, end time.Time) (*csvrepair.Table, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&period1=%d&period2=%d",
		p.baseURL, url.PathEscape(ticker), p.interval, start.Unix(), end.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeFetchFailed, err, "failed to build request for %s", ticker)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeFetchFailed, err, "request failed for %s", ticker)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeFetchFailed, err, "failed to read response for %s", ticker)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrCodeProviderError, "provider returned status %d for %s", resp.StatusCode, ticker)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeFetchParseFailed, err, "failed to decode response for %s", ticker)
	}

	if chart.Chart.Error != nil {
		return nil, errors.Newf(errors.ErrCodeProviderError, "provider error for %s: %s", ticker, chart.Chart.Error.Description)
	}

	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, errors.Newf(errors.ErrCodeFetchEmpty, "no data returned for %s", ticker)
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, errors.Newf(errors.ErrCodeFetchEmpty, "no quote data returned for %s", ticker)
	}

	quote := result.Indicators.Quote[0]

	table := &csvrepair.Table{
		Columns: []string{
			"Date",
			"Open_" + ticker,
			"High_" + ticker,
			"Low_" + ticker,
			"Close_" + ticker,
			"Volume_" + ticker,
		},
		Rows: make([][]string, 0, len(result.Timestamp)),
	}

	for i, ts := range result.Timestamp {
		row := []string{
			time.Unix(ts, 0).UTC().Format(types.DateLayout),
			formatPoint(at(quote.Open, i)),
			formatPoint(at(quote.High, i)),
			formatPoint(at(quote.Low, i)),
			formatPoint(at(quote.Close, i)),
			formatPoint(at(quote.Volume, i)),
		}

		if rowAllEmpty(row[1:]) {
			// Holiday gap, nothing to keep.
			continue
		}

		table.Rows = append(table.Rows, row)
	}

	if len(table.Rows) == 0 {
		return nil, errors.Newf(errors.ErrCodeFetchEmpty, "only null bars returned for %s", ticker)
	}

	return table, nil
}

func at(vals []*float64, i int) *float64 {
	if i < 0 || i >= len(vals) {
		return nil
	}

	return vals[i]
}

func formatPoint(v *float64) string {
	if v == nil {
		return ""
	}

	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func rowAllEmpty(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}

	return true
}
