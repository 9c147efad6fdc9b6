// Package finance fetches stock quotes and renders them as prompt text,
// for deployments that seed the assistant with market data instead of a
// document directory.
package finance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// Client fetches quote histories from the Yahoo chart API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different chart endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/") + "/"
	}
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultChartURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []float64 `json:"open"`
					High  []float64 `json:"high"`
					Low   []float64 `json:"low"`
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchStockData fetches the given tickers over the period (e.g. "1mo")
// and renders them as one text block. A ticker that cannot be fetched
// fails the whole call; the caller decides whether to degrade.
func (c *Client) FetchStockData(ctx context.Context, tickers []string, period string) (string, error) {
	blocks := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		block, err := c.fetchOne(ctx, ticker, period)
		if err != nil {
			return "", fmt.Errorf("cannot fetch data for ticker %s: %w", ticker, err)
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n"), nil
}

func (c *Client) fetchOne(ctx context.Context, ticker, period string) (string, error) {
	target := fmt.Sprintf("%s%s?range=%s&interval=1d", c.baseURL, ticker, period)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "qna-service/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var parsed chartResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse chart response: %w", err)
	}
	if parsed.Chart.Error != nil {
		return "", fmt.Errorf("chart error: %s", parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return "", fmt.Errorf("no chart result")
	}

	result := parsed.Chart.Result[0]
	var b strings.Builder
	fmt.Fprintf(&b, "Stock data for %s (%s)\n", result.Meta.Symbol, result.Meta.Currency)
	fmt.Fprintf(&b, "Current price: %.2f\n", result.Meta.RegularMarketPrice)

	if len(result.Indicators.Quote) > 0 {
		quote := result.Indicators.Quote[0]
		// The chart API can return ragged series; render only complete rows.
		rows := len(result.Timestamp)
		for _, series := range [][]float64{quote.Open, quote.High, quote.Low, quote.Close} {
			if len(series) < rows {
				rows = len(series)
			}
		}
		b.WriteString("| date | open | high | low | close |\n")
		for i := 0; i < rows; i++ {
			day := time.Unix(result.Timestamp[i], 0).UTC().Format("2006-01-02")
			fmt.Fprintf(&b, "| %s | %.2f | %.2f | %.2f | %.2f |\n",
				day, quote.Open[i], quote.High[i], quote.Low[i], quote.Close[i])
		}
	}

	return b.String(), nil
}
