package finance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const chartFixture = `{
  "chart": {
    "result": [{
      "meta": {"currency": "USD", "symbol": "ACME", "regularMarketPrice": 123.45},
      "timestamp": [1755993600, 1756080000],
      "indicators": {"quote": [{
        "open":  [120.0, 122.0],
        "high":  [124.0, 125.0],
        "low":   [119.0, 121.0],
        "close": [122.0, 123.45]
      }]}
    }],
    "error": null
  }
}`

func TestFetchStockData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/ACME") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("range"); got != "1mo" {
			t.Errorf("period not forwarded: %q", got)
		}
		fmt.Fprint(w, chartFixture)
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, WithBaseURL(srv.URL))
	got, err := c.FetchStockData(context.Background(), []string{"ACME"}, "1mo")
	if err != nil {
		t.Fatalf("FetchStockData failed: %v", err)
	}

	for _, want := range []string{
		"Stock data for ACME (USD)",
		"Current price: 123.45",
		"| date | open | high | low | close |",
		"| 2025-08-24 | 120.00 | 124.00 | 119.00 | 122.00 |",
		"| 2025-08-25 | 122.00 | 125.00 | 121.00 | 123.45 |",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("rendered block missing %q:\n%s", want, got)
		}
	}
}

func TestFetchStockDataRaggedSeries(t *testing.T) {
	// The high series is one element short; the second row must be dropped
	// rather than indexed past the end.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
  "chart": {
    "result": [{
      "meta": {"currency": "USD", "symbol": "ACME", "regularMarketPrice": 123.45},
      "timestamp": [1755993600, 1756080000],
      "indicators": {"quote": [{
        "open":  [120.0, 122.0],
        "high":  [124.0],
        "low":   [119.0, 121.0],
        "close": [122.0, 123.45]
      }]}
    }],
    "error": null
  }
}`)
	}))
	defer srv.Close()

	c := NewClient(time.Second, WithBaseURL(srv.URL))
	got, err := c.FetchStockData(context.Background(), []string{"ACME"}, "1mo")
	if err != nil {
		t.Fatalf("FetchStockData failed: %v", err)
	}

	if !strings.Contains(got, "| 2025-08-24 |") {
		t.Fatalf("complete row missing:\n%s", got)
	}
	if strings.Contains(got, "2025-08-25") {
		t.Fatalf("incomplete row must be dropped:\n%s", got)
	}
}

func TestFetchStockDataChartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"description":"No data found"}}}`)
	}))
	defer srv.Close()

	c := NewClient(time.Second, WithBaseURL(srv.URL))
	_, err := c.FetchStockData(context.Background(), []string{"NOPE"}, "1mo")
	if err == nil || !strings.Contains(err.Error(), "NOPE") {
		t.Fatalf("expected an error naming the ticker, got %v", err)
	}
	if !strings.Contains(err.Error(), "No data found") {
		t.Fatalf("chart error not surfaced: %v", err)
	}
}

func TestFetchStockDataFailsWholeBatch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if strings.HasPrefix(r.URL.Path, "/BAD") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, chartFixture)
	}))
	defer srv.Close()

	c := NewClient(time.Second, WithBaseURL(srv.URL))
	_, err := c.FetchStockData(context.Background(), []string{"ACME", "BAD", "OTHER"}, "1mo")
	if err == nil {
		t.Fatal("expected the batch to fail")
	}
	// The failing ticker stops the batch; the third is never fetched.
	if calls != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls)
	}
}
