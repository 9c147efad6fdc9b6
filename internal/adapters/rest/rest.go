// Package rest fetches remote payloads that callers attach to a session
// as additional context. Results are rendered as plain text: a transport
// failure becomes an error description in the text rather than a Go
// error, since a broken side-channel should degrade the context, not the
// request that carries it.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// CallInfo describes one REST call to perform.
type CallInfo struct {
	BaseURL string
	Method  string
	Headers map[string]string

	// Params ride as query parameters for GET and as a JSON body for
	// everything else.
	Params map[string]any
}

// Client performs REST calls for additional-context fetches.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch performs the call and renders the outcome as text.
func (c *Client) Fetch(ctx context.Context, info CallInfo) string {
	var body io.Reader
	target := info.BaseURL

	if info.Method == http.MethodGet {
		if len(info.Params) > 0 {
			q := url.Values{}
			for k, v := range info.Params {
				q.Set(k, fmt.Sprint(v))
			}
			sep := "?"
			if u, err := url.Parse(target); err == nil && u.RawQuery != "" {
				sep = "&"
			}
			target += sep + q.Encode()
		}
	} else if len(info.Params) > 0 {
		payload, err := json.Marshal(info.Params)
		if err != nil {
			return fmt.Sprintf("Error making REST call: %v", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, info.Method, target, body)
	if err != nil {
		return fmt.Sprintf("Error making REST call: %v", err)
	}
	for k, v := range info.Headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Sprintf("Error making REST call: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("Error making REST call: %v", err)
	}

	// Compact JSON bodies read better in a prompt; anything else passes
	// through as-is.
	var compact bytes.Buffer
	text := string(raw)
	if json.Valid(raw) {
		if err := json.Compact(&compact, raw); err == nil {
			text = compact.String()
		}
	}

	return fmt.Sprintf("Status: %d\nResponse: %s", resp.StatusCode, text)
}
