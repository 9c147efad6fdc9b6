package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchGetWithParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if got := r.URL.Query().Get("ticker"); got != "ACME" {
			t.Errorf("query param not forwarded: %q", got)
		}
		fmt.Fprint(w, `{  "price":  42  }`)
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	got := c.Fetch(context.Background(), CallInfo{
		BaseURL: srv.URL,
		Method:  http.MethodGet,
		Params:  map[string]any{"ticker": "ACME"},
	})

	// JSON bodies are compacted before rendering.
	want := "Status: 200\nResponse: {\"price\":42}"
	if got != want {
		t.Fatalf("Fetch = %q, want %q", got, want)
	}
}

func TestFetchPostSendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if hv := r.Header.Get("X-Api-Key"); hv != "secret" {
			t.Errorf("header not forwarded: %q", hv)
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, "created")
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	got := c.Fetch(context.Background(), CallInfo{
		BaseURL: srv.URL,
		Method:  http.MethodPost,
		Headers: map[string]string{"X-Api-Key": "secret"},
		Params:  map[string]any{"name": "example"},
	})

	if got != "Status: 201\nResponse: created" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestFetchTransportFailureRendersAsText(t *testing.T) {
	c := NewClient(time.Second)
	got := c.Fetch(context.Background(), CallInfo{
		BaseURL: "http://127.0.0.1:1/unreachable",
		Method:  http.MethodGet,
	})

	if !strings.HasPrefix(got, "Error making REST call:") {
		t.Fatalf("transport failure must render as text, got %q", got)
	}
}

func TestFetchNonSuccessStatusStillRenders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	got := c.Fetch(context.Background(), CallInfo{BaseURL: srv.URL, Method: http.MethodGet})

	if !strings.HasPrefix(got, "Status: 403") {
		t.Fatalf("expected the status to be rendered, got %q", got)
	}
}
