package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetHistoricalRates(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	stop := start.Add(300 * 900 * time.Second)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/ETH-EUR/candles" {
			t.Errorf("path = %q, want /products/ETH-EUR/candles", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("start") != "2021-01-01T00:00:00Z" {
			t.Errorf("start = %q, want 2021-01-01T00:00:00Z", q.Get("start"))
		}
		if q.Get("end") != "2021-01-04T03:00:00Z" {
			t.Errorf("end = %q, want 2021-01-04T03:00:00Z", q.Get("end"))
		}
		if q.Get("granularity") != "900" {
			t.Errorf("granularity = %q, want 900", q.Get("granularity"))
		}
		w.Write([]byte(`[[1609460100, 5, 8, 6, 7, 0.5], [1609459200, "1", "4", "2", "3", "10"]]`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	candles, err := c.GetHistoricalRates(context.Background(), "ETH-EUR", start, stop, 900)
	if err != nil {
		t.Fatalf("GetHistoricalRates error = %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("len(candles) = %d, want 2", len(candles))
	}
	if candles[0][0].String() != "1609460100" {
		t.Errorf("candles[0][0] = %s, want 1609460100", candles[0][0])
	}
	if candles[1][5].String() != "10" {
		t.Errorf("string value not kept: candles[1][5] = %s, want 10", candles[1][5])
	}
}

func TestGetHistoricalRates_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	candles, err := c.GetHistoricalRates(context.Background(), "ETH-EUR", time.Unix(0, 0), time.Unix(900, 0), 900)
	if err != nil {
		t.Fatalf("GetHistoricalRates error = %v", err)
	}
	if candles == nil {
		t.Error("empty response should be a non-nil slice")
	}
	if len(candles) != 0 {
		t.Errorf("len(candles) = %d, want 0", len(candles))
	}
}

func TestGetHistoricalRates_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"error object", `{"message": "NotFound"}`, "NotFound"},
		{"plain text", `upstream unavailable`, "upstream unavailable"},
		{"row not an array", `[{"time": 1}]`, "want array"},
		{"truncated", `[[1609459200, 1, 2`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(server.URL)
			_, err := c.GetHistoricalRates(context.Background(), "ETH-EUR", time.Unix(0, 0), time.Unix(900, 0), 900)
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("error = %v, want ErrMalformedResponse", err)
			}
			if IsTransient(err) {
				t.Error("malformed response should not be transient")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestGetHistoricalRates_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL)
	_, err := c.GetHistoricalRates(context.Background(), "BTC-EUR", time.Unix(0, 0), time.Unix(900, 0), 900)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, http.StatusServiceUnavailable)
	}
	if !IsTransient(err) {
		t.Error("5xx should be transient")
	}
	if !strings.Contains(err.Error(), "get candles BTC-EUR") {
		t.Errorf("error should name the product, got %q", err.Error())
	}
}
