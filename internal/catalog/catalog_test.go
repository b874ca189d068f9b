package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rickgao/ohlcv-gatherer/internal/api"
)

const productsBody = `[
	{"id": "ETH-EUR", "base_currency": "ETH", "quote_currency": "EUR", "status": "online"},
	{"id": "BTC-USD", "base_currency": "BTC", "quote_currency": "USD", "status": "online"},
	{"id": "BTC-GBP", "base_currency": "BTC", "quote_currency": "GBP", "status": "online"},
	{"id": "ADA-BTC", "base_currency": "ADA", "quote_currency": "BTC", "status": "online"},
	{"id": "OLD-EUR", "base_currency": "OLD", "quote_currency": "EUR", "status": "delisted"},
	{"id": "BTC-EUR", "base_currency": "BTC", "quote_currency": "EUR", "status": "online"},
	{"id": "weird_id", "base_currency": "W", "quote_currency": "EUR", "status": "online"}
]`

func newProductServer(t *testing.T) *api.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products" {
			t.Errorf("path = %q, want /products", r.URL.Path)
		}
		w.Write([]byte(productsBody))
	}))
	t.Cleanup(server.Close)
	return api.NewClient(server.URL)
}

func TestDiscover(t *testing.T) {
	client := newProductServer(t)

	got, err := Discover(context.Background(), client, []string{"usd", "GBP"})
	if err != nil {
		t.Fatalf("Discover error = %v", err)
	}

	want := []string{"ADA-BTC", "BTC-EUR", "ETH-EUR"}
	if len(got) != len(want) {
		t.Fatalf("Discover() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("Discover()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "configured only",
			cfg:  Config{Instruments: []string{"eth-eur", "BTC-EUR", "ETH-EUR"}},
			want: "BTC-EUR,ETH-EUR",
		},
		{
			name: "discover merges configured",
			cfg: Config{
				Instruments:   []string{"BTC-USD"},
				Discover:      true,
				ExcludeQuotes: []string{"USD", "GBP"},
			},
			want: "ADA-BTC,BTC-EUR,BTC-USD,ETH-EUR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(context.Background(), tt.cfg, newProductServer(t), nil)
			if err != nil {
				t.Fatalf("Resolve error = %v", err)
			}
			parts := make([]string, len(got))
			for i, inst := range got {
				parts[i] = inst.String()
			}
			if joined := strings.Join(parts, ","); joined != tt.want {
				t.Errorf("Resolve() = %s, want %s", joined, tt.want)
			}
		})
	}
}

func TestResolve_InvalidConfigured(t *testing.T) {
	_, err := Resolve(context.Background(), Config{Instruments: []string{"ETHEUR"}}, nil, nil)
	if err == nil {
		t.Fatal("expected error for malformed instrument")
	}
}

func TestResolve_DiscoveryError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := Resolve(context.Background(), Config{Discover: true}, api.NewClient(server.URL), nil)
	if err == nil {
		t.Fatal("expected error when discovery fails")
	}
	if !strings.Contains(err.Error(), "discover products") {
		t.Errorf("error = %q, want it to mention discovery", err.Error())
	}
}
