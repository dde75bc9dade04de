package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCoinGeckoProviderFetchTokenPrices(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/token_price/polygon-pos" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("x-cg-demo-api-key"); got != "test-key" {
			t.Errorf("expected demo api key header test-key, got %q", got)
		}
		if got := r.URL.Query().Get("contract_addresses"); got != "0xaaa,0xbbb" {
			t.Errorf("expected contract_addresses 0xaaa,0xbbb, got %q", got)
		}
		if got := r.URL.Query().Get("vs_currencies"); got != "eur" {
			t.Errorf("expected vs_currencies eur, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"0xAAA":{"eur":1.0005},"0xbbb":{"usd":3}}`))
	}))
	defer ts.Close()

	p := NewCoinGeckoProvider(ts.URL, "test-key", "EUR")
	quotes, err := p.FetchTokenPrices(context.Background(), "Polygon", []string{"0xAAA", " 0xbbb", "0xaaa", ""})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(quotes))
	}
	got := quotes[0]
	if got.ContractAddress != "0xaaa" || got.Price.String() != "1.0005" || got.Provider != "coingecko" || got.Chain != "Polygon" {
		t.Fatalf("unexpected quote: %+v", got)
	}
}

func TestCoinGeckoProviderProHeader(t *testing.T) {
	t.Parallel()

	p := NewCoinGeckoProvider(CoinGeckoDefaultBaseURL("pro"), "key", "")
	if p.apiKeyHeader != "x-cg-pro-api-key" {
		t.Fatalf("expected pro header, got %q", p.apiKeyHeader)
	}
	if p.vsCurrency != "usd" {
		t.Fatalf("expected default currency usd, got %q", p.vsCurrency)
	}
}

func TestCoinGeckoProviderErrors(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	ctx := context.Background()

	quotes, err := NewCoinGeckoProvider(ts.URL, "", "usd").FetchTokenPrices(ctx, "ethereum", nil)
	if err != nil || quotes != nil {
		t.Fatalf("expected no-op for empty input, got %v %v", quotes, err)
	}

	if _, err := NewCoinGeckoProvider(ts.URL, "", "usd").FetchTokenPrices(ctx, "ethereum", []string{"0xaaa"}); err == nil {
		t.Fatal("expected missing api key error")
	}

	if _, err := NewCoinGeckoProvider(ts.URL, "key", "usd").FetchTokenPrices(ctx, "dogechain", []string{"0xaaa"}); err == nil || !strings.Contains(err.Error(), "unsupported chain") {
		t.Fatalf("expected unsupported chain error, got %v", err)
	}

	_, err = NewCoinGeckoProvider(ts.URL, "key", "usd").FetchTokenPrices(ctx, "ethereum", []string{"0xaaa"})
	if err == nil || !strings.Contains(err.Error(), "status 429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestCoinGeckoPlatform(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Ethereum":            "ethereum",
		"BSC":                 "binance-smart-chain",
		"binance-smart-chain": "binance-smart-chain",
		" polygon ":           "polygon-pos",
	}
	for chain, want := range cases {
		got, ok := CoinGeckoPlatform(chain)
		if !ok || got != want {
			t.Fatalf("CoinGeckoPlatform(%q) = %q, %v; want %q", chain, got, ok, want)
		}
	}
	if _, ok := CoinGeckoPlatform("unknown"); ok {
		t.Fatal("expected unknown chain to be unsupported")
	}
}
