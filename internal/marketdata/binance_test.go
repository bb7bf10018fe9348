package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"btc-predictor/internal/model"
)

func testBinance(url string) *Binance {
	return NewBinance(Options{
		BaseURL:        url,
		Symbol:         "BTCUSDT",
		Timeout:        time.Second,
		RequestsPerSec: 100,
		MaxElapsed:     time.Second,
	}, zerolog.Nop())
}

func TestLatestPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ticker/price" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("symbol") != "BTCUSDT" {
			t.Fatalf("symbol query missing: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"68123.45"}`))
	}))
	defer srv.Close()

	price, err := testBinance(srv.URL).LatestPrice(context.Background())
	if err != nil {
		t.Fatalf("latest price should succeed: %v", err)
	}
	if price.String() != "68123.45" {
		t.Fatalf("price = %s, want 68123.45", price.String())
	}
}

func TestHistoryParsesKlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/klines" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			[1700000000000,"68000","68100","67900","68050","123.4","x"],
			[1700000300000,"68050","68200","68000","68150","150.1","x"]
		]`))
	}))
	defer srv.Close()

	candles, err := testBinance(srv.URL).History(context.Background(), "5m", 2)
	if err != nil {
		t.Fatalf("history should parse: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("candles = %d, want 2", len(candles))
	}
	if candles[0].Close.String() != "68050" {
		t.Fatalf("first close = %s, want 68050", candles[0].Close.String())
	}
	if candles[1].OpenTime != time.UnixMilli(1700000300000).UTC() {
		t.Fatalf("open time not parsed: %v", candles[1].OpenTime)
	}
	if candles[0].ChangePct == 0 {
		t.Fatal("change pct should be derived from open/close")
	}
}

func TestPriceAtReturnsCandleClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("startTime") == "" {
			t.Fatal("startTime query missing")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[[1700000000000,"68000","68100","67900","68050","123.4","x"]]`))
	}))
	defer srv.Close()

	price, err := testBinance(srv.URL).PriceAt(context.Background(), time.UnixMilli(1700000000000), "5m")
	if err != nil {
		t.Fatalf("price at should succeed: %v", err)
	}
	if price.String() != "68050" {
		t.Fatalf("price = %s, want 68050", price.String())
	}
}

func TestPriceAtMissingCandle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := testBinance(srv.URL).PriceAt(context.Background(), time.Now(), "5m")
	if !errors.Is(err, model.ErrPriceUnavailable) {
		t.Fatalf("missing candle must be ErrPriceUnavailable, got %v", err)
	}
}

func TestHistoryClientErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	_, err := testBinance(srv.URL).History(context.Background(), "5m", 10)
	if !errors.Is(err, model.ErrPriceUnavailable) {
		t.Fatalf("client error must surface as ErrPriceUnavailable, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("4xx responses must not be retried, got %d calls", calls)
	}
}
