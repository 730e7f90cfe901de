package enrich

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/pkg/config"
	"github.com/ignitex/engine/pkg/httputil"
	"github.com/ignitex/engine/pkg/logger"
	"github.com/ignitex/engine/pkg/redis"
)

func flatCandles(n int, price, volume float64) []contracts.OHLC {
	candles := make([]contracts.OHLC, n)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i] = contracts.OHLC{
			OpenTime: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:     price,
			High:     price * 1.001,
			Low:      price * 0.999,
			Close:    price,
			Volume:   volume,
		}
	}
	return candles
}

func TestFeatures_EmptySnapshotIsNeutral(t *testing.T) {
	e := New(nil, logger.NewNop())

	got := e.Features(context.Background(), &contracts.MarketSnapshot{Symbol: "BTCUSDT"})
	want := contracts.NeutralFeatures()

	if got != want {
		t.Errorf("features = %+v, want neutral %+v", got, want)
	}
}

func TestFeatures_VolumeRatio(t *testing.T) {
	candles := flatCandles(40, 100, 1000)
	candles[len(candles)-1].Volume = 3000

	e := New(nil, logger.NewNop())
	got := e.Features(context.Background(), &contracts.MarketSnapshot{Symbol: "X", Candles: candles})

	if math.Abs(got.VolumeRatio-3.0) > 0.01 {
		t.Errorf("volume ratio = %.3f, want 3.0", got.VolumeRatio)
	}
}

func TestFeatures_Momentum(t *testing.T) {
	candles := flatCandles(40, 100, 1000)
	// 5% rise over the momentum window.
	for i := len(candles) - momentumWindow; i < len(candles); i++ {
		candles[i].Close = 105
		candles[i].High = 105.2
		candles[i].Low = 104.8
	}

	e := New(nil, logger.NewNop())
	got := e.Features(context.Background(), &contracts.MarketSnapshot{Symbol: "X", Candles: candles})

	if math.Abs(got.Momentum-0.05) > 0.001 {
		t.Errorf("momentum = %.4f, want 0.05", got.Momentum)
	}
}

func TestFeatures_Volatility(t *testing.T) {
	candles := flatCandles(40, 100, 1000)

	e := New(nil, logger.NewNop())
	got := e.Features(context.Background(), &contracts.MarketSnapshot{Symbol: "X", Candles: candles})

	// Flat candles with a 0.2% high-low range give a small positive ATR
	// fraction.
	if got.Volatility <= 0 || got.Volatility > 0.01 {
		t.Errorf("volatility = %.5f, want small positive", got.Volatility)
	}
}

func TestLiquidityScore(t *testing.T) {
	tests := []struct {
		name     string
		bid, ask float64
		want     float64
		tol      float64
	}{
		{"tight spread", 99.995, 100.005, 0.99, 0.011},
		{"wide spread", 99.0, 101.0, 0, 0.001},
		{"missing quote", 0, 0, 0.5, 0.001},
		{"crossed book", 101, 100, 0.5, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := liquidityScore(&contracts.Ticker{Bid: tt.bid, Ask: tt.ask})
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("liquidityScore = %.4f, want %.4f", got, tt.want)
			}
		})
	}
}

func TestParseIndex(t *testing.T) {
	html := `<html><body><div class="fng-circle">72</div></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}

	got, err := parseIndex(doc)
	if err != nil {
		t.Fatalf("parseIndex: %v", err)
	}
	if got != 72 {
		t.Errorf("index = %.1f, want 72", got)
	}
}

func TestParseIndex_MissingElement(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(`<html><body></body></html>`))
	if _, err := parseIndex(doc); err == nil {
		t.Error("expected error for missing index element")
	}
}

func TestSentimentClient_FetchAndDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div class="fng-circle">31</div></body></html>`))
	}))
	defer srv.Close()

	rc, err := redis.New(&config.Config{})
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	cache := redis.NewCache(rc, "test")
	httpClient := httputil.New(logger.NewNop(), 2*time.Second).DisableRetry()

	sc := NewSentimentClient(config.SentimentConfig{
		URL:      srv.URL,
		Enabled:  true,
		CacheTTL: time.Minute,
	}, httpClient, cache, logger.NewNop())

	got, ok := sc.Index(context.Background())
	if !ok {
		t.Fatal("expected sentiment index")
	}
	if got != 31 {
		t.Errorf("index = %.1f, want 31", got)
	}

	disabled := NewSentimentClient(config.SentimentConfig{Enabled: false}, httpClient, cache, logger.NewNop())
	if _, ok := disabled.Index(context.Background()); ok {
		t.Error("disabled client should report unavailable")
	}
}

func TestFeatures_SentimentFallsBackNeutral(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	rc, _ := redis.New(&config.Config{})
	httpClient := httputil.New(logger.NewNop(), time.Second).DisableRetry()
	sc := NewSentimentClient(config.SentimentConfig{URL: srv.URL, Enabled: true, CacheTTL: time.Minute},
		httpClient, redis.NewCache(rc, "test"), logger.NewNop())

	e := New(sc, logger.NewNop())
	got := e.Features(context.Background(), &contracts.MarketSnapshot{Symbol: "X"})
	if got.Sentiment != 50 {
		t.Errorf("sentiment = %.1f, want neutral 50", got.Sentiment)
	}
}
