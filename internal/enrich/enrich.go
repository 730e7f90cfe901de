package enrich

import (
	"context"
	"math"

	"github.com/markcheno/go-talib"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/pkg/logger"
)

const (
	atrPeriod      = 14
	volumeWindow   = 20
	momentumWindow = 10
)

// Enricher derives the scoring feature set from a market snapshot plus the
// global sentiment index. Every feature degrades to its neutral value when
// the underlying data is missing, never to a fabricated one.
type Enricher struct {
	sentiment *SentimentClient
	logger    *logger.Logger
}

// New creates an enricher. sentiment may be nil when the scraper is
// disabled; the sentiment feature then stays neutral.
func New(sentiment *SentimentClient, log *logger.Logger) *Enricher {
	return &Enricher{
		sentiment: sentiment,
		logger:    log.Component("enrich"),
	}
}

// Features computes the enrichment features for one symbol snapshot.
func (e *Enricher) Features(ctx context.Context, snap *contracts.MarketSnapshot) contracts.MarketFeatures {
	f := contracts.NeutralFeatures()
	if snap == nil {
		return f
	}

	if snap.HasCandles(atrPeriod + 1) {
		f.Volatility = atrFraction(snap.Candles)
	}
	if snap.HasCandles(volumeWindow + 1) {
		f.VolumeRatio = volumeRatio(snap.Candles)
	}
	if snap.HasCandles(momentumWindow + 1) {
		f.Momentum = momentum(snap.Candles)
	}
	if snap.Ticker != nil {
		f.Liquidity = liquidityScore(snap.Ticker)
	}

	if e.sentiment != nil {
		if idx, ok := e.sentiment.Index(ctx); ok {
			f.Sentiment = idx
		}
	}

	return f
}

// atrFraction is the latest ATR divided by the latest close, so downstream
// consumers see volatility as a fraction of price regardless of symbol scale.
func atrFraction(candles []contracts.OHLC) float64 {
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}

	atr := talib.Atr(highs, lows, closes, atrPeriod)
	last := closes[len(closes)-1]
	if last <= 0 {
		return 0
	}
	v := atr[len(atr)-1] / last
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

// volumeRatio compares the latest candle volume against the trailing
// average, excluding the latest candle from the baseline.
func volumeRatio(candles []contracts.OHLC) float64 {
	last := candles[len(candles)-1]
	base := candles[len(candles)-1-volumeWindow : len(candles)-1]

	var sum float64
	for _, c := range base {
		sum += c.Volume
	}
	avg := sum / float64(len(base))
	if avg <= 0 {
		return 1.0
	}
	return last.Volume / avg
}

// momentum is the signed fractional return over the window.
func momentum(candles []contracts.OHLC) float64 {
	last := candles[len(candles)-1].Close
	prev := candles[len(candles)-1-momentumWindow].Close
	if prev <= 0 {
		return 0
	}
	return (last - prev) / prev
}

// liquidityScore maps bid/ask spread to a 0-1 score. A tight spread scores
// near 1; a spread of 1% or more scores 0. Missing quote data is neutral.
func liquidityScore(t *contracts.Ticker) float64 {
	if t.Bid <= 0 || t.Ask <= 0 || t.Ask < t.Bid {
		return 0.5
	}
	mid := (t.Bid + t.Ask) / 2
	spread := (t.Ask - t.Bid) / mid

	score := 1.0 - spread/0.01
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
