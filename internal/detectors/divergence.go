package detectors

import (
	"context"

	"github.com/markcheno/go-talib"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/pkg/logger"
)

const (
	divergenceWindow    = 40
	divergencePivotSpan = 3 // candles on each side that must be higher/lower
	divergenceRSIPeriod = 14
)

// RSIDivergence looks for the classic reversal setup: price prints a lower
// low while RSI prints a higher low (bullish), or a higher high against a
// lower RSI high (bearish). Pivots are confirmed swing points, so the vote
// lags the extreme by a few candles by construction.
type RSIDivergence struct {
	logger *logger.Logger
}

func NewRSIDivergence(log *logger.Logger) *RSIDivergence {
	return &RSIDivergence{logger: log.Component("detector.divergence")}
}

func (d *RSIDivergence) Name() string { return "rsi_divergence" }

func (d *RSIDivergence) Evaluate(ctx context.Context, snapshot *contracts.MarketSnapshot) (*contracts.Vote, error) {
	if !snapshot.HasCandles(divergenceWindow) {
		return nil, nil
	}

	closeSeries := closes(snapshot.Candles)
	rsi := talib.Rsi(closeSeries, divergenceRSIPeriod)

	lowPivots := findPivots(closeSeries, divergencePivotSpan, false)
	if len(lowPivots) >= 2 {
		prev, curr := lowPivots[len(lowPivots)-2], lowPivots[len(lowPivots)-1]
		// Pivots inside the RSI warmup have no real RSI value.
		if prev >= divergenceRSIPeriod && closeSeries[curr] < closeSeries[prev] && rsi[curr] > rsi[prev] {
			confidence := clampConfidence(50 + (rsi[curr]-rsi[prev])*2)
			d.logDivergence(snapshot.Symbol, "bullish", prev, curr, rsi[curr]-rsi[prev])
			return &contracts.Vote{
				Detector:   d.Name(),
				Direction:  contracts.Long,
				Confidence: confidence,
			}, nil
		}
	}

	highPivots := findPivots(closeSeries, divergencePivotSpan, true)
	if len(highPivots) >= 2 {
		prev, curr := highPivots[len(highPivots)-2], highPivots[len(highPivots)-1]
		if prev >= divergenceRSIPeriod && closeSeries[curr] > closeSeries[prev] && rsi[curr] < rsi[prev] {
			confidence := clampConfidence(50 + (rsi[prev]-rsi[curr])*2)
			d.logDivergence(snapshot.Symbol, "bearish", prev, curr, rsi[prev]-rsi[curr])
			return &contracts.Vote{
				Detector:   d.Name(),
				Direction:  contracts.Short,
				Confidence: confidence,
			}, nil
		}
	}

	return nil, nil
}

func (d *RSIDivergence) logDivergence(symbol, kind string, prev, curr int, rsiGap float64) {
	d.logger.WithFields(map[string]interface{}{
		"symbol":     symbol,
		"kind":       kind,
		"prev_pivot": prev,
		"curr_pivot": curr,
		"rsi_gap":    rsiGap,
	}).Debug("RSI divergence detected")
}

// findPivots returns indexes of confirmed swing points: candles whose close
// is the extreme of the span candles on each side.
func findPivots(series []float64, span int, high bool) []int {
	var pivots []int
	for i := span; i < len(series)-span; i++ {
		isPivot := true
		for j := i - span; j <= i+span && isPivot; j++ {
			if j == i {
				continue
			}
			if high && series[j] >= series[i] {
				isPivot = false
			}
			if !high && series[j] <= series[i] {
				isPivot = false
			}
		}
		if isPivot {
			pivots = append(pivots, i)
		}
	}
	return pivots
}
