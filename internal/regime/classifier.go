package regime

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/ignitex/engine/internal/contracts"
)

// MinWindow is the smallest candle window the classifier accepts.
const MinWindow = 20

// Thresholds tune the regime boundaries. Defaults are deliberately coarse;
// the classifier only needs to separate behavior classes, not predict.
type Thresholds struct {
	TrendReturn     float64 // net window return that counts as a trend
	TrendEfficiency float64 // directional efficiency floor for a trend
	RangeWidth      float64 // max window range (fraction of mid) for range-bound
	BreakoutVolume  float64 // last-candle volume vs average for a breakout
	BreakoutRange   float64 // last-candle range vs ATR for a breakout
}

// DefaultThresholds returns the stock boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TrendReturn:     0.03,
		TrendEfficiency: 0.35,
		RangeWidth:      0.05,
		BreakoutVolume:  2.0,
		BreakoutRange:   2.0,
	}
}

// Classifier labels recent market behavior. Classify is a pure function of
// the candle window: same input, same reading.
type Classifier struct {
	thresholds Thresholds
}

// New creates a classifier with default thresholds.
func New() *Classifier {
	return &Classifier{thresholds: DefaultThresholds()}
}

// NewWithThresholds creates a classifier with custom boundaries.
func NewWithThresholds(t Thresholds) *Classifier {
	return &Classifier{thresholds: t}
}

// Classify derives the regime from an OHLC window (oldest first). Too little
// data yields RegimeUnknown with zero confidence, which the gate treats as
// maximally strict.
func (c *Classifier) Classify(candles []contracts.OHLC) contracts.RegimeReading {
	if len(candles) < MinWindow {
		return contracts.RegimeReading{Regime: contracts.RegimeUnknown, Confidence: 0}
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, candle := range candles {
		highs[i] = candle.High
		lows[i] = candle.Low
		closes[i] = candle.Close
		volumes[i] = candle.Volume
	}

	first, last := closes[0], closes[len(closes)-1]
	if first <= 0 {
		return contracts.RegimeReading{Regime: contracts.RegimeUnknown, Confidence: 0}
	}

	netReturn := (last - first) / first
	efficiency := directionalEfficiency(closes)
	width := windowWidth(highs, lows)

	atr := talib.Atr(highs, lows, closes, 14)
	lastATR := atr[len(atr)-1]

	// Breakout check first: a violent last candle overrides the window shape.
	lastCandle := candles[len(candles)-1]
	lastRange := lastCandle.High - lastCandle.Low
	avgVolume := mean(volumes[:len(volumes)-1])
	if lastATR > 0 && avgVolume > 0 {
		volumeSpike := lastCandle.Volume / avgVolume
		rangeSpike := lastRange / lastATR
		if volumeSpike >= c.thresholds.BreakoutVolume && rangeSpike >= c.thresholds.BreakoutRange {
			conf := clamp01(math.Min(volumeSpike/c.thresholds.BreakoutVolume, rangeSpike/c.thresholds.BreakoutRange) / 2)
			return contracts.RegimeReading{Regime: contracts.RegimeVolatileBreakout, Confidence: 0.5 + conf/2}
		}
	}

	// Trend: enough net movement, travelled efficiently.
	if math.Abs(netReturn) >= c.thresholds.TrendReturn && efficiency >= c.thresholds.TrendEfficiency {
		conf := clamp01(efficiency * math.Min(math.Abs(netReturn)/c.thresholds.TrendReturn, 2) / 2)
		regime := contracts.RegimeTrendingUp
		if netReturn < 0 {
			regime = contracts.RegimeTrendingDown
		}
		return contracts.RegimeReading{Regime: regime, Confidence: 0.4 + conf*0.6}
	}

	// Narrow window without a trend is accumulation/range.
	if width <= c.thresholds.RangeWidth {
		conf := clamp01(1 - width/c.thresholds.RangeWidth)
		return contracts.RegimeReading{Regime: contracts.RegimeRangeBound, Confidence: 0.4 + conf*0.6}
	}

	// Wide and inefficient: chop.
	conf := clamp01(1 - efficiency/c.thresholds.TrendEfficiency)
	return contracts.RegimeReading{Regime: contracts.RegimeChoppy, Confidence: 0.3 + conf*0.4}
}

// directionalEfficiency is |net move| divided by total path length: 1 for a
// straight line, near 0 for pure oscillation.
func directionalEfficiency(closes []float64) float64 {
	var path float64
	for i := 1; i < len(closes); i++ {
		path += math.Abs(closes[i] - closes[i-1])
	}
	if path == 0 {
		return 0
	}
	return math.Abs(closes[len(closes)-1]-closes[0]) / path
}

// windowWidth is the high-low envelope as a fraction of the window midpoint.
func windowWidth(highs, lows []float64) float64 {
	hi, lo := highs[0], lows[0]
	for i := range highs {
		if highs[i] > hi {
			hi = highs[i]
		}
		if lows[i] < lo {
			lo = lows[i]
		}
	}
	mid := (hi + lo) / 2
	if mid <= 0 {
		return math.MaxFloat64
	}
	return (hi - lo) / mid
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
