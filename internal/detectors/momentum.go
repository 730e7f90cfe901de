package detectors

import (
	"context"
	"math"

	"github.com/markcheno/go-talib"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/pkg/logger"
)

const (
	momentumWindow   = 30
	momentumMinScore = 0.15
)

// Momentum votes with the direction of recent price drift, confirmed by
// volume growth. Score blends a short and a medium lookback return so a
// single candle cannot flip the vote.
type Momentum struct {
	logger *logger.Logger
}

func NewMomentum(log *logger.Logger) *Momentum {
	return &Momentum{logger: log.Component("detector.momentum")}
}

func (d *Momentum) Name() string { return "momentum" }

func (d *Momentum) Evaluate(ctx context.Context, snapshot *contracts.MarketSnapshot) (*contracts.Vote, error) {
	if !snapshot.HasCandles(momentumWindow) {
		return nil, nil
	}

	closeSeries := closes(snapshot.Candles)
	volSeries := volumes(snapshot.Candles)
	price := last(closeSeries)
	if price <= 0 {
		return nil, nil
	}

	returnShort := periodReturn(closeSeries, 10)
	returnMedium := periodReturn(closeSeries, 20)
	volumeGrowth := volumeGrowth(volSeries, 10)

	// Short return 45%, medium 35%, volume confirmation 20%. Tanh keeps
	// a runaway pump from saturating the rest of the pipeline.
	raw := returnShort*0.45 + returnMedium*0.35 + volumeGrowth*0.20
	score := math.Tanh(raw * 8)

	d.logger.WithFields(map[string]interface{}{
		"symbol":        snapshot.Symbol,
		"return_short":  returnShort,
		"return_medium": returnMedium,
		"volume_growth": volumeGrowth,
		"score":         score,
	}).Debug("Momentum evaluated")

	if math.Abs(score) < momentumMinScore {
		return nil, nil
	}

	direction := contracts.Long
	if score < 0 {
		direction = contracts.Short
	}

	atr := last(talib.Atr(highs(snapshot.Candles), lows(snapshot.Candles), closeSeries, 14))
	vote := &contracts.Vote{
		Detector:   d.Name(),
		Direction:  direction,
		Confidence: clampConfidence(math.Abs(score) * 100),
	}
	if atr > 0 {
		if direction == contracts.Long {
			vote.Target = price + 3*atr
			vote.Stop = price - 1.5*atr
		} else {
			vote.Target = price - 3*atr
			vote.Stop = price + 1.5*atr
		}
	}
	return vote, nil
}

// periodReturn is the fractional price change over the last n candles.
func periodReturn(closeSeries []float64, n int) float64 {
	if len(closeSeries) < n+1 {
		return 0
	}
	past := closeSeries[len(closeSeries)-1-n]
	if past == 0 {
		return 0
	}
	return (last(closeSeries) - past) / past
}

// volumeGrowth compares the recent n-candle average volume against the
// preceding n candles.
func volumeGrowth(volSeries []float64, n int) float64 {
	if len(volSeries) < 2*n {
		return 0
	}
	recent := avg(volSeries[len(volSeries)-n:])
	past := avg(volSeries[len(volSeries)-2*n : len(volSeries)-n])
	if past == 0 {
		return 0
	}
	return (recent - past) / past
}
