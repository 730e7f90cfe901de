package detectors

import (
	"context"
	"math"

	"github.com/markcheno/go-talib"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/pkg/logger"
)

const (
	breakoutWindow    = 30
	breakoutLookback  = 20
	breakoutMinVolume = 1.3 // last-candle volume vs lookback average
)

// Breakout fires when the latest close clears the prior lookback high or low
// on above-average volume. A channel break without volume is ignored; thin
// breaks are where most fakeouts live.
type Breakout struct {
	logger *logger.Logger
}

func NewBreakout(log *logger.Logger) *Breakout {
	return &Breakout{logger: log.Component("detector.breakout")}
}

func (d *Breakout) Name() string { return "breakout" }

func (d *Breakout) Evaluate(ctx context.Context, snapshot *contracts.MarketSnapshot) (*contracts.Vote, error) {
	if !snapshot.HasCandles(breakoutWindow) {
		return nil, nil
	}

	candles := snapshot.Candles
	lastCandle := candles[len(candles)-1]
	price := lastCandle.Close
	if price <= 0 {
		return nil, nil
	}

	// Channel over the lookback, excluding the candle being judged.
	window := candles[len(candles)-1-breakoutLookback : len(candles)-1]
	channelHigh := 0.0
	channelLow := math.MaxFloat64
	for _, c := range window {
		if c.High > channelHigh {
			channelHigh = c.High
		}
		if c.Low < channelLow {
			channelLow = c.Low
		}
	}

	volumeRatio := 0.0
	if windowVol := avg(volumes(window)); windowVol > 0 {
		volumeRatio = lastCandle.Volume / windowVol
	}

	var direction contracts.Direction
	var breakPct float64
	switch {
	case price > channelHigh:
		direction = contracts.Long
		breakPct = (price - channelHigh) / channelHigh
	case price < channelLow:
		direction = contracts.Short
		breakPct = (channelLow - price) / channelLow
	default:
		return nil, nil
	}

	d.logger.WithFields(map[string]interface{}{
		"symbol":       snapshot.Symbol,
		"direction":    direction,
		"break_pct":    breakPct,
		"volume_ratio": volumeRatio,
	}).Debug("Breakout evaluated")

	if volumeRatio < breakoutMinVolume {
		return nil, nil
	}

	// Base 55, plus the size of the break and the strength of the volume
	// confirmation.
	confidence := clampConfidence(55 + breakPct*400 + (volumeRatio-breakoutMinVolume)*10)

	atr := last(talib.Atr(highs(candles), lows(candles), closes(candles), 14))
	vote := &contracts.Vote{
		Detector:   d.Name(),
		Direction:  direction,
		Confidence: confidence,
	}
	if atr > 0 {
		if direction == contracts.Long {
			vote.Target = price + 2.5*atr
			vote.Stop = channelHigh - 0.5*atr
		} else {
			vote.Target = price - 2.5*atr
			vote.Stop = channelLow + 0.5*atr
		}
	}
	return vote, nil
}
