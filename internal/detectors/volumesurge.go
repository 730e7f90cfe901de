package detectors

import (
	"context"
	"math"

	"github.com/markcheno/go-talib"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/pkg/logger"
)

const (
	volumeSurgeWindow   = 30
	volumeSurgeMinRatio = 2.0
	volumeSurgeMinMove  = 0.002 // last-candle body as fraction of price
)

// VolumeSurge votes with the direction of a decisive candle printed on at
// least twice the average volume, using OBV slope as a tiebreaker on whether
// the surge is accumulation or distribution.
type VolumeSurge struct {
	logger *logger.Logger
}

func NewVolumeSurge(log *logger.Logger) *VolumeSurge {
	return &VolumeSurge{logger: log.Component("detector.volumesurge")}
}

func (d *VolumeSurge) Name() string { return "volume_surge" }

func (d *VolumeSurge) Evaluate(ctx context.Context, snapshot *contracts.MarketSnapshot) (*contracts.Vote, error) {
	if !snapshot.HasCandles(volumeSurgeWindow) {
		return nil, nil
	}

	candles := snapshot.Candles
	lastCandle := candles[len(candles)-1]
	if lastCandle.Close <= 0 {
		return nil, nil
	}

	baseline := avg(volumes(candles[:len(candles)-1]))
	if baseline <= 0 {
		return nil, nil
	}
	ratio := lastCandle.Volume / baseline
	if ratio < volumeSurgeMinRatio {
		return nil, nil
	}

	body := (lastCandle.Close - lastCandle.Open) / lastCandle.Close
	if math.Abs(body) < volumeSurgeMinMove {
		// High volume with no displacement is churn, not direction.
		return nil, nil
	}

	obv := talib.Obv(closes(candles), volumes(candles))
	obvSlope := 0.0
	if len(obv) >= 5 {
		obvSlope = obv[len(obv)-1] - obv[len(obv)-5]
	}

	direction := contracts.Long
	if body < 0 {
		direction = contracts.Short
	}

	d.logger.WithFields(map[string]interface{}{
		"symbol":       snapshot.Symbol,
		"volume_ratio": ratio,
		"body":         body,
		"obv_slope":    obvSlope,
		"direction":    direction,
	}).Debug("Volume surge evaluated")

	// OBV agreeing with the candle direction adds conviction, disagreeing
	// removes it.
	confidence := 45 + math.Min(ratio-volumeSurgeMinRatio, 3)*10
	if (direction == contracts.Long && obvSlope > 0) || (direction == contracts.Short && obvSlope < 0) {
		confidence += 10
	} else if obvSlope != 0 {
		confidence -= 10
	}

	return &contracts.Vote{
		Detector:   d.Name(),
		Direction:  direction,
		Confidence: clampConfidence(confidence),
	}, nil
}
