package detectors

import (
	"context"

	"github.com/markcheno/go-talib"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/pkg/logger"
)

const (
	meanRevWindow     = 30
	meanRevRSIPeriod  = 14
	meanRevOversold   = 30.0
	meanRevOverbought = 70.0
)

// MeanReversion fades RSI extremes when price has also stretched outside its
// Bollinger band. Both conditions must hold; an RSI extreme inside the band
// is treated as trend continuation, not an edge.
type MeanReversion struct {
	logger *logger.Logger
}

func NewMeanReversion(log *logger.Logger) *MeanReversion {
	return &MeanReversion{logger: log.Component("detector.meanreversion")}
}

func (d *MeanReversion) Name() string { return "mean_reversion" }

func (d *MeanReversion) Evaluate(ctx context.Context, snapshot *contracts.MarketSnapshot) (*contracts.Vote, error) {
	if !snapshot.HasCandles(meanRevWindow) {
		return nil, nil
	}

	closeSeries := closes(snapshot.Candles)
	price := last(closeSeries)
	if price <= 0 {
		return nil, nil
	}

	rsi := last(talib.Rsi(closeSeries, meanRevRSIPeriod))
	upper, middle, lower := talib.BBands(closeSeries, 20, 2.0, 2.0, talib.SMA)
	bandUpper, bandMiddle, bandLower := last(upper), last(middle), last(lower)

	d.logger.WithFields(map[string]interface{}{
		"symbol":     snapshot.Symbol,
		"rsi":        rsi,
		"band_upper": bandUpper,
		"band_lower": bandLower,
	}).Debug("Mean reversion evaluated")

	switch {
	case rsi <= meanRevOversold && price <= bandLower:
		// Deeper oversold reads as stronger conviction: RSI 30 -> 50, RSI 0 -> 95.
		confidence := clampConfidence(50 + (meanRevOversold-rsi)*1.5)
		return &contracts.Vote{
			Detector:   d.Name(),
			Direction:  contracts.Long,
			Confidence: confidence,
			Target:     bandMiddle,
			Stop:       price - (bandMiddle-price)*0.5,
		}, nil

	case rsi >= meanRevOverbought && price >= bandUpper:
		confidence := clampConfidence(50 + (rsi-meanRevOverbought)*1.5)
		return &contracts.Vote{
			Detector:   d.Name(),
			Direction:  contracts.Short,
			Confidence: confidence,
			Target:     bandMiddle,
			Stop:       price + (price-bandMiddle)*0.5,
		}, nil
	}

	return nil, nil
}
