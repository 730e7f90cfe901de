package quality

import (
	"context"
	"fmt"
	"math"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/internal/strategyconfig"
	"github.com/ignitex/engine/pkg/logger"
)

// CalibrationSource exposes the live calibration table. The learning loop
// owns the table; the scorer only reads it.
type CalibrationSource interface {
	Table() *contracts.CalibrationTable
}

// Scorer is the final quality gate: a weighted sub-score model plus a
// logistic win-probability estimate calibrated against observed outcomes.
// Every intermediate number is emitted so thresholds can be tuned offline
// from the rejection log alone.
type Scorer struct {
	cfg    *strategyconfig.Config
	perf   contracts.PerformanceRepository
	calib  CalibrationSource
	logger *logger.Logger
}

func New(cfg *strategyconfig.Config, perf contracts.PerformanceRepository, calib CalibrationSource, log *logger.Logger) *Scorer {
	return &Scorer{
		cfg:    cfg,
		perf:   perf,
		calib:  calib,
		logger: log.Component("quality"),
	}
}

// Result is the structured accept/reject record for one candidate.
type Result struct {
	Passed          bool
	Score           float64 // 0-100 weighted sum
	RawProbability  float64 // 0-1 logistic output
	CalibratedProb  float64 // 0-1 after the calibration table
	StrategyWinRate float64
	RegimeBias      float64
	SubScores       map[string]float64
	Reason          string // empty when passed
}

// Confidence is the calibrated probability expressed on the signal's 0-100
// confidence scale.
func (r Result) Confidence() float64 {
	return r.CalibratedProb * 100
}

// Numbers flattens every intermediate value for the rejection log.
func (r Result) Numbers() map[string]float64 {
	out := map[string]float64{
		"score":             r.Score,
		"raw_probability":   r.RawProbability,
		"calibrated_prob":   r.CalibratedProb,
		"strategy_win_rate": r.StrategyWinRate,
		"regime_bias":       r.RegimeBias,
	}
	for k, v := range r.SubScores {
		out["sub_"+k] = v
	}
	return out
}

// Score evaluates a gate-passed candidate against the tunable thresholds.
func (s *Scorer) Score(ctx context.Context, candidate *contracts.Candidate) Result {
	record, err := s.perf.Get(ctx, candidate.Strategy, candidate.Regime)
	if err != nil {
		s.logger.WithError(err).WithField("strategy", candidate.Strategy).
			Warn("Performance read failed, using neutral win rate")
		record = nil
	}
	winRate := record.WinRate()

	subs := s.subScores(candidate, winRate)
	w := s.cfg.Quality.Weights
	score := subs["confidence"]*w.Confidence +
		subs["win_rate"]*w.WinRate +
		subs["volatility"]*w.Volatility +
		subs["liquidity"]*w.Liquidity +
		subs["volume"]*w.Volume +
		subs["sentiment"]*w.Sentiment

	rawProb := s.winProbability(candidate, winRate, score)
	calibrated := s.calib.Table().Calibrate(rawProb, s.cfg.Quality.CalibrationMinSamples)

	// Regime bias scales every threshold: looser in range-bound, stricter
	// in trends. An uncertain regime read tightens further.
	bias := s.cfg.QualityBias(candidate.Regime)
	if candidate.RegimeConfidence < s.cfg.Gate.LowRegimeConfidence {
		bias = math.Max(bias, 1.0) * 1.15
	}

	result := Result{
		Score:           score,
		RawProbability:  rawProb,
		CalibratedProb:  calibrated,
		StrategyWinRate: winRate,
		RegimeBias:      bias,
		SubScores:       subs,
	}

	minScore := s.cfg.Quality.MinScore * bias
	minProb := s.cfg.Quality.MinWinProbability * bias
	minWinRate := s.cfg.Quality.MinStrategyWinRate * bias

	switch {
	case score < minScore:
		result.Reason = fmt.Sprintf("quality score %.1f below %.1f", score, minScore)
	case calibrated < minProb:
		result.Reason = fmt.Sprintf("calibrated win probability %.3f below %.3f", calibrated, minProb)
	case record.Reliable(s.cfg.Consensus.PerformanceMinSamples) && winRate < minWinRate:
		result.Reason = fmt.Sprintf("strategy %s win rate %.3f below %.3f in %s",
			candidate.Strategy, winRate, minWinRate, candidate.Regime)
	default:
		result.Passed = true
	}

	s.logger.WithFields(map[string]interface{}{
		"symbol":          candidate.Symbol,
		"score":           score,
		"raw_prob":        rawProb,
		"calibrated_prob": calibrated,
		"win_rate":        winRate,
		"bias":            bias,
		"passed":          result.Passed,
	}).Debug("Quality scored")

	return result
}

// subScores maps each feature onto a 0-100 scale. Missing features arrive at
// their neutral defaults upstream, so no branch here fabricates data.
func (s *Scorer) subScores(candidate *contracts.Candidate, winRate float64) map[string]float64 {
	f := candidate.Features

	// Sentiment is directional: a fearful market favors shorts.
	sentiment := f.Sentiment
	if candidate.Direction == contracts.Short {
		sentiment = 100 - sentiment
	}

	return map[string]float64{
		"confidence": clamp100(candidate.Confidence),
		"win_rate":   clamp100(winRate * 100),
		"volatility": volatilityScore(f.Volatility),
		"liquidity":  clamp100(f.Liquidity * 100),
		"volume":     volumeScore(f.VolumeRatio),
		"sentiment":  clamp100(sentiment),
	}
}

// winProbability is a logistic blend of the model's strongest inputs. The
// coefficients are shape, not tuning; calibration corrects the level.
func (s *Scorer) winProbability(candidate *contracts.Candidate, winRate, score float64) float64 {
	momentumAligned := candidate.Features.Momentum
	if candidate.Direction == contracts.Short {
		momentumAligned = -momentumAligned
	}

	z := 3.0*(candidate.Confidence/100-0.5) +
		2.0*(winRate-0.5) +
		1.0*(score/100-0.5) +
		0.5*math.Tanh(momentumAligned*10)
	return 1 / (1 + math.Exp(-z))
}

// volatilityScore peaks in the tradeable band: no movement scores zero and
// extreme volatility tapers off because barriers get blown through.
func volatilityScore(vol float64) float64 {
	switch {
	case vol <= 0:
		return 0
	case vol < 0.01:
		return vol / 0.01 * 80
	case vol <= 0.04:
		return 80 + (vol-0.01)/0.03*20
	case vol <= 0.10:
		return 100 - (vol-0.04)/0.06*60
	default:
		return 40
	}
}

// volumeScore rewards above-average participation: ratio 0.5 scores zero,
// 1.0 is neutral, 2.0 and above saturate.
func volumeScore(ratio float64) float64 {
	return clamp100((ratio - 0.5) / 1.5 * 100)
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
