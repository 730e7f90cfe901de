package consensus

import (
	"context"
	"fmt"
	"time"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/internal/strategyconfig"
	"github.com/ignitex/engine/pkg/logger"
)

// Aggregator combines detector votes into a single Candidate per symbol per
// cycle. It has no side effects beyond PerformanceRecord reads; rejected
// drafts are reported back as a reason string for the pipeline audit log.
type Aggregator struct {
	cfg    *strategyconfig.Config
	perf   contracts.PerformanceRepository
	logger *logger.Logger
}

func New(cfg *strategyconfig.Config, perf contracts.PerformanceRepository, log *logger.Logger) *Aggregator {
	return &Aggregator{
		cfg:    cfg,
		perf:   perf,
		logger: log.Component("consensus"),
	}
}

// Input is one symbol's evaluation-cycle draft.
type Input struct {
	Symbol   string
	Votes    []contracts.Vote
	Regime   contracts.RegimeReading
	Features contracts.MarketFeatures
	Price    float64
	Now      time.Time
}

// Aggregate weighs the votes and derives direction, confidence and tier. It
// returns a nil candidate with a reason when the draft does not clear the
// consensus ladder; reason is empty only alongside a non-nil candidate.
func (a *Aggregator) Aggregate(ctx context.Context, in Input) (*contracts.Candidate, string) {
	if len(in.Votes) < a.cfg.Consensus.MinDetectors {
		return nil, fmt.Sprintf("only %d of %d required detectors voted", len(in.Votes), a.cfg.Consensus.MinDetectors)
	}
	if in.Price <= 0 {
		return nil, "no market price at evaluation time"
	}

	votes := make([]contracts.Vote, len(in.Votes))
	copy(votes, in.Votes)

	// Per-vote weight: the detector's regime win-rate (neutral 0.5 maps to
	// 1.0) times a boost or dampen once the record is reliable.
	var longScore, shortScore, totalWeight float64
	for i := range votes {
		weight := a.voteWeight(ctx, votes[i].Detector, in.Regime.Regime)
		votes[i].Weight = weight
		totalWeight += weight

		weighted := weight * votes[i].Confidence
		if votes[i].Direction == contracts.Long {
			longScore += weighted
		} else {
			shortScore += weighted
		}
	}
	if totalWeight == 0 {
		return nil, "all detector weights collapsed to zero"
	}

	direction := contracts.Long
	if shortScore > longScore {
		direction = contracts.Short
	}

	var agreeWeight, agreeCount float64
	var leadDetector string
	var leadScore float64
	for _, v := range votes {
		if v.Direction != direction {
			continue
		}
		agreeWeight += v.Weight
		agreeCount++
		if score := v.Weight * v.Confidence; score > leadScore {
			leadScore = score
			leadDetector = v.Detector
		}
	}

	// Dissenting votes count as zero, so confidence is the weighted average
	// vote confidence discounted by disagreement.
	var winning float64
	if direction == contracts.Long {
		winning = longScore
	} else {
		winning = shortScore
	}
	confidence := winning / totalWeight
	agreementRatio := agreeWeight / totalWeight

	tier := a.tierOf(confidence, agreementRatio, int(agreeCount), len(votes))

	a.logger.WithFields(map[string]interface{}{
		"symbol":     in.Symbol,
		"direction":  direction,
		"confidence": confidence,
		"agreement":  agreementRatio,
		"tier":       tier,
		"lead":       leadDetector,
		"votes":      len(votes),
	}).Debug("Consensus aggregated")

	if tier == contracts.TierLow {
		return nil, fmt.Sprintf("consensus tier LOW (confidence %.1f, agreement %.2f)", confidence, agreementRatio)
	}

	return &contracts.Candidate{
		Symbol:           in.Symbol,
		Direction:        direction,
		Votes:            votes,
		Confidence:       confidence,
		AgreementRatio:   agreementRatio,
		Tier:             tier,
		Regime:           in.Regime.Regime,
		RegimeConfidence: in.Regime.Confidence,
		Strategy:         leadDetector,
		Features:         in.Features,
		Price:            in.Price,
		CreatedAt:        in.Now,
	}, ""
}

// voteWeight maps a detector's regime performance into a multiplicative
// weight. Unknown or unreliable records stay neutral at 1.0.
func (a *Aggregator) voteWeight(ctx context.Context, detector string, regime contracts.Regime) float64 {
	record, err := a.perf.Get(ctx, detector, regime)
	if err != nil {
		a.logger.WithError(err).WithField("detector", detector).Warn("Performance read failed, weighting neutrally")
		return 1.0
	}

	winRate := record.WinRate()
	weight := winRate * 2 // 0.5 win-rate is the neutral 1.0

	if record.Reliable(a.cfg.Consensus.PerformanceMinSamples) {
		switch {
		case winRate > 0.55:
			weight *= a.cfg.Consensus.RegimeBoost
		case winRate < 0.45:
			weight *= a.cfg.Consensus.RegimeDampen
		}
	}
	return weight
}

// tierOf applies the ladder: PREMIUM needs unanimous high-confidence
// agreement, HIGH a strong majority, MEDIUM a simple majority.
func (a *Aggregator) tierOf(confidence, agreementRatio float64, agreeCount, total int) contracts.QualityTier {
	c := a.cfg.Consensus
	switch {
	case agreeCount == total && confidence >= c.PremiumMinConfidence:
		return contracts.TierPremium
	case agreementRatio >= 2.0/3.0 && confidence >= c.HighMinConfidence:
		return contracts.TierHigh
	case agreementRatio > 0.5 && confidence >= c.MediumMinConfidence:
		return contracts.TierMedium
	default:
		return contracts.TierLow
	}
}
