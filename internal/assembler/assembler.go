package assembler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/internal/quality"
	"github.com/ignitex/engine/internal/strategyconfig"
	"github.com/ignitex/engine/pkg/logger"
)

// minVolatility floors the barrier distance so a dead market still produces
// barriers the tracker can distinguish from noise.
const minVolatility = 0.003

// Assembler turns an accepted candidate into a fully specified, immutable
// Signal: volatility-scaled stop and targets, a reward:risk floor, a capped
// fractional-Kelly position hint and a regime-scaled expiry.
type Assembler struct {
	cfg    *strategyconfig.Config
	logger *logger.Logger
}

func New(cfg *strategyconfig.Config, log *logger.Logger) *Assembler {
	return &Assembler{cfg: cfg, logger: log.Component("assembler")}
}

// Assemble builds the signal or returns a rejection reason. A reward:risk
// below the configured floor rejects; an invariant violation in the built
// signal is returned as an error because it is a defect, not market noise.
func (a *Assembler) Assemble(ctx context.Context, candidate *contracts.Candidate, score quality.Result, now time.Time) (*contracts.Signal, string, error) {
	entry := candidate.Price
	if entry <= 0 {
		return nil, "no market price to anchor entry", nil
	}

	vol := candidate.Features.Volatility
	if vol < minVolatility {
		vol = minVolatility
	}
	unit := entry * vol // one volatility unit in price terms

	// Higher conviction stretches the targets; the stop does not move.
	confScale := 0.8 + candidate.Confidence/100*0.4

	risk := a.cfg.Risk
	stopDist := risk.StopATRMult * unit
	targets := make([]float64, 0, len(risk.TargetATRMults))
	for _, mult := range risk.TargetATRMults {
		dist := mult * unit * confScale
		if candidate.Direction == contracts.Long {
			targets = append(targets, entry+dist)
		} else {
			targets = append(targets, entry-dist)
		}
	}

	var stop float64
	if candidate.Direction == contracts.Long {
		stop = entry - stopDist
	} else {
		stop = entry + stopDist
	}

	firstTargetDist := risk.TargetATRMults[0] * unit * confScale
	rewardRisk := firstTargetDist / stopDist
	if rewardRisk < risk.RewardRiskFloor {
		return nil, fmt.Sprintf("reward:risk %.2f below floor %.2f", rewardRisk, risk.RewardRiskFloor), nil
	}

	signal := &contracts.Signal{
		ID:           uuid.NewString(),
		Symbol:       candidate.Symbol,
		Direction:    candidate.Direction,
		Entry:        entry,
		StopLoss:     stop,
		Targets:      targets,
		Confidence:   score.Confidence(),
		QualityScore: score.Score,
		Strategy:     candidate.Strategy,
		Regime:       candidate.Regime,
		PositionPct:  a.positionSize(score.CalibratedProb, rewardRisk),
		Rationale:    rationale(candidate, score, rewardRisk),
		State:        contracts.StateActive,
		CreatedAt:    now,
		ExpiresAt:    now.Add(a.cfg.ExpiryFor(candidate.Regime)),
		TargetHit:    -1,
	}

	if err := signal.Validate(); err != nil {
		// Loudly: a signal that fails its own invariants is a bug here,
		// never something to coerce into shape.
		a.logger.WithError(err).WithField("symbol", candidate.Symbol).Error("Assembled signal failed validation")
		return nil, "", fmt.Errorf("assemble %s: %w", candidate.Symbol, err)
	}

	a.logger.WithFields(map[string]interface{}{
		"signal_id":    signal.ID,
		"symbol":       signal.Symbol,
		"direction":    signal.Direction,
		"entry":        signal.Entry,
		"stop":         signal.StopLoss,
		"targets":      signal.Targets,
		"reward_risk":  rewardRisk,
		"position_pct": signal.PositionPct,
		"expires_at":   signal.ExpiresAt,
	}).Debug("Signal assembled")

	return signal, "", nil
}

// positionSize is a capped fractional Kelly: f = kellyFraction * (p(b+1)-1)/b
// with b the reward:risk ratio, clamped to [0, MaxPositionPct].
func (a *Assembler) positionSize(winProb, rewardRisk float64) float64 {
	if rewardRisk <= 0 {
		return 0
	}
	kelly := (winProb*(rewardRisk+1) - 1) / rewardRisk
	size := kelly * a.cfg.Risk.KellyFraction
	if size < 0 {
		return 0
	}
	if size > a.cfg.Risk.MaxPositionPct {
		return a.cfg.Risk.MaxPositionPct
	}
	return size
}

// rationale renders the human-readable story consumers see next to the
// numbers.
func rationale(candidate *contracts.Candidate, score quality.Result, rewardRisk float64) string {
	agree := candidate.AgreeingVotes()
	names := make([]string, len(agree))
	for i, v := range agree {
		names[i] = v.Detector
	}

	return fmt.Sprintf("%s %s: %d/%d detectors agree (%s); %s regime; quality %.0f/100, calibrated win probability %.0f%%, reward:risk %.1f",
		strings.ToUpper(string(candidate.Direction)), candidate.Symbol,
		len(agree), len(candidate.Votes), strings.Join(names, ", "),
		candidate.Regime, score.Score, score.CalibratedProb*100, rewardRisk)
}
