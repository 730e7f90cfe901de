package gate

import (
	"fmt"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/internal/strategyconfig"
	"github.com/ignitex/engine/pkg/logger"
)

// Gate is the regime-aware filter between consensus and quality scoring. The
// bar moves with the regime: range-bound markets admit MEDIUM consensus
// (reward:risk there keeps lower win-rate signals positive expectancy),
// strong trends require HIGH or better, and an uncertain regime read forces
// the strictest requirement no matter what the regime table says.
type Gate struct {
	cfg    *strategyconfig.Config
	logger *logger.Logger
}

func New(cfg *strategyconfig.Config, log *logger.Logger) *Gate {
	return &Gate{cfg: cfg, logger: log.Component("gate")}
}

// Decision is the structured accept/reject record for one candidate.
type Decision struct {
	Passed       bool
	RequiredTier contracts.QualityTier
	Reason       string // empty when passed
}

// Check applies the regime-dependent tier requirement to a candidate.
func (g *Gate) Check(candidate *contracts.Candidate) Decision {
	required := g.cfg.GateMinTier(candidate.Regime, candidate.RegimeConfidence)

	decision := Decision{
		Passed:       candidate.Tier.AtLeast(required),
		RequiredTier: required,
	}
	if !decision.Passed {
		if candidate.RegimeConfidence < g.cfg.Gate.LowRegimeConfidence {
			decision.Reason = fmt.Sprintf(
				"regime read uncertain (%.2f < %.2f): tier %s below required %s",
				candidate.RegimeConfidence, g.cfg.Gate.LowRegimeConfidence,
				candidate.Tier, required)
		} else {
			decision.Reason = fmt.Sprintf(
				"tier %s below %s required in %s regime",
				candidate.Tier, required, candidate.Regime)
		}
	}

	g.logger.WithFields(map[string]interface{}{
		"symbol":        candidate.Symbol,
		"tier":          candidate.Tier,
		"required_tier": required,
		"regime":        candidate.Regime,
		"regime_conf":   candidate.RegimeConfidence,
		"passed":        decision.Passed,
	}).Debug("Gate checked")

	return decision
}
