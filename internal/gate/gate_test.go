package gate

import (
	"testing"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/internal/strategyconfig"
	"github.com/ignitex/engine/pkg/logger"
)

func testGate() *Gate {
	cfg := &strategyconfig.Config{}
	cfg.Gate = strategyconfig.Gate{
		MinTier:             "MEDIUM",
		LowRegimeConfidence: 0.4,
		PerRegimeMinTier: map[string]string{
			"RANGE_BOUND":   "MEDIUM",
			"TRENDING_UP":   "HIGH",
			"TRENDING_DOWN": "HIGH",
			"CHOPPY":        "HIGH",
		},
	}
	return New(cfg, logger.NewNop())
}

func candidate(tier contracts.QualityTier, regime contracts.Regime, regimeConf float64) *contracts.Candidate {
	return &contracts.Candidate{
		Symbol:           "BTCUSDT",
		Direction:        contracts.Long,
		Tier:             tier,
		Regime:           regime,
		RegimeConfidence: regimeConf,
	}
}

func TestCheck(t *testing.T) {
	g := testGate()

	tests := []struct {
		name string
		cand *contracts.Candidate
		pass bool
	}{
		{"medium passes in range-bound", candidate(contracts.TierMedium, contracts.RegimeRangeBound, 0.8), true},
		{"medium fails in a trend", candidate(contracts.TierMedium, contracts.RegimeTrendingUp, 0.8), false},
		{"high passes in a trend", candidate(contracts.TierHigh, contracts.RegimeTrendingUp, 0.8), true},
		{"premium passes everywhere", candidate(contracts.TierPremium, contracts.RegimeChoppy, 0.8), true},
		{"medium fails when regime uncertain", candidate(contracts.TierMedium, contracts.RegimeRangeBound, 0.2), false},
		{"high passes when regime uncertain", candidate(contracts.TierHigh, contracts.RegimeRangeBound, 0.2), true},
		{"unmapped regime uses global floor", candidate(contracts.TierMedium, contracts.RegimeUnknown, 0.8), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := g.Check(tt.cand)
			if decision.Passed != tt.pass {
				t.Errorf("passed = %v, want %v (required %s): %s",
					decision.Passed, tt.pass, decision.RequiredTier, decision.Reason)
			}
			if !decision.Passed && decision.Reason == "" {
				t.Error("rejection must carry a reason")
			}
			if decision.Passed && decision.Reason != "" {
				t.Errorf("pass must not carry a reason, got %q", decision.Reason)
			}
		})
	}
}
