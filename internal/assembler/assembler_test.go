package assembler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/internal/quality"
	"github.com/ignitex/engine/internal/strategyconfig"
	"github.com/ignitex/engine/pkg/logger"
)

func testConfig() *strategyconfig.Config {
	cfg := &strategyconfig.Config{}
	cfg.Risk = strategyconfig.Risk{
		RewardRiskFloor: 1.5,
		KellyFraction:   0.25,
		MaxPositionPct:  0.05,
		StopATRMult:     1.5,
		TargetATRMults:  []float64{2.5, 4.0, 6.0},
	}
	cfg.Expiry = strategyconfig.Expiry{
		Base: strategyconfig.Duration(4 * time.Hour),
		Min:  strategyconfig.Duration(1 * time.Hour),
		Max:  strategyconfig.Duration(24 * time.Hour),
		RegimeScale: map[string]float64{
			"RANGE_BOUND":       2.0,
			"VOLATILE_BREAKOUT": 0.5,
		},
	}
	return cfg
}

func acceptedCandidate(dir contracts.Direction) *contracts.Candidate {
	return &contracts.Candidate{
		Symbol:    "BTCUSDT",
		Direction: dir,
		Votes: []contracts.Vote{
			{Detector: "momentum", Direction: dir, Confidence: 85, Weight: 1},
			{Detector: "breakout", Direction: dir, Confidence: 80, Weight: 1},
		},
		Confidence:       82,
		AgreementRatio:   1.0,
		Tier:             contracts.TierHigh,
		Regime:           contracts.RegimeTrendingUp,
		RegimeConfidence: 0.8,
		Strategy:         "momentum",
		Features:         contracts.MarketFeatures{Volatility: 0.02, Liquidity: 0.8, VolumeRatio: 1.5},
		Price:            50000,
	}
}

func passedScore() quality.Result {
	return quality.Result{
		Passed:         true,
		Score:          74,
		RawProbability: 0.68,
		CalibratedProb: 0.62,
	}
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestAssemble_LongSignal(t *testing.T) {
	a := New(testConfig(), logger.NewNop())

	sig, reason, err := a.Assemble(context.Background(), acceptedCandidate(contracts.Long), passedScore(), testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil {
		t.Fatalf("rejected: %s", reason)
	}
	if err := sig.Validate(); err != nil {
		t.Fatalf("assembled signal invalid: %v", err)
	}
	if sig.Entry != 50000 {
		t.Errorf("entry = %v, want market price", sig.Entry)
	}
	if len(sig.Targets) != 3 {
		t.Fatalf("targets = %d, want 3", len(sig.Targets))
	}
	for i := 1; i < len(sig.Targets); i++ {
		if sig.Targets[i] <= sig.Targets[i-1] {
			t.Errorf("long targets not increasing: %v", sig.Targets)
		}
	}
	if rr := sig.RewardRisk(); rr < 1.5 {
		t.Errorf("reward:risk %v below floor", rr)
	}
	if sig.State != contracts.StateActive {
		t.Errorf("state = %s, want ACTIVE", sig.State)
	}
	if sig.TargetHit != -1 {
		t.Errorf("target hit = %d, want -1", sig.TargetHit)
	}
	if !sig.ExpiresAt.After(sig.CreatedAt) {
		t.Error("expiry must be after creation")
	}
}

func TestAssemble_ShortSidesMirror(t *testing.T) {
	a := New(testConfig(), logger.NewNop())

	sig, reason, err := a.Assemble(context.Background(), acceptedCandidate(contracts.Short), passedScore(), testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil {
		t.Fatalf("rejected: %s", reason)
	}
	if sig.StopLoss <= sig.Entry {
		t.Errorf("short stop %v must be above entry %v", sig.StopLoss, sig.Entry)
	}
	for i, tgt := range sig.Targets {
		if tgt >= sig.Entry {
			t.Errorf("short target[%d] %v must be below entry %v", i, tgt, sig.Entry)
		}
	}
}

func TestAssemble_RewardRiskFloorRejects(t *testing.T) {
	cfg := testConfig()
	cfg.Risk.TargetATRMults = []float64{1.0} // nearest target closer than the 1.5x stop
	a := New(cfg, logger.NewNop())

	sig, reason, err := a.Assemble(context.Background(), acceptedCandidate(contracts.Long), passedScore(), testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig != nil {
		t.Fatalf("expected rejection, got signal with RR %v", sig.RewardRisk())
	}
	if reason == "" {
		t.Error("rejection must carry a reason")
	}
}

func TestAssemble_RegimeScalesExpiry(t *testing.T) {
	a := New(testConfig(), logger.NewNop())

	slow := acceptedCandidate(contracts.Long)
	slow.Regime = contracts.RegimeRangeBound
	fast := acceptedCandidate(contracts.Long)
	fast.Regime = contracts.RegimeVolatileBreakout

	slowSig, _, err := a.Assemble(context.Background(), slow, passedScore(), testNow)
	if err != nil || slowSig == nil {
		t.Fatalf("slow assemble failed: %v", err)
	}
	fastSig, _, err := a.Assemble(context.Background(), fast, passedScore(), testNow)
	if err != nil || fastSig == nil {
		t.Fatalf("fast assemble failed: %v", err)
	}

	if !fastSig.ExpiresAt.Before(slowSig.ExpiresAt) {
		t.Errorf("breakout expiry %v should be shorter than range-bound %v",
			fastSig.ExpiresAt, slowSig.ExpiresAt)
	}
}

func TestAssemble_DeadMarketStillHasBarrierWidth(t *testing.T) {
	a := New(testConfig(), logger.NewNop())

	cand := acceptedCandidate(contracts.Long)
	cand.Features.Volatility = 0

	sig, reason, err := a.Assemble(context.Background(), cand, passedScore(), testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil {
		t.Fatalf("rejected: %s", reason)
	}
	if sig.Entry-sig.StopLoss < sig.Entry*minVolatility {
		t.Errorf("stop distance %v collapsed below the volatility floor", sig.Entry-sig.StopLoss)
	}
}

func TestPositionSize(t *testing.T) {
	a := New(testConfig(), logger.NewNop())

	tests := []struct {
		name       string
		winProb    float64
		rewardRisk float64
		check      func(float64) bool
	}{
		{"negative edge is zero", 0.30, 1.5, func(v float64) bool { return v == 0 }},
		{"strong edge hits the cap", 0.90, 3.0, func(v float64) bool { return v == 0.05 }},
		{"moderate edge sits between", 0.45, 1.67, func(v float64) bool { return v > 0 && v < 0.05 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.positionSize(tt.winProb, tt.rewardRisk); !tt.check(got) {
				t.Errorf("positionSize(%v, %v) = %v", tt.winProb, tt.rewardRisk, got)
			}
		})
	}
}

func TestRationaleMentionsDetectors(t *testing.T) {
	a := New(testConfig(), logger.NewNop())

	sig, _, err := a.Assemble(context.Background(), acceptedCandidate(contracts.Long), passedScore(), testNow)
	if err != nil || sig == nil {
		t.Fatalf("assemble failed: %v", err)
	}
	for _, want := range []string{"LONG", "BTCUSDT", "momentum", "breakout"} {
		if !strings.Contains(sig.Rationale, want) {
			t.Errorf("rationale missing %q: %s", want, sig.Rationale)
		}
	}
}
