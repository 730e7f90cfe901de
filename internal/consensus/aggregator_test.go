package consensus

import (
	"context"
	"testing"
	"time"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/internal/strategyconfig"
	"github.com/ignitex/engine/pkg/logger"
)

// perfStub serves canned performance records keyed by strategy.
type perfStub struct {
	records map[string]*contracts.PerformanceRecord
}

func (s *perfStub) Get(_ context.Context, strategy string, _ contracts.Regime) (*contracts.PerformanceRecord, error) {
	return s.records[strategy], nil
}

func (s *perfStub) All(context.Context) ([]contracts.PerformanceRecord, error) { return nil, nil }
func (s *perfStub) Upsert(context.Context, *contracts.PerformanceRecord) error { return nil }
func (s *perfStub) MarkProcessed(context.Context, string) (bool, error)        { return true, nil }

func testConfig() *strategyconfig.Config {
	cfg := &strategyconfig.Config{}
	cfg.Consensus = strategyconfig.Consensus{
		MinDetectors:          2,
		RegimeBoost:           1.5,
		RegimeDampen:          0.5,
		PremiumMinConfidence:  85,
		HighMinConfidence:     70,
		MediumMinConfidence:   55,
		PerformanceMinSamples: 10,
	}
	return cfg
}

func newAggregator(perf contracts.PerformanceRepository) *Aggregator {
	return New(testConfig(), perf, logger.NewNop())
}

func vote(detector string, dir contracts.Direction, confidence float64) contracts.Vote {
	return contracts.Vote{Detector: detector, Direction: dir, Confidence: confidence}
}

func input(votes ...contracts.Vote) Input {
	return Input{
		Symbol:   "BTCUSDT",
		Votes:    votes,
		Regime:   contracts.RegimeReading{Regime: contracts.RegimeTrendingUp, Confidence: 0.8},
		Features: contracts.NeutralFeatures(),
		Price:    50000,
		Now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAggregate_UnanimousHighConfidenceIsPremium(t *testing.T) {
	agg := newAggregator(&perfStub{})

	cand, reason := agg.Aggregate(context.Background(), input(
		vote("momentum", contracts.Long, 92),
		vote("breakout", contracts.Long, 88),
		vote("volume_surge", contracts.Long, 90),
	))
	if cand == nil {
		t.Fatalf("expected a candidate, rejected: %s", reason)
	}
	if cand.Tier != contracts.TierPremium {
		t.Errorf("tier = %s, want PREMIUM", cand.Tier)
	}
	if cand.Direction != contracts.Long {
		t.Errorf("direction = %s, want LONG", cand.Direction)
	}
	if cand.AgreementRatio != 1.0 {
		t.Errorf("agreement = %v, want 1.0", cand.AgreementRatio)
	}
}

func TestAggregate_DissentBreaksPremium(t *testing.T) {
	agg := newAggregator(&perfStub{})

	cand, reason := agg.Aggregate(context.Background(), input(
		vote("momentum", contracts.Long, 92),
		vote("breakout", contracts.Long, 90),
		vote("mean_reversion", contracts.Short, 60),
	))
	if cand == nil {
		t.Fatalf("expected a candidate, rejected: %s", reason)
	}
	if cand.Tier == contracts.TierPremium {
		t.Error("a dissenting vote must not produce PREMIUM")
	}
	if cand.Direction != contracts.Long {
		t.Errorf("direction = %s, want LONG majority", cand.Direction)
	}
	if cand.Confidence >= 92 {
		t.Errorf("dissent should discount confidence, got %v", cand.Confidence)
	}
}

func TestAggregate_TooFewDetectorsRejected(t *testing.T) {
	agg := newAggregator(&perfStub{})

	cand, reason := agg.Aggregate(context.Background(), input(vote("momentum", contracts.Long, 95)))
	if cand != nil {
		t.Fatal("one vote must not clear a two-detector minimum")
	}
	if reason == "" {
		t.Error("rejection must carry a reason")
	}
}

func TestAggregate_WeakConsensusIsLowAndRejected(t *testing.T) {
	agg := newAggregator(&perfStub{})

	cand, reason := agg.Aggregate(context.Background(), input(
		vote("momentum", contracts.Long, 40),
		vote("breakout", contracts.Long, 42),
	))
	if cand != nil {
		t.Fatalf("low-confidence agreement should be rejected, got tier %s", cand.Tier)
	}
	if reason == "" {
		t.Error("rejection must carry a reason")
	}
}

func TestAggregate_ReliableWinnerOutweighsLoser(t *testing.T) {
	// momentum has a proven record in this regime, mean_reversion a poor
	// one. Opposing votes at equal confidence must resolve toward momentum.
	perf := &perfStub{records: map[string]*contracts.PerformanceRecord{
		"momentum":       {Strategy: "momentum", Wins: 14, Losses: 6, Samples: 20},
		"mean_reversion": {Strategy: "mean_reversion", Wins: 6, Losses: 14, Samples: 20},
	}}
	agg := newAggregator(perf)

	cand, reason := agg.Aggregate(context.Background(), input(
		vote("momentum", contracts.Long, 80),
		vote("mean_reversion", contracts.Short, 80),
		vote("breakout", contracts.Long, 60),
	))
	if cand == nil {
		t.Fatalf("expected a candidate, rejected: %s", reason)
	}
	if cand.Direction != contracts.Long {
		t.Errorf("direction = %s, want LONG from the weighted majority", cand.Direction)
	}
	if cand.Strategy != "momentum" {
		t.Errorf("lead attribution = %s, want momentum", cand.Strategy)
	}
}

func TestAggregate_VoteWeightsFilledIn(t *testing.T) {
	perf := &perfStub{records: map[string]*contracts.PerformanceRecord{
		"momentum": {Strategy: "momentum", Wins: 14, Losses: 6, Samples: 20},
	}}
	agg := newAggregator(perf)

	cand, reason := agg.Aggregate(context.Background(), input(
		vote("momentum", contracts.Long, 80),
		vote("breakout", contracts.Long, 75),
	))
	if cand == nil {
		t.Fatalf("expected a candidate, rejected: %s", reason)
	}
	for _, v := range cand.Votes {
		if v.Weight <= 0 {
			t.Errorf("vote %s has no weight", v.Detector)
		}
	}
	// 0.7 win rate over 20 samples: weight 0.7*2*1.5 vs the neutral 1.0.
	if cand.Votes[0].Weight <= cand.Votes[1].Weight {
		t.Errorf("proven detector should outweigh unknown: %v vs %v",
			cand.Votes[0].Weight, cand.Votes[1].Weight)
	}
}

func TestAggregate_NoPriceRejected(t *testing.T) {
	agg := newAggregator(&perfStub{})
	in := input(vote("momentum", contracts.Long, 90), vote("breakout", contracts.Long, 88))
	in.Price = 0

	if cand, _ := agg.Aggregate(context.Background(), in); cand != nil {
		t.Error("no market price must reject the draft")
	}
}
