package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ignitex/engine/internal/assembler"
	"github.com/ignitex/engine/internal/consensus"
	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/internal/enrich"
	"github.com/ignitex/engine/internal/gate"
	"github.com/ignitex/engine/internal/quality"
	"github.com/ignitex/engine/internal/strategyconfig"
	"github.com/ignitex/engine/internal/tiers"
	"github.com/ignitex/engine/pkg/logger"
)

// --- stubs ---

type snapStub struct {
	snaps map[string]*contracts.MarketSnapshot
	errs  map[string]error
}

func (s *snapStub) Snapshot(ctx context.Context, symbol string, candleCount int) (*contracts.MarketSnapshot, error) {
	if err, ok := s.errs[symbol]; ok {
		return nil, err
	}
	if snap, ok := s.snaps[symbol]; ok {
		return snap, nil
	}
	return nil, errors.New("unknown symbol")
}

type classifierStub struct {
	reading contracts.RegimeReading
}

func (c classifierStub) Classify(candles []contracts.OHLC) contracts.RegimeReading {
	return c.reading
}

type voteDetector struct {
	name string
	vote *contracts.Vote
	err  error
}

func (d voteDetector) Name() string { return d.name }

func (d voteDetector) Evaluate(ctx context.Context, snap *contracts.MarketSnapshot) (*contracts.Vote, error) {
	return d.vote, d.err
}

type regStub []contracts.Detector

func (r regStub) All() []contracts.Detector { return r }

type perfStub struct{}

func (perfStub) Get(ctx context.Context, strategy string, regime contracts.Regime) (*contracts.PerformanceRecord, error) {
	return nil, nil
}
func (perfStub) All(ctx context.Context) ([]contracts.PerformanceRecord, error) { return nil, nil }
func (perfStub) Upsert(ctx context.Context, record *contracts.PerformanceRecord) error {
	return nil
}
func (perfStub) MarkProcessed(ctx context.Context, signalID string) (bool, error) {
	return true, nil
}

type calibStub struct {
	table contracts.CalibrationTable
}

func (c *calibStub) Table() *contracts.CalibrationTable { return &c.table }

type rejectionRec struct {
	mu      sync.Mutex
	entries []contracts.Rejection
}

func (r *rejectionRec) Log(ctx context.Context, rejection *contracts.Rejection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *rejection)
	return nil
}

func (r *rejectionRec) List(ctx context.Context, stage string, limit int) ([]contracts.Rejection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]contracts.Rejection(nil), r.entries...), nil
}

func (r *rejectionRec) Prune(ctx context.Context, keep int) error { return nil }

func (r *rejectionRec) stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Stage
	}
	return out
}

type signalRepoStub struct {
	mu    sync.Mutex
	saved []contracts.Signal
}

func (s *signalRepoStub) Save(ctx context.Context, sig *contracts.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, *sig)
	return nil
}
func (s *signalRepoStub) UpdateOutcome(ctx context.Context, outcome *contracts.Outcome) error {
	return nil
}
func (s *signalRepoStub) LoadActive(ctx context.Context, tier string) ([]contracts.Signal, error) {
	return nil, nil
}
func (s *signalRepoStub) LastReleaseTime(ctx context.Context, tier string) (*time.Time, error) {
	return nil, nil
}
func (s *signalRepoStub) CountReleasedSince(ctx context.Context, tier string, since time.Time) (int, error) {
	return 0, nil
}
func (s *signalRepoStub) History(ctx context.Context, tier string, limit int) ([]contracts.Signal, error) {
	return nil, nil
}

// --- fixtures ---

func pipelineConfig() *strategyconfig.Config {
	cfg := &strategyconfig.Config{}
	cfg.Universe.Symbols = []string{"BTCUSDT"}
	cfg.Universe.CandleWindow = 50
	cfg.Consensus = strategyconfig.Consensus{
		MinDetectors:          2,
		RegimeBoost:           1.5,
		RegimeDampen:          0.5,
		PremiumMinConfidence:  85,
		HighMinConfidence:     70,
		MediumMinConfidence:   55,
		PerformanceMinSamples: 10,
	}
	cfg.Gate = strategyconfig.Gate{
		MinTier:             "MEDIUM",
		LowRegimeConfidence: 0.4,
	}
	cfg.Quality = strategyconfig.Quality{
		MinScore:              40,
		MinWinProbability:     0.30,
		MinStrategyWinRate:    0.35,
		CalibrationMinSamples: 5,
		Weights: strategyconfig.QualityWeights{
			Confidence: 0.30,
			WinRate:    0.25,
			Volatility: 0.10,
			Liquidity:  0.10,
			Volume:     0.15,
			Sentiment:  0.10,
		},
	}
	cfg.Risk = strategyconfig.Risk{
		RewardRiskFloor: 1.2,
		KellyFraction:   0.5,
		MaxPositionPct:  0.05,
		StopATRMult:     1.5,
		TargetATRMults:  []float64{2.0, 3.0},
	}
	cfg.Expiry = strategyconfig.Expiry{
		Base: strategyconfig.Duration(4 * time.Hour),
		Min:  strategyconfig.Duration(time.Hour),
		Max:  strategyconfig.Duration(12 * time.Hour),
	}
	cfg.Tiers = []strategyconfig.Tier{
		{ID: "premium", Interval: strategyconfig.Duration(10 * time.Second), DailyQuota: 100},
	}
	return cfg
}

func bullishSnapshot(symbol string) *contracts.MarketSnapshot {
	candles := make([]contracts.OHLC, 50)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		price := 100.0
		candles[i] = contracts.OHLC{
			OpenTime: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:     price,
			High:     price * 1.002,
			Low:      price * 0.998,
			Close:    price,
			Volume:   1000,
		}
	}
	return &contracts.MarketSnapshot{
		Symbol:  symbol,
		Ticker:  &contracts.Ticker{Symbol: symbol, Price: 100, Bid: 99.99, Ask: 100.01, Volume: 5000},
		Candles: candles,
	}
}

func newTestEngine(t *testing.T, cfg *strategyconfig.Config, snaps SnapshotProvider, dets Registry, rej contracts.RejectionRepository, repo contracts.SignalRepository) (*Engine, *tiers.Scheduler) {
	t.Helper()
	log := logger.NewNop()

	sched := tiers.New(cfg, repo, func(ctx context.Context, sig *contracts.Signal) error { return nil }, log)

	deps := Deps{
		Snapshots:  snaps,
		Classifier: classifierStub{reading: contracts.RegimeReading{Regime: contracts.RegimeRangeBound, Confidence: 0.8}},
		Detectors:  dets,
		Enricher:   enrich.New(nil, log),
		Consensus:  consensus.New(cfg, perfStub{}, log),
		Gate:       gate.New(cfg, log),
		Quality:    quality.New(cfg, perfStub{}, &calibStub{}, log),
		Assembler:  assembler.New(cfg, log),
		Tiers:      sched,
		Rejections: rej,
	}
	return New(cfg, deps, 2*time.Second, log), sched
}

func agreeingDetectors(conf float64) Registry {
	return regStub{
		voteDetector{name: "momentum", vote: &contracts.Vote{Detector: "momentum", Direction: contracts.Long, Confidence: conf}},
		voteDetector{name: "breakout", vote: &contracts.Vote{Detector: "breakout", Direction: contracts.Long, Confidence: conf}},
		voteDetector{name: "volume_surge", vote: nil},
	}
}

// --- tests ---

func TestEvaluateAll_CandidateFlowsToTierBuffer(t *testing.T) {
	cfg := pipelineConfig()
	rej := &rejectionRec{}
	repo := &signalRepoStub{}
	snaps := &snapStub{snaps: map[string]*contracts.MarketSnapshot{"BTCUSDT": bullishSnapshot("BTCUSDT")}}

	eng, sched := newTestEngine(t, cfg, snaps, agreeingDetectors(90), rej, repo)

	stats := eng.EvaluateAll(context.Background())

	if stats.Candidates != 1 {
		t.Fatalf("candidates = %d, want 1 (rejections: %v)", stats.Candidates, rej.stages())
	}
	if stats.Rejected != 0 || stats.Skipped != 0 {
		t.Errorf("rejected=%d skipped=%d, want 0/0", stats.Rejected, stats.Skipped)
	}

	statuses := sched.Statuses()
	if len(statuses) != 1 || statuses[0].Buffered != 1 {
		t.Fatalf("tier buffer = %+v, want one buffered candidate", statuses)
	}
}

func TestEvaluateAll_WeakVotesRejectedWithAudit(t *testing.T) {
	cfg := pipelineConfig()
	rej := &rejectionRec{}
	snaps := &snapStub{snaps: map[string]*contracts.MarketSnapshot{"BTCUSDT": bullishSnapshot("BTCUSDT")}}

	// Confidence below the MEDIUM rung rejects at consensus.
	eng, _ := newTestEngine(t, cfg, snaps, agreeingDetectors(30), rej, &signalRepoStub{})

	stats := eng.EvaluateAll(context.Background())

	if stats.Rejected != 1 {
		t.Fatalf("rejected = %d, want 1", stats.Rejected)
	}
	stages := rej.stages()
	if len(stages) != 1 || stages[0] != "consensus" {
		t.Errorf("audit stages = %v, want [consensus]", stages)
	}
}

func TestEvaluateAll_MarketDataFailureSkipsSymbol(t *testing.T) {
	cfg := pipelineConfig()
	cfg.Universe.Symbols = []string{"DEADUSDT", "BTCUSDT"}

	rej := &rejectionRec{}
	snaps := &snapStub{
		snaps: map[string]*contracts.MarketSnapshot{"BTCUSDT": bullishSnapshot("BTCUSDT")},
		errs:  map[string]error{"DEADUSDT": errors.New("gateway timeout")},
	}

	eng, _ := newTestEngine(t, cfg, snaps, agreeingDetectors(90), rej, &signalRepoStub{})

	stats := eng.EvaluateAll(context.Background())

	if stats.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", stats.Skipped)
	}
	if stats.Candidates != 1 {
		t.Errorf("candidates = %d, want 1 (healthy symbol must still evaluate)", stats.Candidates)
	}
}

func TestEvaluateAll_DetectorErrorDoesNotAbortSymbol(t *testing.T) {
	cfg := pipelineConfig()
	rej := &rejectionRec{}
	snaps := &snapStub{snaps: map[string]*contracts.MarketSnapshot{"BTCUSDT": bullishSnapshot("BTCUSDT")}}

	dets := regStub{
		voteDetector{name: "momentum", vote: &contracts.Vote{Detector: "momentum", Direction: contracts.Long, Confidence: 90}},
		voteDetector{name: "breakout", vote: &contracts.Vote{Detector: "breakout", Direction: contracts.Long, Confidence: 90}},
		voteDetector{name: "divergence", err: errors.New("talib blew up")},
	}

	eng, _ := newTestEngine(t, cfg, snaps, dets, rej, &signalRepoStub{})

	stats := eng.EvaluateAll(context.Background())
	if stats.Candidates != 1 {
		t.Fatalf("candidates = %d, want 1 despite detector error (rejections: %v)", stats.Candidates, rej.stages())
	}
}

func TestLastRun_SnapshotsStats(t *testing.T) {
	cfg := pipelineConfig()
	snaps := &snapStub{snaps: map[string]*contracts.MarketSnapshot{"BTCUSDT": bullishSnapshot("BTCUSDT")}}
	eng, _ := newTestEngine(t, cfg, snaps, agreeingDetectors(90), &rejectionRec{}, &signalRepoStub{})

	if eng.LastRun() != nil {
		t.Fatal("LastRun before any cycle should be nil")
	}

	eng.EvaluateAll(context.Background())

	got := eng.LastRun()
	if got == nil || got.Symbols != 1 {
		t.Fatalf("LastRun = %+v, want 1 symbol", got)
	}
}
