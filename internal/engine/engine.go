package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignitex/engine/internal/assembler"
	"github.com/ignitex/engine/internal/consensus"
	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/internal/enrich"
	"github.com/ignitex/engine/internal/gate"
	"github.com/ignitex/engine/internal/metrics"
	"github.com/ignitex/engine/internal/quality"
	"github.com/ignitex/engine/internal/strategyconfig"
	"github.com/ignitex/engine/internal/tiers"
	"github.com/ignitex/engine/pkg/logger"
)

// SnapshotProvider supplies one symbol's market snapshot per evaluation.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, symbol string, candleCount int) (*contracts.MarketSnapshot, error)
}

// Registry enumerates the active detectors.
type Registry interface {
	All() []contracts.Detector
}

// Engine runs the evaluation cycle: every universe symbol flows through
// detectors, consensus, the regime gate, the quality scorer and the
// assembler, and survivors are offered to the tier scheduler. One symbol's
// failure never stalls the cycle.
type Engine struct {
	cfg *strategyconfig.Config

	snapshots  SnapshotProvider
	classifier contracts.RegimeClassifier
	detectors  Registry
	enricher   *enrich.Enricher

	consensus *consensus.Aggregator
	gate      *gate.Gate
	quality   *quality.Scorer
	assembler *assembler.Assembler
	tiers     *tiers.Scheduler

	rejections contracts.RejectionRepository

	symbolTimeout time.Duration
	logger        *logger.Logger

	mu      sync.Mutex
	lastRun *RunStats
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Snapshots  SnapshotProvider
	Classifier contracts.RegimeClassifier
	Detectors  Registry
	Enricher   *enrich.Enricher
	Consensus  *consensus.Aggregator
	Gate       *gate.Gate
	Quality    *quality.Scorer
	Assembler  *assembler.Assembler
	Tiers      *tiers.Scheduler
	Rejections contracts.RejectionRepository
}

// RunStats summarizes one completed evaluation cycle.
type RunStats struct {
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Symbols    int           `json:"symbols"`
	Candidates int           `json:"candidates"`
	Rejected   int           `json:"rejected"`
	Skipped    int           `json:"skipped"`
}

// New creates the engine. symbolTimeout bounds each symbol's market data
// fetch plus pipeline pass.
func New(cfg *strategyconfig.Config, deps Deps, symbolTimeout time.Duration, log *logger.Logger) *Engine {
	return &Engine{
		cfg:           cfg,
		snapshots:     deps.Snapshots,
		classifier:    deps.Classifier,
		detectors:     deps.Detectors,
		enricher:      deps.Enricher,
		consensus:     deps.Consensus,
		gate:          deps.Gate,
		quality:       deps.Quality,
		assembler:     deps.Assembler,
		tiers:         deps.Tiers,
		rejections:    deps.Rejections,
		symbolTimeout: symbolTimeout,
		logger:        log.Component("engine"),
	}
}

// EvaluateAll runs one full cycle over the symbol universe.
func (e *Engine) EvaluateAll(ctx context.Context) *RunStats {
	start := time.Now()
	stats := &RunStats{
		StartedAt: start.UTC(),
		Symbols:   len(e.cfg.Universe.Symbols),
	}

	e.logger.WithField("symbols", stats.Symbols).Info("Starting evaluation cycle")

	for _, symbol := range e.cfg.Universe.Symbols {
		select {
		case <-ctx.Done():
			e.logger.Warn("Evaluation cycle cancelled")
			stats.Duration = time.Since(start)
			e.record(stats)
			return stats
		default:
		}

		sctx, cancel := context.WithTimeout(ctx, e.symbolTimeout)
		outcome, err := e.evaluateSymbol(sctx, symbol)
		cancel()

		switch {
		case err != nil:
			// Market data problems skip the symbol, never stall it.
			stats.Skipped++
			metrics.EvaluationsTotal.WithLabelValues("skipped").Inc()
			e.logger.WithError(err).WithField("symbol", symbol).Warn("Symbol evaluation skipped")
		case outcome == evalCandidate:
			stats.Candidates++
			metrics.EvaluationsTotal.WithLabelValues("candidate").Inc()
		default:
			stats.Rejected++
			metrics.EvaluationsTotal.WithLabelValues("rejected").Inc()
		}
	}

	stats.Duration = time.Since(start)
	metrics.EvaluationDuration.Observe(stats.Duration.Seconds())
	e.record(stats)

	e.logger.WithFields(map[string]interface{}{
		"duration":   stats.Duration.Seconds(),
		"candidates": stats.Candidates,
		"rejected":   stats.Rejected,
		"skipped":    stats.Skipped,
	}).Info("Evaluation cycle completed")

	return stats
}

// LastRun returns the most recent cycle's stats, nil before the first run.
func (e *Engine) LastRun() *RunStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastRun == nil {
		return nil
	}
	c := *e.lastRun
	return &c
}

func (e *Engine) record(stats *RunStats) {
	e.mu.Lock()
	e.lastRun = stats
	e.mu.Unlock()
}

type evalOutcome int

const (
	evalRejected evalOutcome = iota
	evalCandidate
)

func (e *Engine) evaluateSymbol(ctx context.Context, symbol string) (evalOutcome, error) {
	snap, err := e.snapshots.Snapshot(ctx, symbol, e.cfg.Universe.CandleWindow)
	if err != nil {
		return evalRejected, fmt.Errorf("snapshot %s: %w", symbol, err)
	}

	reading := e.classifier.Classify(snap.Candles)
	features := e.enricher.Features(ctx, snap)

	votes := e.collectVotes(ctx, snap)
	now := time.Now()

	candidate, reason := e.consensus.Aggregate(ctx, consensus.Input{
		Symbol:   symbol,
		Votes:    votes,
		Regime:   reading,
		Features: features,
		Price:    snap.LastClose(),
		Now:      now,
	})
	if candidate == nil {
		e.reject(ctx, "consensus", symbol, reason, nil)
		return evalRejected, nil
	}

	if decision := e.gate.Check(candidate); !decision.Passed {
		e.reject(ctx, "gate", symbol, decision.Reason, map[string]float64{
			"confidence":        candidate.Confidence,
			"regime_confidence": candidate.RegimeConfidence,
		})
		return evalRejected, nil
	}

	score := e.quality.Score(ctx, candidate)
	if !score.Passed {
		e.reject(ctx, "quality", symbol, score.Reason, score.Numbers())
		return evalRejected, nil
	}

	signal, reason, err := e.assembler.Assemble(ctx, candidate, score, now)
	if err != nil {
		// A structurally invalid signal is a defect, not market noise.
		e.logger.WithError(err).WithField("symbol", symbol).Error("Assembly produced invalid signal")
		return evalRejected, err
	}
	if signal == nil {
		e.reject(ctx, "assembler", symbol, reason, score.Numbers())
		return evalRejected, nil
	}

	e.tiers.Offer(signal)

	e.logger.WithFields(map[string]interface{}{
		"symbol":     symbol,
		"direction":  string(signal.Direction),
		"tier_grade": string(candidate.Tier),
		"confidence": signal.Confidence,
		"strategy":   signal.Strategy,
	}).Info("Candidate buffered for release")

	return evalCandidate, nil
}

func (e *Engine) collectVotes(ctx context.Context, snap *contracts.MarketSnapshot) []contracts.Vote {
	var votes []contracts.Vote
	for _, d := range e.detectors.All() {
		vote, err := d.Evaluate(ctx, snap)
		if err != nil {
			e.logger.WithError(err).WithFields(map[string]interface{}{
				"detector": d.Name(),
				"symbol":   snap.Symbol,
			}).Warn("Detector failed")
			continue
		}
		if vote == nil {
			continue
		}
		votes = append(votes, *vote)
	}
	return votes
}

// reject records one audit entry. Audit persistence failing must not fail
// the evaluation.
func (e *Engine) reject(ctx context.Context, stage, symbol, reason string, scores map[string]float64) {
	metrics.RejectionsTotal.WithLabelValues(stage).Inc()

	entry := &contracts.Rejection{
		Stage:     stage,
		Symbol:    symbol,
		Reason:    reason,
		Scores:    scores,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.rejections.Log(ctx, entry); err != nil {
		e.logger.WithError(err).WithFields(map[string]interface{}{
			"stage":  stage,
			"symbol": symbol,
		}).Warn("Rejection log write failed")
	}

	e.logger.WithFields(map[string]interface{}{
		"stage":  stage,
		"symbol": symbol,
		"reason": reason,
	}).Debug("Candidate rejected")
}
