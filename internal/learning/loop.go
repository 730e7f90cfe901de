package learning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignitex/engine/internal/contracts"
	"github.com/ignitex/engine/internal/strategyconfig"
	"github.com/ignitex/engine/pkg/logger"
)

// Loop is the feedback stage: every terminal outcome updates the attributed
// strategy's regime performance counters and the confidence calibration
// table, each exactly once. Updates are additive; an outcome that was
// already applied (observed via the store's processed guard) is dropped.
type Loop struct {
	perf   contracts.PerformanceRepository
	calib  contracts.CalibrationRepository
	cfg    *strategyconfig.Config
	logger *logger.Logger

	mu            sync.RWMutex
	table         contracts.CalibrationTable
	sinceSnapshot int
	applied       int
}

func New(perf contracts.PerformanceRepository, calib contracts.CalibrationRepository,
	cfg *strategyconfig.Config, log *logger.Logger) *Loop {
	return &Loop{
		perf:   perf,
		calib:  calib,
		cfg:    cfg,
		logger: log.Component("learning"),
	}
}

// Start loads the persisted calibration table. A missing table starts empty,
// which calibrates to the raw probability until outcomes accumulate.
func (l *Loop) Start(ctx context.Context) error {
	table, err := l.calib.Load(ctx)
	if err != nil {
		return fmt.Errorf("load calibration: %w", err)
	}
	if table != nil {
		l.mu.Lock()
		l.table = *table
		l.mu.Unlock()
	}
	l.logger.Info("Calibration table loaded")
	return nil
}

// Table snapshots the current calibration table for the quality scorer.
func (l *Loop) Table() *contracts.CalibrationTable {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snapshot := l.table
	return &snapshot
}

// Applied reports how many outcomes this process has folded in.
func (l *Loop) Applied() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.applied
}

// Apply folds one terminal outcome into the tables. The store-side processed
// guard makes this idempotent: replaying a signal's outcome is a no-op.
func (l *Loop) Apply(ctx context.Context, outcome *contracts.Outcome) error {
	fresh, err := l.perf.MarkProcessed(ctx, outcome.SignalID)
	if err != nil {
		return fmt.Errorf("outcome guard for %s: %w", outcome.SignalID, err)
	}
	if !fresh {
		l.logger.WithField("signal_id", outcome.SignalID).Warn("Outcome already applied, dropping")
		return nil
	}

	// WIN and TIMEOUT_VALID vindicate the direction; everything else
	// counts against it. The sub-type training weight scales how hard the
	// outcome moves the tables.
	won := outcome.State == contracts.StateWin || outcome.State == contracts.StateTimeoutValid
	weight := outcome.State.TrainingWeight()

	if err := l.updatePerformance(ctx, outcome, won, weight); err != nil {
		return err
	}

	l.mu.Lock()
	l.table.Observe(outcome.Confidence, won, weight)
	l.table.UpdatedAt = outcome.ClosedAt
	l.applied++
	l.sinceSnapshot++
	total := l.applied
	due := total >= l.cfg.Learning.MinSamples && l.sinceSnapshot >= l.cfg.Learning.RecomputeEvery
	if due {
		l.sinceSnapshot = 0
	}
	l.mu.Unlock()

	l.logger.WithFields(map[string]interface{}{
		"signal_id": outcome.SignalID,
		"state":     outcome.State,
		"strategy":  outcome.Strategy,
		"regime":    outcome.Regime,
		"won":       won,
		"weight":    weight,
	}).Info("Outcome applied")

	if due {
		if err := l.snapshot(ctx); err != nil {
			l.logger.WithError(err).Error("Calibration snapshot failed")
		}
	}
	return nil
}

func (l *Loop) updatePerformance(ctx context.Context, outcome *contracts.Outcome, won bool, weight float64) error {
	record, err := l.perf.Get(ctx, outcome.Strategy, outcome.Regime)
	if err != nil {
		return fmt.Errorf("performance read %s/%s: %w", outcome.Strategy, outcome.Regime, err)
	}
	if record == nil {
		record = &contracts.PerformanceRecord{
			Strategy: outcome.Strategy,
			Regime:   outcome.Regime,
		}
	}

	if won {
		record.Wins += weight
	} else {
		record.Losses += weight
	}
	record.Samples++
	record.UpdatedAt = outcome.ClosedAt

	if err := l.perf.Upsert(ctx, record); err != nil {
		return fmt.Errorf("performance upsert %s/%s: %w", outcome.Strategy, outcome.Regime, err)
	}
	return nil
}

// Recalibrate persists the current calibration table immediately, outside
// the normal recompute cadence.
func (l *Loop) Recalibrate(ctx context.Context) error {
	l.mu.Lock()
	l.sinceSnapshot = 0
	l.mu.Unlock()
	return l.snapshot(ctx)
}

// snapshot persists the calibration table so a restart resumes from the
// latest observed rates.
func (l *Loop) snapshot(ctx context.Context) error {
	table := l.Table()
	if err := l.calib.Save(ctx, table); err != nil {
		return err
	}
	l.logger.WithField("updated_at", table.UpdatedAt.Format(time.RFC3339)).Info("Calibration table persisted")
	return nil
}
