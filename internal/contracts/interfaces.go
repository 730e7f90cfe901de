package contracts

import (
	"context"
	"time"
)

// MarketGateway supplies live market data. Implementations must return
// ErrMarketDataUnavailable-style errors rather than fabricated values when
// the upstream feed is down.
type MarketGateway interface {
	GetTicker(ctx context.Context, symbol string) (*Ticker, error)
	GetCandles(ctx context.Context, symbol, interval string, count int) ([]OHLC, error)
}

// Detector is one pluggable pattern detector. Evaluate returns nil with no
// error when the detector has no opinion on the symbol.
type Detector interface {
	Name() string
	Evaluate(ctx context.Context, snapshot *MarketSnapshot) (*Vote, error)
}

// RegimeClassifier derives a market regime from a recent candle window.
// Deterministic given the same window.
type RegimeClassifier interface {
	Classify(candles []OHLC) RegimeReading
}

// Publisher pushes released signals and lifecycle changes to consumers.
type Publisher interface {
	PublishSignal(ctx context.Context, signal *Signal) error
	PublishLifecycle(ctx context.Context, signal *Signal) error
}

// OutcomeSink receives terminal outcomes, exactly once per signal.
type OutcomeSink interface {
	Apply(ctx context.Context, outcome *Outcome) error
}

// SignalRepository persists signals and reconstructs scheduler/tracker state
// across restarts.
type SignalRepository interface {
	Save(ctx context.Context, signal *Signal) error
	UpdateOutcome(ctx context.Context, outcome *Outcome) error
	LoadActive(ctx context.Context, tier string) ([]Signal, error)
	LastReleaseTime(ctx context.Context, tier string) (*time.Time, error)
	CountReleasedSince(ctx context.Context, tier string, since time.Time) (int, error)
	History(ctx context.Context, tier string, limit int) ([]Signal, error)
}

// RejectionRepository is the append-only pipeline audit log.
type RejectionRepository interface {
	Log(ctx context.Context, rejection *Rejection) error
	List(ctx context.Context, stage string, limit int) ([]Rejection, error)
	Prune(ctx context.Context, keep int) error
}

// PerformanceRepository stores per-(strategy, regime) outcome counters and
// the exactly-once guard for outcome application.
type PerformanceRepository interface {
	Get(ctx context.Context, strategy string, regime Regime) (*PerformanceRecord, error)
	All(ctx context.Context) ([]PerformanceRecord, error)
	Upsert(ctx context.Context, record *PerformanceRecord) error

	// MarkProcessed records that a signal's outcome has been applied. It
	// returns false when the outcome was already processed, in which case
	// the caller must not apply it again.
	MarkProcessed(ctx context.Context, signalID string) (bool, error)
}

// CalibrationRepository persists the confidence calibration table.
type CalibrationRepository interface {
	Load(ctx context.Context) (*CalibrationTable, error)
	Save(ctx context.Context, table *CalibrationTable) error
}
