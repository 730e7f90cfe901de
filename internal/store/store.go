package store

import (
	"context"
	"fmt"

	"github.com/ignitex/engine/pkg/database"
)

// Store bundles the pgx-backed repositories over one pool.
type Store struct {
	Signals     *SignalRepository
	Rejections  *RejectionRepository
	Performance *PerformanceRepository
	Calibration *CalibrationRepository
}

func New(db *database.DB) *Store {
	return &Store{
		Signals:     NewSignalRepository(db.Pool),
		Rejections:  NewRejectionRepository(db.Pool),
		Performance: NewPerformanceRepository(db.Pool),
		Calibration: NewCalibrationRepository(db.Pool),
	}
}

// Migrate creates the schema when it does not exist. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id            TEXT PRIMARY KEY,
			symbol        TEXT NOT NULL,
			direction     TEXT NOT NULL,
			entry         DOUBLE PRECISION NOT NULL,
			stop_loss     DOUBLE PRECISION NOT NULL,
			targets       DOUBLE PRECISION[] NOT NULL,
			confidence    DOUBLE PRECISION NOT NULL,
			quality_score DOUBLE PRECISION NOT NULL,
			tier          TEXT NOT NULL,
			strategy      TEXT NOT NULL,
			regime        TEXT NOT NULL,
			position_pct  DOUBLE PRECISION NOT NULL,
			rationale     TEXT NOT NULL DEFAULT '',
			state         TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL,
			expires_at    TIMESTAMPTZ NOT NULL,
			exit_price    DOUBLE PRECISION,
			return_pct    DOUBLE PRECISION,
			target_hit    INT NOT NULL DEFAULT -1,
			closed_at     TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_tier_created ON signals (tier, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_state ON signals (state) WHERE state = 'ACTIVE'`,
		`CREATE TABLE IF NOT EXISTS rejections (
			id         BIGSERIAL PRIMARY KEY,
			stage      TEXT NOT NULL,
			symbol     TEXT NOT NULL,
			reason     TEXT NOT NULL,
			scores     JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rejections_stage_created ON rejections (stage, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS strategy_performance (
			strategy   TEXT NOT NULL,
			regime     TEXT NOT NULL,
			wins       DOUBLE PRECISION NOT NULL DEFAULT 0,
			losses     DOUBLE PRECISION NOT NULL DEFAULT 0,
			samples    INT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (strategy, regime)
		)`,
		`CREATE TABLE IF NOT EXISTS processed_outcomes (
			signal_id    TEXT PRIMARY KEY,
			processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS calibration (
			id         INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			buckets    JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.Signals.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
