package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ignitex/engine/internal/contracts"
)

// SignalRepository implements contracts.SignalRepository on Postgres.
type SignalRepository struct {
	pool *pgxpool.Pool
}

func NewSignalRepository(pool *pgxpool.Pool) *SignalRepository {
	return &SignalRepository{pool: pool}
}

const signalColumns = `
	id, symbol, direction, entry, stop_loss, targets,
	confidence, quality_score, tier, strategy, regime,
	position_pct, rationale, state, created_at, expires_at,
	COALESCE(exit_price, 0), COALESCE(return_pct, 0), target_hit, closed_at`

// Save inserts a released signal. Ids are unique per release; a conflict
// means a duplicate release and is surfaced as an error.
func (r *SignalRepository) Save(ctx context.Context, signal *contracts.Signal) error {
	query := `
		INSERT INTO signals (
			id, symbol, direction, entry, stop_loss, targets,
			confidence, quality_score, tier, strategy, regime,
			position_pct, rationale, state, created_at, expires_at, target_hit
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.pool.Exec(ctx, query,
		signal.ID, signal.Symbol, string(signal.Direction),
		signal.Entry, signal.StopLoss, signal.Targets,
		signal.Confidence, signal.QualityScore, signal.Tier,
		signal.Strategy, string(signal.Regime),
		signal.PositionPct, signal.Rationale, string(signal.State),
		signal.CreatedAt, signal.ExpiresAt, signal.TargetHit,
	)
	if err != nil {
		return fmt.Errorf("save signal %s: %w", signal.ID, err)
	}
	return nil
}

// UpdateOutcome writes the terminal classification. The WHERE clause only
// matches ACTIVE rows, which makes the lifecycle transition one-way at the
// store level no matter what the caller does.
func (r *SignalRepository) UpdateOutcome(ctx context.Context, outcome *contracts.Outcome) error {
	query := `
		UPDATE signals
		SET state = $2, exit_price = $3, return_pct = $4, target_hit = $5, closed_at = $6
		WHERE id = $1 AND state = 'ACTIVE'
	`

	tag, err := r.pool.Exec(ctx, query,
		outcome.SignalID, string(outcome.State),
		outcome.ExitPrice, outcome.ReturnPct, outcome.TargetHit, outcome.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("update outcome %s: %w", outcome.SignalID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update outcome %s: signal not found or already terminal", outcome.SignalID)
	}
	return nil
}

// LoadActive returns every ACTIVE signal, optionally for one tier.
func (r *SignalRepository) LoadActive(ctx context.Context, tier string) ([]contracts.Signal, error) {
	query := `
		SELECT ` + signalColumns + `
		FROM signals
		WHERE state = 'ACTIVE' AND ($1 = '' OR tier = $1)
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, tier)
	if err != nil {
		return nil, fmt.Errorf("load active signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// LastReleaseTime returns when the tier last released, or nil for never.
func (r *SignalRepository) LastReleaseTime(ctx context.Context, tier string) (*time.Time, error) {
	var last time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT created_at FROM signals WHERE tier = $1 ORDER BY created_at DESC LIMIT 1`,
		tier,
	).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last release time for %s: %w", tier, err)
	}
	return &last, nil
}

// CountReleasedSince counts the tier's releases at or after since.
func (r *SignalRepository) CountReleasedSince(ctx context.Context, tier string, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM signals WHERE tier = $1 AND created_at >= $2`,
		tier, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count releases for %s: %w", tier, err)
	}
	return count, nil
}

// History returns the most recent signals, newest first, optionally for one
// tier.
func (r *SignalRepository) History(ctx context.Context, tier string, limit int) ([]contracts.Signal, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + signalColumns + `
		FROM signals
		WHERE ($1 = '' OR tier = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, tier, limit)
	if err != nil {
		return nil, fmt.Errorf("signal history: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

func scanSignals(rows pgx.Rows) ([]contracts.Signal, error) {
	var signals []contracts.Signal
	for rows.Next() {
		var s contracts.Signal
		var direction, regime, state string
		if err := rows.Scan(
			&s.ID, &s.Symbol, &direction, &s.Entry, &s.StopLoss, &s.Targets,
			&s.Confidence, &s.QualityScore, &s.Tier, &s.Strategy, &regime,
			&s.PositionPct, &s.Rationale, &state, &s.CreatedAt, &s.ExpiresAt,
			&s.ExitPrice, &s.ReturnPct, &s.TargetHit, &s.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		s.Direction = contracts.Direction(direction)
		s.Regime = contracts.Regime(regime)
		s.State = contracts.SignalState(state)
		signals = append(signals, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return signals, nil
}
