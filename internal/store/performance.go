package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ignitex/engine/internal/contracts"
)

// PerformanceRepository stores per-(strategy, regime) outcome counters plus
// the processed-outcome guard that keeps the learning loop exactly-once.
type PerformanceRepository struct {
	pool *pgxpool.Pool
}

func NewPerformanceRepository(pool *pgxpool.Pool) *PerformanceRepository {
	return &PerformanceRepository{pool: pool}
}

// Get returns the record for one pair, or nil when none exists yet.
func (r *PerformanceRepository) Get(ctx context.Context, strategy string, regime contracts.Regime) (*contracts.PerformanceRecord, error) {
	var record contracts.PerformanceRecord
	var regimeStr string
	err := r.pool.QueryRow(ctx, `
		SELECT strategy, regime, wins, losses, samples, updated_at
		FROM strategy_performance
		WHERE strategy = $1 AND regime = $2
	`, strategy, string(regime)).Scan(
		&record.Strategy, &regimeStr, &record.Wins, &record.Losses,
		&record.Samples, &record.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get performance %s/%s: %w", strategy, regime, err)
	}
	record.Regime = contracts.Regime(regimeStr)
	return &record, nil
}

// All returns every record.
func (r *PerformanceRepository) All(ctx context.Context) ([]contracts.PerformanceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT strategy, regime, wins, losses, samples, updated_at
		FROM strategy_performance
		ORDER BY strategy, regime
	`)
	if err != nil {
		return nil, fmt.Errorf("all performance: %w", err)
	}
	defer rows.Close()

	var records []contracts.PerformanceRecord
	for rows.Next() {
		var record contracts.PerformanceRecord
		var regimeStr string
		if err := rows.Scan(&record.Strategy, &regimeStr, &record.Wins, &record.Losses,
			&record.Samples, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan performance: %w", err)
		}
		record.Regime = contracts.Regime(regimeStr)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate performance: %w", err)
	}
	return records, nil
}

// Upsert writes a record, replacing the pair's previous counters.
func (r *PerformanceRepository) Upsert(ctx context.Context, record *contracts.PerformanceRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO strategy_performance (strategy, regime, wins, losses, samples, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (strategy, regime) DO UPDATE SET
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			samples = EXCLUDED.samples,
			updated_at = EXCLUDED.updated_at
	`, record.Strategy, string(record.Regime), record.Wins, record.Losses,
		record.Samples, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert performance %s/%s: %w", record.Strategy, record.Regime, err)
	}
	return nil
}

// MarkProcessed claims a signal's outcome. The primary key makes the claim
// atomic: exactly one caller ever sees true for a given signal id.
func (r *PerformanceRepository) MarkProcessed(ctx context.Context, signalID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO processed_outcomes (signal_id) VALUES ($1) ON CONFLICT (signal_id) DO NOTHING`,
		signalID,
	)
	if err != nil {
		return false, fmt.Errorf("mark processed %s: %w", signalID, err)
	}
	return tag.RowsAffected() == 1, nil
}
