package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ignitex/engine/internal/contracts"
)

// CalibrationRepository persists the confidence calibration table as a
// single JSONB row.
type CalibrationRepository struct {
	pool *pgxpool.Pool
}

func NewCalibrationRepository(pool *pgxpool.Pool) *CalibrationRepository {
	return &CalibrationRepository{pool: pool}
}

// Load returns the persisted table, or nil when none has been saved yet.
func (r *CalibrationRepository) Load(ctx context.Context) (*contracts.CalibrationTable, error) {
	var buckets []byte
	var table contracts.CalibrationTable
	err := r.pool.QueryRow(ctx,
		`SELECT buckets, updated_at FROM calibration WHERE id = 1`,
	).Scan(&buckets, &table.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load calibration: %w", err)
	}
	if err := json.Unmarshal(buckets, &table.Buckets); err != nil {
		return nil, fmt.Errorf("unmarshal calibration: %w", err)
	}
	return &table, nil
}

// Save upserts the singleton row.
func (r *CalibrationRepository) Save(ctx context.Context, table *contracts.CalibrationTable) error {
	buckets, err := json.Marshal(table.Buckets)
	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO calibration (id, buckets, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET buckets = EXCLUDED.buckets, updated_at = EXCLUDED.updated_at
	`, buckets, table.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save calibration: %w", err)
	}
	return nil
}
