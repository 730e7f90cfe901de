package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ignitex/engine/internal/contracts"
)

// RejectionRepository is the append-only pipeline audit log, capped by Prune.
type RejectionRepository struct {
	pool *pgxpool.Pool
}

func NewRejectionRepository(pool *pgxpool.Pool) *RejectionRepository {
	return &RejectionRepository{pool: pool}
}

// Log appends one rejection.
func (r *RejectionRepository) Log(ctx context.Context, rejection *contracts.Rejection) error {
	var scores []byte
	if len(rejection.Scores) > 0 {
		var err error
		scores, err = json.Marshal(rejection.Scores)
		if err != nil {
			return fmt.Errorf("marshal rejection scores: %w", err)
		}
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO rejections (stage, symbol, reason, scores, created_at) VALUES ($1, $2, $3, $4, $5)`,
		rejection.Stage, rejection.Symbol, rejection.Reason, scores, rejection.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("log rejection: %w", err)
	}
	return nil
}

// List returns the most recent rejections, newest first, optionally filtered
// by stage.
func (r *RejectionRepository) List(ctx context.Context, stage string, limit int) ([]contracts.Rejection, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, stage, symbol, reason, scores, created_at
		FROM rejections
		WHERE ($1 = '' OR stage = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, stage, limit)
	if err != nil {
		return nil, fmt.Errorf("list rejections: %w", err)
	}
	defer rows.Close()

	var rejections []contracts.Rejection
	for rows.Next() {
		var rej contracts.Rejection
		var scores []byte
		if err := rows.Scan(&rej.ID, &rej.Stage, &rej.Symbol, &rej.Reason, &scores, &rej.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rejection: %w", err)
		}
		if len(scores) > 0 {
			if err := json.Unmarshal(scores, &rej.Scores); err != nil {
				return nil, fmt.Errorf("unmarshal rejection scores: %w", err)
			}
		}
		rejections = append(rejections, rej)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rejections: %w", err)
	}
	return rejections, nil
}

// Prune keeps only the newest keep rows.
func (r *RejectionRepository) Prune(ctx context.Context, keep int) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM rejections
		WHERE id NOT IN (SELECT id FROM rejections ORDER BY created_at DESC LIMIT $1)
	`, keep)
	if err != nil {
		return fmt.Errorf("prune rejections: %w", err)
	}
	return nil
}
