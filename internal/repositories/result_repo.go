package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moneypot/verifier/internal/models"
)

type ResultRepo struct {
	pool *pgxpool.Pool
}

func NewResultRepo(pool *pgxpool.Pool) *ResultRepo {
	return &ResultRepo{pool: pool}
}

// Insert stores the first verdict for an attempt. A second insert returns ErrConflict.
func (r *ResultRepo) Insert(ctx context.Context, res *models.VerificationResult) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO verification_results (attempt_id, pot_id, success, verified_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (attempt_id) DO NOTHING
		RETURNING verified_at
	`, res.AttemptID, res.PotID, res.Success, res.VerifiedAt).Scan(&res.VerifiedAt)
	if err != nil {
		if notFound(err) == ErrNotFound {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (r *ResultRepo) Get(ctx context.Context, attemptID string) (*models.VerificationResult, error) {
	var res models.VerificationResult
	err := r.pool.QueryRow(ctx, `
		SELECT attempt_id, pot_id, success, verified_at
		FROM verification_results WHERE attempt_id = $1
	`, attemptID).Scan(&res.AttemptID, &res.PotID, &res.Success, &res.VerifiedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &res, nil
}
