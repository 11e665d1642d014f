package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moneypot/verifier/internal/models"
)

type AttemptRepo struct {
	pool *pgxpool.Pool
}

func NewAttemptRepo(pool *pgxpool.Pool) *AttemptRepo {
	return &AttemptRepo{pool: pool}
}

// Create returns ErrConflict if the attempt id is already recorded.
func (r *AttemptRepo) Create(ctx context.Context, a *models.Attempt) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO attempts (attempt_id, pot_id, hunter_principal, difficulty)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		RETURNING created_at
	`, a.AttemptID, a.PotID, a.HunterPrincipal, a.Difficulty).Scan(&a.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *AttemptRepo) GetByID(ctx context.Context, attemptID string) (*models.Attempt, error) {
	var a models.Attempt
	var hunter *string
	err := r.pool.QueryRow(ctx, `
		SELECT attempt_id, pot_id, hunter_principal, difficulty, challenges_issued_at, completed_at, created_at
		FROM attempts WHERE attempt_id = $1
	`, attemptID).Scan(&a.AttemptID, &a.PotID, &hunter, &a.Difficulty, &a.ChallengesIssuedAt, &a.CompletedAt, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if hunter != nil {
		a.HunterPrincipal = *hunter
	}
	return &a, nil
}

// MarkChallengesIssued is the single-issuance guard: only the first caller
// flips challenges_issued_at, everyone after gets ErrConflict.
func (r *AttemptRepo) MarkChallengesIssued(ctx context.Context, attemptID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE attempts SET challenges_issued_at = $2
		WHERE attempt_id = $1 AND challenges_issued_at IS NULL AND completed_at IS NULL
	`, attemptID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (r *AttemptRepo) MarkCompleted(ctx context.Context, attemptID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE attempts SET completed_at = $2
		WHERE attempt_id = $1 AND completed_at IS NULL
	`, attemptID, at)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
