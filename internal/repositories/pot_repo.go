package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moneypot/verifier/internal/models"
)

type PotRepo struct {
	pool *pgxpool.Pool
}

func NewPotRepo(pool *pgxpool.Pool) *PotRepo {
	return &PotRepo{pool: pool}
}

// --- Secrets ---

func (r *PotRepo) UpsertSecret(ctx context.Context, s *models.PotSecret) error {
	legend, err := json.Marshal(s.Legend)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO pot_secrets (pot_id, chain, secret_character, color_legend, creator_principal, expires_hint)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (pot_id) DO UPDATE SET
			chain = EXCLUDED.chain,
			secret_character = EXCLUDED.secret_character,
			color_legend = EXCLUDED.color_legend,
			creator_principal = EXCLUDED.creator_principal,
			expires_hint = EXCLUDED.expires_hint,
			registered_at = now()
		RETURNING registered_at
	`, s.PotID, s.Chain, s.SecretCharacter, legend, s.CreatorPrincipal, nullTime(s.ExpiresHint)).Scan(&s.RegisteredAt)
}

func (r *PotRepo) GetSecret(ctx context.Context, potID string) (*models.PotSecret, error) {
	var (
		s       models.PotSecret
		legend  []byte
		expires *time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT pot_id, chain, secret_character, color_legend, creator_principal, registered_at, expires_hint
		FROM pot_secrets WHERE pot_id = $1
	`, potID).Scan(&s.PotID, &s.Chain, &s.SecretCharacter, &legend, &s.CreatorPrincipal, &s.RegisteredAt, &expires)
	if err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal(legend, &s.Legend); err != nil {
		return nil, err
	}
	if expires != nil {
		s.ExpiresHint = *expires
	}
	return &s, nil
}

// PurgeSecrets drops secrets of pots that went inactive or expired before cutoff.
func (r *PotRepo) PurgeSecrets(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM pot_secrets s
		USING pots p
		WHERE s.pot_id = p.pot_id
		  AND (NOT p.active OR p.expires_at IS NOT NULL)
		  AND COALESCE(p.expires_at, p.updated_at) < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// --- Ledger view ---

func (r *PotRepo) UpsertPot(ctx context.Context, p *models.Pot) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO pots (pot_id, creator, one_fa_address, expires_at, active)
		VALUES ($1, $2, $3, $4, true)
		ON CONFLICT (pot_id) DO UPDATE SET
			creator = COALESCE(NULLIF(EXCLUDED.creator, ''), pots.creator),
			one_fa_address = COALESCE(NULLIF(EXCLUDED.one_fa_address, ''), pots.one_fa_address),
			expires_at = COALESCE(EXCLUDED.expires_at, pots.expires_at),
			updated_at = now()
		RETURNING active, created_at, updated_at
	`, p.PotID, p.Creator, p.OneFAAddress, p.ExpiresAt).Scan(&p.Active, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PotRepo) GetPot(ctx context.Context, potID string) (*models.Pot, error) {
	var p models.Pot
	var creator, oneFA *string
	err := r.pool.QueryRow(ctx, `
		SELECT pot_id, creator, one_fa_address, expires_at, active, created_at, updated_at
		FROM pots WHERE pot_id = $1
	`, potID).Scan(&p.PotID, &creator, &oneFA, &p.ExpiresAt, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if creator != nil {
		p.Creator = *creator
	}
	if oneFA != nil {
		p.OneFAAddress = *oneFA
	}
	return &p, nil
}

// ExpirePot marks a pot inactive. Unknown pots get a tombstone row so late
// attempts are still refused.
func (r *PotRepo) ExpirePot(ctx context.Context, potID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO pots (pot_id, active) VALUES ($1, false)
		ON CONFLICT (pot_id) DO UPDATE SET active = false, updated_at = now()
	`, potID)
	return err
}

// ExpireDue deactivates every active pot whose expires_at has passed and returns their ids.
func (r *PotRepo) ExpireDue(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE pots SET active = false, updated_at = now()
		WHERE active AND expires_at IS NOT NULL AND expires_at <= $1
		RETURNING pot_id
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
