package services

import (
	"context"
	"time"

	"github.com/moneypot/verifier/internal/keyexchange"
	"github.com/moneypot/verifier/internal/models"
)

// The repositories package satisfies these against postgres. Tests use in-memory fakes.

type SecretStore interface {
	UpsertSecret(ctx context.Context, s *models.PotSecret) error
	GetSecret(ctx context.Context, potID string) (*models.PotSecret, error)
}

type PotStore interface {
	UpsertPot(ctx context.Context, p *models.Pot) error
	GetPot(ctx context.Context, potID string) (*models.Pot, error)
	ExpirePot(ctx context.Context, potID string) error
	ExpireDue(ctx context.Context, now time.Time) ([]string, error)
	PurgeSecrets(ctx context.Context, cutoff time.Time) (int64, error)
}

type AttemptStore interface {
	Create(ctx context.Context, a *models.Attempt) error
	GetByID(ctx context.Context, attemptID string) (*models.Attempt, error)
	MarkChallengesIssued(ctx context.Context, attemptID string, at time.Time) error
	MarkCompleted(ctx context.Context, attemptID string, at time.Time) error
}

type ResultStore interface {
	Insert(ctx context.Context, res *models.VerificationResult) error
	Get(ctx context.Context, attemptID string) (*models.VerificationResult, error)
}

type AuditLogger interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

type KeyExchange interface {
	Issue(ctx context.Context) (*keyexchange.Key, error)
	ResolveKeyID(ctx context.Context, publicKey string) (string, error)
	Open(ctx context.Context, keyID, envelopeHex string) ([]byte, error)
}

// Clock is swapped in tests.
type Clock func() time.Time
