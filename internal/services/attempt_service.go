package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/events"
	"github.com/moneypot/verifier/internal/metrics"
	"github.com/moneypot/verifier/internal/models"
	"github.com/moneypot/verifier/internal/repositories"
	"github.com/moneypot/verifier/internal/wallet"
)

type RecordAttemptRequest struct {
	AttemptID  string
	PotID      string
	Difficulty int
	Hunter     string
	Chain      string // used to normalize Hunter; empty keeps it as sent
	Actor      string
}

// AttemptService bridges ledger-observed attempts into the verifier.
type AttemptService struct {
	attempts      AttemptStore
	results       ResultStore
	audit         AuditLogger
	pub           events.Publisher
	maxDifficulty int
	log           *zap.Logger
}

func NewAttemptService(
	attempts AttemptStore,
	results ResultStore,
	audit AuditLogger,
	pub events.Publisher,
	maxDifficulty int,
	log *zap.Logger,
) *AttemptService {
	return &AttemptService{
		attempts:      attempts,
		results:       results,
		audit:         audit,
		pub:           pub,
		maxDifficulty: maxDifficulty,
		log:           log,
	}
}

// Record stores a new attempt. Attempt ids are single use.
func (s *AttemptService) Record(ctx context.Context, req RecordAttemptRequest) (*models.Attempt, error) {
	req.AttemptID = strings.TrimSpace(req.AttemptID)
	req.PotID = strings.TrimSpace(req.PotID)
	if req.AttemptID == "" || req.PotID == "" {
		return nil, fmt.Errorf("%w: attempt_id and pot_id are required", ErrInvalidAttempt)
	}

	if req.Difficulty == 0 {
		req.Difficulty = models.DefaultDifficulty
	}
	if req.Difficulty < 1 || req.Difficulty > s.maxDifficulty {
		return nil, fmt.Errorf("%w: difficulty must be between 1 and %d", ErrInvalidAttempt, s.maxDifficulty)
	}

	hunter := strings.TrimSpace(req.Hunter)
	if hunter != "" && req.Chain != "" {
		norm, err := wallet.NormalizePrincipal(req.Chain, hunter)
		if err != nil {
			return nil, fmt.Errorf("%w: hunter: %v", ErrInvalidAttempt, err)
		}
		hunter = norm
	}

	a := &models.Attempt{
		AttemptID:       req.AttemptID,
		PotID:           req.PotID,
		HunterPrincipal: hunter,
		Difficulty:      req.Difficulty,
	}
	if err := s.attempts.Create(ctx, a); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return nil, ErrAttemptExists
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	actor := req.Actor
	_ = s.audit.Log(ctx, models.AuditLog{
		Actor:      &actor,
		ActorType:  "bridge",
		Action:     "attempt_recorded",
		EntityType: "attempt",
		EntityID:   a.AttemptID,
		Meta:       map[string]any{"pot_id": a.PotID, "difficulty": a.Difficulty},
	})

	_ = s.pub.Publish(ctx, events.StreamAttempts, events.Event{
		Type: events.EventAttemptRecorded,
		Payload: map[string]any{
			"attempt_id": a.AttemptID,
			"pot_id":     a.PotID,
			"difficulty": a.Difficulty,
		},
	})

	metrics.AttemptsRecorded.Inc()
	s.log.Info("attempt recorded",
		zap.String("attempt_id", a.AttemptID),
		zap.String("pot_id", a.PotID),
		zap.Int("difficulty", a.Difficulty),
	)
	return a, nil
}

func (s *AttemptService) Get(ctx context.Context, attemptID string) (*models.Attempt, error) {
	a, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *AttemptService) Result(ctx context.Context, attemptID string) (*models.VerificationResult, error) {
	res, err := s.results.Get(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrResultNotFound
		}
		return nil, err
	}
	return res, nil
}

// PotService keeps the ledger view of pots current.
type PotService struct {
	pots      PotStore
	audit     AuditLogger
	pub       events.Publisher
	retention time.Duration
	now       Clock
	log       *zap.Logger
}

func NewPotService(pots PotStore, audit AuditLogger, pub events.Publisher, retention time.Duration, log *zap.Logger) *PotService {
	return &PotService{
		pots:      pots,
		audit:     audit,
		pub:       pub,
		retention: retention,
		now:       time.Now,
		log:       log,
	}
}

func (s *PotService) Created(ctx context.Context, p *models.Pot) error {
	if p.PotID == "" {
		return fmt.Errorf("%w: pot_id is required", ErrInvalidAttempt)
	}
	if err := s.pots.UpsertPot(ctx, p); err != nil {
		return fmt.Errorf("upsert pot: %w", err)
	}
	s.log.Info("pot observed", zap.String("pot_id", p.PotID), zap.String("creator", p.Creator))
	return nil
}

func (s *PotService) Get(ctx context.Context, potID string) (*models.Pot, error) {
	return s.pots.GetPot(ctx, potID)
}

func (s *PotService) Expire(ctx context.Context, potID, actor string) error {
	if potID == "" {
		return fmt.Errorf("%w: pot_id is required", ErrInvalidAttempt)
	}
	if err := s.pots.ExpirePot(ctx, potID); err != nil {
		return fmt.Errorf("expire pot: %w", err)
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		Actor:      &actor,
		ActorType:  "bridge",
		Action:     "pot_expired",
		EntityType: "pot",
		EntityID:   potID,
	})
	_ = s.pub.Publish(ctx, events.StreamAttempts, events.Event{
		Type:    events.EventPotExpired,
		Payload: map[string]any{"pot_id": potID},
	})

	s.log.Info("pot expired", zap.String("pot_id", potID))
	return nil
}

// SweepExpired deactivates pots past their expiry and returns how many it touched.
func (s *PotService) SweepExpired(ctx context.Context) (int, error) {
	ids, err := s.pots.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		_ = s.pub.Publish(ctx, events.StreamAttempts, events.Event{
			Type:    events.EventPotExpired,
			Payload: map[string]any{"pot_id": id},
		})
	}
	return len(ids), nil
}

// PurgeSecrets forgets secrets of pots that have been dead for longer than the retention.
func (s *PotService) PurgeSecrets(ctx context.Context) (int64, error) {
	return s.pots.PurgeSecrets(ctx, s.now().Add(-s.retention))
}
