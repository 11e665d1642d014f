package services

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/auth"
	"github.com/moneypot/verifier/internal/events"
	"github.com/moneypot/verifier/internal/metrics"
	"github.com/moneypot/verifier/internal/models"
	"github.com/moneypot/verifier/internal/onep"
	"github.com/moneypot/verifier/internal/repositories"
	"github.com/moneypot/verifier/internal/store"
	"github.com/moneypot/verifier/internal/wallet"
)

// errOutcomeUnsigned means the verdict is stored but its token could not be signed.
var errOutcomeUnsigned = errors.New("sign outcome")

type ChallengeConfig struct {
	TTL             time.Duration
	OutcomeSecret   string
	OutcomeLifetime time.Duration
}

type IssueRequest struct {
	Chain           string
	AttemptID       string
	Hunter          string // optional; checked against the recorded hunter
	PublicKey       string // optional hint: an address, an aptos key, or anything else
	Signature       string // optional signature over wallet.AuthenticateMessage
	SignerPublicKey string
}

type Verdict struct {
	AttemptID string `json:"attempt_id"`
	PotID     string `json:"pot_id"`
	Success   bool   `json:"success"`
	Token     string `json:"outcome_token"`
}

// ChallengeService issues 1P challenge sets and scores the answers.
type ChallengeService struct {
	attempts AttemptStore
	secrets  SecretStore
	pots     PotStore
	results  ResultStore
	sets     *store.JSON[models.ChallengeSet]
	gen      *onep.Generator
	pub      events.Publisher
	cfg      ChallengeConfig
	now      Clock
	log      *zap.Logger
}

func NewChallengeService(
	attempts AttemptStore,
	secrets SecretStore,
	pots PotStore,
	results ResultStore,
	kv store.Interface,
	gen *onep.Generator,
	pub events.Publisher,
	cfg ChallengeConfig,
	log *zap.Logger,
) *ChallengeService {
	return &ChallengeService{
		attempts: attempts,
		secrets:  secrets,
		pots:     pots,
		results:  results,
		sets:     &store.JSON[models.ChallengeSet]{Underlying: kv, Prefix: "challenge:"},
		gen:      gen,
		pub:      pub,
		cfg:      cfg,
		now:      time.Now,
		log:      log,
	}
}

// Issue generates difficulty rounds for the attempt. It succeeds once per attempt.
func (s *ChallengeService) Issue(ctx context.Context, req IssueRequest) (*models.ChallengeSet, error) {
	set, err := s.issue(ctx, req)
	result := "ok"
	if err != nil {
		result = challengeResult(err)
	}
	metrics.ChallengesIssued.WithLabelValues(result).Inc()
	return set, err
}

func (s *ChallengeService) issue(ctx context.Context, req IssueRequest) (*models.ChallengeSet, error) {
	attemptID := strings.TrimSpace(req.AttemptID)
	if attemptID == "" {
		return nil, fmt.Errorf("%w: attempt_id is required", ErrInvalidAttempt)
	}

	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("load attempt: %w", err)
	}

	if err := s.checkHunter(req, attempt); err != nil {
		return nil, err
	}

	secret, err := s.secrets.GetSecret(ctx, attempt.PotID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrPotNotRegistered
		}
		return nil, fmt.Errorf("load pot secret: %w", err)
	}

	now := s.now()
	if s.pots != nil {
		pot, err := s.pots.GetPot(ctx, attempt.PotID)
		switch {
		case err == nil:
			if !pot.Live(now) {
				return nil, ErrPotInactive
			}
		case errors.Is(err, repositories.ErrNotFound):
		default:
			return nil, fmt.Errorf("load pot: %w", err)
		}
	}

	rounds, err := s.gen.Rounds(secret.SecretCharacter, attempt.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("generate rounds: %w", err)
	}

	set := &models.ChallengeSet{
		AttemptID: attemptID,
		PotID:     attempt.PotID,
		Rounds:    rounds,
		IssuedAt:  now,
		Expiry:    now.Add(s.cfg.TTL),
	}
	ok, err := s.sets.SetNX(ctx, attemptID, set, s.cfg.TTL)
	if err != nil {
		return nil, fmt.Errorf("store challenge set: %w", err)
	}
	if !ok {
		return nil, ErrExpiredOrMissing
	}

	// the set is live; the attempt row makes issuance final
	if err := s.attempts.MarkChallengesIssued(ctx, attemptID, now); err != nil {
		if derr := s.sets.Delete(ctx, attemptID); derr != nil {
			s.log.Error("failed to drop unissued challenge set", zap.String("attempt_id", attemptID), zap.Error(derr))
		}
		if errors.Is(err, repositories.ErrConflict) {
			return nil, ErrExpiredOrMissing
		}
		return nil, fmt.Errorf("mark challenges issued: %w", err)
	}

	_ = s.pub.Publish(ctx, events.StreamAttempts, events.Event{
		Type: events.EventChallengesIssued,
		Payload: map[string]any{
			"attempt_id": attemptID,
			"pot_id":     attempt.PotID,
			"rounds":     len(rounds),
			"expires_at": set.Expiry.Unix(),
		},
	})

	s.log.Info("challenges issued",
		zap.String("attempt_id", attemptID),
		zap.String("pot_id", attempt.PotID),
		zap.Int("rounds", len(rounds)),
	)
	return set, nil
}

func (s *ChallengeService) checkHunter(req IssueRequest, attempt *models.Attempt) error {
	// attempts recorded without a chain keep the address as sent
	owner := attempt.HunterPrincipal
	if owner != "" && req.Chain != "" {
		if norm, err := wallet.NormalizePrincipal(req.Chain, owner); err == nil {
			owner = norm
		}
	}

	hunter := strings.TrimSpace(req.Hunter)
	if hunter != "" && req.Chain != "" {
		norm, err := wallet.NormalizePrincipal(req.Chain, hunter)
		if err != nil {
			return fmt.Errorf("%w: hunter: %v", ErrInvalidAttempt, err)
		}
		hunter = norm
	}

	signerPub := req.SignerPublicKey
	if hunter == "" {
		hints := publicKeyPrincipals(req.Chain, req.PublicKey, attempt.AttemptID)
		switch {
		case len(hints) == 0:
		case owner == "":
			hunter = hints[0]
		case slices.Contains(hints, owner):
			hunter = owner
		default:
			return ErrHunterMismatch
		}
		if hunter != "" && signerPub == "" && req.Chain == models.ChainAptos {
			signerPub = req.PublicKey
		}
	}
	if hunter == "" {
		hunter = owner
	}

	if owner != "" && hunter != owner {
		return ErrHunterMismatch
	}

	if req.Signature != "" {
		if hunter == "" {
			return fmt.Errorf("%w: signature given without a hunter", ErrInvalidSignature)
		}
		msg := wallet.AuthenticateMessage(attempt.AttemptID)
		if err := wallet.Verify(req.Chain, hunter, signerPub, msg, req.Signature); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	}
	return nil
}

// publicKeyPrincipals lists the addresses a public_key field may stand for.
// Web clients fall back to sending the attempt id there, which names nobody.
// On aptos a 32-byte value is either an address or an ed25519 key.
func publicKeyPrincipals(chain, publicKey, attemptID string) []string {
	pk := strings.TrimSpace(publicKey)
	if pk == "" || pk == attemptID || chain == "" {
		return nil
	}
	var out []string
	if chain == models.ChainAptos {
		if raw, err := hex.DecodeString(strings.TrimPrefix(pk, "0x")); err == nil && len(raw) == ed25519.PublicKeySize {
			out = append(out, wallet.AptosAddressFromPublicKey(ed25519.PublicKey(raw)))
		}
	}
	if addr, err := wallet.NormalizePrincipal(chain, pk); err == nil {
		out = append(out, addr)
	}
	return out
}

// Verify consumes the challenge set and scores solutions against the pot legend.
// A verdict is final: a second call returns ErrAlreadyVerified. When no verdict
// could be recorded the set is put back so the hunter can retry.
func (s *ChallengeService) Verify(ctx context.Context, attemptID string, solutions []string) (*Verdict, error) {
	attemptID = strings.TrimSpace(attemptID)

	set, err := s.sets.Take(ctx, attemptID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			metrics.Verifications.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("load challenge set: %w", err)
		}
		if _, rerr := s.results.Get(ctx, attemptID); rerr == nil {
			return nil, ErrAlreadyVerified
		}
		metrics.Verifications.WithLabelValues("expired").Inc()
		return nil, ErrChallengeExpired
	}

	now := s.now()
	if set.Expired(now) {
		// late answers lose; record it so the ledger can settle the attempt
		if _, err := s.settle(ctx, set, false, now); err != nil && !errors.Is(err, ErrAlreadyVerified) {
			s.log.Error("failed to record expired attempt", zap.String("attempt_id", attemptID), zap.Error(err))
		}
		metrics.Verifications.WithLabelValues("expired").Inc()
		return nil, ErrChallengeExpired
	}

	secret, err := s.secrets.GetSecret(ctx, set.PotID)
	if err != nil {
		metrics.Verifications.WithLabelValues("error").Inc()
		s.restore(ctx, set, now)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrPotNotRegistered
		}
		return nil, fmt.Errorf("load pot secret: %w", err)
	}

	success, err := onep.Score(set.Rounds, secret.SecretCharacter, secret.Legend, solutions)
	if err != nil {
		metrics.Verifications.WithLabelValues("error").Inc()
		s.restore(ctx, set, now)
		return nil, fmt.Errorf("score attempt: %w", err)
	}

	verdict, err := s.settle(ctx, set, success, now)
	if err != nil {
		metrics.Verifications.WithLabelValues("error").Inc()
		if !errors.Is(err, ErrAlreadyVerified) && !errors.Is(err, errOutcomeUnsigned) {
			s.restore(ctx, set, now)
		}
		return nil, err
	}

	result := "lost"
	if success {
		result = "won"
	}
	metrics.Verifications.WithLabelValues(result).Inc()
	metrics.ChallengeSolveTime.Observe(now.Sub(set.IssuedAt).Seconds())

	s.log.Info("attempt verified",
		zap.String("attempt_id", attemptID),
		zap.String("pot_id", set.PotID),
		zap.Bool("success", success),
	)
	return verdict, nil
}

// restore puts a taken set back for the rest of its lifetime.
func (s *ChallengeService) restore(ctx context.Context, set *models.ChallengeSet, now time.Time) {
	ttl := set.Expiry.Sub(now)
	if ttl <= 0 {
		return
	}
	if _, err := s.sets.SetNX(ctx, set.AttemptID, set, ttl); err != nil {
		s.log.Error("failed to restore challenge set", zap.String("attempt_id", set.AttemptID), zap.Error(err))
	}
}

func (s *ChallengeService) settle(ctx context.Context, set *models.ChallengeSet, success bool, now time.Time) (*Verdict, error) {
	res := &models.VerificationResult{
		AttemptID:  set.AttemptID,
		PotID:      set.PotID,
		Success:    success,
		VerifiedAt: now,
	}
	if err := s.results.Insert(ctx, res); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return nil, ErrAlreadyVerified
		}
		return nil, fmt.Errorf("store result: %w", err)
	}

	if err := s.attempts.MarkCompleted(ctx, set.AttemptID, now); err != nil {
		s.log.Warn("failed to mark attempt completed", zap.String("attempt_id", set.AttemptID), zap.Error(err))
	}

	token, err := auth.SignOutcome(s.cfg.OutcomeSecret, set.AttemptID, set.PotID, success, now, s.cfg.OutcomeLifetime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errOutcomeUnsigned, err)
	}

	_ = s.pub.Publish(ctx, events.StreamAttempts, events.Event{
		Type: events.EventAttemptVerified,
		Payload: map[string]any{
			"attempt_id":    set.AttemptID,
			"pot_id":        set.PotID,
			"success":       success,
			"outcome_token": token,
		},
	})

	return &Verdict{
		AttemptID: set.AttemptID,
		PotID:     set.PotID,
		Success:   success,
		Token:     token,
	}, nil
}

func challengeResult(err error) string {
	switch {
	case errors.Is(err, ErrAttemptNotFound):
		return "attempt_not_found"
	case errors.Is(err, ErrPotNotRegistered):
		return "pot_not_registered"
	case errors.Is(err, ErrPotInactive):
		return "pot_inactive"
	case errors.Is(err, ErrExpiredOrMissing):
		return "already_issued"
	case errors.Is(err, ErrHunterMismatch), errors.Is(err, ErrInvalidSignature):
		return "forbidden"
	case errors.Is(err, ErrInvalidAttempt):
		return "invalid"
	}
	return "error"
}
