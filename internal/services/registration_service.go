package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/events"
	"github.com/moneypot/verifier/internal/keyexchange"
	"github.com/moneypot/verifier/internal/metrics"
	"github.com/moneypot/verifier/internal/models"
	"github.com/moneypot/verifier/internal/repositories"
	"github.com/moneypot/verifier/internal/wallet"
)

const registrationLeeway = 30 * time.Second

// RegistrationPayload is what a creator seals for the verifier.
// "1p" and "legend" are the field names browser clients send; the longer
// names are accepted too.
type RegistrationPayload struct {
	PotID           models.LedgerID `json:"pot_id"`
	Secret          string          `json:"1p,omitempty"`
	SecretCharacter string          `json:"secret_character,omitempty"`
	Legend          models.Legend   `json:"legend,omitempty"`
	ColorLegend     models.Legend   `json:"color_legend,omitempty"`
	jwt.RegisteredClaims
}

func (p *RegistrationPayload) secret() string {
	if p.Secret != "" {
		return p.Secret
	}
	return p.SecretCharacter
}

func (p *RegistrationPayload) legend() models.Legend {
	if len(p.Legend) > 0 {
		return p.Legend
	}
	return p.ColorLegend
}

type RegisterRequest struct {
	Chain            string
	KeyID            string
	PublicKey        string // alternative to KeyID: the public key that was issued
	EncryptedPayload string
	Signature        string
	SignerPublicKey  string // aptos only
}

type RegistrationService struct {
	keys    KeyExchange
	secrets SecretStore
	pots    PotStore
	audit   AuditLogger
	pub     events.Publisher
	maxAge  time.Duration
	now     Clock
	log     *zap.Logger
}

func NewRegistrationService(
	keys KeyExchange,
	secrets SecretStore,
	pots PotStore,
	audit AuditLogger,
	pub events.Publisher,
	maxAge time.Duration,
	log *zap.Logger,
) *RegistrationService {
	return &RegistrationService{
		keys:    keys,
		secrets: secrets,
		pots:    pots,
		audit:   audit,
		pub:     pub,
		maxAge:  maxAge,
		now:     time.Now,
		log:     log,
	}
}

func (s *RegistrationService) IssueKey(ctx context.Context) (*keyexchange.Key, error) {
	key, err := s.keys.Issue(ctx)
	if err != nil {
		return nil, fmt.Errorf("issue registration key: %w", err)
	}
	metrics.KeysIssued.Inc()
	return key, nil
}

// Register opens the sealed payload, checks freshness and the creator's wallet
// signature over the envelope, then stores the secret.
func (s *RegistrationService) Register(ctx context.Context, req RegisterRequest) (*models.PotSecret, error) {
	secret, err := s.register(ctx, req)
	result := "ok"
	if err != nil {
		result = registrationResult(err)
	}
	metrics.Registrations.WithLabelValues(req.Chain, result).Inc()
	return secret, err
}

func (s *RegistrationService) register(ctx context.Context, req RegisterRequest) (*models.PotSecret, error) {
	if req.Chain != models.ChainAptos && req.Chain != models.ChainEVM {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedChain, req.Chain)
	}
	if strings.TrimSpace(req.EncryptedPayload) == "" {
		return nil, fmt.Errorf("%w: encrypted_payload is required", ErrInvalidPayload)
	}

	keyID := req.KeyID
	if keyID == "" {
		id, err := s.keys.ResolveKeyID(ctx, req.PublicKey)
		if err != nil {
			return nil, mapKeyError(err)
		}
		keyID = id
	}

	plaintext, err := s.keys.Open(ctx, keyID, req.EncryptedPayload)
	if err != nil {
		return nil, mapKeyError(err)
	}

	payload, err := s.parsePayload(plaintext)
	if err != nil {
		return nil, err
	}

	issuer, err := wallet.NormalizePrincipal(req.Chain, payload.Issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: iss: %v", ErrInvalidPayload, err)
	}

	if err := wallet.Verify(req.Chain, issuer, req.SignerPublicKey, []byte(req.EncryptedPayload), req.Signature); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if err := s.checkIssuer(ctx, req.Chain, string(payload.PotID), issuer); err != nil {
		return nil, err
	}

	secretChar, _ := models.NormalizeSecret(payload.secret())
	ps := &models.PotSecret{
		PotID:            string(payload.PotID),
		Chain:            req.Chain,
		SecretCharacter:  secretChar,
		Legend:           payload.legend(),
		CreatorPrincipal: issuer,
		ExpiresHint:      payload.ExpiresAt.Time,
	}
	if err := s.secrets.UpsertSecret(ctx, ps); err != nil {
		return nil, fmt.Errorf("store pot secret: %w", err)
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		Actor:      &issuer,
		ActorType:  "creator",
		Action:     "pot_secret_registered",
		EntityType: "pot",
		EntityID:   ps.PotID,
		Meta:       map[string]any{"chain": req.Chain, "key_id": keyID},
	})

	_ = s.pub.Publish(ctx, events.StreamAttempts, events.Event{
		Type: events.EventPotRegistered,
		Payload: map[string]any{
			"pot_id":  ps.PotID,
			"chain":   ps.Chain,
			"creator": issuer,
		},
	})

	s.log.Info("pot secret registered",
		zap.String("pot_id", ps.PotID),
		zap.String("chain", req.Chain),
		zap.String("creator", issuer),
	)

	return ps, nil
}

func (s *RegistrationService) parsePayload(plaintext []byte) (*RegistrationPayload, error) {
	var p RegistrationPayload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if p.PotID == "" {
		return nil, fmt.Errorf("%w: pot_id is required", ErrInvalidPayload)
	}
	if _, err := models.NormalizeSecret(p.secret()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := p.legend().Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.Issuer == "" {
		return nil, fmt.Errorf("%w: iss is required", ErrInvalidPayload)
	}

	now := s.now()
	v := jwt.NewValidator(
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(registrationLeeway),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err := v.Validate(p.RegisteredClaims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpiredPayload, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	// the validator tolerates leeway on exp; registration does not
	if !now.Before(p.ExpiresAt.Time) {
		return nil, ErrExpiredPayload
	}
	if p.IssuedAt != nil && s.maxAge > 0 && p.ExpiresAt.Sub(p.IssuedAt.Time) > s.maxAge {
		return nil, fmt.Errorf("%w: validity window exceeds %s", ErrInvalidPayload, s.maxAge)
	}

	return &p, nil
}

// checkIssuer compares the signer with what the ledger says about the pot.
// Pots the ledger view has not seen yet are accepted.
func (s *RegistrationService) checkIssuer(ctx context.Context, chain, potID, issuer string) error {
	if s.pots == nil {
		return nil
	}
	pot, err := s.pots.GetPot(ctx, potID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load pot: %w", err)
	}
	if pot.Creator == "" && pot.OneFAAddress == "" {
		return nil
	}
	for _, known := range []string{pot.Creator, pot.OneFAAddress} {
		if known == "" {
			continue
		}
		if norm, err := wallet.NormalizePrincipal(chain, known); err == nil && norm == issuer {
			return nil
		}
	}
	return ErrIssuerMismatch
}

func mapKeyError(err error) error {
	switch {
	case errors.Is(err, keyexchange.ErrUnknownKey), errors.Is(err, keyexchange.ErrBadPublicKey):
		return fmt.Errorf("%w: %v", ErrUnknownKey, err)
	case errors.Is(err, keyexchange.ErrMalformedEnvelope), errors.Is(err, keyexchange.ErrDecrypt):
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return fmt.Errorf("open payload: %w", err)
}

func registrationResult(err error) string {
	switch {
	case errors.Is(err, ErrExpiredPayload):
		return "expired"
	case errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrIssuerMismatch):
		return "bad_signature"
	case errors.Is(err, ErrUnknownKey):
		return "unknown_key"
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrUnsupportedChain):
		return "invalid"
	}
	return "error"
}
