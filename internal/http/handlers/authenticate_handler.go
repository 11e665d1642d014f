package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/http/dto"
	"github.com/moneypot/verifier/internal/middleware"
	"github.com/moneypot/verifier/internal/models"
	"github.com/moneypot/verifier/internal/services"
)

type Challenger interface {
	Issue(ctx context.Context, req services.IssueRequest) (*models.ChallengeSet, error)
	Verify(ctx context.Context, attemptID string, solutions []string) (*services.Verdict, error)
}

type AuthenticateHandler struct {
	challenger Challenger
	log        *zap.Logger
}

func NewAuthenticateHandler(challenger Challenger, log *zap.Logger) *AuthenticateHandler {
	return &AuthenticateHandler{challenger: challenger, log: log}
}

// Options issues the challenge rounds for a paid attempt.
// POST /authenticate/options
func (h *AuthenticateHandler) Options(c *fiber.Ctx) error {
	var req dto.AuthenticateOptionsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	attemptID := req.Attempt()
	if attemptID == "" {
		return badRequest(c, "attempt_id is required")
	}

	set, err := h.challenger.Issue(c.Context(), services.IssueRequest{
		Chain:           middleware.GetChain(c),
		AttemptID:       attemptID,
		Hunter:          req.Hunter,
		PublicKey:       req.PublicKey,
		Signature:       req.Signature,
		SignerPublicKey: req.SignerPublicKey,
	})
	if err != nil {
		return respondError(c, h.log, "challenge issuance failed", err)
	}

	return c.JSON(dto.AuthenticateOptionsResponse{
		ChallengeID: set.AttemptID,
		Challenges:  set.Rounds,
		ExpiresAt:   set.Expiry,
		Vocabulary:  dto.NewVocabulary(),
	})
}

// Verify scores the hunter's moves.
// POST /authenticate/verify
func (h *AuthenticateHandler) Verify(c *fiber.Ctx) error {
	var req dto.AuthenticateVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	attemptID := req.Attempt()
	if attemptID == "" {
		return badRequest(c, "challenge_id is required")
	}

	verdict, err := h.challenger.Verify(c.Context(), attemptID, req.Solutions)
	if err != nil {
		return respondError(c, h.log, "verification failed", err)
	}

	return c.JSON(dto.AuthenticateVerifyResponse{
		Success:      verdict.Success,
		OutcomeToken: verdict.Token,
	})
}
