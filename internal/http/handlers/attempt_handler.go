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

type AttemptRecorder interface {
	Record(ctx context.Context, req services.RecordAttemptRequest) (*models.Attempt, error)
	Result(ctx context.Context, attemptID string) (*models.VerificationResult, error)
}

type PotExpirer interface {
	Expire(ctx context.Context, potID, actor string) error
}

// AttemptHandler is the glue the ledger bridge calls.
type AttemptHandler struct {
	attempts AttemptRecorder
	pots     PotExpirer
	log      *zap.Logger
}

func NewAttemptHandler(attempts AttemptRecorder, pots PotExpirer, log *zap.Logger) *AttemptHandler {
	return &AttemptHandler{attempts: attempts, pots: pots, log: log}
}

// RecordAttempt
// POST /api/attempt
func (h *AttemptHandler) RecordAttempt(c *fiber.Ctx) error {
	var req dto.RecordAttemptRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	a, err := h.attempts.Record(c.Context(), services.RecordAttemptRequest{
		AttemptID:  string(req.AttemptID),
		PotID:      string(req.PotID),
		Difficulty: req.Difficulty,
		Hunter:     req.Hunter,
		Chain:      req.Chain,
		Actor:      middleware.GetSubject(c),
	})
	if err != nil {
		return respondError(c, h.log, "record attempt failed", err)
	}

	return c.JSON(dto.RecordAttemptResponse{Success: true, Attempt: a})
}

// GetResult
// GET /api/attempt/:id/result
func (h *AttemptHandler) GetResult(c *fiber.Ctx) error {
	res, err := h.attempts.Result(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "load result failed", err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}

// ExpirePot
// POST /api/pots/expire
func (h *AttemptHandler) ExpirePot(c *fiber.Ctx) error {
	var req dto.ExpirePotRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.PotID == "" {
		return badRequest(c, "pot_id is required")
	}

	if err := h.pots.Expire(c.Context(), string(req.PotID), middleware.GetSubject(c)); err != nil {
		return respondError(c, h.log, "expire pot failed", err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
