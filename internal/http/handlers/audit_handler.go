package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/models"
)

const maxAuditPage = 200

type AuditReader interface {
	GetByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]models.AuditLog, error)
}

type AuditHandler struct {
	audit AuditReader
	log   *zap.Logger
}

func NewAuditHandler(audit AuditReader, log *zap.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, log: log}
}

// PotTrail lists audit entries for a pot, newest first.
// GET /api/pots/:id/audit?limit=&offset=
func (h *AuditHandler) PotTrail(c *fiber.Ctx) error {
	return h.trail(c, "pot")
}

// AttemptTrail lists audit entries for an attempt.
// GET /api/attempt/:id/audit
func (h *AuditHandler) AttemptTrail(c *fiber.Ctx) error {
	return h.trail(c, "attempt")
}

func (h *AuditHandler) trail(c *fiber.Ctx, entityType string) error {
	id := c.Params("id")
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)
	if limit <= 0 || limit > maxAuditPage || offset < 0 {
		return badRequest(c, "limit must be 1..200 and offset >= 0")
	}

	entries, err := h.audit.GetByEntity(c.Context(), entityType, id, limit, offset)
	if err != nil {
		return respondError(c, h.log, "audit lookup failed", err)
	}
	if entries == nil {
		entries = []models.AuditLog{}
	}
	return c.JSON(fiber.Map{"entries": entries})
}
