package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/http/dto"
	"github.com/moneypot/verifier/internal/keyexchange"
	"github.com/moneypot/verifier/internal/middleware"
	"github.com/moneypot/verifier/internal/models"
	"github.com/moneypot/verifier/internal/services"
)

type Registrar interface {
	IssueKey(ctx context.Context) (*keyexchange.Key, error)
	Register(ctx context.Context, req services.RegisterRequest) (*models.PotSecret, error)
}

type RegisterHandler struct {
	registrar Registrar
	log       *zap.Logger
}

func NewRegisterHandler(registrar Registrar, log *zap.Logger) *RegisterHandler {
	return &RegisterHandler{registrar: registrar, log: log}
}

// Options hands out a one-time encryption key.
// POST /register/options
func (h *RegisterHandler) Options(c *fiber.Ctx) error {
	key, err := h.registrar.IssueKey(c.Context())
	if err != nil {
		return respondError(c, h.log, "failed to issue registration key", err)
	}
	return c.JSON(dto.RegisterOptionsResponse{
		KeyID:      key.KeyID,
		PublicKey:  key.PublicKey,
		Vocabulary: dto.NewVocabulary(),
	})
}

// Verify registers a pot secret from a sealed, signed payload.
// POST /register/verify
func (h *RegisterHandler) Verify(c *fiber.Ctx) error {
	var req dto.RegisterVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	if req.EncryptedPayload == "" {
		if len(req.Payload) > 0 {
			return badRequest(c, "plain payloads are not accepted; seal the payload with the issued public key")
		}
		return badRequest(c, "encrypted_payload is required")
	}
	if req.KeyID == "" && req.PublicKey == "" {
		return badRequest(c, "key_id or public_key is required")
	}

	ps, err := h.registrar.Register(c.Context(), services.RegisterRequest{
		Chain:            middleware.GetChain(c),
		KeyID:            req.KeyID,
		PublicKey:        req.PublicKey,
		EncryptedPayload: req.EncryptedPayload,
		Signature:        req.Signature,
		SignerPublicKey:  req.SignerPublicKey,
	})
	if err != nil {
		return respondError(c, h.log, "registration failed", err)
	}

	return c.JSON(dto.RegisterVerifyResponse{Success: true, PotID: ps.PotID})
}
