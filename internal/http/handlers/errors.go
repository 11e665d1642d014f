package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/http/dto"
	"github.com/moneypot/verifier/internal/middleware"
	"github.com/moneypot/verifier/internal/services"
)

var statusByError = []struct {
	err    error
	status int
}{
	{services.ErrInvalidPayload, fiber.StatusBadRequest},
	{services.ErrExpiredPayload, fiber.StatusBadRequest},
	{services.ErrUnknownKey, fiber.StatusBadRequest},
	{services.ErrInvalidAttempt, fiber.StatusBadRequest},
	{services.ErrUnsupportedChain, fiber.StatusBadRequest},
	{services.ErrInvalidSignature, fiber.StatusUnauthorized},
	{services.ErrIssuerMismatch, fiber.StatusForbidden},
	{services.ErrHunterMismatch, fiber.StatusForbidden},
	{services.ErrAttemptNotFound, fiber.StatusNotFound},
	{services.ErrPotNotRegistered, fiber.StatusNotFound},
	{services.ErrResultNotFound, fiber.StatusNotFound},
	{services.ErrPotInactive, fiber.StatusConflict},
	{services.ErrExpiredOrMissing, fiber.StatusConflict},
	{services.ErrAttemptExists, fiber.StatusConflict},
	{services.ErrAlreadyVerified, fiber.StatusConflict},
	{services.ErrChallengeExpired, fiber.StatusGone},
}

// StatusFor maps a service error to an HTTP status. Unknown errors are 500.
func StatusFor(err error) int {
	for _, e := range statusByError {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return fiber.StatusInternalServerError
}

func respondError(c *fiber.Ctx, log *zap.Logger, msg string, err error) error {
	status := StatusFor(err)
	reqID := middleware.GetRequestID(c)

	if status >= fiber.StatusInternalServerError {
		log.Error(msg, zap.String("request_id", reqID), zap.Error(err))
		return c.Status(status).JSON(dto.ErrorResponse{Error: "internal error", RequestID: reqID})
	}

	log.Debug(msg, zap.String("request_id", reqID), zap.Error(err))
	return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error(), RequestID: reqID})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg, RequestID: middleware.GetRequestID(c)})
}
