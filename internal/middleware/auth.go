package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/auth"
	"github.com/moneypot/verifier/internal/config"
	"github.com/moneypot/verifier/internal/rbac"
)

const (
	CtxSubject = "subject"
	CtxRole    = "role"
)

// AuthMiddleware accepts service tokens (ledger bridge, operators) signed with JWT_SECRET.
func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		if claims.Role == rbac.RoleLedgerBridge && !cfg.IsBridgeSubject(claims.Subject) {
			log.Warn("bridge token for unknown subject", zap.String("subject", claims.Subject))
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "subject not allowed"})
		}

		c.Locals(CtxSubject, claims.Subject)
		c.Locals(CtxRole, claims.Role)

		return c.Next()
	}
}

func GetSubject(c *fiber.Ctx) string {
	s, _ := c.Locals(CtxSubject).(string)
	return s
}

func GetRole(c *fiber.Ctx) string {
	r, _ := c.Locals(CtxRole).(string)
	return r
}

// RequirePermission must run after AuthMiddleware.
func RequirePermission(perm string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rbac.HasPermission(GetRole(c), perm) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "insufficient permissions"})
		}
		return c.Next()
	}
}
