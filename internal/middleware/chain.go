package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/moneypot/verifier/internal/models"
)

const (
	CtxChain = "chain"

	// ChainHeader is what the web client sends; X-Moneypot-Chain is accepted
	// for proxies that drop headers with underscores.
	ChainHeader    = "MONEYPOT_CHAIN"
	ChainHeaderAlt = "X-Moneypot-Chain"
)

// ChainMiddleware pins the chain for a route group. An empty fixed chain
// resolves it per request from the header, falling back to fallback.
func ChainMiddleware(fixed, fallback string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		chain := fixed
		if chain == "" {
			chain = ResolveChain(firstNonEmpty(c.Get(ChainHeader), c.Get(ChainHeaderAlt)), fallback)
		}
		if chain == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported chain"})
		}
		c.Locals(CtxChain, chain)
		return c.Next()
	}
}

// ResolveChain maps a header value to a chain. Numeric values are EVM chain ids.
// Unknown values yield "".
func ResolveChain(v, fallback string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "":
		return fallback
	case models.ChainAptos:
		return models.ChainAptos
	case models.ChainEVM, "ethereum", "eth":
		return models.ChainEVM
	}
	if isChainID(v) {
		return models.ChainEVM
	}
	return ""
}

func isChainID(v string) bool {
	if h, ok := strings.CutPrefix(v, "0x"); ok {
		_, err := strconv.ParseUint(h, 16, 64)
		return err == nil
	}
	_, err := strconv.ParseUint(v, 10, 64)
	return err == nil
}

func GetChain(c *fiber.Ctx) string {
	ch, _ := c.Locals(CtxChain).(string)
	return ch
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
