package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/auth"
	"github.com/moneypot/verifier/internal/config"
	"github.com/moneypot/verifier/internal/rbac"
)

func TestResolveChain(t *testing.T) {
	tests := []struct {
		in, fallback, want string
	}{
		{"", "aptos", "aptos"},
		{"APTOS", "evm", "aptos"},
		{"evm", "aptos", "evm"},
		{"102031", "aptos", "evm"},
		{"0x18e8f", "aptos", "evm"},
		{"solana", "aptos", ""},
		{"0x", "aptos", ""},
	}
	for _, tt := range tests {
		if got := ResolveChain(tt.in, tt.fallback); got != tt.want {
			t.Errorf("ResolveChain(%q, %q) = %q, want %q", tt.in, tt.fallback, got, tt.want)
		}
	}
}

func TestChainMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/fixed", ChainMiddleware("evm", "aptos"), func(c *fiber.Ctx) error { return c.SendString(GetChain(c)) })
	app.Get("/header", ChainMiddleware("", "aptos"), func(c *fiber.Ctx) error { return c.SendString(GetChain(c)) })

	tests := []struct {
		path, header string
		status       int
		body         string
	}{
		{"/fixed", "aptos", 200, "evm"},
		{"/header", "", 200, "aptos"},
		{"/header", "102031", 200, "evm"},
		{"/header", "dogecoin", 400, ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", tt.path, nil)
		if tt.header != "" {
			req.Header.Set(ChainHeaderAlt, tt.header)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != tt.status {
			t.Errorf("%s %q: status %d, want %d", tt.path, tt.header, resp.StatusCode, tt.status)
			continue
		}
		if tt.status == 200 {
			b, _ := io.ReadAll(resp.Body)
			if string(b) != tt.body {
				t.Errorf("%s %q: body %q, want %q", tt.path, tt.header, b, tt.body)
			}
		}
	}
}

func TestAuthAndPermission(t *testing.T) {
	cfg := &config.Config{JWTSecret: "k", BridgeSubjects: []string{"bridge-1"}}
	app := fiber.New()
	app.Post("/attempt",
		AuthMiddleware(cfg, zap.NewNop()),
		RequirePermission(rbac.PermRecordAttempt),
		func(c *fiber.Ctx) error { return c.SendString(GetSubject(c)) },
	)

	bridge, _ := auth.GenerateJWT("k", "bridge-1", rbac.RoleLedgerBridge, time.Hour)
	stranger, _ := auth.GenerateJWT("k", "bridge-2", rbac.RoleLedgerBridge, time.Hour)
	operator, _ := auth.GenerateJWT("k", "ops", rbac.RoleOperator, time.Hour)
	forged, _ := auth.GenerateJWT("other", "bridge-1", rbac.RoleLedgerBridge, time.Hour)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", 401},
		{"not bearer", "Basic abc", 401},
		{"forged", "Bearer " + forged, 401},
		{"unknown bridge subject", "Bearer " + stranger, 403},
		{"operator lacks permission", "Bearer " + operator, 403},
		{"bridge", "Bearer " + bridge, 200},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("POST", "/attempt", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != tt.status {
			t.Errorf("%s: status %d, want %d", tt.name, resp.StatusCode, tt.status)
		}
	}
}

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestIDMiddleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(GetRequestID(c)) })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, _ := app.Test(req)
	if got := resp.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("kept id = %q", got)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "has space")
	resp, _ = app.Test(req)
	if got := resp.Header.Get("X-Request-ID"); got == "has space" || got == "" {
		t.Errorf("bad id not replaced: %q", got)
	}
}
