package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/config"
	"github.com/moneypot/verifier/internal/http/handlers"
	"github.com/moneypot/verifier/internal/middleware"
	"github.com/moneypot/verifier/internal/models"
	"github.com/moneypot/verifier/internal/rbac"
)

type Handlers struct {
	Register     *handlers.RegisterHandler
	Authenticate *handlers.AuthenticateHandler
	Attempt      *handlers.AttemptHandler
	Meta         *handlers.MetaHandler
	Audit        *handlers.AuditHandler
	WS           *handlers.WSHub // optional
}

// SetupRouter mounts the protocol routes at /, /aptos and /evm. rdb may be
// nil, in which case rate limiting is per process.
func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb redis.Cmdable,
	h Handlers,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, " +
			middleware.ChainHeader + ", " + middleware.ChainHeaderAlt,
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	app.Get("/health", h.Meta.Health)
	app.Get("/meta", h.Meta.GetMeta)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	limit := middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMin, time.Minute)

	for prefix, chain := range map[string]string{
		"":       "",
		"/aptos": models.ChainAptos,
		"/evm":   models.ChainEVM,
	} {
		// per route, not per group: an empty-prefix group would wrap every path
		onChain := middleware.ChainMiddleware(chain, cfg.DefaultChain)
		app.Post(prefix+"/register/options", onChain, limit, h.Register.Options)
		app.Post(prefix+"/register/verify", onChain, limit, h.Register.Verify)
		app.Post(prefix+"/authenticate/options", onChain, limit, h.Authenticate.Options)
		app.Post(prefix+"/authenticate/verify", onChain, limit, h.Authenticate.Verify)
	}

	// Ledger glue (service tokens)
	api := app.Group("/api", middleware.AuthMiddleware(cfg, log))
	api.Post("/attempt", middleware.RequirePermission(rbac.PermRecordAttempt), h.Attempt.RecordAttempt)
	api.Get("/attempt/:id/result", middleware.RequirePermission(rbac.PermReadResult), h.Attempt.GetResult)
	api.Post("/pots/expire", middleware.RequirePermission(rbac.PermExpirePot), h.Attempt.ExpirePot)
	api.Get("/pots/:id/audit", middleware.RequirePermission(rbac.PermReadAudit), h.Audit.PotTrail)
	api.Get("/attempt/:id/audit", middleware.RequirePermission(rbac.PermReadAudit), h.Audit.AttemptTrail)

	// WebSocket
	if h.WS != nil {
		app.Use("/ws", handlers.WSUpgradeMiddleware())
		app.Get("/ws", websocket.New(h.WS.HandleWS))
	}
}
