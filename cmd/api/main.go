package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/config"
	"github.com/moneypot/verifier/internal/db"
	"github.com/moneypot/verifier/internal/events"
	apphttp "github.com/moneypot/verifier/internal/http"
	"github.com/moneypot/verifier/internal/http/dto"
	"github.com/moneypot/verifier/internal/http/handlers"
	"github.com/moneypot/verifier/internal/keyexchange"
	"github.com/moneypot/verifier/internal/middleware"
	"github.com/moneypot/verifier/internal/onep"
	"github.com/moneypot/verifier/internal/repositories"
	"github.com/moneypot/verifier/internal/services"
	"github.com/moneypot/verifier/internal/store"
	"github.com/moneypot/verifier/internal/store/memory"
	"github.com/moneypot/verifier/internal/store/redisstore"
	"github.com/moneypot/verifier/migrations"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, "moneypot-api", log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Short-lived state and events
	var (
		kv         store.Interface
		publisher  events.Publisher
		subscriber events.Subscriber
		limiterDB  redis.Cmdable // stays a nil interface in memory mode
	)
	switch cfg.StoreBackend {
	case config.StoreMemory:
		kv = memory.New(ctx)
		bus := events.NewLocalBus()
		publisher, subscriber = bus, bus
	default:
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		kv = redisstore.New(rdb)
		publisher = events.NewRedisPublisher(rdb, log)
		subscriber = events.NewRedisSubscriber(rdb, log)
		limiterDB = rdb
	}

	// Repositories
	potRepo := repositories.NewPotRepo(pool)
	attemptRepo := repositories.NewAttemptRepo(pool)
	resultRepo := repositories.NewResultRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Services
	keys := keyexchange.NewService(kv, cfg.RegistrationKeyTTL, log)
	registrationService := services.NewRegistrationService(keys, potRepo, potRepo, auditRepo, publisher, cfg.PayloadMaxAge, log)
	attemptService := services.NewAttemptService(attemptRepo, resultRepo, auditRepo, publisher, cfg.MaxDifficulty, log)
	potService := services.NewPotService(potRepo, auditRepo, publisher, cfg.SecretRetention, log)
	gen := onep.NewGenerator(cfg.GridSize)
	challengeService := services.NewChallengeService(
		attemptRepo, potRepo, potRepo, resultRepo, kv,
		gen,
		publisher,
		services.ChallengeConfig{
			TTL:             cfg.ChallengeTTL,
			OutcomeSecret:   cfg.JWTSecret,
			OutcomeLifetime: cfg.OutcomeTokenLifetime,
		},
		log,
	)

	// Handlers
	wsHub := handlers.NewWSHub(cfg, subscriber, log)
	if err := wsHub.Start(ctx); err != nil {
		log.Warn("websocket hub not subscribed", zap.Error(err))
	}

	h := apphttp.Handlers{
		Register:     handlers.NewRegisterHandler(registrationService, log),
		Authenticate: handlers.NewAuthenticateHandler(challengeService, log),
		Attempt:      handlers.NewAttemptHandler(attemptService, potService, log),
		Meta:         handlers.NewMetaHandler(gen.GridSize(), cfg.MaxDifficulty, cfg.DefaultChain),
		Audit:        handlers.NewAuditHandler(auditRepo, log),
		WS:           wsHub,
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		AppName: "moneypot-verifier",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			msg := err.Error()
			if code >= fiber.StatusInternalServerError {
				log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
				msg = "internal error"
			}
			return c.Status(code).JSON(dto.ErrorResponse{Error: msg, RequestID: middleware.GetRequestID(c)})
		},
	})

	apphttp.SetupRouter(app, cfg, log, limiterDB, h)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server",
		zap.String("addr", addr),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("default_chain", cfg.DefaultChain),
	)
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
