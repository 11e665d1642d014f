package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/moneypot/verifier/internal/config"
	"github.com/moneypot/verifier/internal/db"
	"github.com/moneypot/verifier/internal/events"
	"github.com/moneypot/verifier/internal/ledger"
	"github.com/moneypot/verifier/internal/rbac"
	"github.com/moneypot/verifier/internal/repositories"
	"github.com/moneypot/verifier/internal/services"
)

// Ledger bridge: applies on-chain pot events to the verifier's ledger view
// and relays verified outcomes to the transaction relayer.

const relayAttempts = 3

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, "moneypot-ledger-bridge", log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	potRepo := repositories.NewPotRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	attemptService := services.NewAttemptService(
		repositories.NewAttemptRepo(pool), repositories.NewResultRepo(pool), auditRepo, publisher, cfg.MaxDifficulty, log)
	potService := services.NewPotService(potRepo, auditRepo, publisher, cfg.SecretRetention, log)

	applier := ledger.NewApplier(potService, attemptService, rbac.RoleLedgerBridge, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := subscriber.SubscribeRaw(gctx, events.StreamLedger, applier.HandleRaw(gctx)); err != nil {
			return err
		}
		log.Info("consuming ledger events", zap.String("stream", events.StreamLedger))
		<-gctx.Done()
		return nil
	})

	if cfg.RelayerURL != "" {
		relayer := ledger.NewRelayerClient(cfg.RelayerURL, cfg.BridgeToken, log)
		g.Go(func() error {
			err := subscriber.Subscribe(gctx, events.StreamAttempts, func(event events.Event) {
				if event.Type != events.EventAttemptVerified {
					return
				}
				relayOutcome(gctx, relayer, event, log)
			})
			if err != nil {
				return err
			}
			log.Info("relaying outcomes", zap.String("relayer_url", cfg.RelayerURL))
			<-gctx.Done()
			return nil
		})
	} else {
		log.Warn("RELAYER_URL is empty, verified outcomes will not be written back")
	}

	log.Info("ledger-bridge started")
	if err := g.Wait(); err != nil {
		log.Fatal("ledger-bridge stopped", zap.Error(err))
	}
	log.Info("shutting down ledger-bridge")
}

func relayOutcome(ctx context.Context, relayer *ledger.RelayerClient, event events.Event, log *zap.Logger) {
	outcome, ok := ledger.OutcomeFromEvent(event.Payload)
	if !ok {
		log.Warn("attempt_verified event without a relayable outcome", zap.Any("payload", event.Payload))
		return
	}

	backoff := time.Second
	for i := 1; i <= relayAttempts; i++ {
		err := relayer.RecordAttemptOutcome(ctx, outcome)
		if err == nil {
			log.Info("outcome relayed",
				zap.String("attempt_id", outcome.AttemptID),
				zap.Bool("success", outcome.Success),
			)
			return
		}
		log.Warn("failed to relay outcome",
			zap.String("attempt_id", outcome.AttemptID),
			zap.Int("try", i),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	log.Error("giving up on outcome relay", zap.String("attempt_id", outcome.AttemptID))
}
