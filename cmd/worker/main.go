package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/moneypot/verifier/internal/config"
	"github.com/moneypot/verifier/internal/db"
	"github.com/moneypot/verifier/internal/events"
	"github.com/moneypot/verifier/internal/repositories"
	"github.com/moneypot/verifier/internal/services"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, "moneypot-worker", log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	var publisher events.Publisher = events.Nop{}
	if cfg.StoreBackend == config.StoreRedis {
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb, log)
	}

	potRepo := repositories.NewPotRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	potService := services.NewPotService(potRepo, auditRepo, publisher, cfg.SecretRetention, log)

	// metrics only; the worker has no API
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.WorkerPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()

	log.Info("worker started",
		zap.Duration("expiry_sweep_interval", cfg.ExpirySweepInterval),
		zap.Duration("secret_purge_interval", cfg.SecretPurgeInterval),
	)

	// Run jobs on tickers
	sweepTicker := time.NewTicker(cfg.ExpirySweepInterval)
	purgeTicker := time.NewTicker(cfg.SecretPurgeInterval)
	defer sweepTicker.Stop()
	defer purgeTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweepTicker.C:
			runExpirySweep(ctx, potService, log)
		case <-purgeTicker.C:
			runSecretPurge(ctx, potService, cfg, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			_ = metricsSrv.Close()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runExpirySweep(ctx context.Context, potService *services.PotService, log *zap.Logger) {
	n, err := potService.SweepExpired(ctx)
	if err != nil {
		log.Error("failed to sweep expired pots", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("deactivated expired pots", zap.Int("count", n))
	}
}

func runSecretPurge(ctx context.Context, potService *services.PotService, cfg *config.Config, log *zap.Logger) {
	n, err := potService.PurgeSecrets(ctx)
	if err != nil {
		log.Error("failed to purge pot secrets", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("purged pot secrets",
			zap.Int64("count", n),
			zap.Duration("retention", cfg.SecretRetention),
		)
	}
}
