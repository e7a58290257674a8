package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/slotline/booking-core/internal/config"
	"github.com/slotline/booking-core/internal/db"
	"github.com/slotline/booking-core/internal/logging"
	redisclient "github.com/slotline/booking-core/internal/redis"
	"github.com/slotline/booking-core/internal/schedule"
	"github.com/slotline/booking-core/internal/waitlist"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("prod", "expiry-worker")
		fallback.Fatal().Err(err).Msg("config load failed")
	}

	logger := logging.New(cfg.Env, "expiry-worker")
	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.Connect(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to postgres")

	rdb, err := redisclient.New(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to redis")

	scheduleRepo := schedule.NewPgRepository(pgPool)
	waitlistRepo := waitlist.NewPgRepository(pgPool)
	locker := redisclient.NewRedisIntervalLocker(rdb, cfg.LockTTL)
	matcher := waitlist.NewMatcher(waitlistRepo, cfg.MorningCutoffHour)
	notifier := waitlist.NewLogNotifier(logger)
	svc := waitlist.NewService(waitlistRepo, scheduleRepo, matcher, locker, notifier, cfg.OfferTTL, nil, logger)

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *waitlist.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := svc.ExpireOffers(runCtx); err != nil {
		logger.Error().Err(err).Msg("expiry sweep failed")
		return
	}
	logger.Info().Dur("took", time.Since(start)).Msg("expiry sweep complete")
}
