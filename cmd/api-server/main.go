package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/slotline/booking-core/internal/api"
	"github.com/slotline/booking-core/internal/calendar"
	"github.com/slotline/booking-core/internal/config"
	"github.com/slotline/booking-core/internal/db"
	"github.com/slotline/booking-core/internal/logging"
	redisclient "github.com/slotline/booking-core/internal/redis"
	"github.com/slotline/booking-core/internal/schedule"
	"github.com/slotline/booking-core/internal/waitlist"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("prod", "api-server")
		fallback.Fatal().Err(err).Msg("config load failed")
	}

	logger := logging.New(cfg.Env, "api-server")
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("starting up")

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

	var feed schedule.BusyFeed
	if cfg.CalendarFeedURL != "" {
		feed = calendar.NewClient(cfg.CalendarFeedURL, cfg.CalendarFeedTimeout)
		logger.Info().Str("url", cfg.CalendarFeedURL).Msg("external busy feed enabled")
	}

	aggregator := schedule.NewBusyAggregator(scheduleRepo, feed, logger)
	slots := schedule.NewSlotService(scheduleRepo, aggregator, cfg.SlotGranularity, nil, logger)

	locker := redisclient.NewRedisIntervalLocker(rdb, cfg.LockTTL)
	matcher := waitlist.NewMatcher(waitlistRepo, cfg.MorningCutoffHour)
	notifier := waitlist.NewLogNotifier(logger)
	wl := waitlist.NewService(waitlistRepo, scheduleRepo, matcher, locker, notifier, cfg.OfferTTL, nil, logger)

	router := api.NewRouter(api.RouterConfig{
		Slots:        slots,
		Schedule:     scheduleRepo,
		Waitlist:     wl,
		WaitlistRepo: waitlistRepo,
		PgPool:       pgPool,
		Redis:        rdb,
		Logger:       logger,
		Env:          cfg.Env,
		Version:      version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("api-server stopped")
}
