package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/slotline/booking-core/internal/schedule"
	"github.com/slotline/booking-core/internal/waitlist"
)

type RouterConfig struct {
	Slots        *schedule.SlotService
	Schedule     schedule.Repository
	Waitlist     *waitlist.Service
	WaitlistRepo waitlist.Repository
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Logger       zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Get("/slots", listSlotsHandler(cfg.Slots))

	r.Post("/cancellations", cancelBookingHandler(cfg.Schedule, cfg.Waitlist))

	r.Post("/waitlist", createWaitlistEntryHandler(cfg.Waitlist))
	r.Get("/waitlist", listWaitlistHandler(cfg.WaitlistRepo))
	r.Post("/waitlist/{id}/requeue", requeueEntryHandler(cfg.Waitlist))
	r.Post("/waitlist/{id}/remove", removeEntryHandler(cfg.Waitlist))

	r.Post("/offers/{token}/accept", acceptOfferHandler(cfg.Waitlist))
	r.Post("/offers/{token}/decline", declineOfferHandler(cfg.Waitlist))

	r.Put("/practitioners/{id}/windows", replaceWindowsHandler(cfg.Schedule))

	return r
}
