package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/josh-kwaku/session-escrow/internal/config"
	"github.com/josh-kwaku/session-escrow/internal/handler"
	"github.com/josh-kwaku/session-escrow/internal/middleware"
)

type routes struct {
	health       *handler.HealthHandler
	auth         *handler.AuthHandler
	wallets      *handler.WalletHandler
	availability *handler.AvailabilityHandler
	sessions     *handler.SessionHandler
	mentors      *handler.MentorHandler
	idempotency  middleware.IdempotencyStore
}

func newRouter(cfg *config.Config, h routes) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Tracing)
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(chimw.RealIP)
	r.Use(chimw.Timeout(10 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", h.health.Liveness)
	r.Get("/health/ready", h.health.Readiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.auth.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.Idempotency(h.idempotency))

			r.Get("/wallet", h.wallets.Get)
			r.Post("/wallet/deposit", h.wallets.Deposit)
			r.Post("/wallet/withdraw", h.wallets.Withdraw)
			r.Get("/wallet/ledger", h.wallets.Ledger)
			r.Get("/wallet/balance-as-of", h.wallets.BalanceAsOf)
			r.Get("/wallet/audit", h.wallets.Audit)

			r.Post("/availability", h.availability.Create)
			r.Delete("/availability/{windowID}", h.availability.Delete)

			r.Get("/mentors", h.mentors.List)
			r.Get("/mentors/{mentorID}/availability", h.availability.List)
			r.Get("/mentors/{mentorID}/free", h.availability.Free)
			r.Get("/mentors/{mentorID}/stats", h.sessions.MentorStats)

			r.Post("/sessions", h.sessions.Create)
			r.Get("/sessions", h.sessions.List)
			r.Get("/sessions/calendar.ics", h.sessions.Calendar)
			r.Post("/sessions/cancel", h.sessions.CancelMany)
			r.Get("/sessions/{sessionID}", h.sessions.Get)
			r.Post("/sessions/{sessionID}/confirm", h.sessions.Confirm)
			r.Post("/sessions/{sessionID}/start", h.sessions.Start)
			r.Post("/sessions/{sessionID}/complete", h.sessions.Complete)
			r.Post("/sessions/{sessionID}/cancel", h.sessions.Cancel)
		})
	})

	return r
}
