package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/josh-kwaku/session-escrow/internal/config"
	"github.com/josh-kwaku/session-escrow/internal/handler"
	"github.com/josh-kwaku/session-escrow/internal/logging"
	"github.com/josh-kwaku/session-escrow/internal/pricing"
	"github.com/josh-kwaku/session-escrow/internal/queue"
	"github.com/josh-kwaku/session-escrow/internal/repository"
	"github.com/josh-kwaku/session-escrow/internal/service"
	"github.com/josh-kwaku/session-escrow/internal/service/availability"
	"github.com/josh-kwaku/session-escrow/internal/service/booking"
	"github.com/josh-kwaku/session-escrow/internal/service/wallet"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("session-escrow-api", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
		PingAttempts:     30,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := queue.Connect(ctx, cfg.RedisURL, logger)
	if rdb != nil {
		defer rdb.Close()
	}
	settlementQueue := queue.NewSettlementQueue(rdb)

	calc, err := pricing.NewCalculator(cfg.SessionPricing, cfg.DefaultSessionType)
	if err != nil {
		slog.Error("invalid session pricing", "error", err)
		os.Exit(1)
	}
	policy, err := availability.NewPolicy(cfg.WorkingHoursStart, cfg.WorkingHoursEnd, cfg.WorkingHoursTZ, cfg.MaxSessionDuration, cfg.MinBookingLead)
	if err != nil {
		slog.Error("invalid working hours", "error", err)
		os.Exit(1)
	}

	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	windowRepo := repository.NewAvailabilityRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	walletSvc := wallet.NewService(walletRepo, ledgerRepo, db)
	availabilitySvc := availability.NewService(windowRepo, sessionRepo, userRepo, db, policy)

	deps := booking.Deps{
		Sessions: sessionRepo,
		Windows:  windowRepo,
		Users:    userRepo,
		Wallets:  walletSvc,
		Pricing:  calc,
		Policy:   policy,
		Queue:    settlementQueue,
		DB:       db,
	}
	if cfg.RoomProviderURL != "" {
		deps.Rooms = service.NewRoomClient(cfg.RoomProviderURL)
	}
	bookingSvc := booking.NewService(deps)

	reconciler := service.NewReconciler(bookingSvc, sessionRepo, settlementQueue, idempotencyRepo, logger, cfg.ReconcileInterval, cfg.ReconcileBatchSize)
	go reconciler.Start(ctx)

	router := newRouter(cfg, routes{
		health:       handler.NewHealthHandler(db, settlementQueue),
		auth:         handler.NewAuthHandler(userRepo, cfg.JWTSecret, cfg.JWTExpiry),
		wallets:      handler.NewWalletHandler(walletSvc),
		availability: handler.NewAvailabilityHandler(availabilitySvc),
		sessions:     handler.NewSessionHandler(bookingSvc),
		mentors:      handler.NewMentorHandler(userRepo),
		idempotency:  idempotencyRepo,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
