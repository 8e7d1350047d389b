package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/misbot/backend/internal/auth"
	"github.com/misbot/backend/internal/config"
	"github.com/misbot/backend/internal/handlers"
	"github.com/misbot/backend/internal/leaderboard"
	"github.com/misbot/backend/internal/ledger"
	"github.com/misbot/backend/internal/middleware"
	"github.com/misbot/backend/internal/payout"
	"github.com/misbot/backend/internal/reconcile"
	"github.com/misbot/backend/internal/repository"
	"github.com/misbot/backend/internal/rewards"
	"github.com/misbot/backend/internal/router"
	"github.com/misbot/backend/internal/store"
	"github.com/misbot/backend/internal/tapping"
	"github.com/misbot/backend/internal/validation"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	if err := store.Migrate(ctx, pool); err != nil {
		slog.Error("Schema migration failed", "error", err)
		os.Exit(1)
	}

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	accountRepo := repository.NewAccountRepo(pool)
	addressRepo := repository.NewAddressRepo(pool)
	claimRepo := repository.NewClaimRepo(pool)
	tapLogRepo := repository.NewTapLogRepo(pool)

	ledgerSvc := ledger.NewService(accountRepo, cfg.EnergyMax, logger)
	tapEngine := tapping.NewEngine(ledgerSvc, tapLogRepo, cfg.MaxTapsPerRequest, logger)

	// Payout gateway
	var client payout.Client = payout.Disabled{}
	var lookup payout.Lookuper
	if cfg.PayoutGatewayURL != "" {
		gw := payout.NewGateway(cfg.PayoutGatewayURL, cfg.PayoutGatewayToken, cfg.PayoutTimeout)
		client, lookup = gw, gw
	} else {
		slog.Warn("PAYOUT_GATEWAY_URL not set; reward claims will fail without deducting points")
	}
	rewardEngine := rewards.NewEngine(pool, ledgerSvc, claimRepo, addressRepo, client, cfg.PayoutTimeout, logger)

	board := leaderboard.NewCache(cfg.LeaderboardSize, cfg.LeaderboardTTL, accountRepo.TopByPoints, time.Now, logger)
	ranker := leaderboard.NewRanker(accountRepo)

	authSvc := auth.NewService(auth.Options{
		JWTSecret:      cfg.JWTSecret,
		SessionTTL:     cfg.SessionTTL,
		BotToken:       cfg.BotToken,
		InitDataMaxAge: cfg.InitDataMaxAge,
		AllowDevBypass: !cfg.IsProduction(),
	}, logger)

	validator, err := validation.New()
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}

	// Rate limiting needs Redis; without it requests are not limited.
	var limiter middleware.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("Redis unreachable; rate limiter will fail open", "addr", cfg.RedisAddr, "error", err)
		}
		limiter = middleware.NewRedisLimiter(rdb)
	} else {
		slog.Warn("REDIS_ADDR not set; rate limiting disabled")
	}

	// Reconciliation sweep for claims stuck in pending
	sweeper := reconcile.NewSweeper(pool, ledgerSvc, claimRepo, lookup, cfg.ClaimStaleAfter, logger)
	workers := river.NewWorkers()
	river.AddWorker(workers, reconcile.NewSweepWorker(sweeper))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
		},
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{reconcile.PeriodicJob(cfg.ClaimSweepInterval)},
		Logger:       logger,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}
	if err := riverClient.Start(ctx); err != nil {
		slog.Error("River client failed to start", "error", err)
		os.Exit(1)
	}

	h := &handlers.Handler{
		Sessions:   authSvc,
		Accounts:   ledgerSvc,
		Addresses:  addressRepo,
		Taps:       tapEngine,
		Board:      board,
		Ranks:      ranker,
		Rewards:    rewardEngine,
		Pending:    claimRepo,
		Validator:  validator,
		StaleAfter: cfg.ClaimStaleAfter,
		Production: cfg.IsProduction(),
		Logger:     logger,
	}
	mux := router.New(h, router.Options{
		Authenticator: authSvc,
		Limiter:       limiter,
		AdminKeyHash:  cfg.AdminKeyHash,
		Logger:        logger,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.InitDataHeader, middleware.AdminKeyHeader},
		AllowCredentials: true,
	}).Handler(mux)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP shutdown failed", "error", err)
		}
		if err := riverClient.Stop(shutdownCtx); err != nil {
			slog.Error("River client stop failed", "error", err)
		}
	}()

	slog.Info("Starting HTTP server", "addr", srv.Addr, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}
