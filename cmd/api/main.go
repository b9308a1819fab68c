package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rewards-ledger/config"
	httpHandler "rewards-ledger/internal/adapter/http/handler"
	"rewards-ledger/internal/adapter/notify"
	pgStorage "rewards-ledger/internal/adapter/storage/postgres"
	redisStorage "rewards-ledger/internal/adapter/storage/redis"
	"rewards-ledger/internal/core/ports"
	"rewards-ledger/internal/service"
	"rewards-ledger/internal/worker"
	"rewards-ledger/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Rewards Ledger")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	userRepo := pgStorage.NewUserRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	coinRepo := pgStorage.NewCoinRepo(pool)
	referralRepo := pgStorage.NewReferralRepo(pool)
	submissionRepo := pgStorage.NewSubmissionRepo(pool)
	withdrawalRepo := pgStorage.NewWithdrawalRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	eventDedup := redisStorage.NewEventDedup(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Ops notifier: Telegram when configured, structured log otherwise
	var notifier ports.Notifier
	if cfg.Notify.TelegramToken != "" {
		tg, err := notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, log)
		if err != nil {
			log.Warn().Err(err).Msg("Telegram notifier unavailable, falling back to log notifier")
			notifier = notify.NewLogNotifier(log)
		} else {
			notifier = tg
		}
	} else {
		notifier = notify.NewLogNotifier(log)
	}

	// Initialize business services
	walletSvc := service.NewWalletService(walletRepo, ledgerRepo, transactor, log)
	coinSvc := service.NewCoinService(coinRepo, walletRepo, walletSvc, transactor, cfg.Rewards, log)
	referralSvc := service.NewReferralService(referralRepo, walletSvc, transactor, cfg.Rewards, log)
	taskSvc := service.NewTaskRewardService(submissionRepo, walletSvc, coinSvc, transactor, log)
	withdrawalSvc := service.NewWithdrawalService(withdrawalRepo, walletSvc, transactor, eventDedup, notifier, cfg.Rewards, log)
	authSvc := service.NewAuthService(userRepo, walletRepo, referralRepo, transactor, hashSvc, tokenSvc, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Background sweeper (coin unlocks, withdrawal auto-processing)
	if cfg.Worker.Enabled {
		sweeper := worker.NewSweeper(coinSvc, withdrawalSvc, cfg.Worker, log)
		if err := sweeper.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start background sweeper")
		}
		defer sweeper.Stop()
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		WalletSvc:      walletSvc,
		CoinSvc:        coinSvc,
		TaskSvc:        taskSvc,
		ReferralSvc:    referralSvc,
		WithdrawalSvc:  withdrawalSvc,
		AdminWalletSvc: walletSvc,
		SigSvc:         sigSvc,
		TokenSvc:       tokenSvc,
		Providers:      cfg.Providers,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
