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

	"merchant-wallet/config"
	"merchant-wallet/internal/adapter/gateway/phonepe"
	httpHandler "merchant-wallet/internal/adapter/http/handler"
	pgStorage "merchant-wallet/internal/adapter/storage/postgres"
	redisStorage "merchant-wallet/internal/adapter/storage/redis"
	"merchant-wallet/internal/core/ports"
	"merchant-wallet/internal/service"
	"merchant-wallet/pkg/logger"
	"merchant-wallet/pkg/metrics"
	"merchant-wallet/pkg/migrate"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
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
		Str("gateway_env", cfg.Gateway.Env).
		Msg("Starting merchant wallet service")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	if cfg.Database.AutoMigrate {
		if err := migrate.Up(ctx, pool, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	walletMetrics := metrics.NewWalletMetrics(registry)

	// Initialize repositories
	userRepo := pgStorage.NewUserRepo(pool)
	merchantRepo := pgStorage.NewMerchantRepo(pool)
	walletTxRepo := pgStorage.NewWalletTxRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	reconcileCache := redisStorage.NewReconcileCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Payment gateway
	gateway, err := phonepe.NewClient(cfg.Gateway, log, phonepe.WithMetrics(walletMetrics))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PhonePe client")
	}
	callbackVerifier := phonepe.NewCallbackVerifier(cfg.Gateway.CallbackUsername, cfg.Gateway.CallbackPassword)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	hashSvc := service.NewArgon2HashServiceWithParams(service.Argon2Params{
		MemoryKiB:   cfg.Password.MemoryKiB,
		Iterations:  cfg.Password.Iterations,
		Parallelism: cfg.Password.Parallelism,
	})
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize business services
	maturitySvc := service.NewMaturityService(merchantRepo, walletMetrics, logger.Component(log, "maturity"))
	authSvc := service.NewAuthService(userRepo, merchantRepo, hashSvc, tokenSvc)
	merchantSvc := service.NewMerchantService(
		userRepo,
		merchantRepo,
		ledgerRepo,
		transactor,
		hashSvc,
		encSvc,
		maturitySvc,
		cfg.Deposit.LockPeriodMonths,
		logger.Component(log, "merchants"),
	)
	topUpSvc := service.NewTopUpService(
		walletTxRepo,
		merchantRepo,
		gateway,
		reconcileCache,
		transactor,
		service.TopUpConfig{
			RedirectBaseURL: cfg.Gateway.RedirectBaseURL,
			InitTimeout:     cfg.Gateway.Timeout,
			StatusTimeout:   cfg.Gateway.StatusTimeout,
			CacheTTL:        cfg.Reconcile.CacheTTL,
		},
		walletMetrics,
		logger.Component(log, "reconciler"),
	)
	feedSvc := service.NewFeedService(ledgerRepo, walletTxRepo)
	auditSvc := service.NewAuditService(auditRepo, logger.Component(log, "audit"))

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)
	gatewayHealth := phonepe.NewHealthCheck(gateway)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:          authSvc,
		MerchantSvc:      merchantSvc,
		TopUpSvc:         topUpSvc,
		FeedSvc:          feedSvc,
		CallbackVerifier: callbackVerifier,
		TokenSvc:         tokenSvc,
		RateLimiter:      rateLimitStore,
		HealthCheckers:   []ports.HealthChecker{pgHealth, redisHealth, gatewayHealth},
		AuditSvc:         auditSvc,
		MetricsGatherer:  registry,
		Logger:           log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

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
