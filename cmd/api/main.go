package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/paywallet/paywallet-backend/api/routes"
	"github.com/paywallet/paywallet-backend/internal/apikeys"
	"github.com/paywallet/paywallet-backend/internal/auth"
	"github.com/paywallet/paywallet-backend/internal/deposits"
	"github.com/paywallet/paywallet-backend/internal/ledger"
	"github.com/paywallet/paywallet-backend/internal/transfers"
	"github.com/paywallet/paywallet-backend/internal/users"
	pkgauth "github.com/paywallet/paywallet-backend/pkg/auth"
	"github.com/paywallet/paywallet-backend/pkg/auth/session"
	"github.com/paywallet/paywallet-backend/pkg/config"
	"github.com/paywallet/paywallet-backend/pkg/db"
	"github.com/paywallet/paywallet-backend/pkg/logger"
	"github.com/paywallet/paywallet-backend/pkg/metrics"
	"github.com/paywallet/paywallet-backend/pkg/migrate"
	"github.com/paywallet/paywallet-backend/pkg/paystack"
	"github.com/paywallet/paywallet-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer closeAll(logg, dbClient, redisClient)

	tokens, err := pkgauth.NewTokenManager(cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create token manager", err)
		os.Exit(1)
	}

	sessions, err := session.NewManager(redisClient, tokens.Expiry(), cfg.JWT.RefreshTokenTTL())
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	paystackClient, err := paystack.NewClient(context.Background(), cfg.Paystack, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create paystack client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	usersRepo := users.NewRepository(dbClient.DB())

	ledgerService, err := ledger.NewService(ledgerRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		Ledger:         ledgerService,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessions,
		Tokens:         tokens,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	transferService, err := transfers.NewService(transfers.ServiceParams{
		TxRunner: dbClient,
		Repo:     ledgerRepo,
		Logger:   logg,
		Metrics:  ledgerMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create transfer service", err)
		os.Exit(1)
	}

	depositService, err := deposits.NewService(deposits.ServiceParams{
		TxRunner: dbClient,
		Intents:  deposits.NewRepository(dbClient.DB()),
		Ledger:   ledgerRepo,
		Provider: paystackClient,
		Logger:   logg,
		Metrics:  ledgerMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create deposit service", err)
		os.Exit(1)
	}

	apiKeyService, err := apikeys.NewService(apikeys.ServiceParams{
		Repo:   apikeys.NewRepository(dbClient.DB()),
		Cache:  redisClient,
		Logger: logg,
		Config: cfg.APIKey,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create api key service", err)
		os.Exit(1)
	}

	webhookGuard, err := deposits.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "paystack")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Deps{
		Config:          cfg,
		Logger:          logg,
		DB:              dbClient,
		Redis:           redisClient,
		Tokens:          tokens,
		Sessions:        sessions,
		Users:           usersRepo,
		AuthService:     authService,
		RegisterService: registerService,
		LedgerService:   ledgerService,
		TransferService: transferService,
		DepositService:  depositService,
		APIKeyService:   apiKeyService,
		PaystackClient:  paystackClient,
		WebhookGuard:    webhookGuard,
		MetricsRegistry: registry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
	logg.Info(ctx, "api server stopped")
}

func closeAll(logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) {
	err := multierr.Combine(dbClient.Close(), redisClient.Close())
	if err != nil {
		logg.Error(context.Background(), "error closing clients", err)
	}
}
