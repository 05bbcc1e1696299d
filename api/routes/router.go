package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paywallet/paywallet-backend/api/controllers"
	webhookcontrollers "github.com/paywallet/paywallet-backend/api/controllers/webhooks"
	"github.com/paywallet/paywallet-backend/api/middleware"
	"github.com/paywallet/paywallet-backend/internal/apikeys"
	"github.com/paywallet/paywallet-backend/internal/auth"
	"github.com/paywallet/paywallet-backend/internal/deposits"
	"github.com/paywallet/paywallet-backend/internal/ledger"
	"github.com/paywallet/paywallet-backend/internal/transfers"
	pkgauth "github.com/paywallet/paywallet-backend/pkg/auth"
	"github.com/paywallet/paywallet-backend/pkg/config"
	"github.com/paywallet/paywallet-backend/pkg/db/models"
	"github.com/paywallet/paywallet-backend/pkg/enums"
	"github.com/paywallet/paywallet-backend/pkg/logger"
	"github.com/paywallet/paywallet-backend/pkg/paystack"
	"github.com/paywallet/paywallet-backend/pkg/redis"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type sessionManager interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Deps collects everything the router mounts.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB    pinger
	Redis *redis.Client

	Tokens   *pkgauth.TokenManager
	Sessions sessionManager
	Users    userFinder

	AuthService     auth.Service
	RegisterService auth.RegisterService
	LedgerService   ledger.Service
	TransferService transfers.Service
	DepositService  deposits.Service
	APIKeyService   apikeys.Service

	PaystackClient *paystack.Client
	WebhookGuard   *deposits.IdempotencyGuard

	MetricsRegistry *prometheus.Registry
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis, logg))
	})

	if deps.MetricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	// Provider confirmations authenticate with an HMAC over the raw body,
	// never with user credentials.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paystack", webhookcontrollers.PaystackWebhook(deps.DepositService, deps.PaystackClient, deps.WebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).Post("/register", controllers.Register(deps.RegisterService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.Login(deps.AuthService, logg))
		r.Post("/refresh", controllers.Refresh(deps.AuthService, logg))
		r.With(middleware.Auth(deps.Tokens, deps.Sessions, nil, logg)).Post("/logout", controllers.Logout(deps.AuthService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Tokens, deps.Sessions, deps.APIKeyService, logg))

		r.Route("/wallet", func(r chi.Router) {
			r.With(middleware.RequirePermission(enums.PermissionRead, logg)).
				Get("/", controllers.GetWallet(deps.LedgerService, logg))
			r.With(middleware.RequirePermission(enums.PermissionRead, logg)).
				Get("/transactions", controllers.ListTransactions(deps.LedgerService, logg))
			r.With(middleware.RequirePermission(enums.PermissionDeposit, logg)).
				Post("/deposit", controllers.InitiateDeposit(deps.DepositService, deps.Users, logg))
			r.With(middleware.RequirePermission(enums.PermissionRead, logg)).
				Get("/deposit/{reference}", controllers.DepositStatus(deps.DepositService, logg))
			r.With(middleware.RequirePermission(enums.PermissionTransfer, logg)).
				Post("/transfer", controllers.CreateTransfer(deps.TransferService, logg))
		})

		// Key management is session-only; the controllers enforce the
		// source check so a leaked key cannot mint replacements.
		r.Route("/keys", func(r chi.Router) {
			r.Post("/", controllers.CreateAPIKey(deps.APIKeyService, logg))
			r.Get("/", controllers.ListAPIKeys(deps.APIKeyService, logg))
			r.Delete("/{keyId}", controllers.RevokeAPIKey(deps.APIKeyService, logg))
			r.Post("/{keyId}/rollover", controllers.RolloverAPIKey(deps.APIKeyService, logg))
		})
	})

	return r
}
