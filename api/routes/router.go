package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/accesshub/accesshub-backend/api/controllers"
	"github.com/accesshub/accesshub-backend/api/middleware"
	"github.com/accesshub/accesshub-backend/internal/auth"
	"github.com/accesshub/accesshub-backend/internal/grants"
	"github.com/accesshub/accesshub-backend/internal/partners"
	"github.com/accesshub/accesshub-backend/internal/proxy"
	"github.com/accesshub/accesshub-backend/internal/requests"
	"github.com/accesshub/accesshub-backend/pkg/auth/session"
	"github.com/accesshub/accesshub-backend/pkg/config"
	"github.com/accesshub/accesshub-backend/pkg/logger"
	"github.com/accesshub/accesshub-backend/pkg/redis"
)

// RouterParams bundles everything the HTTP surface depends on.
type RouterParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	Redis           *redis.Client
	SessionVerifier session.AccessSessionChecker
	AuthService     auth.Service
	RegisterService auth.RegisterService
	RequestService  requests.Service
	PartnerService  partners.Service
	GrantService    grants.Service
	ProxyService    proxy.Service
	UserRepo        controllers.UsernameSource
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

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
		r.Get("/ready", controllers.HealthReady(cfg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).Post("/login", controllers.AuthLogin(p.AuthService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, p.Redis, logg)).Post("/register", controllers.AuthRegister(p.RegisterService, p.AuthService, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(p.AuthService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionVerifier, logg))
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", controllers.RequestSubmit(p.RequestService, logg))
			r.Get("/", controllers.RequestList(p.RequestService, logg))
			r.Get("/{id}", controllers.RequestGet(p.RequestService, logg))
			r.Post("/{id}/renew", controllers.RequestRenew(p.RequestService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireReviewer(logg))
				r.Patch("/{id}/status", controllers.RequestSetStatus(p.RequestService, logg))
				r.Post("/batch/status", controllers.RequestBatchSetStatus(p.RequestService, logg))
			})
		})

		r.Route("/partners", func(r chi.Router) {
			r.Get("/", controllers.PartnerList(p.PartnerService, logg))
			r.Get("/{id}", controllers.PartnerGet(p.PartnerService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireReviewer(logg))
				r.Post("/{id}/access-codes", controllers.PartnerUploadAccessCodes(p.PartnerService, logg))
				r.Post("/{id}/dispatch", controllers.PartnerDispatch(p.RequestService, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(logg))
				r.Post("/", controllers.PartnerCreate(p.PartnerService, logg))
				r.Patch("/{id}", controllers.PartnerUpdate(p.PartnerService, logg))
				r.Post("/{id}/collections", controllers.PartnerAddCollection(p.PartnerService, logg))
				r.Delete("/{id}/collections/{collectionId}", controllers.PartnerDeleteCollection(p.PartnerService, logg))
				r.Post("/{id}/backfill-expiry", controllers.PartnerBackfillExpiry(p.PartnerService, logg))
			})
		})

		r.Get("/grants/me", controllers.GrantListMine(p.GrantService, logg))
		r.Get("/proxy/authorize", controllers.ProxyAuthorize(p.ProxyService, p.UserRepo, logg))
	})

	return r
}
