package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/accesshub/accesshub-backend/api/routes"
	"github.com/accesshub/accesshub-backend/internal/auth"
	"github.com/accesshub/accesshub-backend/internal/grants"
	"github.com/accesshub/accesshub-backend/internal/partners"
	"github.com/accesshub/accesshub-backend/internal/proxy"
	"github.com/accesshub/accesshub-backend/internal/requests"
	"github.com/accesshub/accesshub-backend/internal/users"
	"github.com/accesshub/accesshub-backend/pkg/auth/session"
	"github.com/accesshub/accesshub-backend/pkg/config"
	"github.com/accesshub/accesshub-backend/pkg/db"
	"github.com/accesshub/accesshub-backend/pkg/logger"
	"github.com/accesshub/accesshub-backend/pkg/migrate"
	"github.com/accesshub/accesshub-backend/pkg/outbox"
	"github.com/accesshub/accesshub-backend/pkg/redis"
)

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
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(dbClient.DB())

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	requestService, err := requests.NewService(requests.ServiceParams{
		DB:     dbClient.DB(),
		Tx:     dbClient,
		Outbox: outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create request service", err)
		os.Exit(1)
	}

	partnerService, err := partners.NewService(partners.ServiceParams{
		DB: dbClient.DB(),
		Tx: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create partner service", err)
		os.Exit(1)
	}

	grantService, err := grants.NewService(grants.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create grant service", err)
		os.Exit(1)
	}

	proxyService, err := proxy.NewService(proxy.ServiceParams{
		DB:     dbClient.DB(),
		Config: cfg.Proxy,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create proxy service", err)
		os.Exit(1)
	}

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
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:          cfg,
			Logger:          logg,
			Redis:           redisClient,
			SessionVerifier: sessionManager,
			AuthService:     authService,
			RegisterService: registerService,
			RequestService:  requestService,
			PartnerService:  partnerService,
			GrantService:    grantService,
			ProxyService:    proxyService,
			UserRepo:        userRepo,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
