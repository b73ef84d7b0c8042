package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/commitforge/commitforge-backend/api/routes"
	"github.com/commitforge/commitforge-backend/internal/auth"
	"github.com/commitforge/commitforge-backend/internal/billing"
	"github.com/commitforge/commitforge-backend/internal/commits"
	subscriptionsvc "github.com/commitforge/commitforge-backend/internal/subscriptions"
	"github.com/commitforge/commitforge-backend/internal/teams"
	"github.com/commitforge/commitforge-backend/internal/users"
	stripewebhook "github.com/commitforge/commitforge-backend/internal/webhooks/stripe"
	"github.com/commitforge/commitforge-backend/pkg/config"
	"github.com/commitforge/commitforge-backend/pkg/db"
	"github.com/commitforge/commitforge-backend/pkg/logger"
	"github.com/commitforge/commitforge-backend/pkg/metrics"
	"github.com/commitforge/commitforge-backend/pkg/migrate"
	"github.com/commitforge/commitforge-backend/pkg/openai"
	"github.com/commitforge/commitforge-backend/pkg/redis"
	"github.com/commitforge/commitforge-backend/pkg/stripe"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe client", err)
		os.Exit(1)
	}

	openaiClient, err := openai.New(cfg.OpenAI)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap openai client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	billingMetrics := metrics.NewBillingMetrics(registry)

	plans, err := subscriptionsvc.NewPlanCatalog(cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build plan catalog", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	billingRepo := billing.NewRepository(dbClient.DB())
	commitsRepo := commits.NewRepository(dbClient.DB())
	teamsRepo := teams.NewRepository(dbClient.DB())
	stripeBilling := subscriptionsvc.NewStripeClient(stripeClient)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo: usersRepo,
		Billing:  stripeBilling,
		JWT:      cfg.JWT,
		Password: cfg.Password,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	commitService, err := commits.NewService(commits.ServiceParams{
		Repo:              commitsRepo,
		BillingRepo:       billingRepo,
		Generator:         openaiClient,
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           billingMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create commit service", err)
		os.Exit(1)
	}

	teamService, err := teams.NewService(teams.ServiceParams{
		Repo:              teamsRepo,
		BillingRepo:       billingRepo,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create team service", err)
		os.Exit(1)
	}

	subscriptionService, err := subscriptionsvc.NewService(subscriptionsvc.ServiceParams{
		BillingRepo: billingRepo,
		Stripe:      stripeBilling,
		Plans:       plans,
		Stripecfg:   cfg.Stripe,
		Frontend:    cfg.Frontend,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	stripeWebhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		BillingRepo:       billingRepo,
		UserRepo:          usersRepo,
		Plans:             plans,
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           billingMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	stripeWebhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Stripe.IdempotencyTTL, "stripe_webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook guard", err)
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
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			billingMetrics,
			usersRepo,
			billingRepo,
			authService,
			commitService,
			teamService,
			subscriptionService,
			stripeClient,
			stripeWebhookService,
			stripeWebhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
