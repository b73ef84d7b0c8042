package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/commitforge/commitforge-backend/api/controllers"
	webhookcontrollers "github.com/commitforge/commitforge-backend/api/controllers/webhooks"
	"github.com/commitforge/commitforge-backend/api/middleware"
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
	"github.com/commitforge/commitforge-backend/pkg/redis"
	"github.com/commitforge/commitforge-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	billingMetrics *metrics.BillingMetrics,
	usersRepo *users.Repository,
	billingRepo billing.Repository,
	authService *auth.Service,
	commitService *commits.Service,
	teamService *teams.Service,
	subscriptionService *subscriptionsvc.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Frontend),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, billingMetrics, logg))
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", controllers.AuthRegister(authService, logg))
		r.Post("/login", controllers.AuthLogin(authService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, usersRepo, billingRepo, logg))
		r.Use(middleware.RateLimit(cfg.RateLimit, redisClient, logg))

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", controllers.UserMe(logg))
			r.Put("/me", controllers.UserUpdateMe(usersRepo, logg))
			r.Get("/usage", controllers.UserUsage(billingRepo, logg))

			r.Route("/team", func(r chi.Router) {
				r.Use(middleware.RequireTeamPlan(logg))
				r.Get("/", controllers.TeamList(teamService, logg))
				r.Post("/invite", controllers.TeamInvite(teamService, logg))
				r.Delete("/{memberId}", controllers.TeamRemove(teamService, logg))
			})
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/checkout", controllers.SubscriptionCheckout(subscriptionService, logg))
			r.Post("/update", controllers.SubscriptionUpdate(subscriptionService, logg))
			r.Post("/cancel", controllers.SubscriptionCancel(subscriptionService, logg))
			r.Post("/portal", controllers.SubscriptionPortal(subscriptionService, logg))
			r.Get("/status", controllers.SubscriptionStatus(subscriptionService, logg))
		})

		r.Route("/commits", func(r chi.Router) {
			r.With(middleware.RequireSubscription(logg)).Post("/generate", controllers.CommitGenerate(commitService, logg))
			r.Get("/history", controllers.CommitHistory(commitService, logg))
			r.Get("/styles", controllers.CommitStyles(commitService))
		})
	})

	return r
}
