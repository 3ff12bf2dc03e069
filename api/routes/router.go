package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/cafequeue-backend/api/controllers"
	checkoutcontrollers "github.com/angelmondragon/cafequeue-backend/api/controllers/checkout"
	itemcontrollers "github.com/angelmondragon/cafequeue-backend/api/controllers/items"
	ordercontrollers "github.com/angelmondragon/cafequeue-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/cafequeue-backend/api/controllers/webhooks"
	"github.com/angelmondragon/cafequeue-backend/api/middleware"
	"github.com/angelmondragon/cafequeue-backend/pkg/auth"
	"github.com/angelmondragon/cafequeue-backend/pkg/config"
	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/cafequeue-backend/pkg/redis"
)

type signingClient interface {
	SigningSecret() string
}

type tokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Dependencies are the services and infrastructure the HTTP surface calls.
type Dependencies struct {
	Verifier   tokenVerifier
	Redis      *pkgredis.Client
	Pingers    map[string]controllers.Pinger
	Gatherer   prometheus.Gatherer
	Checkout   checkoutcontrollers.Coordinator
	Notifier   ordercontrollers.Notifier
	Items      itemcontrollers.Catalog
	Webhooks   webhookcontrollers.StripeWebhookService
	StripeKeys signingClient
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	checkoutPolicy := middleware.RateLimitPolicy{
		Name:   "checkout",
		Limit:  cfg.RateLimit.CheckoutPerWindow,
		Window: cfg.RateLimit.Window,
	}
	writePolicy := middleware.RateLimitPolicy{
		Name:   "writes",
		Limit:  cfg.RateLimit.WritesPerWindow,
		Window: cfg.RateLimit.Window,
	}

	// a nil *Client must not reach the middleware as a non-nil interface
	var (
		idempotencyStore pkgredis.IdempotencyStore
		limiter          middleware.WindowLimiter
	)
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		limiter = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.Webhooks, deps.StripeKeys, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Verifier, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Get("/orders", ordercontrollers.CustomerHistory(deps.Notifier, logg))
		r.Get("/shops/{shopId}/items", itemcontrollers.List(deps.Items, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(checkoutPolicy, limiter, logg))
			r.Post("/checkout", checkoutcontrollers.Start(deps.Checkout, logg))
			r.Post("/checkout/{orderId}/confirm", checkoutcontrollers.Confirm(deps.Checkout, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleOwner))
			r.Get("/shops/{shopId}/orders", ordercontrollers.ShopHistory(deps.Notifier, logg))
			r.Get("/shops/{shopId}/orders/stream", ordercontrollers.Stream(deps.Notifier, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(writePolicy, limiter, logg))
				r.Post("/orders/{orderId}/transition", ordercontrollers.Transition(deps.Notifier, logg))
				r.Post("/shops/{shopId}/items", itemcontrollers.Create(deps.Items, logg))
				r.Patch("/items/{itemId}", itemcontrollers.Update(deps.Items, logg))
				r.Delete("/items/{itemId}", itemcontrollers.Delete(deps.Items, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.Post("/orders/{orderId}/cancel", ordercontrollers.AdminCancel(deps.Notifier, logg))
		})
	})

	return r
}
