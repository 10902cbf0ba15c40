package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/collectmall/collectmall-backend/api/controllers"
	ordercontrollers "github.com/collectmall/collectmall-backend/api/controllers/orders"
	webhookcontrollers "github.com/collectmall/collectmall-backend/api/controllers/webhooks"
	"github.com/collectmall/collectmall-backend/api/middleware"
	"github.com/collectmall/collectmall-backend/internal/chain"
	"github.com/collectmall/collectmall-backend/internal/ordering"
	"github.com/collectmall/collectmall-backend/pkg/config"
	"github.com/collectmall/collectmall-backend/pkg/logger"
	"github.com/collectmall/collectmall-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers. Readiness pingers
// are optional; nil entries are skipped.
type Deps struct {
	OrderingService ordering.Service
	OrdersRepo      ordering.Repository
	Gateway         *chain.Gateway
	Redis           *redis.Client
	Pingers         map[string]controllers.Pinger
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	orderPolicy := middleware.NewOrderRateLimitPolicy(
		"orders",
		cfg.RateLimit.OrderWindow,
		cfg.RateLimit.OrderIPLimit,
		cfg.RateLimit.OrderBuyerLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", webhookcontrollers.PaymentWebhook(deps.OrderingService, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.With(middleware.OrderRateLimit(orderPolicy, deps.Redis, logg)).
			Post("/", ordercontrollers.Create(deps.OrderingService, logg))
		r.Get("/", ordercontrollers.List(deps.OrdersRepo, logg))
		r.Get("/{orderId}", ordercontrollers.Detail(deps.OrderingService, logg))
		r.Post("/{identifier}/confirm", ordercontrollers.Confirm(deps.OrderingService, logg))
		r.Post("/{identifier}/cancel", ordercontrollers.Cancel(deps.OrderingService, logg))
		r.Post("/{identifier}/refund", ordercontrollers.Refund(deps.OrderingService, logg))
	})

	r.Route("/api/v1/merchant", func(r chi.Router) {
		r.Post("/collections", controllers.RegisterCollection(deps.Gateway, logg))
		r.Post("/blind-boxes", controllers.RegisterBlindBox(deps.Gateway, logg))
	})

	r.Route("/api/v1/held-collections", func(r chi.Router) {
		r.Post("/{heldId}/transfer", controllers.TransferHeldCollection(deps.Gateway, logg))
		r.Post("/{heldId}/destroy", controllers.DestroyHeldCollection(deps.Gateway, logg))
	})

	return r
}
