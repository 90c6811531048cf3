package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/commerce-engine/api/controllers"
	cartcontrollers "github.com/angelmondragon/commerce-engine/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/commerce-engine/api/controllers/orders"
	"github.com/angelmondragon/commerce-engine/api/middleware"
	"github.com/angelmondragon/commerce-engine/internal/cart"
	checkoutsvc "github.com/angelmondragon/commerce-engine/internal/checkout"
	"github.com/angelmondragon/commerce-engine/internal/orders"
	"github.com/angelmondragon/commerce-engine/pkg/config"
	"github.com/angelmondragon/commerce-engine/pkg/enums"
	"github.com/angelmondragon/commerce-engine/pkg/logger"
	pkgredis "github.com/angelmondragon/commerce-engine/pkg/redis"
)

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Dependencies are the services and probes the router wires into handlers.
// Idempotency and RateLimiter stay nil when Redis is not configured.
type Dependencies struct {
	Cart        cart.Service
	Checkout    checkoutsvc.Service
	Orders      orders.Service
	Idempotency pkgredis.IdempotencyStore
	RateLimiter rateLimiter
	Probes      map[string]controllers.Pinger
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.Probes, logg))
	})

	checkoutGuard := middleware.Idempotency(deps.Idempotency, middleware.CheckoutIdempotency, logg)
	orderGuard := middleware.Idempotency(deps.Idempotency, middleware.OrderMutationIdempotency, logg)
	checkoutLimit := middleware.RateLimit(middleware.RateLimitPolicy{
		Name:   "checkout",
		Limit:  cfg.HTTP.CheckoutRateLimit,
		Window: cfg.HTTP.CheckoutRateWindow,
	}, deps.RateLimiter, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.Get(deps.Cart, logg))
			r.Delete("/", cartcontrollers.Clear(deps.Cart, logg))
			r.Post("/items", cartcontrollers.AddItem(deps.Cart, logg))
			r.Put("/items/{productID}", cartcontrollers.SetQuantity(deps.Cart, logg))
			r.Delete("/items/{productID}", cartcontrollers.RemoveItem(deps.Cart, logg))
			r.Post("/coupon", cartcontrollers.ApplyCoupon(deps.Cart, logg))
			r.Delete("/coupon", cartcontrollers.RemoveCoupon(deps.Cart, logg))
		})

		r.With(checkoutLimit, checkoutGuard).Post("/checkout", controllers.Checkout(deps.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Get("/{orderID}", ordercontrollers.Get(deps.Orders, logg))
			r.With(orderGuard).Post("/{orderID}/cancel", ordercontrollers.Cancel(deps.Checkout, logg))
			r.With(orderGuard).Post("/{orderID}/payment", ordercontrollers.RecordPayment(deps.Orders, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.Get("/orders", ordercontrollers.AdminList(deps.Orders, logg))
			r.With(orderGuard).Put("/orders/{orderID}/status", ordercontrollers.AdminUpdateStatus(deps.Orders, logg))
		})
	})

	return r
}
