package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/commerce-engine/api/controllers"
	"github.com/angelmondragon/commerce-engine/api/routes"
	"github.com/angelmondragon/commerce-engine/internal/cart"
	"github.com/angelmondragon/commerce-engine/internal/catalog"
	"github.com/angelmondragon/commerce-engine/internal/checkout"
	"github.com/angelmondragon/commerce-engine/internal/inventory"
	"github.com/angelmondragon/commerce-engine/internal/orders"
	"github.com/angelmondragon/commerce-engine/pkg/config"
	"github.com/angelmondragon/commerce-engine/pkg/db"
	"github.com/angelmondragon/commerce-engine/pkg/instance"
	"github.com/angelmondragon/commerce-engine/pkg/logger"
	"github.com/angelmondragon/commerce-engine/pkg/metrics"
	"github.com/angelmondragon/commerce-engine/pkg/migrate"
	"github.com/angelmondragon/commerce-engine/pkg/outbox"
	"github.com/angelmondragon/commerce-engine/pkg/redis"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	commerceMetrics := metrics.NewCommerceMetrics(prometheus.DefaultRegisterer)

	deps := routes.Dependencies{
		Probes:   map[string]controllers.Pinger{"db": dbClient},
		Gatherer: prometheus.DefaultGatherer,
	}

	var (
		locker cart.Locker = cart.NewKeyedMutex()
		cache  cart.Cache  = cart.NopCache{}
	)
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		redisLocker, err := cart.NewRedisLocker(redisClient, 0, 0)
		if err != nil {
			logg.Error(ctx, "failed to create cart locker", err)
			os.Exit(1)
		}
		locker = redisLocker
		cache = cart.NewRedisCache(redisClient, cfg.Redis.CartCacheTTL, logg)
		deps.Idempotency = redisClient
		deps.RateLimiter = redisClient
		deps.Probes["redis"] = redisClient
	} else {
		logg.Warn(ctx, "redis not configured; using in-process cart locks, idempotency and rate limits disabled")
	}

	ledger := inventory.NewRepository(dbClient.DB(), commerceMetrics)
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	cartRepo := cart.NewRepository(dbClient.DB())

	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:    cartRepo,
		Tx:      dbClient,
		Catalog: catalog.NewRepository(dbClient.DB()),
		Locker:  locker,
		Cache:   cache,
		Logger:  logg,
		TTL:     cfg.Commerce.CartTTL,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cart service", err)
		os.Exit(1)
	}

	orderRepo := orders.NewRepository(dbClient.DB())
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:      dbClient,
		Carts:   cartRepo,
		Orders:  orderRepo,
		Ledger:  ledger,
		Outbox:  emitter,
		Locker:  locker,
		Cache:   cache,
		Metrics: commerceMetrics,
		Logger:  logg,
		Pricing: checkout.PricingFromConfig(cfg.Commerce),
		CartTTL: cfg.Commerce.CartTTL,
	})
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:            orderRepo,
		Tx:              dbClient,
		Ledger:          ledger,
		Outbox:          emitter,
		Canceller:       checkoutService,
		Logger:          logg,
		RestockOnRefund: cfg.Commerce.RestockOnRefund,
	})
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	deps.Cart = cartService
	deps.Checkout = checkoutService
	deps.Orders = orderService

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, deps),
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}
}
