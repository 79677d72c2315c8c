package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/addresses"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/admin"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/auth"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/cart"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/catalog"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/checkout"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/config"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/inventory"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/localstore"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/messaging"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/orders"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/payment"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/telemetry"
)

const (
	serviceName    = "artisanat-api"
	serviceVersion = "0.1.0"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	metrics, err := telemetry.NewMetrics(otel.Meter("artisanat/api"))
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	var (
		cache        catalog.Cache
		guestStorage localstore.Storage
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		cache = catalog.NewRedisCache(rdb)
		guestStorage = localstore.NewRedisStorage(rdb, "guest-cart:", localstore.GuestCartTTL)
	} else {
		logger.Warn("REDIS_URL not set, catalog cache disabled and guest carts kept in memory")
		guestStorage = localstore.NewMemoryStorage()
	}

	orderOpts := []orders.Option{
		orders.WithMetrics(metrics),
		orders.WithShipping(cfg.ShippingMAD, cfg.ShippingEUR),
	}
	switch {
	case cfg.AMQPURL != "":
		publisher, err := messaging.NewAMQPPublisher(cfg.AMQPURL, cfg.EventTopic)
		if err != nil {
			logger.Error("failed to connect to amqp", "error", err)
			os.Exit(1)
		}
		defer func() { _ = publisher.Close() }()
		orderOpts = append(orderOpts, orders.WithPublisher(publisher))
	case len(cfg.KafkaBrokers) > 0:
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.EventTopic)
		defer func() { _ = producer.Close() }()
		orderOpts = append(orderOpts, orders.WithPublisher(producer))
	default:
		logger.Warn("no event transport configured, order events are not published")
	}

	tokens := auth.NewTokens(cfg.JWTSecret)
	authMiddleware := auth.NewMiddleware(tokens, logger)
	users := auth.NewUserRepository(db)

	catalogService := catalog.NewService(catalog.NewRepository(db), cache, logger)
	inventoryRepo := inventory.NewRepository(db)
	cartRepo := cart.NewRepository(db)
	cartService := cart.NewService(cartRepo)
	addressService := addresses.NewService(addresses.NewRepository(db))
	orderService := orders.NewService(orders.NewRepository(db), logger, orderOpts...)

	gateway := payment.NewStripeGateway(cfg.StripeKey, cfg.StripeWebhook)
	checkoutService := checkout.NewService(users, addressService, cartService, orderService, gateway, checkout.Config{
		AppURL:      cfg.AppURL,
		ShippingMAD: cfg.ShippingMAD,
		ShippingEUR: cfg.ShippingEUR,
	}, metrics, logger)

	authHandler := auth.NewHandler(users, tokens, logger)
	catalogHandler := catalog.NewHandler(catalogService, logger)
	cartHandler := cart.NewHandler(cartService, logger)
	guestCartHandler := localstore.NewGuestCartHandler(guestStorage, cartRepo, logger)
	addressHandler := addresses.NewHandler(addressService, logger)
	orderHandler := orders.NewHandler(orderService, logger)
	checkoutHandler := checkout.NewHandler(checkoutService, gateway, metrics, logger)
	inventoryHandler := inventory.NewHandler(inventoryRepo, catalogService, logger)
	adminHandler := admin.NewHandler(admin.NewStatsRepository(db), orderService, catalogService, logger)

	user := authMiddleware.RequireUser
	adminOnly := authMiddleware.RequireAdmin

	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, telemetry.WithHTTPRoute(h))
	}

	handle("POST /api/auth/register", authHandler.HandleRegister)
	handle("POST /api/auth/login", authHandler.HandleLogin)
	handle("GET /api/auth/me", user(authHandler.HandleMe))

	handle("GET /api/products", catalogHandler.HandleListProducts)
	handle("GET /api/products/featured", catalogHandler.HandleFeatured)
	handle("GET /api/products/{slug}", catalogHandler.HandleGetProduct)
	handle("GET /api/products/{slug}/reviews", catalogHandler.HandleListReviews)
	handle("POST /api/products/{slug}/reviews", user(catalogHandler.HandleCreateReview))
	handle("GET /api/categories", catalogHandler.HandleListCategories)
	handle("GET /api/categories/{slug}", catalogHandler.HandleGetCategory)

	handle("GET /api/cart", user(cartHandler.HandleGet))
	handle("POST /api/cart", user(cartHandler.HandleSync))
	handle("POST /api/cart/items", user(cartHandler.HandleAddItem))
	handle("PUT /api/cart/items/{id}", user(cartHandler.HandleUpdateItem))
	handle("DELETE /api/cart/items/{id}", user(cartHandler.HandleDeleteItem))
	handle("GET /api/guest-cart", guestCartHandler.HandleGet)
	handle("PUT /api/guest-cart", guestCartHandler.HandlePut)

	handle("GET /api/addresses", user(addressHandler.HandleList))
	handle("POST /api/addresses", user(addressHandler.HandleCreate))
	handle("PUT /api/addresses/{id}", user(addressHandler.HandleUpdate))
	handle("DELETE /api/addresses/{id}", user(addressHandler.HandleDelete))

	handle("GET /api/orders", user(orderHandler.HandleList))
	handle("POST /api/orders", user(orderHandler.HandleCreate))
	handle("GET /api/orders/{id}", user(orderHandler.HandleGet))

	handle("POST /api/checkout", user(checkoutHandler.HandleCreateSession))
	handle("POST /api/webhooks/stripe", checkoutHandler.HandleWebhook)

	handle("GET /api/admin/stats", adminOnly(adminHandler.HandleStats))
	handle("GET /api/admin/orders", adminOnly(adminHandler.HandleListOrders))
	handle("PUT /api/admin/orders/{id}/status", adminOnly(adminHandler.HandleUpdateOrderStatus))
	handle("GET /api/admin/products", adminOnly(adminHandler.HandleListProducts))
	handle("POST /api/admin/products", adminOnly(adminHandler.HandleCreateProduct))
	handle("GET /api/admin/products/export", adminOnly(adminHandler.HandleExportProducts))
	handle("PUT /api/admin/products/{id}", adminOnly(adminHandler.HandleUpdateProduct))
	handle("POST /api/admin/products/{id}/stock", adminOnly(inventoryHandler.HandleAdjust))
	handle("GET /api/admin/inventory/low-stock", adminOnly(inventoryHandler.HandleListLowStock))

	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(
			authMiddleware.Authenticate(mux),
			serviceName,
			otelhttp.WithSpanNameFormatter(telemetry.SpanName),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting api service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
