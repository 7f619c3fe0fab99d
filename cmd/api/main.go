package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mercadito-pesca/mercadito-backend/api/routes"
	"github.com/mercadito-pesca/mercadito-backend/internal/analytics"
	"github.com/mercadito-pesca/mercadito-backend/internal/cart"
	"github.com/mercadito-pesca/mercadito-backend/internal/chat"
	"github.com/mercadito-pesca/mercadito-backend/internal/checkout"
	"github.com/mercadito-pesca/mercadito-backend/internal/notifications"
	"github.com/mercadito-pesca/mercadito-backend/internal/orders"
	"github.com/mercadito-pesca/mercadito-backend/internal/products"
	"github.com/mercadito-pesca/mercadito-backend/internal/quotes"
	"github.com/mercadito-pesca/mercadito-backend/internal/reports"
	"github.com/mercadito-pesca/mercadito-backend/internal/users"
	"github.com/mercadito-pesca/mercadito-backend/pkg/config"
	"github.com/mercadito-pesca/mercadito-backend/pkg/db"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
	"github.com/mercadito-pesca/mercadito-backend/pkg/metrics"
	"github.com/mercadito-pesca/mercadito-backend/pkg/migrate"
	"github.com/mercadito-pesca/mercadito-backend/pkg/outbox"
	"github.com/mercadito-pesca/mercadito-backend/pkg/outbox/idempotency"
	"github.com/mercadito-pesca/mercadito-backend/pkg/redis"
)

const shutdownTimeout = 20 * time.Second

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
		Level:       cfg.App.LogLevel,
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	dispatcher, err := newDispatcher(cfg, logg, redisClient, registry)
	if err != nil {
		logg.Error(context.Background(), "failed to start notification dispatcher", err)
		os.Exit(1)
	}

	services, err := buildServices(cfg, logg, dbClient, dispatcher)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	addr := ":" + cfg.App.Port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Infra{
			Postgres:    dbClient,
			Redis:       redisClient,
			Idempotency: redisClient,
			Metrics:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "http shutdown failed", err)
	}
	// In-flight notifications finish before exit; anything lost is retried
	// by the notification worker from the outbox.
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "dispatcher shutdown failed", err)
	}
}

func newDispatcher(cfg *config.Config, logg *logger.Logger, redisClient *redis.Client, reg prometheus.Registerer) (*notifications.Dispatcher, error) {
	notifiers, err := notifications.NotifiersFromConfig(cfg, logg)
	if err != nil {
		return nil, err
	}
	claims, err := idempotency.NewManager(redisClient, cfg.Dispatch.IdempotencyTTL)
	if err != nil {
		return nil, err
	}
	return notifications.NewDispatcher(notifications.DispatcherOptions{
		Workers:   cfg.Dispatch.Workers,
		QueueSize: cfg.Dispatch.QueueSize,
	}, notifiers, claims, metrics.NewDispatchMetrics(reg), logg)
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, dispatcher *notifications.Dispatcher) (routes.Services, error) {
	conn := dbClient.DB()
	productRepo := products.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)
	notificationRepo := notifications.NewRepository(conn)
	publisher := outbox.NewService(outbox.NewRepository(conn), logg)

	var out routes.Services
	var err error

	if out.Products, err = products.NewService(productRepo); err != nil {
		return out, err
	}
	if out.Analytics, err = analytics.NewService(analytics.NewRepository(conn), productRepo, dbClient, logg); err != nil {
		return out, err
	}
	if out.Cart, err = cart.NewService(cartRepo, productRepo, dbClient, out.Analytics, logg); err != nil {
		return out, err
	}
	if out.Orders, err = orders.NewService(ordersRepo, dbClient, publisher, logg); err != nil {
		return out, err
	}
	if out.Checkout, err = checkout.NewService(checkout.Params{
		Tx:         dbClient,
		Carts:      cartRepo,
		Products:   productRepo,
		Orders:     ordersRepo,
		Outbox:     publisher,
		Users:      notificationRepo,
		Dispatcher: dispatcher,
		Tracker:    out.Analytics,
		NotifyWait: cfg.Dispatch.WaitTimeout,
		Logger:     logg,
	}); err != nil {
		return out, err
	}
	if out.Quotes, err = quotes.NewService(quotes.Params{
		Tx:         dbClient,
		Repo:       quotes.NewRepository(conn),
		Carts:      cartRepo,
		Outbox:     publisher,
		Users:      notificationRepo,
		Renderer:   quotes.NewRenderer(cfg.App.ShopName),
		Dispatcher: dispatcher,
		NotifyWait: cfg.Dispatch.WaitTimeout,
		Logger:     logg,
	}); err != nil {
		return out, err
	}
	if out.Users, err = users.NewService(users.NewRepository(conn), dbClient, logg); err != nil {
		return out, err
	}
	if out.Chat, err = chat.NewService(chat.NewRepository(conn)); err != nil {
		return out, err
	}
	if out.Reports, err = reports.NewService(reports.NewRepository(conn), logg); err != nil {
		return out, err
	}
	return out, nil
}
