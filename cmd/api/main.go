package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/products"
	"github.com/joao-fontenele/storefront/internal/server"
	"github.com/joao-fontenele/storefront/internal/storage/memstore"
	"github.com/joao-fontenele/storefront/internal/storage/mongostore"
	"github.com/joao-fontenele/storefront/internal/storage/pgstore"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

// backend is what both repositories need from the active store.
type backend interface {
	products.Store
	orders.Store
	server.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel)

	ctx := context.Background()

	if cfg.Telemetry.OTLPEndpoint != "" {
		shutdown, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion)
		if err != nil {
			logger.Error("failed to initialize tracer provider", "error", err)
			os.Exit(1)
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize meter provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()
	logger.Info("store ready", "driver", cfg.Store.Driver)

	var productEvents products.Publisher
	var orderEvents orders.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		productProducer := messaging.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ProductTopic)
		defer func() { _ = productProducer.Close() }()
		orderProducer := messaging.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic)
		defer func() { _ = orderProducer.Close() }()

		productEvents = productProducer
		orderEvents = orderProducer
		logger.Info("event publishing enabled", "brokers", cfg.Kafka.Brokers)
	}

	productHandler, err := products.NewHandler(products.NewProductRepository(store), productEvents, logger,
		products.WithMaxLimit(cfg.PageMaxLimit))
	if err != nil {
		logger.Error("failed to create products handler", "error", err)
		os.Exit(1)
	}

	orderRepo, err := orders.NewOrderRepository(store, logger)
	if err != nil {
		logger.Error("failed to create orders repository", "error", err)
		os.Exit(1)
	}
	orderHandler, err := orders.NewHandler(orderRepo, orderEvents, logger,
		orders.WithMaxLimit(cfg.PageMaxLimit))
	if err != nil {
		logger.Error("failed to create orders handler", "error", err)
		os.Exit(1)
	}

	router := server.NewRouter(server.Deps{
		Products:       productHandler,
		Orders:         orderHandler,
		Store:          store,
		Metrics:        metricsHandler,
		Logger:         logger,
		ServiceName:    cfg.Telemetry.ServiceName,
		RequestTimeout: cfg.Server.RequestTimeout,
		HealthTimeout:  cfg.Store.QueryTimeout,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting storefront api", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg config.StoreConfig) (backend, func(), error) {
	switch cfg.Driver {
	case config.DriverMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI, mongostore.ConnectOptions{
			ConnectTimeout: cfg.ConnectTimeout,
			QueryTimeout:   cfg.QueryTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }

		store := mongostore.New(client.Database(cfg.MongoDatabase))
		indexCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
		if err := store.EnsureIndexes(indexCtx); err != nil {
			closeFn()
			return nil, nil, err
		}
		return store, closeFn, nil

	case config.DriverPostgres:
		db, err := pgstore.Open(ctx, cfg.PostgresURL, pgstore.Options{
			ConnectTimeout: cfg.ConnectTimeout,
			QueryTimeout:   cfg.QueryTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return pgstore.New(db, cfg.QueryTimeout), func() { _ = db.Close() }, nil

	case config.DriverMemory:
		return memstore.New(), func() {}, nil
	}

	return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
}
