package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"journey-simulator/internal/api"
	"journey-simulator/internal/config"
	"journey-simulator/internal/db"
	"journey-simulator/internal/errreport"
	"journey-simulator/internal/fanout"
	"journey-simulator/internal/logging"
	"journey-simulator/internal/metrics"
	"journey-simulator/internal/publisher"
	"journey-simulator/internal/route"
	"journey-simulator/internal/sim"
	"journey-simulator/internal/vehicle"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logger := logging.Init(cfg.LogLevel)

	if err := errreport.Init(errreport.Config{DSN: cfg.SentryDSN, Environment: cfg.SentryEnvironment}, logger); err != nil {
		logger.Warn("error reporting disabled", "error", err)
	}
	defer errreport.Flush(2 * time.Second)

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("simulator failed", "error", err)
		errreport.Capture(err, nil)
		errreport.Flush(2 * time.Second)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	catalog, closeDB, err := loadCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()
	logger.Info("route catalog loaded", "routes", catalog.Count())

	mcol := metrics.NewCollector(cfg.SpeedMultiplier, cfg.TickInterval)
	if cfg.MetricsAddr != "" {
		msrv := mcol.Serve(cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = msrv.Shutdown(shutdownCtx)
		}()
	}

	pub, err := newPublisher(cfg, mcol, logger)
	if err != nil {
		return err
	}

	hub := fanout.NewHub(fanout.Options{
		SendTimeout: cfg.SubscriberSendTimeout,
		IdleTimeout: cfg.SubscriberIdleTimeout,
		Buffer:      cfg.SubscriberBuffer,
		Publisher:   pub,
		Metrics:     mcol,
		Logger:      logger,
	})
	hub.Start()

	registry := sim.NewRegistry(catalog, hub, mcol, logger)
	mgr := sim.NewManager(registry, sim.ManagerOptions{
		TickInterval:    cfg.TickInterval,
		SpeedMultiplier: cfg.SpeedMultiplier,
		Retention:       cfg.CompletedRetention,
		Metrics:         mcol,
		Logger:          logger,
	})

	srv := api.NewServer(mgr, catalog, hub, vehicle.NewService(mgr, logger), api.Options{
		DefaultSpeedMps: cfg.DefaultSpeedMps,
		Logger:          logger,
	})
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe(cfg.HTTPAddr) }()

	// Block until cancelled or the listener fails
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down", "grace", cfg.ShutdownGrace)
	case runErr = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	// stop accepting first; open streams end once the hub closes their subscriptions
	httpDone := make(chan error, 1)
	go func() { httpDone <- srv.Shutdown(shutdownCtx) }()

	if err := mgr.Stop(shutdownCtx); err != nil {
		logger.Warn("journey tickers did not stop in time", "error", err)
	}
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Warn("fanout close", "error", err)
	}
	if err := <-httpDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("http shutdown", "error", err)
	}
	return runErr
}

// loadCatalog picks the route source: the store when DATABASE_URL is set,
// seeded from ROUTES_FILE or the built-in routes; otherwise the file or the
// built-in routes directly.
func loadCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*route.Catalog, func(), error) {
	seed := route.Builtin()
	if cfg.RoutesFile != "" {
		var err error
		seed, err = route.LoadFile(cfg.RoutesFile)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("routes file loaded", "path", cfg.RoutesFile, "routes", seed.Count())
	}
	if cfg.DatabaseURL == "" {
		return seed, func() {}, nil
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { _ = sqlDB.Close() }
	logger.Info("route store connected", "dsn", db.RedactDSN(cfg.DatabaseURL))
	store := db.NewRouteStore(sqlDB)
	if err := store.EnsureSchema(ctx); err != nil {
		closeDB()
		return nil, nil, err
	}
	if !cfg.SeedRoutes {
		seed = nil
	}
	catalog, err := db.LoadCatalog(ctx, store, seed, logger)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return catalog, closeDB, nil
}

func newPublisher(cfg *config.Config, m publisher.PublisherMetrics, logger *slog.Logger) (publisher.Publisher, error) {
	switch cfg.Publisher {
	case config.PublisherNATS:
		return publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogPublishSubjects, m, logger)
	case config.PublisherAMQP:
		return publisher.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.LogPublishSubjects, m, logger)
	case config.PublisherKafka:
		return publisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, cfg.LogPublishSubjects, m, logger)
	case config.PublisherLog:
		return publisher.NewLogPublisher(logger, m), nil
	default:
		return nil, nil
	}
}
