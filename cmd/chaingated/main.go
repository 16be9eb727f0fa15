package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"chaingate/config"
	"chaingate/gateway/auth"
	"chaingate/gateway/meter"
	"chaingate/gateway/metrics"
	"chaingate/gateway/middleware"
	"chaingate/gateway/networks"
	"chaingate/gateway/proxy"
	"chaingate/gateway/relay"
	"chaingate/gateway/routes"
	"chaingate/gateway/sanitize"
	"chaingate/gateway/upstream"
	"chaingate/observability/logging"
	"chaingate/tenant"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the gateway config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.Setup(cfg.Observability.ServiceName, cfg.Observability.Environment)

	var dialector gorm.Dialector
	if cfg.Database.URL != "" {
		dialector = postgres.Open(cfg.Database.URL)
	} else {
		// No database configured: keep a local sqlite file so development
		// deployments work out of the box.
		logger.Warn("no database url configured, using local sqlite store")
		dialector = sqlite.Open("chaingate.db")
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatalf("database connection error: %v", err)
	}

	store, err := tenant.NewStore(db)
	if err != nil {
		log.Fatalf("tenant store error: %v", err)
	}

	registry := networks.FromConfig(cfg.Networks)
	sanitizer := sanitize.New(cfg.Provider, cfg.Brand)
	endpoints := upstream.NewProvider(cfg.Provider)
	guard := auth.NewGuard(store, logger)

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName:   cfg.Observability.ServiceName,
		MetricsPrefix: cfg.Observability.MetricsPrefix,
		LogRequests:   cfg.Observability.LogRequests,
		Enabled:       cfg.Observability.Metrics,
	}, logger)
	collectors := metrics.New(cfg.Observability.MetricsPrefix, obs.Registry())
	usage := meter.New(store, logger, collectors, 0)

	proxyHandler := proxy.NewHandler(registry, endpoints, sanitizer, usage, collectors, nil, logger)
	relayHandler := relay.New(registry, endpoints, guard, sanitizer, usage, collectors, logger)

	router := routes.New(routes.Config{
		Proxy:         proxyHandler,
		Relay:         relayHandler,
		Guard:         guard,
		Observability: obs,
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AllowedMethods: cfg.CORS.AllowedMethods,
			AllowedHeaders: cfg.CORS.AllowedHeaders,
		},
	})

	// Read/write timeouts stay off the server itself: they would tear down
	// long-lived relay sockets. Header reads and idle keep-alives are still
	// bounded.
	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", cfg.ListenAddress, "networks", registry.Slugs())
		errCh <- server.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	usage.Close()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("gateway stopped")
}
