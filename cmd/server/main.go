package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zonasi/internal/documents"
	"zonasi/internal/jwttoken"
	"zonasi/internal/platform/config"
	"zonasi/internal/platform/httpserver"
	"zonasi/internal/platform/logger"
	"zonasi/internal/platform/middleware"
	"zonasi/internal/platform/postgres"
	platformredis "zonasi/internal/platform/redis"
	"zonasi/internal/registration"
	"zonasi/internal/registration/handler"
	registrationmetrics "zonasi/internal/registration/metrics"
	"zonasi/internal/registration/service"
	"zonasi/internal/registration/store"
	"zonasi/internal/routing"
	routingmetrics "zonasi/internal/routing/metrics"
	"zonasi/internal/schedule"
)

// Mapbox allows 300 directions requests per rolling minute.
const (
	routingLimit  = 300
	routingWindow = time.Minute
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var regStore registration.Store
	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		regStore = store.NewPostgresStore(pool)
	} else {
		log.Warn("DATABASE_URL not set, using the in-memory store")
		regStore = store.NewInMemoryStore()
	}

	tokens := jwttoken.New(cfg.JWTSigningKey, cfg.ServiceTokenTTL)

	var catalog documents.CatalogClient = documents.NewHTTPCatalogClient(cfg.DocumentServiceURL, tokens)
	rdb, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		catalog = documents.NewCachedCatalogClient(catalog, rdb, cfg.CatalogCacheTTL, log)
	}

	limiter := routing.NewLimiter(routingLimit, routingWindow)
	router, err := routing.NewClient(cfg.RoutingBaseURL, cfg.RoutingProfile, cfg.RoutingAPIKey, limiter,
		routing.WithLogger(log),
		routing.WithMetrics(routingmetrics.New()),
	)
	if err != nil {
		log.Error("failed to build routing client", "error", err)
		os.Exit(1)
	}

	svc, err := service.New(regStore, catalog, router,
		service.WithLogger(log),
		service.WithMetrics(registrationmetrics.New()),
	)
	if err != nil {
		log.Error("failed to build registration service", "error", err)
		os.Exit(1)
	}

	schedules := schedule.NewHTTPClient(cfg.ScheduleServiceURL, tokens)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))

	handler.New(svc, schedules, log).Register(r)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, r)

	go func() {
		log.Info("starting zonasi server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
