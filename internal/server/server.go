package server

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"jewelry-catalog/internal/config"
	"jewelry-catalog/internal/database"
	"jewelry-catalog/internal/metrics"
	custommiddleware "jewelry-catalog/internal/middleware"
	"jewelry-catalog/internal/repository"
	"jewelry-catalog/internal/service"
	"jewelry-catalog/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

// NewServer wires the catalog store, service and handlers behind the HTTP middleware stack.
// db must already be initialized.
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.DB(), string(db.Dialect())),
	)
	catalogMetrics := metrics.New(registry)

	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.MetricsMiddleware(catalogMetrics))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := db.Health(r.Context())
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	store := repository.NewInstrumentedCatalogStore(
		repository.NewCatalogStore(db.DB(), db.Dialect()),
		catalogMetrics,
	)
	catalogService := service.NewCatalogService(store, logger)
	catalogHandler := transport.NewCatalogHandler(catalogService, transport.Limits{
		MaxImages:     cfg.Catalog.MaxImages,
		MaxImageBytes: cfg.Catalog.MaxImageBytes,
	}, logger)

	var redisClient *redis.Client
	limitConfig := custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         "catalog_admin_rate",
	}
	var rateLimiter func(http.Handler) http.Handler
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rateLimiter = custommiddleware.RateLimitMiddleware(redisClient, limitConfig, logger)
	} else {
		rateLimiter = custommiddleware.InProcessRateLimit(limitConfig, logger)
	}

	catalogHandler.RegisterRoutes(router,
		custommiddleware.AdminOnly(cfg.Admin.JWTSecret, logger),
		rateLimiter,
	)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
	return nil
}
