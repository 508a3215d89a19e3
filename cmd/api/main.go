// Package main is the entry point for the pacelog API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/pacelog/pacelog/internal/activity"
	"github.com/pacelog/pacelog/internal/api"
	"github.com/pacelog/pacelog/internal/auth"
	"github.com/pacelog/pacelog/internal/config"
	"github.com/pacelog/pacelog/internal/feed"
	"github.com/pacelog/pacelog/internal/group"
	"github.com/pacelog/pacelog/internal/health"
	"github.com/pacelog/pacelog/internal/middleware"
	"github.com/pacelog/pacelog/internal/session"
	"github.com/pacelog/pacelog/internal/socialgraph"
	"github.com/pacelog/pacelog/internal/tracing"
	"github.com/pacelog/pacelog/internal/user"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Pacelog API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "pacelog-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SampleRate:   cfg.TracingSampleRate,
		Insecure:     !cfg.IsProduction(),
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Session store: Postgres when configured, in-memory otherwise.
	var sessionStore session.Store
	checkers := make(map[string]health.Checker)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		sessionStore = session.NewPostgresStore(db, logger)
		checkers["db"] = health.NewDBChecker(db)
	} else {
		logger.Info("no DATABASE_URL configured, using in-memory session store")
		sessionStore = session.NewInMemoryStore()
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		checkers["redis"] = health.NewRedisChecker(redisClient)
	}

	// Metrics registry shared by middleware and the feed assembler.
	registry := prometheus.NewRegistry()
	mwMetrics := middleware.NewMetrics()
	if err := mwMetrics.Register(registry); err != nil {
		logger.Error("failed to register middleware metrics", "error", err)
		os.Exit(1)
	}
	feedMetrics := feed.NewMetrics()
	if err := feedMetrics.Register(registry); err != nil {
		logger.Error("failed to register feed metrics", "error", err)
		os.Exit(1)
	}

	// Social graph and annotation stores are in-memory in this deployment;
	// they are fed by the ingest pipeline upstream of this service.
	userStore := user.NewInMemoryStore()
	activityStore := activity.NewInMemoryStore()
	groupStore := group.NewInMemoryStore()
	adjacency := socialgraph.NewInMemoryAdjacencyStore()
	edges := socialgraph.NewInMemoryEdgeStore()
	graph := socialgraph.NewReader(adjacency, edges, userStore, logger)

	assembler := feed.NewAssembler(feed.Stores{
		Sessions:   sessionStore,
		Graph:      graph,
		Users:      userStore,
		Activities: activityStore,
		Groups:     groupStore,
	}, logger,
		feed.WithMetrics(feedMetrics),
		feed.WithPageSizes(cfg.FeedDefaultPageSize, cfg.FeedMaxPageSize))

	var jwtService *auth.JWTService
	if cfg.JWTPreviousSecret != "" {
		jwtService = auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)
	} else {
		jwtService = auth.NewJWTService(cfg.JWTSecret)
	}

	feedHandlers := api.NewFeedHandlers(assembler, logger)
	statsHandlers := api.NewStatsHandlers(sessionStore, logger)
	chartHandlers := api.NewChartHandlers(sessionStore, logger)
	healthHandler := health.NewHandler(checkers)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /feed", feedHandlers.GetFeed)
	mux.HandleFunc("GET /stats", statsHandlers.GetStats)
	mux.HandleFunc("GET /stats/chart", chartHandlers.GetChart)
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /ready", healthHandler.Readiness)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			api.WriteError(w, r, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]string{
			"service": "pacelog-api",
			"version": "0.1.0",
		})
	})

	// Rate limit store: Redis when available so limits hold across replicas.
	var rateLimitStore middleware.RateLimitStore
	if redisClient != nil {
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient).WithMetrics(mwMetrics)
	} else {
		inMem := middleware.NewInMemoryRateLimitStore()
		go func() {
			for range time.Tick(5 * time.Minute) {
				inMem.Cleanup()
			}
		}()
		rateLimitStore = inMem
	}
	rateLimit := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimitPerMinute,
		WindowDuration:    time.Minute,
	}
	if err := rateLimit.Validate(); err != nil {
		logger.Error("invalid rate limit config", "error", err)
		os.Exit(1)
	}

	// Middleware chain: Tracing -> CORS -> RequestID -> Logging -> HTTPMetrics
	// -> Authenticate -> RateLimiter. Authentication runs before the limiter
	// so authenticated traffic is keyed per user instead of per client IP.
	var handler http.Handler = mux
	handler = middleware.RateLimiter(rateLimitStore, rateLimit, middleware.UserKeyFunc(), mwMetrics)(handler)
	handler = middleware.Authenticate(jwtService)(handler)
	handler = middleware.HTTPMetrics(mwMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   strings.Split(cfg.CORSAllowedOrigins, ","),
		AllowCredentials: true,
		MaxAge:           600,
	})(handler)
	handler = middleware.Tracing("pacelog-api")(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Flush pending spans first.
	if err := tracerProvider.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown tracer provider", "error", err)
	}

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
