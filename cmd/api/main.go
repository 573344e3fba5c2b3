// cmd/api/main.go
// Main entry point for the matching service
// This file bootstraps all components and starts the server

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imadgeboyega/kiekky-matchcore/internal/auth"
	"github.com/imadgeboyega/kiekky-matchcore/internal/common/database"
	"github.com/imadgeboyega/kiekky-matchcore/internal/common/logger"
	"github.com/imadgeboyega/kiekky-matchcore/internal/common/utils"
	"github.com/imadgeboyega/kiekky-matchcore/internal/config"
	"github.com/imadgeboyega/kiekky-matchcore/internal/matching"
	"github.com/imadgeboyega/kiekky-matchcore/internal/notification"
	"github.com/imadgeboyega/kiekky-matchcore/internal/oracle"
	"github.com/imadgeboyega/kiekky-matchcore/internal/store"
)

var startTime = time.Now()

func main() {
	// 1. Load environment variables
	envErr := godotenv.Load()

	// 2. Load and validate configuration
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if envErr != nil {
		log.Debug("No .env file found, using environment variables")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Configuration validation failed", "error", err)
	}
	log.Info("Starting matching service", "environment", cfg.Environment, "store", cfg.StoreDriver, "oracle", cfg.OracleProvider)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Document store
	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open document store", "error", err)
	}
	defer closeStore()

	// 4. Compatibility hot cache (optional)
	var cache matching.CompatibilityCache = matching.NoopCache{}
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClientFromURL(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("Redis unavailable, continuing without compatibility cache", "error", err)
		} else {
			defer func(c *redis.Client) { _ = c.Close() }(redisClient)
			cache = matching.NewRedisCompatibilityCache(redisClient)
			log.Info("Connected to Redis")
		}
	}

	// 5. Scoring oracle
	scoringOracle := buildOracle(cfg, log)

	// 6. Notifications: in-app inbox plus realtime websocket push
	hub := notification.NewHub(cfg.AllowedOrigins, log.With("component", "hub"))
	inbox := notification.NewStoreSink(st)
	sink := notification.MultiSink{inbox, hub}

	// 7. Matching core
	svc := matching.NewService(st, scoringOracle, cache, sink, matching.Options{
		OracleProvider:     cfg.OracleProvider,
		ScoringConcurrency: cfg.ScoringConcurrency,
		CompatibilityTTL:   cfg.CompatibilityTTL,
		RecommendationTTL:  cfg.RecommendationTTL,
	}, log)
	handler := svc.Handler(log.With("component", "http"))
	authMiddleware := auth.NewMiddleware(cfg.JWTSecret)

	if cfg.EnableScheduler {
		scheduler := matching.NewScheduler(svc.Engine, svc.Detector, svc.Repo, matching.SchedulerConfig{
			SweepInterval:   cfg.MutualSweepInterval,
			SweepActiveDays: cfg.MutualSweepActiveDays,
		}, log.With("component", "scheduler"))
		scheduler.Start(ctx)
		log.Info("Scheduler started")
	}

	// 8. Routes
	api := chi.NewRouter()
	api.Use(middleware.RequestID)
	api.Use(middleware.Recoverer)
	api.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	matching.RegisterRoutes(api, handler, authMiddleware, cfg.APIRateLimit)

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.Handle("/ws", authMiddleware.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.GetUserIDFromContext(r.Context())
		hub.ServeWS(w, r, userID)
	})))
	notification.RegisterRoutes(router, notification.NewHandler(inbox, log.With("component", "notifications")), authMiddleware)
	router.PathPrefix("/api/v1/matching").Handler(http.StripPrefix("/api/v1/matching", api))
	router.Use(loggingMiddleware(log))

	// 9. Create and start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	log.Info("Server exited gracefully")
}

// openStore connects the configured document store backend
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case "postgres":
		db, err := database.NewPostgresDBFromURL(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("Connected to PostgreSQL")
		return store.NewPostgresStore(db), func() { db.Close() }, nil
	case "mongo":
		client, mdb, err := database.NewMongoDatabase(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Connected to MongoDB", "database", cfg.MongoDatabase)
		return store.NewMongoStore(mdb), func() {
			if err := database.DisconnectMongo(client); err != nil {
				log.Warn("MongoDB disconnect failed", "error", err)
			}
		}, nil
	case "memory":
		log.Warn("Using in-memory document store, data is not persisted")
		return store.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func buildOracle(cfg *config.Config, log *logger.Logger) oracle.Oracle {
	if cfg.OracleProvider != "http" {
		log.Info("Using local deterministic scoring oracle")
		return oracle.NewLocalOracle()
	}
	httpOracle := oracle.NewHTTPOracle(oracle.HTTPConfig{
		URL:        cfg.OracleURL,
		APIKey:     cfg.OracleAPIKey,
		Model:      cfg.OracleModel,
		Timeout:    cfg.OracleTimeout,
		RPS:        cfg.OracleRPS,
		Burst:      cfg.OracleBurst,
		MaxRetries: 2,
	}, log.With("component", "oracle"))
	return oracle.NewBreaker(httpOracle, oracle.DefaultBreakerConfig(), log.With("component", "breaker"))
}

// healthCheck returns server health status
func healthCheck(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
	})
}

func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("Request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}
