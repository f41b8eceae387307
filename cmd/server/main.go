package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ITAMARV101/duowalk/internal/claims"
	"github.com/ITAMARV101/duowalk/internal/handlers"
	"github.com/ITAMARV101/duowalk/internal/keystore"
	"github.com/ITAMARV101/duowalk/internal/metrics"
	"github.com/ITAMARV101/duowalk/internal/models"
	"github.com/ITAMARV101/duowalk/internal/profile"
	"github.com/ITAMARV101/duowalk/internal/repositories"
	"github.com/ITAMARV101/duowalk/internal/routers"
	"github.com/ITAMARV101/duowalk/internal/session"
	"github.com/ITAMARV101/duowalk/internal/steps"
	"github.com/ITAMARV101/duowalk/internal/syncer"
)

const reconcileInterval = time.Hour

func openDatabase() (*gorm.DB, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}
	return gorm.Open(sqlite.Open("duowalk.db"), &gorm.Config{})
}

func syncInterval() time.Duration {
	raw := os.Getenv("SYNC_INTERVAL")
	if raw == "" {
		return syncer.DefaultInterval
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return syncer.DefaultInterval
	}
	return d
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	db, err := openDatabase()
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	if err := db.AutoMigrate(&models.Account{}); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev"
	}

	store := keystore.NewRedisStore(rdb)
	accounts := &repositories.AccountRepository{DB: db}
	profiles := &repositories.ProfileRepository{Store: store}
	workflow := profile.NewWorkflow(claims.NewManager(store, logger), profiles, logger, nil)

	broker := session.NewBroker()
	bridge := session.NewBridge(rdb, broker, logger)
	acc := steps.NewAccumulator(nil)
	readings := make(chan float64, 64)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	go bridge.Run(ctx)
	go syncer.NewTracker(acc, readings, broker.Subscribe(), broker, logger).Run(ctx)
	go syncer.NewScheduler(acc, profiles, broker, syncInterval(), logger).Run(ctx)

	// Orphaned claim sweep: frees index entries whose owner has no profile
	// record, which can linger after a crash mid-rollback.
	go func() {
		ticker := time.NewTicker(reconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				released, err := workflow.Reconcile(ctx)
				if err != nil {
					logger.Warn("claim reconcile failed", zap.Error(err))
				} else if released > 0 {
					logger.Info("released orphaned claims", zap.Int("count", released))
				}
			}
		}
	}()

	authHandler := &handlers.AuthHandler{
		Accounts:  accounts,
		Workflow:  workflow,
		Broker:    broker,
		Bridge:    bridge,
		JWTSecret: jwtSecret,
		Logger:    logger,
	}
	profileHandler := &handlers.ProfileHandler{
		Accounts:  accounts,
		Profiles:  profiles,
		Workflow:  workflow,
		Broker:    broker,
		Bridge:    bridge,
		JWTSecret: jwtSecret,
		Logger:    logger,
	}
	stepsHandler := &handlers.StepsHandler{
		Acc:       acc,
		Readings:  readings,
		Profiles:  profiles,
		JWTSecret: jwtSecret,
		Logger:    logger,
	}

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer, middleware.Timeout(60*time.Second))
	router.Use(metrics.Middleware)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.Method("GET", "/metrics", metrics.Handler())

	routers.AuthRoutes(router, authHandler)
	routers.ProfileRoutes(router, profileHandler)
	routers.StepsRoutes(router, stepsHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port

	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("duowalk service starting", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("duowalk service shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("duowalk service exited")
}
