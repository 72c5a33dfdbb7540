package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agrostock/agrostock-backend/internal/alerting/consumers"
	"github.com/agrostock/agrostock-backend/internal/alerting/events"
	"github.com/agrostock/agrostock-backend/internal/alerting/handler"
	"github.com/agrostock/agrostock-backend/internal/alerting/repository"
	"github.com/agrostock/agrostock-backend/internal/alerting/service"
	"github.com/agrostock/agrostock-backend/pkg/config"
	"github.com/agrostock/agrostock-backend/pkg/database"
	"github.com/agrostock/agrostock-backend/pkg/httputil"
	"github.com/agrostock/agrostock-backend/pkg/lock"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/agrostock/agrostock-backend/pkg/messaging"
	"github.com/agrostock/agrostock-backend/pkg/metrics"
	"github.com/agrostock/agrostock-backend/pkg/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const serviceName = "alert-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment, cfg.Server.LogLevel)
	log.Info().Msg("starting Alert Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, serviceName, cfg.Server.Environment, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracing")
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, repository.Schema); err != nil {
			log.Fatal().Err(err).Msg("failed to apply schema")
		}
	}

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	rmq.Watch(ctx)

	if err := rmq.DeclareDeadLetterQueue(serviceName); err != nil {
		log.Fatal().Err(err).Msg("failed to declare dead letter queue")
	}

	publisher, err := events.NewAlertEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Without Redis every instance runs its own review
	var locker lock.Locker = lock.NoopLocker{}
	if cfg.Redis.Addr != "" {
		rdb, err := lock.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb)
	} else {
		log.Warn().Msg("redis not configured, review runs are not coordinated across instances")
	}

	// Repositories
	alertRepo := repository.NewAlertRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	configRepo := repository.NewConfigRepository(db)
	productRepo := repository.NewProductRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)

	// Services
	configService := service.NewConfigService(configRepo, log)
	if _, err := configService.Seed(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to seed alert configurations")
	}

	alertService := service.NewAlertService(alertRepo, historyRepo, configRepo, productRepo, supplierRepo, publisher, publisher, log).
		WithRetentionDays(cfg.Alerts.RetentionDays)
	engine := service.NewEngine(alertRepo, configRepo, productRepo, publisher, publisher, log)

	scheduler := service.NewReviewScheduler(engine, alertService, configService, locker, service.SchedulerOptions{
		Fallback:   cfg.Alerts.ReviewInterval,
		LockTTL:    cfg.Alerts.LockTTL,
		RunOnStart: cfg.Alerts.RunOnStart,
	}, log)
	if cfg.Alerts.SchedulerOn {
		scheduler.Start(ctx)
	}

	stockConsumer, err := consumers.NewStockEventConsumer(rmq, engine, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create stock event consumer")
	}
	if err := stockConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start stock event consumer")
	}

	alertHandler := handler.NewAlertHandler(alertService, scheduler, log)
	configHandler := handler.NewConfigHandler(configService, log)
	productHandler := handler.NewProductHandler(productRepo, engine, log)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Tracing)
	r.Use(httputil.Actor)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-User-ID", "X-User-Name"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/alerts", alertHandler.Routes)
		r.Get("/alert-history", alertHandler.ListHistory)
		r.Route("/alert-configurations", configHandler.Routes)
		r.Route("/products", productHandler.Routes)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stops the consumer and the scheduler loop
	cancel()
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to flush traces")
	}

	log.Info().Msg("server stopped")
}
