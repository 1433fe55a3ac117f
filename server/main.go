package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boxoffice/api/routes"
	"boxoffice/docs"
	"boxoffice/internal/clock"
	"boxoffice/internal/notifications"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/database"
	"boxoffice/internal/tickets"
	"boxoffice/pkg/cache"
	"boxoffice/pkg/logger"
	"boxoffice/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// @title                       Boxoffice API
// @version                     1.0
// @description                 Ticket reservation and inventory service.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	// Load config
	cfg := config.Load()

	// Set Gin mode (debug/release) before building the logger so the handler
	// format follows it
	gin.SetMode(cfg.GinMode)
	appLogger = logger.NewWithWriter(os.Stdout, cfg.LogLevel)
	logger.SetDefault(appLogger)

	docs.SwaggerInfo.BasePath = cfg.GetAPIBasePath()
	docs.SwaggerInfo.Version = Version

	// Initialize DB
	db, err := database.InitDB(cfg, appLogger)
	if err != nil {
		appLogger.Error("failed to connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Rate Limiter
	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled && db.GetRedis() != nil {
		rateLimiterConfig := &ratelimit.Config{
			Enabled:             cfg.RateLimit.Enabled,
			WindowDuration:      cfg.RateLimit.WindowDuration,
			DefaultRequests:     cfg.RateLimit.DefaultRequests,
			PublicRequests:      cfg.RateLimit.PublicRequests,
			ReservationRequests: cfg.RateLimit.ReservationRequests,
			AdminRequests:       cfg.RateLimit.AdminRequests,
			HealthRequests:      cfg.RateLimit.HealthRequests,
			WhitelistedIPs:      cfg.RateLimit.WhitelistedIPs,
		}

		rateLimiter = ratelimit.NewRateLimiter(db.GetRedis(), rateLimiterConfig)
		appLogger.Info("Rate limiter initialized",
			slog.Bool("enabled", cfg.RateLimit.Enabled),
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	// Ticket lifecycle events
	var publisher tickets.EventPublisher
	if cfg.Kafka.Enabled {
		producerConfig := notifications.DefaultKafkaProducerConfig()
		producerConfig.Brokers = cfg.Kafka.Brokers
		producerConfig.TicketTopic = cfg.Kafka.TicketTopic
		producerConfig.PublishTimeout = cfg.Kafka.PublishTimeout
		producerConfig.BreakerFailures = cfg.Kafka.BreakerFailures
		producerConfig.BreakerSuccesses = cfg.Kafka.BreakerSuccesses
		producerConfig.BreakerTimeout = cfg.Kafka.BreakerTimeout

		producer, err := notifications.NewKafkaTicketEventProducer(producerConfig, appLogger)
		if err != nil {
			appLogger.Error("Failed to initialize ticket event producer", slog.Any("error", err))
			appLogger.Info("Continuing without ticket events")
		} else {
			publisher = producer
			appLogger.Info("Ticket event producer initialized",
				slog.Any("brokers", cfg.Kafka.Brokers),
				slog.String("topic", cfg.Kafka.TicketTopic),
			)
			defer func() {
				if err := producer.Close(); err != nil {
					appLogger.Error("Error closing ticket event producer", slog.Any("error", err))
				}
			}()
		}
	}

	// Reservation engine
	ticketRepo := tickets.NewRepository(db.GetPostgreSQL(), tickets.WithLockTimeout(cfg.Reservation.LockTimeout))
	serviceOpts := []tickets.Option{
		tickets.WithLogger(appLogger),
		tickets.WithReservationWindow(cfg.Reservation.Window),
		tickets.WithSweepBatchSize(cfg.Reservation.SweepBatchSize),
		tickets.WithRetry(cfg.Reservation.TxRetryAttempts, cfg.Reservation.TxRetryBackoff),
		tickets.WithPublisher(publisher),
	}
	if cfg.Redis.CacheEnabled && db.GetRedis() != nil {
		serviceOpts = append(serviceOpts, tickets.WithAvailabilityCache(cache.NewService(db.GetRedis())))
	}
	ticketService := tickets.NewService(ticketRepo, clock.NewSystem(), serviceOpts...)

	// Background expiry sweeper
	sweeper := tickets.NewSweeper(ticketService, &tickets.SweeperConfig{
		Interval: cfg.Reservation.SweepInterval,
	}, appLogger)
	sweeper.Start(context.Background())

	// Setup router with rate limiter
	router := setupRouter(cfg, db, ticketService, sweeper, rateLimiter, appLogger)

	// HTTP server
	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		appLogger.Info("🚀 Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("swagger", fmt.Sprintf("http://localhost:%s/swagger/index.html", cfg.Port)),
			slog.String("version", Version),
			slog.String("build_time", BuildTime),
			slog.String("commit", GitCommit),
			slog.Bool("redis_cache", db.GetRedis() != nil && cfg.Redis.CacheEnabled),
			slog.Bool("rate_limiting", rateLimiter != nil),
			slog.Bool("ticket_events", publisher != nil),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	// Let an in-flight sweep batch commit before the pool closes
	sweeper.Stop()

	appLogger.Info("Server exited gracefully")
}

func setupRouter(cfg *config.Config, db *database.DB, ticketService tickets.Service, sweeper *tickets.Sweeper, rateLimiter *ratelimit.RateLimiter, appLogger *logger.Logger) *gin.Engine {
	engine := gin.New()

	// Built-in middleware: logs requests + recovers from panics
	engine.Use(RequestLoggerMiddleware(appLogger), gin.Recovery())

	// CORS configuration
	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-RateLimit-*"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Global rate limiting middleware (applied to all routes)
	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
		appLogger.Info("Rate limiting middleware applied to all routes")
	}

	// Initialize and setup routes
	appRouter := routes.NewRouter(cfg, db, ticketService, sweeper, appLogger)
	appRouter.SetupRoutes(engine)

	return engine
}

func RequestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		l.LogHTTPRequest(c, duration)
	}
}
