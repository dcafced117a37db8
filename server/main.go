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

	"stagepass/api/routes"
	"stagepass/internal/inventory"
	"stagepass/internal/notifications"
	"stagepass/internal/shared/config"
	"stagepass/internal/shared/database"
	"stagepass/pkg/logger"
	"stagepass/pkg/metrics"
	"stagepass/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

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

	cfg := config.Load()

	gin.SetMode(cfg.GinMode)

	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to connect:", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Preload the Lua scripts backing advisory seat holds
	if db.Redis != nil {
		holdStore := inventory.NewHoldStore(db.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := holdStore.PreloadScripts(ctx); err != nil {
			appLogger.Error("Failed to preload Redis Lua scripts", slog.Any("error", err))
			// Continue without failing - scripts will be loaded on first use
		} else {
			appLogger.Info("✅ Redis Lua scripts preloaded for atomic seat holds")
		}
		cancel()
	}

	// Rate limiter
	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiterConfig := &ratelimit.Config{
			Enabled:          cfg.RateLimit.Enabled,
			WindowDuration:   cfg.RateLimit.WindowDuration,
			DefaultRequests:  cfg.RateLimit.DefaultRequests,
			PublicRequests:   cfg.RateLimit.PublicRequests,
			AuthRequests:     cfg.RateLimit.AuthRequests,
			CheckoutRequests: cfg.RateLimit.CheckoutRequests,
			WebhookRequests:  cfg.RateLimit.WebhookRequests,
			AdminRequests:    cfg.RateLimit.AdminRequests,
			HealthRequests:   cfg.RateLimit.HealthRequests,
			WhitelistedIPs:   cfg.RateLimit.WhitelistedIPs,
		}

		rateLimiter = ratelimit.NewRateLimiter(db.GetRedisClient(), rateLimiterConfig)
		appLogger.Info("Rate limiter initialized",
			slog.Bool("enabled", cfg.RateLimit.Enabled),
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	// Order event pipeline: Kafka producer plus the notification consumer
	// workers. With Kafka disabled the producer becomes a no-op and order
	// events are only logged.
	producer := setupProducer(cfg, appLogger)
	defer producer.Close()

	consumer := setupConsumer(cfg, appLogger, producer)
	if consumer != nil {
		notificationCtx, notificationCancel := context.WithCancel(context.Background())
		defer notificationCancel()

		go func() {
			if err := consumer.StartConsumers(notificationCtx, 3); err != nil {
				appLogger.Error("Failed to start notification consumer", slog.Any("error", err))
			}
		}()

		defer func() {
			appLogger.Info("Stopping notification consumer...")
			if err := consumer.Stop(); err != nil {
				appLogger.Error("Error stopping notification consumer", slog.Any("error", err))
			}
		}()
	}

	// Router and background reclaimer
	appRouter := routes.NewRouter(cfg, db, producer)
	engine := setupEngine(cfg, appRouter, rateLimiter)

	reclaimerCtx, reclaimerCancel := context.WithCancel(context.Background())
	defer reclaimerCancel()
	appRouter.StartReclaimer(reclaimerCtx)
	defer appRouter.StopReclaimer()

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        engine,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("🚀 Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("version", Version),
			slog.Bool("kafka", cfg.Kafka.Enabled),
			slog.Bool("rate_limiting", cfg.RateLimit.Enabled),
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

	appLogger.Info("Server exited gracefully")
}

func setupProducer(cfg *config.Config, appLogger *logger.Logger) notifications.OrderEventProducer {
	if !cfg.Kafka.Enabled {
		appLogger.Info("Kafka disabled, order events will not be published")
		return notifications.NewNoopProducer()
	}

	producerConfig := notifications.DefaultKafkaProducerConfig()
	producerConfig.Brokers = cfg.Kafka.Brokers
	producerConfig.OrderTopic = cfg.Kafka.OrderTopic
	producerConfig.DeadLetterTopic = cfg.Kafka.DeadLetterTopic

	producer, err := notifications.NewKafkaOrderEventProducer(producerConfig)
	if err != nil {
		appLogger.Error("Failed to create Kafka producer, falling back to no-op", slog.Any("error", err))
		return notifications.NewNoopProducer()
	}

	appLogger.Info("Kafka order event producer initialized",
		slog.Any("brokers", cfg.Kafka.Brokers),
		slog.String("topic", cfg.Kafka.OrderTopic))
	return producer
}

func setupConsumer(cfg *config.Config, appLogger *logger.Logger, producer notifications.OrderEventProducer) notifications.OrderEventConsumer {
	if !cfg.Kafka.Enabled {
		return nil
	}

	var emailService notifications.EmailService
	smtp, err := notifications.NewSMTPEmailService(&cfg.Email)
	if err != nil {
		appLogger.Info("SMTP not configured, using mock email service", slog.Any("reason", err))
		emailService = notifications.NewMockEmailService()
	} else {
		emailService = smtp
	}

	consumerConfig := notifications.DefaultConsumerConfig()
	consumerConfig.Brokers = cfg.Kafka.Brokers
	consumerConfig.GroupID = cfg.Kafka.ConsumerGroup
	consumerConfig.Topics = []string{cfg.Kafka.OrderTopic}

	deadLetter, _ := producer.(*notifications.KafkaOrderEventProducer)
	consumer, err := notifications.NewKafkaOrderEventConsumer(consumerConfig, emailService, deadLetter)
	if err != nil {
		appLogger.Error("Failed to create Kafka consumer, notifications disabled", slog.Any("error", err))
		return nil
	}

	appLogger.Info("Notification consumer initialized",
		slog.String("group", consumerConfig.GroupID))
	return consumer
}

func setupEngine(cfg *config.Config, appRouter *routes.Router, rateLimiter *ratelimit.RateLimiter) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	engine.Use(RequestLoggerMiddleware(appLogger), gin.Recovery())
	engine.Use(metrics.Middleware())

	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Signature", "X-Session-Id"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
		appLogger.Info("Rate limiting middleware applied to all routes")
	}

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
