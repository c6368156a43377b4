package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"pixelfeed/internal/apperrors"
	"pixelfeed/internal/config"
	"pixelfeed/internal/database"
	"pixelfeed/internal/handlers"
	"pixelfeed/internal/middleware"
	"pixelfeed/internal/repositories"
	"pixelfeed/internal/services"
	"pixelfeed/pkg/blobstore"
	"pixelfeed/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// --- Logger ---
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	// --- Database ---
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db, log); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	// --- Blob store ---
	blobs, err := blobstore.NewS3Store(context.Background(), blobstore.Config{
		Bucket:           cfg.S3Bucket,
		Region:           cfg.AWSRegion,
		CloudFrontDomain: cfg.CloudFrontDomain,
	}, log)
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}

	// --- Activity events (optional) ---
	var events services.EventPublisher
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
		events = mqClient

		if err := mqClient.ConsumeActivityEvents(func(msg amqp.Delivery) error {
			log.WithFields(logrus.Fields{
				"event": msg.Type,
				"body":  string(msg.Body),
			}).Debug("activity event")
			return nil
		}); err != nil {
			log.Warnf("Failed to start activity consumer: %v", err)
		}
	} else {
		log.Info("RABBITMQ_URL not set, activity events disabled")
	}

	// --- Repositories ---
	userRepo := repositories.NewGORMUserRepository(db)
	postRepo := repositories.NewGORMPostRepository(db)

	// --- Services ---
	tokenService := services.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL)
	googleVerifier := services.NewAPIGoogleVerifier(cfg.GoogleClientID, log)
	resolver := services.NewIdentityResolver(userRepo, log)
	authService := services.NewAuthService(userRepo, tokenService, googleVerifier, resolver, events, log)
	postService := services.NewPostService(postRepo, blobs, events, log)

	// --- Handlers ---
	authHandler := handlers.NewAuthHandler(authService)
	postHandler := handlers.NewPostHandler(postService, authService)
	requireAuth := middleware.AuthRequired(tokenService)

	// --- Fiber app ---
	app := fiber.New(fiber.Config{
		ErrorHandler: apperrors.FiberHandler(log),
		BodyLimit:    services.MaxDirectUploadBytes + 1024*1024,
	})
	app.Use(fiberlogger.New())

	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1, requireAuth)
	postHandler.RegisterRoutes(apiV1, requireAuth)

	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Context())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "database connection failed",
			})
		}
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- Start HTTP server ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Infof("Starting server on %s", cfg.Port)
		if err := app.Listen(cfg.Port); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Info("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Errorf("Error during shutdown: %v", err)
	}
	log.Info("Server gracefully stopped")
}
