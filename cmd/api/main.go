package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lumen-edu/workbook-api/internal/config"
	"github.com/lumen-edu/workbook-api/internal/database"
	"github.com/lumen-edu/workbook-api/internal/handler"
	"github.com/lumen-edu/workbook-api/internal/match"
	"github.com/lumen-edu/workbook-api/internal/middleware"
	"github.com/lumen-edu/workbook-api/internal/models"
	"github.com/lumen-edu/workbook-api/internal/repository"
	"github.com/lumen-edu/workbook-api/internal/router"
	"github.com/lumen-edu/workbook-api/internal/service"
	cloud "github.com/lumen-edu/workbook-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Student{}, &models.Workbook{}, &models.ExpectedPage{}, &models.PageSubmission{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSAddress)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	thresholds := match.Thresholds{
		Sequential: cfg.SequentialThreshold,
		Acceptance: cfg.AcceptanceThreshold,
		HashBits:   cfg.HashBits,
	}

	workbookRepo := repository.NewWorkbookRepository(db)
	submissionRepo := repository.NewPageSubmissionRepository(db)
	studentRepo := repository.NewStudentRepository(db)

	events := service.NewNATSEventPublisher(natsConn, cfg.EventSubject, logger)

	workbookService := service.NewWorkbookService(workbookRepo, validate, uploader, logger)
	reconcileService := service.NewReconcileService(submissionRepo, workbookRepo, studentRepo, validate, events, thresholds, logger)
	reviewService := service.NewReviewService(submissionRepo, workbookRepo, validate, events, thresholds, logger)
	progressService := service.NewProgressService(submissionRepo, workbookRepo, redisClient, cfg.ProgressCacheTTL, logger)

	workbookHandler := handler.NewWorkbookHandler(workbookService, validate, logger)
	submissionHandler := handler.NewSubmissionHandler(reconcileService, validate, logger)
	reviewHandler := handler.NewReviewHandler(reviewService, progressService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		WorkbookHandler:   workbookHandler,
		SubmissionHandler: submissionHandler,
		ReviewHandler:     reviewHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		SubmissionLimiter: middleware.SubmissionRateLimit(cfg.SubmissionRateLimit, cfg.SubmissionRateWindow),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
