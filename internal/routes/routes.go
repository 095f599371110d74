package routes

import (
	"context"
	"log/slog"

	"github.com/VincentPrime/endlessgrindbackend/internal/config"
	"github.com/VincentPrime/endlessgrindbackend/internal/handlers"
	"github.com/VincentPrime/endlessgrindbackend/internal/middleware"
	"github.com/VincentPrime/endlessgrindbackend/internal/models"
	"github.com/VincentPrime/endlessgrindbackend/internal/repository"
	"github.com/VincentPrime/endlessgrindbackend/internal/services"
	eventws "github.com/VincentPrime/endlessgrindbackend/internal/websocket"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// RegisterRoutes wires repositories, services and handlers onto app. The event
// hub runs until ctx is cancelled. cache may be nil.
func RegisterRoutes(ctx context.Context, app *fiber.App, cfg *config.Config, db *pgxpool.Pool, cache *redis.Client) error {
	userRepo := repository.NewUserRepository(db)
	packageRepo := repository.NewPackageRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	trainingSessionRepo := repository.NewTrainingSessionRepository(db)
	trainingStore := repository.NewTrainingStore(db)

	if !cfg.PaymentsEnabled() {
		slog.Warn("PAYMONGO_SECRET_KEY is not set, payment links and refunds will fail")
	}
	gateway := services.NewPayMongoGateway(services.PayMongoConfig{
		SecretKey: cfg.PayMongoSecretKey,
		BaseURL:   cfg.PayMongoAPIURL,
		Timeout:   cfg.PayMongoTimeout,

		BreakerFailures: cfg.PayMongoBreakerFails,
		BreakerCooldown: cfg.PayMongoBreakerReset,
	})

	var ledger services.EventLedger = services.NoopEventLedger{}
	if cache != nil {
		ledger = services.NewRedisEventLedger(cache, cfg.WebhookEventTTL)
	}

	hub := eventws.NewHub()
	go hub.Run(ctx)

	applicationService := services.NewApplicationService(applicationRepo, packageRepo, userRepo, gateway, hub)
	trainingService := services.NewTrainingService(applicationRepo, trainingSessionRepo, trainingStore, hub, cfg.Location())

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	applicationHandler := handlers.NewApplicationHandler(applicationService)
	trainingHandler := handlers.NewTrainingHandler(trainingService)
	webhookHandler := handlers.NewWebhookHandler(applicationService, ledger, cfg.PayMongoWebhookSecret)
	eventsHandler := handlers.NewEventsHandler(hub, cfg.JWTSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	api.Post("/webhooks/paymongo", webhookHandler.HandlePayMongo)

	api.Use("/v1/ws", eventsHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(eventsHandler.HandleWebSocket))

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	applications := authProtected.Group("/applications", middleware.RequireRole(models.RoleUser))
	applications.Post("", applicationHandler.Submit)
	applications.Get("/me", applicationHandler.GetMine)
	applications.Delete("/:id", applicationHandler.Cancel)

	admin := authProtected.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	admin.Put("/applications/:id/approve", applicationHandler.Approve)
	admin.Put("/applications/:id/decline", applicationHandler.Decline)
	admin.Delete("/applications/:id", applicationHandler.AdminCancel)

	training := authProtected.Group("/training")
	training.Post("/:application_id/sessions", middleware.RequireRole(models.RoleCoach, models.RoleAdmin), trainingHandler.LogSession)
	training.Put("/:application_id/complete", middleware.RequireRole(models.RoleCoach, models.RoleAdmin), trainingHandler.CompleteProgram)
	training.Get("/:application_id/sessions", trainingHandler.SessionHistory)

	return nil
}
