package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VincentPrime/endlessgrindbackend/internal/config"
	"github.com/VincentPrime/endlessgrindbackend/internal/database"
	"github.com/VincentPrime/endlessgrindbackend/internal/logging"
	"github.com/VincentPrime/endlessgrindbackend/internal/middleware"
	"github.com/VincentPrime/endlessgrindbackend/internal/routes"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if _, err := logging.New(logging.Options{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		File:      cfg.LogFile,
		AddSource: cfg.LogCaller,
	}); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	if cfg.DBUrl == "" {
		fatal("DB_URL is required")
	}
	if err := database.ConnectDB(ctx, cfg.DBUrl); err != nil {
		fatal("failed to connect to database", "error", err)
	}
	defer database.CloseDB()

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			slog.Warn("redis unavailable, webhook deduplication disabled", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	// 3. Setup Fiber
	app := fiber.New(fiber.Config{AppName: "endlessgrind"})

	// Middleware
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSOrigins}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:request_id} ${status} ${method} ${path} ${latency}\n",
	}))

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	if err := routes.RegisterRoutes(ctx, app, cfg, database.DB, cache); err != nil {
		fatal("failed to register routes", "error", err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
		}
	}()

	// 4. Start Server
	slog.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv, "payments_enabled", cfg.PaymentsEnabled())
	if err := app.Listen(":" + cfg.Port); err != nil {
		fatal("server failed to start", "error", err)
	}
	slog.Info("server stopped")
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
