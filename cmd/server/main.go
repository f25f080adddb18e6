package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deepscout/internal/config"
	"deepscout/internal/database"
	"deepscout/internal/handlers"
	"deepscout/internal/logging"
	"deepscout/internal/middleware"
	"deepscout/internal/services"
	"deepscout/pkg/auth"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting DeepScout Settings Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s)", cfg.Port)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}
	log.Println("✅ Database initialized")

	// JWT auth (nil means development bypass; production refuses to start)
	var jwtAuth *auth.JWTAuth
	if cfg.JWTSecret != "" {
		jwtAuth, err = auth.NewJWTAuth(cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)
		if err != nil {
			log.Fatalf("❌ Failed to initialize JWT auth: %v", err)
		}
		log.Println("✅ JWT authentication enabled")
	} else {
		if os.Getenv("ENVIRONMENT") == "production" {
			log.Fatal("❌ JWT_SECRET is required in production")
		}
		log.Println("⚠️  JWT_SECRET not set - running without authentication (development only)")
	}

	// Events hub and optional Redis bridge for multi-instance deployments
	eventsHub := services.NewEventsHub()
	pubsubService, err := services.NewPubSubService(cfg.RedisURL, eventsHub)
	if err != nil {
		log.Printf("⚠️  Redis unavailable, settings events stay instance-local: %v", err)
		pubsubService, _ = services.NewPubSubService("", eventsHub)
	}
	if err := pubsubService.Start(); err != nil {
		log.Printf("⚠️  Failed to start pub/sub bridge: %v", err)
	}
	defer pubsubService.Close()

	// Services
	settingsService := services.NewSettingsService(db, cfg.SettingsCacheTTL, pubsubService)
	modelParamsService := services.NewModelParamsService(db)
	userService := services.NewUserService(db)
	mcpService := services.NewMCPService()

	catalogService, err := services.NewCatalogService(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("❌ Failed to load MCP catalog: %v", err)
	}
	defer catalogService.Close()
	log.Printf("📦 MCP catalog loaded: %d pre-registered servers", len(catalogService.Servers()))

	// Nightly sweep re-normalizes stored documents so dormant accounts get
	// migrated without waiting for their next login
	var scheduler gocron.Scheduler
	if cfg.SweepEnabled {
		scheduler, err = gocron.NewScheduler()
		if err != nil {
			log.Fatalf("❌ Failed to create scheduler: %v", err)
		}
		_, err = scheduler.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(cfg.SweepHour), 0, 0))),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
				defer cancel()
				count, err := settingsService.SweepLegacyDocuments(ctx)
				if err != nil {
					log.Printf("⚠️  Settings sweep failed: %v", err)
					return
				}
				if count > 0 {
					log.Printf("🔄 Settings sweep migrated %d documents", count)
				}
			}),
		)
		if err != nil {
			log.Fatalf("❌ Failed to schedule settings sweep: %v", err)
		}
		scheduler.Start()
		log.Printf("🕐 Settings sweep scheduled daily at %02d:00", cfg.SweepHour)
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "DeepScout Settings v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    2 * 1024 * 1024, // settings documents are small
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("deepscout")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Auth=%d/min, Probe=%d/min, WS=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.AuthenticatedMax,
		rateLimitConfig.ProbeMax,
		rateLimitConfig.WebSocketMax,
	)

	// CORS configuration with environment-based origins
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowedOrigins != "*",
	}))

	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db)
	authHandler := handlers.NewAuthHandler(jwtAuth, userService)
	settingsHandler := handlers.NewSettingsHandler(settingsService, catalogService)
	modelParamsHandler := handlers.NewModelParamsHandler(modelParamsService)
	mcpHandler := handlers.NewMCPHandler(mcpService)
	configHandler := handlers.NewConfigHandler(catalogService)
	eventsHandler := handlers.NewEventsHandler(eventsHub)

	// Public routes
	app.Get("/health", healthHandler.Handle)
	app.Get("/api/config", configHandler.Get)

	authGroup := app.Group("/api/auth", middleware.AuthAttemptRateLimiter(rateLimitConfig))
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.Refresh)

	// Authenticated routes
	api := app.Group("/api",
		middleware.AuthMiddleware(jwtAuth),
		middleware.AuthenticatedRateLimiter(rateLimitConfig),
	)
	api.Get("/settings", settingsHandler.Get)
	api.Post("/settings", settingsHandler.Update)
	api.Post("/settings/reset", settingsHandler.Reset)
	api.Get("/settings/chat-config", settingsHandler.ChatConfig)

	api.Get("/model-parameters", modelParamsHandler.List)
	api.Get("/model-parameters/:model_id", modelParamsHandler.Get)
	api.Put("/model-parameters/:model_id", modelParamsHandler.Update)
	api.Post("/model-parameters/:model_id", modelParamsHandler.Update)
	api.Delete("/model-parameters/:model_id", modelParamsHandler.Delete)

	api.Post("/mcp/server/metadata", middleware.ProbeRateLimiter(rateLimitConfig), mcpHandler.ServerMetadata)

	// WebSocket endpoint for settings change events
	app.Use("/ws/events", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Use("/ws/events", middleware.WebSocketRateLimiter(rateLimitConfig))
	app.Use("/ws/events", middleware.AuthMiddleware(jwtAuth))
	app.Get("/ws/events", websocket.New(eventsHandler.Handle))

	log.Printf("📡 API listening on http://localhost:%s/api", cfg.Port)
	log.Printf("📡 Events endpoint: ws://localhost:%s/ws/events", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if scheduler != nil {
			if err := scheduler.Shutdown(); err != nil {
				log.Printf("⚠️ Error stopping scheduler: %v", err)
			}
		}

		pubsubService.Close()

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
