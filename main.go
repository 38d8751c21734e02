package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/strategy/ctxmissing"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"

	"pipes-runner-server/handlers"
	"pipes-runner-server/middleware"
	"pipes-runner-server/pipes"
	"pipes-runner-server/runner"
	"pipes-runner-server/services"

	_ "pipes-runner-server/docs"
)

// @title Pipes Runner API
// @version 1.0
// @description Asset materialization through subprocess workers
// @host localhost:8080
// @BasePath /api
func main() {
	// Config
	redisHost := getEnv("REDIS_HOST", "localhost")
	redisPort, _ := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	serverPort := getEnv("SERVER_PORT", "8080")

	// PostgreSQL Config
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	dbUser := getEnv("DB_USER", "pipes")
	dbPassword := getEnv("DB_PASSWORD", "pipes")
	dbName := getEnv("DB_NAME", "pipes")

	// Storage Config
	storageType := getEnv("STORAGE_TYPE", "local")
	storagePath := getEnv("STORAGE_PATH", "/data/runs")
	minioCfg := services.MinioConfig{
		Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		SecretKey: getEnv("MINIO_SECRET_KEY", ""),
		Region:    getEnv("MINIO_REGION", ""),
		UseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",
		Bucket:    getEnv("MINIO_BUCKET", ""),
	}

	// Runner Config
	assetsFile := getEnv("ASSETS_FILE", "assets.yaml")
	concurrency, _ := strconv.Atoi(getEnv("DISPATCH_CONCURRENCY", "4"))
	timeout, err := time.ParseDuration(getEnv("INVOCATION_TIMEOUT", "10m"))
	if err != nil {
		log.Fatalf("Invalid INVOCATION_TIMEOUT: %v", err)
	}

	xray.Configure(xray.Config{
		ServiceVersion:         "1.0",
		ContextMissingStrategy: ctxmissing.NewDefaultLogErrorStrategy(),
	})

	// Initialize services
	registry, err := services.LoadAssetRegistry(assetsFile)
	if err != nil {
		log.Fatalf("Failed to load asset definitions: %v", err)
	}
	log.Printf("Loaded %d assets from %s", len(registry.List()), assetsFile)

	dbService, err := services.NewDBService(dbHost, dbPort, dbUser, dbPassword, dbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbService.Close()

	// Initialize database schema
	if err := dbService.InitSchema(context.Background()); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}
	log.Println("Database schema initialized")

	// Initialize storage service
	storageService, err := services.NewStorageService(storageType, storagePath, minioCfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage service: %v", err)
	}
	log.Printf("Storage service initialized: %s (%s)", storageType, storagePath)

	// Initialize Redis service
	redisService := services.NewRedisService(redisHost, redisPort)
	defer redisService.Close()

	pingCtx, seg := xray.BeginSegment(context.Background(), "pipes-runner-startup")
	if err := redisService.Ping(pingCtx); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	seg.Close(nil)

	client := runner.New(runner.Config{
		Timeout: timeout,
		Stdout:  log.Writer(),
		OnMessage: func(runID string, msg *pipes.Message) {
			if msg.Method != pipes.MethodLog {
				return
			}
			var level, text string
			msg.Param("level", &level)
			msg.Param("message", &text)
			log.Printf("runner: run %s: [%s] %s", runID, level, text)
		},
	})

	assetService := services.NewAssetService(registry, dbService, storageService, redisService, client)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := services.NewDispatcher(assetService, redisService, concurrency)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	scheduleService := services.NewScheduleService(registry, dbService)
	scheduleRunner := services.NewScheduleRunner(scheduleService, assetService)
	scheduleRunner.Start(ctx)
	defer scheduleRunner.Stop()

	// Initialize handlers
	assetHandler := handlers.NewAssetHandler(assetService)
	scheduleHandler := handlers.NewScheduleHandler(scheduleService)

	app := newApp(assetHandler, scheduleHandler)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	log.Printf("Pipes Runner starting on port %s", serverPort)
	log.Printf("Database: %s:%d/%s", dbHost, dbPort, dbName)
	log.Printf("Redis: %s:%d", redisHost, redisPort)
	if err := app.Listen(":" + serverPort); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}

// newApp builds the fiber app with its middleware and routes
func newApp(assetHandler *handlers.AssetHandler, scheduleHandler *handlers.ScheduleHandler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Pipes Runner",
	})

	// Middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))
	app.Use(middleware.XRayMiddleware("pipes-runner"))

	// Swagger
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Health endpoints
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "UP"})
	})

	// API routes
	api := app.Group("/api")
	assetHandler.Register(api)
	scheduleHandler.Register(api)

	return app
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
