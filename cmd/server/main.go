package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"github.com/stemsplit/api/internal/audio"
	"github.com/stemsplit/api/internal/config"
	"github.com/stemsplit/api/internal/engine"
	"github.com/stemsplit/api/internal/handler"
	"github.com/stemsplit/api/internal/service"
	"github.com/stemsplit/api/internal/store"
	ws "github.com/stemsplit/api/internal/websocket"
	"github.com/stemsplit/api/internal/worker"
	"github.com/stemsplit/api/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Env == "development" {
		log.SetLevel(log.DebugLevel)
	}

	for _, dir := range []string{cfg.Storage.UploadsDir, cfg.Storage.OutputsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	// Job registry, the single source of truth for job state
	jobStore := store.New()

	// WebSocket hub for progress push
	hub := ws.NewHub()
	go hub.Run()

	// Pipeline components
	normalizer := audio.NewNormalizer("ffmpeg")
	invoker := engine.NewInvoker(cfg.Engine.Python, time.Duration(cfg.Engine.TimeoutMinutes)*time.Minute)

	// Services
	sweeper := service.NewRetentionSweeper(jobStore, cfg.Storage.UploadsDir, cfg.Storage.OutputsDir,
		time.Duration(cfg.Retention.TTLMinutes)*time.Minute)
	uploadService := service.NewUploadService(jobStore, sweeper, cfg.Storage.UploadsDir, cfg.Upload.MaxSizeMB<<20)
	separationService := service.NewSeparationService(jobStore, normalizer, invoker, hub, cfg.Storage.OutputsDir)

	// Background retention sweep
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweeper.Run(sweepCtx, time.Duration(cfg.Retention.SweepIntervalMinutes)*time.Minute)

	// Optional redis queue driver
	if cfg.Queue.Driver == "redis" {
		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		asynqClient := asynq.NewClient(redisOpt)
		defer asynqClient.Close()

		separationService.UseDispatcher(worker.NewAsynqDispatcher(asynqClient))
		go startWorkerServer(redisOpt, separationService)
	}

	// Initialize validator
	validate := validator.New()

	// Handlers
	uploadHandler := handler.NewUploadHandler(uploadService)
	separationHandler := handler.NewSeparationHandler(separationService, validate)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    int(cfg.Upload.MaxSizeMB+8) << 20,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api")
	api.Post("/upload", uploadHandler.Upload)
	api.Post("/separate", separationHandler.Separate)
	api.Get("/status/:fileId", separationHandler.Status)
	api.Get("/download/:fileId/:stem", separationHandler.Download)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:fileId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("fileId"))
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("Shutting down server...")
		stopSweep()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Errorf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Infof("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(redisOpt asynq.RedisClientOpt, separationService *service.SeparationService) {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		Queues: map[string]int{
			"default": 1,
		},
	})

	separationWorker := worker.NewSeparationWorker(separationService)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskTypeSeparation, separationWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Errorf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
