package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/proxygrid/proxygrid/internal/config"
	"github.com/proxygrid/proxygrid/internal/control"
	"github.com/proxygrid/proxygrid/internal/crypto"
	"github.com/proxygrid/proxygrid/internal/database"
	"github.com/proxygrid/proxygrid/internal/notify"
	"github.com/proxygrid/proxygrid/internal/redis"
	"github.com/proxygrid/proxygrid/internal/routes"
	"github.com/proxygrid/proxygrid/internal/websocket"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize Redis
	if err := redis.Initialize(cfg); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// Initialize encryption for deployment environment values
	if err := crypto.Initialize(); err != nil {
		log.Fatalf("Failed to initialize encryption: %v", err)
	}

	// Control channels to managed proxy modules
	manager := control.NewManager(time.Duration(cfg.ControlTimeoutSeconds) * time.Second)

	// Change notifications fan out through Redis
	publisher := notify.NewPublisher(redis.GetClient())

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CorsOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Api-Key",
		AllowCredentials: true,
	}))

	// Setup routes
	routes.Setup(app, cfg, manager, publisher)

	// Initialize WebSocket hub
	websocket.GetHub()

	// Start Redis subscriber for WebSocket messages
	go websocket.StartRedisSubscriber(cfg)

	// Shut down cleanly on SIGINT/SIGTERM so in-flight requests finish
	// and control channels are closed
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
		manager.CloseAll()
	}()

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"status":  "error",
		"message": err.Error(),
	})
}
