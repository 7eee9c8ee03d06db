package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jaredcannon/clusterview/internal/api"
	"github.com/jaredcannon/clusterview/internal/config"
	"github.com/jaredcannon/clusterview/internal/middleware"
	"github.com/jaredcannon/clusterview/internal/models"
	"github.com/jaredcannon/clusterview/internal/services"
	"github.com/jaredcannon/clusterview/internal/websocket"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// initDB initializes the database connection and runs migrations
func initDB(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.ClusterSample{}); err != nil {
		return nil, err
	}

	log.Printf("📦 Database initialized at %s", dbPath)
	return db, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "token":
			if len(os.Args) != 3 {
				log.Fatalf("usage: %s token <username>", os.Args[0])
			}
			printToken(cfg, os.Args[2])
			return
		default:
			log.Fatalf("unknown command %q (expected: token)", os.Args[1])
		}
	}

	serve(cfg)
}

func printToken(cfg *config.Config, username string) {
	if cfg.AppKey == "" {
		log.Printf("⚠️  APP_KEY is not set, signing with the development key")
	}
	token, err := middleware.GenerateToken(username, cfg.AppKey)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}
	fmt.Println(token)
}

func serve(cfg *config.Config) {
	db, err := initDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database connection: %v", err)
	}
	defer sqlDB.Close()

	// Credentials are optional, the endpoint may be unauthenticated
	credService, err := services.NewCredentialService()
	if err != nil {
		log.Printf("⚠️  Credential service unavailable, endpoint requests will be unauthenticated: %v", err)
		credService = nil
	} else {
		log.Printf("🔐 Credential service initialized")
	}

	source := services.NewHTTPSnapshotSource(cfg.MonitorURL, cfg.FetchTimeout, credService)
	monitor := services.NewClusterMonitorService(db, source, &services.ClusterMonitorConfig{
		PollInterval:    cfg.PollInterval,
		FetchTimeout:    cfg.FetchTimeout,
		RetentionPeriod: cfg.RetentionPeriod,
	})

	var configLoader *services.ClusterConfigLoader
	if cfg.ClusterConfigPath != "" {
		configLoader = services.NewClusterConfigLoader(cfg.ClusterConfigPath)
	}

	wsHub := websocket.NewHub()
	go wsHub.Run()
	monitor.SetBroadcastFunc(wsHub.Broadcast)
	log.Printf("🔌 WebSocket hub initialized")

	if err := monitor.Start(); err != nil {
		log.Fatalf("Failed to start cluster monitor: %v", err)
	}
	log.Printf("📡 Polling %s every %v", source.BaseURL(), cfg.PollInterval)

	app := newApp(cfg, monitor, configLoader, credService, wsHub, source.BaseURL())

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Printf("🛑 Shutting down")
		if err := monitor.Stop(); err != nil {
			log.Printf("Error stopping cluster monitor: %v", err)
		}
		wsHub.Shutdown()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}
	}()

	log.Printf("🚀 Server starting on port %s (%s)", cfg.Port, cfg.Env)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the fiber app with middleware and every route
func newApp(cfg *config.Config, monitor *services.ClusterMonitorService, configLoader *services.ClusterConfigLoader, credService *services.CredentialService, wsHub *websocket.Hub, endpoint string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "clusterview",
	})

	app.Use(recover.New())
	app.Use(logger.New())
	if !cfg.IsProduction() {
		app.Use(cors.New(cors.Config{
			AllowOrigins: "*",
			AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		}))
	}

	apiGroup := app.Group("/api/v1")
	api.NewHealthHandler(monitor, wsHub).RegisterRoutes(apiGroup)

	var clusterMiddleware []fiber.Handler
	if cfg.RequireAuth {
		if cfg.AppKey == "" {
			log.Printf("⚠️  REQUIRE_AUTH is set without APP_KEY, tokens use the development key")
		}
		clusterMiddleware = append(clusterMiddleware, middleware.AuthMiddleware(cfg.AppKey))
	}
	api.NewClusterHandler(monitor, configLoader, credService, endpoint).RegisterRoutes(apiGroup, clusterMiddleware...)

	api.NewWebSocketHandler(wsHub).RegisterRoutes(app)
	api.RegisterMetricsRoute(app)

	return app
}
