// Package main is the entry point for the Market Feed Service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/brokerx/marketfeed/internal/api"
	"github.com/brokerx/marketfeed/internal/api/handlers"
	"github.com/brokerx/marketfeed/internal/api/middleware"
	"github.com/brokerx/marketfeed/internal/config"
	"github.com/brokerx/marketfeed/internal/repository"
	"github.com/brokerx/marketfeed/internal/service"
	"github.com/brokerx/marketfeed/internal/transport"
	"github.com/brokerx/marketfeed/pkg/utils/zaplogger"
)

func main() {
	// Load .env if present
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Get()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Print the configuration
	fmt.Println(cfg.String())

	// Setup logger
	defer zaplogger.Sync()
	zaplogger.SetLogLevel(cfg.ServerLogLevel)

	// startUpMessage
	zaplogger.Info(cfg.APIName + " - " + cfg.APIVersion + " initialized")

	// Load the instrument catalog; a missing seed file is fatal
	catalogRepo := repository.NewCatalogRepository()
	loaded, err := catalogRepo.LoadSeedFile(cfg.SeedFile)
	if err != nil {
		zaplogger.Fatal("Failed to load market seed", zaplogger.Fields{
			"file":  cfg.SeedFile,
			"error": err.Error(),
		})
	}
	zaplogger.Info("Loaded market symbols", zaplogger.Fields{"count": loaded})

	// Connect the optional Redis tick mirror
	redisClient, err := repository.ConnectRedis(cfg)
	if err != nil {
		zaplogger.Fatal("Failed to connect to Redis", zaplogger.Fields{
			"addr":  cfg.RedisAddr,
			"error": err.Error(),
		})
	}
	var publishService *service.PublishService
	if redisClient != nil {
		publishService = service.NewPublishService(redisClient, cfg.RedisTicksChannel)
		zaplogger.Info("Redis tick mirror initialized")
	}

	// Authenticator
	authService, err := service.NewAuthService(cfg.JWTSecret)
	if err != nil {
		zaplogger.Fatal("Failed to initialize authenticator", zaplogger.Fields{
			"error": err.Error(),
		})
	}

	// Wire the core services
	subscriptionRepo := repository.NewSubscriptionRepository(time.Duration(cfg.SubscriptionTimeoutMin) * time.Minute)
	hub := transport.NewHub()
	broadcastService := service.NewBroadcastService(hub, subscriptionRepo, publishService)
	quotaService := service.NewQuotaService(cfg.QuotaMaxSymbols, cfg.QuotaMaxConnections, cfg.RateLimitPerMinute)
	subscriptionService := service.NewSubscriptionService(catalogRepo, subscriptionRepo, broadcastService, quotaService)
	marketService := service.NewMarketService(catalogRepo)
	healthService := service.NewHealthService(
		time.Duration(cfg.HealthStaleSec)*time.Second,
		time.Duration(cfg.HealthCriticalSec)*time.Second,
	)
	simulator := service.NewPriceSimulator(cfg.SimulationVolatility, time.Now().UnixNano())

	// Create a new Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Setup middleware
	middleware.SetupLoggerMiddleware(e)

	// Setup routes
	wsHandler := handlers.NewWSHandler(hub, authService, subscriptionService, quotaService)
	api.SetupRoutes(e, cfg, marketService, healthService, subscriptionRepo, wsHandler)

	// Setup and start the tick engine
	tickService := service.NewTickService(cfg, catalogRepo, subscriptionRepo, simulator, broadcastService, healthService)
	if err := tickService.Start(); err != nil {
		zaplogger.Fatal("Failed to start tick service", zaplogger.Fields{
			"error": err.Error(),
		})
	}

	// Start the server
	go startServer(e, cfg)

	// Wait for shutdown and let the in-flight tick complete
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zaplogger.Info("Shutting down")
	<-tickService.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		zaplogger.Error("Server shutdown error", zaplogger.Fields{
			"error": err.Error(),
		})
	}
}

// startServer starts the Echo server on the specified port
func startServer(e *echo.Echo, cfg *config.Config) {
	port := cfg.ServerPort
	if port == "" {
		port = "3009"
	}
	zaplogger.Info("SERVER STARTED ON PORT " + port)
	if err := e.Start(":" + port); err != nil {
		zaplogger.Info("Server stopped", zaplogger.Fields{"error": err.Error()})
	}
}
