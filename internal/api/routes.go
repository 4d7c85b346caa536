// Package api contains the API routes for the Market Feed Service
package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/brokerx/marketfeed/internal/api/handlers"
	"github.com/brokerx/marketfeed/internal/config"
	"github.com/brokerx/marketfeed/internal/repository"
	"github.com/brokerx/marketfeed/internal/service"
)

// SetupRoutes configures the routes for the API
func SetupRoutes(
	e *echo.Echo,
	cfg *config.Config,
	marketService *service.MarketService,
	healthService *service.HealthService,
	subscriptionRepo *repository.SubscriptionRepository,
	wsHandler *handlers.WSHandler,
) {
	// Index route
	e.GET("/api", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"service": fmt.Sprintf("%s %s", cfg.APIName, cfg.APIVersion),
		})
	})

	// Public market data routes
	marketHandler := handlers.NewMarketHandler(marketService, healthService, subscriptionRepo)
	marketGroup := e.Group("/api/v1/market")
	marketGroup.GET("/data", marketHandler.GetAllMarketData)
	marketGroup.GET("/data/:symbol", marketHandler.GetMarketData)
	marketGroup.GET("/symbols", marketHandler.GetSymbols)
	marketGroup.GET("/health", marketHandler.GetHealth)

	// Internal service-to-service routes
	stockHandler := handlers.NewStockHandler(marketService)
	stockGroup := e.Group("/internal/stock")
	stockGroup.GET("/:symbol", stockHandler.ValidateStock)
	stockGroup.GET("/id/:stockId", stockHandler.GetStockByID)

	// Real-time channel
	e.GET("/ws/market", wsHandler.HandleWebSocket)
}
