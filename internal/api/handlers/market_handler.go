// Package handlers contains the handlers for the API
package handlers

import (
	"net/http"

	"github.com/brokerx/marketfeed/internal/repository"
	"github.com/brokerx/marketfeed/internal/service"
	"github.com/labstack/echo/v4"
)

// MarketHandler serves the public market data endpoints
type MarketHandler struct {
	marketService    *service.MarketService
	healthService    *service.HealthService
	subscriptionRepo *repository.SubscriptionRepository
}

// NewMarketHandler creates a new market handler
func NewMarketHandler(marketService *service.MarketService, healthService *service.HealthService, subscriptionRepo *repository.SubscriptionRepository) *MarketHandler {
	return &MarketHandler{
		marketService:    marketService,
		healthService:    healthService,
		subscriptionRepo: subscriptionRepo,
	}
}

// GetAllMarketData returns the full symbol to quote map
func (h *MarketHandler) GetAllMarketData(c echo.Context) error {
	return c.JSON(http.StatusOK, h.marketService.GetAllMarketData())
}

// GetMarketData returns the quote for one symbol
func (h *MarketHandler) GetMarketData(c echo.Context) error {
	quote, ok := h.marketService.GetMarketData(c.Param("symbol"))
	if !ok {
		return c.NoContent(http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, quote)
}

// GetSymbols returns the set of available symbols
func (h *MarketHandler) GetSymbols(c echo.Context) error {
	symbols := h.marketService.GetSymbols()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"symbols": symbols,
		"count":   len(symbols),
	})
}

// GetHealth returns the market data health report
func (h *MarketHandler) GetHealth(c echo.Context) error {
	report := h.healthService.Report(h.subscriptionRepo.ActiveCount())
	return c.JSON(http.StatusOK, report)
}
