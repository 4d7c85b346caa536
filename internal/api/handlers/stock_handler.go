package handlers

import (
	"net/http"
	"strconv"

	"github.com/brokerx/marketfeed/internal/service"
	"github.com/brokerx/marketfeed/pkg/utils/response"
	"github.com/brokerx/marketfeed/pkg/utils/zaplogger"
	"github.com/labstack/echo/v4"
)

// StockHandler serves the internal stock lookup endpoints used by other
// services. These routes are not meant to be publicly exposed.
type StockHandler struct {
	marketService *service.MarketService
}

// NewStockHandler creates a new stock handler
func NewStockHandler(marketService *service.MarketService) *StockHandler {
	return &StockHandler{marketService: marketService}
}

// ValidateStock checks that a symbol exists and returns its stock record
func (h *StockHandler) ValidateStock(c echo.Context) error {
	symbol := c.Param("symbol")
	stock, ok := h.marketService.GetStock(symbol)
	if !ok {
		zaplogger.Warn("Stock symbol not found", zaplogger.Fields{
			"symbol": symbol,
		})
		return c.NoContent(http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, stock)
}

// GetStockByID returns the stock record for a numeric id
func (h *StockHandler) GetStockByID(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("stockId"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid stock id: "+c.Param("stockId"))
	}

	stock, ok := h.marketService.GetStockByID(id)
	if !ok {
		zaplogger.Warn("Stock id not found", zaplogger.Fields{
			"stock_id": id,
		})
		return c.NoContent(http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, stock)
}
