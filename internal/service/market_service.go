package service

import (
	"github.com/brokerx/marketfeed/internal/models"
	"github.com/brokerx/marketfeed/internal/repository"
)

// MarketService is the read-through lookup service over the catalog
type MarketService struct {
	catalogRepo *repository.CatalogRepository
}

// NewMarketService creates a new market service
func NewMarketService(catalogRepo *repository.CatalogRepository) *MarketService {
	return &MarketService{catalogRepo: catalogRepo}
}

// GetAllMarketData returns a copy of the full symbol to quote map
func (s *MarketService) GetAllMarketData() map[string]models.QuoteJSON {
	snapshot := s.catalogRepo.Snapshot()
	result := make(map[string]models.QuoteJSON, len(snapshot))
	for symbol, quote := range snapshot {
		result[symbol] = quote.ToJSON()
	}
	return result
}

// GetMarketData returns the quote for a symbol
func (s *MarketService) GetMarketData(symbol string) (models.QuoteJSON, bool) {
	quote, ok := s.catalogRepo.Get(symbol)
	if !ok {
		return models.QuoteJSON{}, false
	}
	return quote.ToJSON(), true
}

// GetSymbols returns the set of available symbols
func (s *MarketService) GetSymbols() []string {
	snapshot := s.catalogRepo.Snapshot()
	symbols := make([]string, 0, len(snapshot))
	for symbol := range snapshot {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// GetStock returns the minimal stock record for a symbol
func (s *MarketService) GetStock(symbol string) (models.StockJSON, bool) {
	quote, ok := s.catalogRepo.Get(symbol)
	if !ok {
		return models.StockJSON{}, false
	}
	return quote.ToStockJSON(), true
}

// GetStockByID returns the minimal stock record for a numeric id
func (s *MarketService) GetStockByID(id int64) (models.StockJSON, bool) {
	quote, ok := s.catalogRepo.GetByID(id)
	if !ok {
		return models.StockJSON{}, false
	}
	return quote.ToStockJSON(), true
}

// IsSymbolAvailable reports whether a symbol exists in the catalog
func (s *MarketService) IsSymbolAvailable(symbol string) bool {
	return s.catalogRepo.Has(symbol)
}
