package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/brokerx/marketfeed/internal/models"
	"github.com/brokerx/marketfeed/pkg/utils/zaplogger"
	"github.com/shopspring/decimal"
)

// CanonicalSymbol normalizes a symbol to its canonical upper-case form
func CanonicalSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// CatalogRepository owns the mutable quote table keyed by canonical symbol
type CatalogRepository struct {
	mu     sync.RWMutex
	quotes map[string]models.Quote
}

// NewCatalogRepository creates an empty catalog
func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		quotes: make(map[string]models.Quote),
	}
}

// seedQuote is one entry of the seed JSON array
type seedQuote struct {
	ID        int64           `json:"id"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	LastPrice decimal.Decimal `json:"lastPrice"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Volume    int64           `json:"volume"`
}

// LoadSeedFile loads the catalog from a JSON seed file. A missing or
// unreadable file is an error; malformed entries are logged and skipped.
func (r *CatalogRepository) LoadSeedFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var rawEntries []json.RawMessage
	if err := json.Unmarshal(data, &rawEntries); err != nil {
		return 0, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	now := time.Now()
	loaded := 0

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, raw := range rawEntries {
		var entry seedQuote
		if err := json.Unmarshal(raw, &entry); err != nil {
			zaplogger.Warn("Skipping malformed seed entry", zaplogger.Fields{
				"index": i,
				"error": err.Error(),
			})
			continue
		}

		symbol := CanonicalSymbol(entry.Symbol)
		if symbol == "" || entry.ID <= 0 {
			zaplogger.Warn("Skipping invalid seed entry", zaplogger.Fields{
				"index":  i,
				"symbol": entry.Symbol,
				"id":     entry.ID,
			})
			continue
		}

		volume := entry.Volume
		if volume < 0 {
			volume = 0
		}

		r.quotes[symbol] = models.Quote{
			ID:        entry.ID,
			Symbol:    symbol,
			Name:      entry.Name,
			LastPrice: entry.LastPrice,
			Bid:       entry.Bid,
			Ask:       entry.Ask,
			Volume:    volume,
			Timestamp: now,
		}
		loaded++
	}

	return loaded, nil
}

// Get returns the quote for a symbol, canonicalizing the argument first
func (r *CatalogRepository) Get(symbol string) (models.Quote, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	quote, ok := r.quotes[CanonicalSymbol(symbol)]
	return quote, ok
}

// GetByID returns the quote with the given numeric id.
// Linear scan: the catalog holds at most a few hundred entries.
func (r *CatalogRepository) GetByID(id int64) (models.Quote, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, quote := range r.quotes {
		if quote.ID == id {
			return quote, true
		}
	}
	return models.Quote{}, false
}

// Has reports whether a symbol is present in the catalog
func (r *CatalogRepository) Has(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.quotes[CanonicalSymbol(symbol)]
	return ok
}

// Snapshot returns a point-in-time copy of the quote table
func (r *CatalogRepository) Snapshot() map[string]models.Quote {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make(map[string]models.Quote, len(r.quotes))
	for symbol, quote := range r.quotes {
		snapshot[symbol] = quote
	}
	return snapshot
}

// Mutate applies fn to the quote for a symbol under the catalog lock.
// Readers see either the pre- or post-mutation record, never a torn one.
func (r *CatalogRepository) Mutate(symbol string, fn func(models.Quote) models.Quote) {
	canonical := CanonicalSymbol(symbol)
	r.mu.Lock()
	defer r.mu.Unlock()
	quote, ok := r.quotes[canonical]
	if !ok {
		return
	}
	r.quotes[canonical] = fn(quote)
}

// Count returns the number of catalog entries
func (r *CatalogRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.quotes)
}
