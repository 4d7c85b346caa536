// Package models contains the models for the Market Feed Service
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the ISO-8601 local date-time layout used on the wire.
// No timezone suffix, trailing zeros in the fraction are trimmed.
const TimestampLayout = "2006-01-02T15:04:05.999999999"

// FormatTimestamp formats a wall-clock time for the wire
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Quote represents the market state of one tradable instrument
type Quote struct {
	ID        int64
	Symbol    string
	Name      string
	LastPrice decimal.Decimal
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	Volume    int64
	Timestamp time.Time
}

// Spread returns ask minus bid, or zero when either side is absent
func (q Quote) Spread() decimal.Decimal {
	if q.Bid.IsZero() || q.Ask.IsZero() {
		return decimal.Zero
	}
	return q.Ask.Sub(q.Bid)
}

// MidPrice returns (bid+ask)/2, falling back to lastPrice, then zero
func (q Quote) MidPrice() decimal.Decimal {
	if !q.Bid.IsZero() && !q.Ask.IsZero() {
		return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
	}
	return q.LastPrice
}

// QuoteJSON is the REST representation of a quote
type QuoteJSON struct {
	ID        int64   `json:"id"`
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	LastPrice float64 `json:"lastPrice"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Volume    int64   `json:"volume"`
	Timestamp string  `json:"timestamp"`
}

// ToJSON converts a quote to its REST representation
func (q Quote) ToJSON() QuoteJSON {
	return QuoteJSON{
		ID:        q.ID,
		Symbol:    q.Symbol,
		Name:      q.Name,
		LastPrice: q.LastPrice.InexactFloat64(),
		Bid:       q.Bid.InexactFloat64(),
		Ask:       q.Ask.InexactFloat64(),
		Volume:    q.Volume,
		Timestamp: FormatTimestamp(q.Timestamp),
	}
}

// QuoteRecord is the per-symbol record carried in broadcast envelopes
type QuoteRecord struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	LastPrice float64 `json:"lastPrice"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Spread    float64 `json:"spread"`
	MidPrice  float64 `json:"midPrice"`
	Volume    int64   `json:"volume"`
	Timestamp string  `json:"timestamp"`
	Status    string  `json:"status"`
}

// ToRecord converts a quote to a broadcast record with the given status
func (q Quote) ToRecord(status string) QuoteRecord {
	return QuoteRecord{
		Symbol:    q.Symbol,
		Name:      q.Name,
		LastPrice: q.LastPrice.InexactFloat64(),
		Bid:       q.Bid.InexactFloat64(),
		Ask:       q.Ask.InexactFloat64(),
		Spread:    q.Spread().InexactFloat64(),
		MidPrice:  q.MidPrice().InexactFloat64(),
		Volume:    q.Volume,
		Timestamp: FormatTimestamp(q.Timestamp),
		Status:    status,
	}
}

// StockJSON is the minimal record served to internal services
type StockJSON struct {
	ID           int64   `json:"id"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	CurrentPrice float64 `json:"currentPrice"`
}

// ToStockJSON converts a quote to its internal stock representation
func (q Quote) ToStockJSON() StockJSON {
	return StockJSON{
		ID:           q.ID,
		Symbol:       q.Symbol,
		Name:         q.Name,
		CurrentPrice: q.LastPrice.InexactFloat64(),
	}
}

// Snapshot is the immutable output of one broadcast tick
type Snapshot struct {
	Quotes    map[string]Quote
	Timestamp string
}

// Envelope types for broadcast and subscription reply messages
const (
	TypeMarketData          = "market_data"
	TypeBulkMarketData      = "bulk_market_data"
	TypeSubscriptionSuccess = "subscription_success"
	TypeSubscriptionError   = "subscription_error"
)

// Envelope is the JSON message wrapper delivered over the transport
type Envelope struct {
	Type      string      `json:"type"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}
