// Package service contains the service layer for the Market Feed Service
package service

import (
	"math"
	"math/rand"
	"time"

	"github.com/brokerx/marketfeed/internal/models"
	"github.com/shopspring/decimal"
)

// spreadBasis is the fixed half-spread basis: 0.1% of the last price
var spreadBasis = decimal.NewFromFloat(0.001)

// priceFloor keeps a simulated price from collapsing to zero or below
var priceFloor = decimal.NewFromFloat(0.01)

// PriceSimulator advances quotes with a synthetic gaussian price process.
// The RNG is not safe for concurrent use; Next must only be called from
// the tick goroutine.
type PriceSimulator struct {
	volatility float64
	rng        *rand.Rand
}

// NewPriceSimulator creates a simulator with the given per-tick volatility
func NewPriceSimulator(volatility float64, seed int64) *PriceSimulator {
	return &PriceSimulator{
		volatility: volatility,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Next produces the successor quote for one instrument.
// Rounding is half-up at 2 decimal places throughout. High volatility can
// briefly produce crossed quotes; callers tolerate that.
func (s *PriceSimulator) Next(q models.Quote, now time.Time) models.Quote {
	change := s.rng.NormFloat64() * s.volatility

	newLastPrice := q.LastPrice.
		Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(change))).
		Round(2)
	if newLastPrice.LessThanOrEqual(decimal.Zero) {
		newLastPrice = priceFloor
	}

	spread := newLastPrice.Mul(spreadBasis)
	halfSpread := spread.DivRound(decimal.NewFromInt(2), 2)

	volumeChange := int64(math.Round(s.rng.NormFloat64() * 1000))
	newVolume := q.Volume + volumeChange
	if newVolume < 0 {
		newVolume = 0
	}

	q.LastPrice = newLastPrice
	q.Bid = newLastPrice.Sub(halfSpread)
	q.Ask = newLastPrice.Add(halfSpread)
	q.Volume = newVolume
	q.Timestamp = now
	return q
}
