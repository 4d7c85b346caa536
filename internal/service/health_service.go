package service

import (
	"sync"
	"time"

	"github.com/brokerx/marketfeed/internal/models"
	"github.com/brokerx/marketfeed/pkg/utils/zaplogger"
)

// Per-symbol data freshness states
const (
	SymbolHealthy  = "HEALTHY"
	SymbolStale    = "STALE"
	SymbolCritical = "CRITICAL"
)

// Overall system states
const (
	SystemNormal   = "NORMAL"
	SystemDegraded = "DEGRADED"
	SystemCritical = "CRITICAL"
)

type symbolHealth struct {
	lastUpdate  time.Time
	updateCount int64
	status      string
}

// SymbolHealthJSON is the per-symbol section of the health report
type SymbolHealthJSON struct {
	Status      string `json:"status"`
	LastUpdate  string `json:"lastUpdate"`
	UpdateCount int64  `json:"updateCount"`
}

// HealthReport is the response of the health endpoint
type HealthReport struct {
	Status              string                      `json:"status"`
	Symbols             map[string]SymbolHealthJSON `json:"symbols"`
	ActiveSubscriptions int                         `json:"activeSubscriptions"`
	Timestamp           string                      `json:"timestamp"`
}

// HealthService tracks per-symbol data freshness from the tick stream and
// derives an overall system status
type HealthService struct {
	mu            sync.Mutex
	staleAfter    time.Duration
	criticalAfter time.Duration
	symbols       map[string]*symbolHealth
	systemStatus  string
}

// NewHealthService creates a health service with the given staleness thresholds
func NewHealthService(staleAfter, criticalAfter time.Duration) *HealthService {
	return &HealthService{
		staleAfter:    staleAfter,
		criticalAfter: criticalAfter,
		symbols:       make(map[string]*symbolHealth),
		systemStatus:  SystemNormal,
	}
}

// RecordUpdate marks a symbol as freshly updated
func (s *HealthService) RecordUpdate(symbol string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	health, ok := s.symbols[symbol]
	if !ok {
		health = &symbolHealth{status: SymbolHealthy}
		s.symbols[symbol] = health
	}
	health.lastUpdate = at
	health.updateCount++
	if health.status != SymbolHealthy {
		health.status = SymbolHealthy
		zaplogger.Info("Symbol returned to healthy status", zaplogger.Fields{
			"symbol": symbol,
		})
	}
}

// CheckHealth re-evaluates every symbol's freshness and the system status.
// Invoked from the tick engine schedule.
func (s *HealthService) CheckHealth() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	staleCount := 0
	criticalCount := 0

	for symbol, health := range s.symbols {
		age := now.Sub(health.lastUpdate)
		previous := health.status
		switch {
		case age >= s.criticalAfter:
			health.status = SymbolCritical
			criticalCount++
		case age >= s.staleAfter:
			health.status = SymbolStale
			staleCount++
		default:
			health.status = SymbolHealthy
		}
		if health.status != previous && health.status != SymbolHealthy {
			zaplogger.Warn("Symbol data is not fresh", zaplogger.Fields{
				"symbol":  symbol,
				"status":  health.status,
				"age_sec": int(age.Seconds()),
			})
		}
	}

	previous := s.systemStatus
	switch {
	case criticalCount > 0 && criticalCount >= len(s.symbols)/2:
		s.systemStatus = SystemCritical
	case criticalCount > 0 || staleCount > 0:
		s.systemStatus = SystemDegraded
	default:
		s.systemStatus = SystemNormal
	}
	if s.systemStatus != previous {
		zaplogger.Warn("System health status changed", zaplogger.Fields{
			"from": previous,
			"to":   s.systemStatus,
		})
	}
}

// Report returns a point-in-time health report
func (s *HealthService) Report(activeSubscriptions int) HealthReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbols := make(map[string]SymbolHealthJSON, len(s.symbols))
	for symbol, health := range s.symbols {
		symbols[symbol] = SymbolHealthJSON{
			Status:      health.status,
			LastUpdate:  models.FormatTimestamp(health.lastUpdate),
			UpdateCount: health.updateCount,
		}
	}

	return HealthReport{
		Status:              s.systemStatus,
		Symbols:             symbols,
		ActiveSubscriptions: activeSubscriptions,
		Timestamp:           models.FormatTimestamp(time.Now()),
	}
}
