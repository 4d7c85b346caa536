package repository

import (
	"sync"
	"time"

	"github.com/brokerx/marketfeed/internal/models"
	"github.com/brokerx/marketfeed/pkg/utils/zaplogger"
)

// SubscriptionRepository owns the session->subscription table and the
// symbol->sessions reverse index. Both tables are guarded by one mutex so
// cross-table updates for a session appear atomic to readers of either.
type SubscriptionRepository struct {
	mu        sync.RWMutex
	bySession map[string]*models.Subscription
	bySymbol  map[string]map[string]struct{}
	timeout   time.Duration
	now       func() time.Time
}

// NewSubscriptionRepository creates an empty index with the given liveness window
func NewSubscriptionRepository(timeout time.Duration) *SubscriptionRepository {
	return &SubscriptionRepository{
		bySession: make(map[string]*models.Subscription),
		bySymbol:  make(map[string]map[string]struct{}),
		timeout:   timeout,
		now:       time.Now,
	}
}

// SetClock overrides the wall clock. Used by tests.
func (r *SubscriptionRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Subscribe creates a subscription for the session or replaces its symbol
// set wholesale. An empty symbol set is a defensive no-op.
func (r *SubscriptionRepository) Subscribe(sessionID, userID string, symbols []string) {
	canonical := canonicalSet(symbols)
	if len(canonical) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	sub, ok := r.bySession[sessionID]
	if !ok {
		sub = &models.Subscription{
			SessionID:         sessionID,
			UserID:            userID,
			SubscribedSymbols: canonical,
			CreatedAt:         now,
			LastActivity:      now,
			Active:            true,
		}
		r.bySession[sessionID] = sub
		zaplogger.Info("Created subscription", zaplogger.Fields{
			"session_id": sessionID,
			"symbols":    symbols,
		})
	} else {
		for symbol := range sub.SubscribedSymbols {
			r.removeReverse(symbol, sessionID)
		}
		sub.SubscribedSymbols = canonical
		sub.UpdateActivity(now)
		zaplogger.Info("Replaced subscription", zaplogger.Fields{
			"session_id": sessionID,
			"symbols":    symbols,
		})
	}

	for symbol := range canonical {
		r.addReverse(symbol, sessionID)
	}
}

// AddSymbols unions symbols into an existing active subscription
func (r *SubscriptionRepository) AddSymbols(sessionID string, symbols []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.bySession[sessionID]
	if !ok || !sub.Active {
		return
	}
	for symbol := range canonicalSet(symbols) {
		sub.SubscribedSymbols[symbol] = struct{}{}
		r.addReverse(symbol, sessionID)
	}
	sub.UpdateActivity(r.now())
}

// RemoveSymbols removes symbols from an existing active subscription
func (r *SubscriptionRepository) RemoveSymbols(sessionID string, symbols []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.bySession[sessionID]
	if !ok || !sub.Active {
		return
	}
	for symbol := range canonicalSet(symbols) {
		delete(sub.SubscribedSymbols, symbol)
		r.removeReverse(symbol, sessionID)
	}
	sub.UpdateActivity(r.now())
}

// Remove drops the subscription and every reverse entry for it. Idempotent.
func (r *SubscriptionRepository) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(sessionID)
}

func (r *SubscriptionRepository) removeLocked(sessionID string) {
	sub, ok := r.bySession[sessionID]
	if !ok {
		return
	}
	for symbol := range sub.SubscribedSymbols {
		r.removeReverse(symbol, sessionID)
	}
	delete(r.bySession, sessionID)
}

// Deactivate marks the subscription inactive and clears its reverse entries,
// but retains the record itself
func (r *SubscriptionRepository) Deactivate(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.bySession[sessionID]
	if !ok {
		return
	}
	sub.Active = false
	for symbol := range sub.SubscribedSymbols {
		r.removeReverse(symbol, sessionID)
	}
}

// Get returns a copy of the subscription for a session
func (r *SubscriptionRepository) Get(sessionID string) (models.Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.bySession[sessionID]
	if !ok {
		return models.Subscription{}, false
	}
	copied := *sub
	copied.SubscribedSymbols = make(map[string]struct{}, len(sub.SubscribedSymbols))
	for symbol := range sub.SubscribedSymbols {
		copied.SubscribedSymbols[symbol] = struct{}{}
	}
	return copied, true
}

// SubscribersOf returns a snapshot of the sessions subscribed to a symbol
func (r *SubscriptionRepository) SubscribersOf(symbol string) map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := r.bySymbol[CanonicalSymbol(symbol)]
	snapshot := make(map[string]struct{}, len(sessions))
	for sessionID := range sessions {
		snapshot[sessionID] = struct{}{}
	}
	return snapshot
}

// Touch refreshes the last-activity timestamp if the session exists
func (r *SubscriptionRepository) Touch(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.bySession[sessionID]; ok {
		sub.UpdateActivity(r.now())
	}
}

// ActiveCount returns the number of currently valid subscriptions
func (r *SubscriptionRepository) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	count := 0
	for _, sub := range r.bySession {
		if sub.IsValid(now, r.timeout) {
			count++
		}
	}
	return count
}

// SweepExpired removes every subscription that is no longer valid
func (r *SubscriptionRepository) SweepExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for sessionID, sub := range r.bySession {
		if !sub.IsValid(now, r.timeout) {
			r.removeLocked(sessionID)
			removed++
			zaplogger.Info("Cleaned up expired subscription", zaplogger.Fields{
				"session_id": sessionID,
			})
		}
	}
	return removed
}

func (r *SubscriptionRepository) addReverse(symbol, sessionID string) {
	sessions, ok := r.bySymbol[symbol]
	if !ok {
		sessions = make(map[string]struct{})
		r.bySymbol[symbol] = sessions
	}
	sessions[sessionID] = struct{}{}
}

func (r *SubscriptionRepository) removeReverse(symbol, sessionID string) {
	sessions, ok := r.bySymbol[symbol]
	if !ok {
		return
	}
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(r.bySymbol, symbol)
	}
}

func canonicalSet(symbols []string) map[string]struct{} {
	set := make(map[string]struct{}, len(symbols))
	for _, symbol := range symbols {
		canonical := CanonicalSymbol(symbol)
		if canonical != "" {
			set[canonical] = struct{}{}
		}
	}
	return set
}
