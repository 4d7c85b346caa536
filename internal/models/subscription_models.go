package models

import "time"

// Subscription is the record of one session's interest set
type Subscription struct {
	SessionID         string
	UserID            string
	SubscribedSymbols map[string]struct{}
	CreatedAt         time.Time
	LastActivity      time.Time
	Active            bool
}

// IsValid reports whether the subscription is live. Inactive subscriptions
// are never valid; an activity timestamp exactly `timeout` old is expired.
func (s *Subscription) IsValid(now time.Time, timeout time.Duration) bool {
	if !s.Active {
		return false
	}
	return s.LastActivity.After(now.Add(-timeout))
}

// UpdateActivity refreshes the last-activity timestamp
func (s *Subscription) UpdateActivity(now time.Time) {
	s.LastActivity = now
}

// Symbols returns a copy of the subscribed symbol set
func (s *Subscription) Symbols() []string {
	symbols := make([]string, 0, len(s.SubscribedSymbols))
	for symbol := range s.SubscribedSymbols {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// SubscriptionRequest is the payload of an /app/market/subscribe message
type SubscriptionRequest struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
	UserID  string   `json:"userId,omitempty"`
}
