package service

import (
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// QuotaService tracks per-user symbol and connection quotas and applies a
// per-session request rate limit. Symbol counts accumulate across a user's
// sessions; the quota bounds the user's total, not each session's.
type QuotaService struct {
	mu                sync.Mutex
	maxSymbolsPerUser int
	maxConnsPerUser   int
	requestsPerMinute int
	sessionSymbols    map[string]int
	sessionUsers      map[string]string
	userSymbols       map[string]int
	connectionCounts  map[string]int
	sessionLimiters   map[string]*rate.Limiter
}

// NewQuotaService creates a new quota service
func NewQuotaService(maxSymbolsPerUser, maxConnsPerUser, requestsPerMinute int) *QuotaService {
	return &QuotaService{
		maxSymbolsPerUser: maxSymbolsPerUser,
		maxConnsPerUser:   maxConnsPerUser,
		requestsPerMinute: requestsPerMinute,
		sessionSymbols:    make(map[string]int),
		sessionUsers:      make(map[string]string),
		userSymbols:       make(map[string]int),
		connectionCounts:  make(map[string]int),
		sessionLimiters:   make(map[string]*rate.Limiter),
	}
}

// CheckRateLimit consumes one request from the session's limiter
func (s *QuotaService) CheckRateLimit(sessionID string) error {
	s.mu.Lock()
	limiter, ok := s.sessionLimiters[sessionID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(s.requestsPerMinute)/60.0), s.requestsPerMinute)
		s.sessionLimiters[sessionID] = limiter
	}
	s.mu.Unlock()

	if !limiter.Allow() {
		return fmt.Errorf("Rate limit exceeded. Maximum: %d requests per minute", s.requestsPerMinute)
	}
	return nil
}

// CheckSymbolQuota verifies the user's total would stay within the quota if
// the session's symbol count became sessionTotal
func (s *QuotaService) CheckSymbolQuota(userID, sessionID string, sessionTotal int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	projected := s.userSymbols[userID] - s.sessionSymbols[sessionID] + sessionTotal
	if projected > s.maxSymbolsPerUser {
		return fmt.Errorf("Symbol quota exceeded. Maximum allowed: %d", s.maxSymbolsPerUser)
	}
	return nil
}

// SetSymbolCount records a session's current symbol count and folds the
// delta into the owning user's total
func (s *QuotaService) SetSymbolCount(userID, sessionID string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setSymbolCountLocked(userID, sessionID, count)
}

func (s *QuotaService) setSymbolCountLocked(userID, sessionID string, count int) {
	s.userSymbols[userID] += count - s.sessionSymbols[sessionID]
	if s.userSymbols[userID] <= 0 {
		delete(s.userSymbols, userID)
	}
	if count <= 0 {
		delete(s.sessionSymbols, sessionID)
		delete(s.sessionUsers, sessionID)
		return
	}
	s.sessionSymbols[sessionID] = count
	s.sessionUsers[sessionID] = userID
}

// AcquireConnection reserves a connection slot for the user
func (s *QuotaService) AcquireConnection(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectionCounts[userID] >= s.maxConnsPerUser {
		return fmt.Errorf("Connection quota exceeded. Maximum allowed: %d", s.maxConnsPerUser)
	}
	s.connectionCounts[userID]++
	return nil
}

// ReleaseConnection returns the user's connection slot
func (s *QuotaService) ReleaseConnection(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectionCounts[userID] > 0 {
		s.connectionCounts[userID]--
	}
}

// ReleaseSession drops the session's rate limiter and returns its symbols
// to the owning user's quota
func (s *QuotaService) ReleaseSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessionLimiters, sessionID)
	if userID, ok := s.sessionUsers[sessionID]; ok {
		s.setSymbolCountLocked(userID, sessionID, 0)
	}
}
