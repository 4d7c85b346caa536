package service

import (
	"strings"

	"github.com/brokerx/marketfeed/internal/models"
	"github.com/brokerx/marketfeed/internal/repository"
	"github.com/brokerx/marketfeed/pkg/utils/zaplogger"
)

// Subscription actions accepted on the /app/market/subscribe destination
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionAdd         = "add"
	ActionRemove      = "remove"
)

// SubscriptionService translates transport-level events into index mutations
// and subscription replies
type SubscriptionService struct {
	catalogRepo      *repository.CatalogRepository
	subscriptionRepo *repository.SubscriptionRepository
	broadcastService *BroadcastService
	quotaService     *QuotaService
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(
	catalogRepo *repository.CatalogRepository,
	subscriptionRepo *repository.SubscriptionRepository,
	broadcastService *BroadcastService,
	quotaService *QuotaService,
) *SubscriptionService {
	return &SubscriptionService{
		catalogRepo:      catalogRepo,
		subscriptionRepo: subscriptionRepo,
		broadcastService: broadcastService,
		quotaService:     quotaService,
	}
}

// HandleSubscriptionRequest validates and dispatches one action message.
// Unexpected failures are reported to the session and never propagate.
func (s *SubscriptionService) HandleSubscriptionRequest(sessionID, userID string, request models.SubscriptionRequest) {
	defer func() {
		if r := recover(); r != nil {
			zaplogger.Error("Error processing subscription request", zaplogger.Fields{
				"session_id": sessionID,
				"panic":      r,
			})
			s.broadcastService.SendSubscriptionError(sessionID, "Internal error processing subscription")
		}
	}()

	userID = resolveUserID(userID, request.UserID)

	zaplogger.Info("Received subscription request", zaplogger.Fields{
		"session_id": sessionID,
		"user_id":    userID,
		"action":     request.Action,
		"symbols":    request.Symbols,
	})

	if err := s.quotaService.CheckRateLimit(sessionID); err != nil {
		s.broadcastService.SendSubscriptionError(sessionID, err.Error())
		return
	}

	if len(request.Symbols) == 0 {
		s.broadcastService.SendSubscriptionError(sessionID, "No symbols provided for subscription")
		return
	}

	// Canonicalize and keep only symbols present in the catalog
	filtered := make([]string, 0, len(request.Symbols))
	for _, symbol := range request.Symbols {
		canonical := repository.CanonicalSymbol(symbol)
		if s.catalogRepo.Has(canonical) {
			filtered = append(filtered, canonical)
		} else {
			zaplogger.Warn("Symbol is not available", zaplogger.Fields{
				"session_id": sessionID,
				"symbol":     canonical,
			})
		}
	}

	if len(filtered) == 0 {
		s.broadcastService.SendSubscriptionError(sessionID, "None of the requested symbols are available")
		return
	}

	action := request.Action
	if action == "" {
		action = ActionSubscribe
	}

	switch strings.ToLower(action) {
	case ActionSubscribe:
		s.handleSubscribe(sessionID, userID, filtered)
	case ActionUnsubscribe:
		s.handleUnsubscribe(sessionID, filtered)
	case ActionAdd:
		s.handleAddSymbols(sessionID, userID, filtered)
	case ActionRemove:
		s.handleRemoveSymbols(sessionID, filtered)
	default:
		s.broadcastService.SendSubscriptionError(sessionID, "Unknown action: "+action)
	}
}

func (s *SubscriptionService) handleSubscribe(sessionID, userID string, symbols []string) {
	if err := s.quotaService.CheckSymbolQuota(userID, sessionID, len(symbols)); err != nil {
		s.broadcastService.SendSubscriptionError(sessionID, err.Error())
		return
	}
	s.subscriptionRepo.Subscribe(sessionID, userID, symbols)
	s.quotaService.SetSymbolCount(userID, sessionID, len(symbols))
	s.broadcastService.SendSubscriptionSuccess(sessionID, symbols)
}

// handleUnsubscribe removes the given symbols, or the whole subscription when
// no symbols survived filtering
func (s *SubscriptionService) handleUnsubscribe(sessionID string, symbols []string) {
	if len(symbols) == 0 {
		if sub, ok := s.subscriptionRepo.Get(sessionID); ok {
			s.quotaService.SetSymbolCount(sub.UserID, sessionID, 0)
		}
		s.subscriptionRepo.Remove(sessionID)
		s.broadcastService.SendSubscriptionSuccess(sessionID, []string{"all"})
		return
	}
	s.subscriptionRepo.RemoveSymbols(sessionID, symbols)
	if sub, ok := s.subscriptionRepo.Get(sessionID); ok {
		s.quotaService.SetSymbolCount(sub.UserID, sessionID, len(sub.SubscribedSymbols))
	}
	s.broadcastService.SendSubscriptionSuccess(sessionID, symbols)
}

func (s *SubscriptionService) handleAddSymbols(sessionID, userID string, symbols []string) {
	if sub, ok := s.subscriptionRepo.Get(sessionID); ok {
		if err := s.quotaService.CheckSymbolQuota(userID, sessionID, len(sub.SubscribedSymbols)+len(symbols)); err != nil {
			s.broadcastService.SendSubscriptionError(sessionID, err.Error())
			return
		}
	}
	s.subscriptionRepo.AddSymbols(sessionID, symbols)
	if sub, ok := s.subscriptionRepo.Get(sessionID); ok {
		s.quotaService.SetSymbolCount(sub.UserID, sessionID, len(sub.SubscribedSymbols))
	}
	s.broadcastService.SendSubscriptionSuccess(sessionID, symbols)
}

func (s *SubscriptionService) handleRemoveSymbols(sessionID string, symbols []string) {
	s.subscriptionRepo.RemoveSymbols(sessionID, symbols)
	if sub, ok := s.subscriptionRepo.Get(sessionID); ok {
		s.quotaService.SetSymbolCount(sub.UserID, sessionID, len(sub.SubscribedSymbols))
	}
	s.broadcastService.SendSubscriptionSuccess(sessionID, symbols)
}

// HandleTopicSubscribe reacts to a client attaching to a market topic.
// Data arrives on the next tick; only the activity timestamp is refreshed.
func (s *SubscriptionService) HandleTopicSubscribe(sessionID, destination string) {
	if strings.HasPrefix(destination, TopicMarketPrefix) {
		s.subscriptionRepo.Touch(sessionID)
		zaplogger.Info("Session attached to market topic", zaplogger.Fields{
			"session_id":  sessionID,
			"destination": destination,
		})
	}
}

// HandleDisconnect cleans up all index state for a closed session
func (s *SubscriptionService) HandleDisconnect(sessionID string) {
	s.subscriptionRepo.Remove(sessionID)
	s.quotaService.ReleaseSession(sessionID)
	zaplogger.Info("Cleaned up subscription for disconnected session", zaplogger.Fields{
		"session_id": sessionID,
	})
}

func resolveUserID(sessionUserID, requestUserID string) string {
	if sessionUserID != "" {
		return sessionUserID
	}
	if requestUserID != "" {
		return requestUserID
	}
	return "anonymous"
}
