package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/brokerx/marketfeed/internal/models"
	"github.com/brokerx/marketfeed/internal/repository"
	"github.com/brokerx/marketfeed/pkg/utils/zaplogger"
)

// Transport destinations
const (
	TopicMarketPrefix = "/topic/market/"
	TopicMarketAll    = "/topic/market/all"
	QueueSubscription = "/queue/subscription"
	AppSubscribe      = "/app/market/subscribe"
)

// StatusLive marks broadcast records as coming from the live feed
const StatusLive = "live"

// Transport delivers opaque payloads to named destinations. Publish fans out
// to every session attached to the destination; PublishToSession targets one
// session's queue.
type Transport interface {
	Publish(destination string, payload interface{}) error
	PublishToSession(sessionID, destination string, payload interface{}) error
}

// BroadcastService builds per-symbol and bulk messages from a snapshot and
// routes them via the transport
type BroadcastService struct {
	transport        Transport
	subscriptionRepo *repository.SubscriptionRepository
	publishService   *PublishService
}

// NewBroadcastService creates a new broadcast service. publishService may be
// nil when no tick mirror is configured.
func NewBroadcastService(transport Transport, subscriptionRepo *repository.SubscriptionRepository, publishService *PublishService) *BroadcastService {
	return &BroadcastService{
		transport:        transport,
		subscriptionRepo: subscriptionRepo,
		publishService:   publishService,
	}
}

// BroadcastSnapshot delivers one tick's snapshot: a market_data envelope per
// subscribed symbol and one bulk_market_data envelope on the global topic.
// Every envelope carries the snapshot's timestamp. Delivery failures are
// logged and never abort the tick.
func (s *BroadcastService) BroadcastSnapshot(snapshot models.Snapshot) {
	if len(snapshot.Quotes) == 0 {
		return
	}

	records := make(map[string]models.QuoteRecord, len(snapshot.Quotes))
	symbols := make([]string, 0, len(snapshot.Quotes))
	for symbol, quote := range snapshot.Quotes {
		records[symbol] = quote.ToRecord(StatusLive)
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		subscribers := s.subscriptionRepo.SubscribersOf(symbol)
		if len(subscribers) == 0 {
			continue
		}
		envelope := models.Envelope{
			Type:      models.TypeMarketData,
			Data:      records[symbol],
			Timestamp: snapshot.Timestamp,
		}
		if err := s.transport.Publish(TopicMarketPrefix+symbol, envelope); err != nil {
			zaplogger.Warn("Failed to publish symbol update", zaplogger.Fields{
				"symbol": symbol,
				"error":  err.Error(),
			})
		}
	}

	bulkEnvelope := models.Envelope{
		Type:      models.TypeBulkMarketData,
		Data:      records,
		Timestamp: snapshot.Timestamp,
		Message:   fmt.Sprintf("Bulk market data update - %d symbols", len(records)),
	}
	if err := s.transport.Publish(TopicMarketAll, bulkEnvelope); err != nil {
		zaplogger.Warn("Failed to publish bulk update", zaplogger.Fields{
			"error": err.Error(),
		})
	}

	if s.publishService != nil {
		s.publishService.PublishBulkEnvelope(bulkEnvelope)
	}

	zaplogger.Debug("Synchronized broadcast completed", zaplogger.Fields{
		"symbols": len(records),
	})
}

// SendSubscriptionSuccess delivers a subscription_success envelope to the
// session's queue
func (s *BroadcastService) SendSubscriptionSuccess(sessionID string, symbols []string) {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)

	envelope := models.Envelope{
		Type:      models.TypeSubscriptionSuccess,
		Message:   fmt.Sprintf("Successfully subscribed to symbols: %v", sorted),
		Timestamp: models.FormatTimestamp(time.Now()),
	}
	if err := s.transport.PublishToSession(sessionID, QueueSubscription, envelope); err != nil {
		zaplogger.Warn("Failed to send subscription success", zaplogger.Fields{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return
	}
	zaplogger.Info("Sent subscription success", zaplogger.Fields{
		"session_id": sessionID,
		"symbols":    sorted,
	})
}

// SendSubscriptionError delivers a subscription_error envelope to the
// session's queue
func (s *BroadcastService) SendSubscriptionError(sessionID, reason string) {
	envelope := models.Envelope{
		Type:      models.TypeSubscriptionError,
		Message:   reason,
		Timestamp: models.FormatTimestamp(time.Now()),
	}
	if err := s.transport.PublishToSession(sessionID, QueueSubscription, envelope); err != nil {
		zaplogger.Warn("Failed to send subscription error", zaplogger.Fields{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return
	}
	zaplogger.Warn("Sent subscription error", zaplogger.Fields{
		"session_id": sessionID,
		"reason":     reason,
	})
}
