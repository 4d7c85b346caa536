package service

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brokerx/marketfeed/internal/models"
	"github.com/brokerx/marketfeed/internal/repository"
)

const testSeedJSON = `[
  { "id": 1, "symbol": "AAPL", "name": "Apple Inc.", "lastPrice": 150.00, "bid": 149.95, "ask": 150.05, "volume": 1000 },
  { "id": 2, "symbol": "MSFT", "name": "Microsoft Corporation", "lastPrice": 305.20, "bid": 305.10, "ask": 305.30, "volume": 850 },
  { "id": 3, "symbol": "TSLA", "name": "Tesla Inc.", "lastPrice": 890.35, "bid": 890.20, "ask": 890.50, "volume": 950 }
]`

type capturedMessage struct {
	sessionID   string
	destination string
	payload     interface{}
}

// fakeTransport records every delivery instead of writing to sockets
type fakeTransport struct {
	published []capturedMessage
	queued    []capturedMessage
	failAll   bool
}

func (f *fakeTransport) Publish(destination string, payload interface{}) error {
	if f.failAll {
		return fmt.Errorf("transport closed")
	}
	f.published = append(f.published, capturedMessage{destination: destination, payload: payload})
	return nil
}

func (f *fakeTransport) PublishToSession(sessionID, destination string, payload interface{}) error {
	if f.failAll {
		return fmt.Errorf("transport closed")
	}
	f.queued = append(f.queued, capturedMessage{sessionID: sessionID, destination: destination, payload: payload})
	return nil
}

func (f *fakeTransport) lastQueued(t *testing.T) capturedMessage {
	t.Helper()
	require.NotEmpty(t, f.queued, "expected a queued message")
	return f.queued[len(f.queued)-1]
}

func newTestCatalog(t *testing.T) *repository.CatalogRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "market.json")
	require.NoError(t, os.WriteFile(path, []byte(testSeedJSON), 0o644))
	repo := repository.NewCatalogRepository()
	_, err := repo.LoadSeedFile(path)
	require.NoError(t, err)
	return repo
}

func newTestSubscriptionService(t *testing.T, maxSymbols, requestsPerMinute int) (*SubscriptionService, *repository.SubscriptionRepository, *fakeTransport) {
	t.Helper()
	transport := &fakeTransport{}
	subscriptionRepo := repository.NewSubscriptionRepository(5 * time.Minute)
	broadcastService := NewBroadcastService(transport, subscriptionRepo, nil)
	quotaService := NewQuotaService(maxSymbols, 5, requestsPerMinute)
	svc := NewSubscriptionService(newTestCatalog(t), subscriptionRepo, broadcastService, quotaService)
	return svc, subscriptionRepo, transport
}

func requireEnvelope(t *testing.T, msg capturedMessage) models.Envelope {
	t.Helper()
	envelope, ok := msg.payload.(models.Envelope)
	require.True(t, ok, "payload must be an envelope, got %T", msg.payload)
	return envelope
}

func TestHandleSubscribeSuccess(t *testing.T) {
	svc, repo, transport := newTestSubscriptionService(t, 10, 10)

	svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{
		Action:  "subscribe",
		Symbols: []string{"msft", "AAPL"},
	})

	sub, ok := repo.Get("sess-1")
	require.True(t, ok)
	require.Len(t, sub.SubscribedSymbols, 2)
	require.Equal(t, "alice", sub.UserID)

	msg := transport.lastQueued(t)
	require.Equal(t, "sess-1", msg.sessionID)
	require.Equal(t, QueueSubscription, msg.destination)
	envelope := requireEnvelope(t, msg)
	require.Equal(t, models.TypeSubscriptionSuccess, envelope.Type)
	require.Equal(t, "Successfully subscribed to symbols: [AAPL MSFT]", envelope.Message)
}

func TestHandleSubscribeDefaultsActionToSubscribe(t *testing.T) {
	svc, repo, _ := newTestSubscriptionService(t, 10, 10)

	svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{
		Symbols: []string{"AAPL"},
	})

	_, ok := repo.Get("sess-1")
	require.True(t, ok, "empty action must behave as subscribe")
}

func TestHandleSubscribeNoSymbols(t *testing.T) {
	svc, repo, transport := newTestSubscriptionService(t, 10, 10)

	svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{Action: "subscribe"})

	_, ok := repo.Get("sess-1")
	require.False(t, ok)
	envelope := requireEnvelope(t, transport.lastQueued(t))
	require.Equal(t, models.TypeSubscriptionError, envelope.Type)
	require.Equal(t, "No symbols provided for subscription", envelope.Message)
}

func TestHandleSubscribeAllUnknownSymbols(t *testing.T) {
	svc, repo, transport := newTestSubscriptionService(t, 10, 10)

	svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{
		Action:  "subscribe",
		Symbols: []string{"ZZZZ", "YYYY"},
	})

	_, ok := repo.Get("sess-1")
	require.False(t, ok)
	envelope := requireEnvelope(t, transport.lastQueued(t))
	require.Equal(t, models.TypeSubscriptionError, envelope.Type)
	require.Equal(t, "None of the requested symbols are available", envelope.Message)
}

func TestHandleSubscribeFiltersUnknownSymbols(t *testing.T) {
	svc, repo, transport := newTestSubscriptionService(t, 10, 10)

	svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{
		Action:  "subscribe",
		Symbols: []string{"AAPL", "ZZZZ"},
	})

	sub, ok := repo.Get("sess-1")
	require.True(t, ok)
	require.Len(t, sub.SubscribedSymbols, 1)
	require.Contains(t, sub.SubscribedSymbols, "AAPL")

	envelope := requireEnvelope(t, transport.lastQueued(t))
	require.Equal(t, models.TypeSubscriptionSuccess, envelope.Type)
	require.Equal(t, "Successfully subscribed to symbols: [AAPL]", envelope.Message)
}

func TestHandleUnknownAction(t *testing.T) {
	svc, _, transport := newTestSubscriptionService(t, 10, 10)

	svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{
		Action:  "replace",
		Symbols: []string{"AAPL"},
	})

	envelope := requireEnvelope(t, transport.lastQueued(t))
	require.Equal(t, models.TypeSubscriptionError, envelope.Type)
	require.Equal(t, "Unknown action: replace", envelope.Message)
}

func TestHandleUnsubscribeRemovesSymbols(t *testing.T) {
	svc, repo, transport := newTestSubscriptionService(t, 10, 10)

	svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{
		Action:  "subscribe",
		Symbols: []string{"AAPL", "MSFT"},
	})
	svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{
		Action:  "unsubscribe",
		Symbols: []string{"AAPL"},
	})

	sub, ok := repo.Get("sess-1")
	require.True(t, ok)
	require.NotContains(t, sub.SubscribedSymbols, "AAPL")
	require.Contains(t, sub.SubscribedSymbols, "MSFT")

	envelope := requireEnvelope(t, transport.lastQueued(t))
	require.Equal(t, models.TypeSubscriptionSuccess, envelope.Type)
}

func TestHandleAddAndRemoveSymbols(t *testing.T) {
	svc, repo, _ := newTestSubscriptionService(t, 10, 10)

	svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{
		Action:  "subscribe",
		Symbols: []string{"AAPL"},
	})
	svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{
		Action:  "add",
		Symbols: []string{"TSLA"},
	})

	sub, _ := repo.Get("sess-1")
	require.Len(t, sub.SubscribedSymbols, 2)

	svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{
		Action:  "remove",
		Symbols: []string{"aapl"},
	})

	sub, _ = repo.Get("sess-1")
	require.Len(t, sub.SubscribedSymbols, 1)
	require.Contains(t, sub.SubscribedSymbols, "TSLA")
}

func TestHandleSubscribeSymbolQuotaExceeded(t *testing.T) {
	svc, repo, transport := newTestSubscriptionService(t, 2, 10)

	svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{
		Action:  "subscribe",
		Symbols: []string{"AAPL", "MSFT", "TSLA"},
	})

	_, ok := repo.Get("sess-1")
	require.False(t, ok)
	envelope := requireEnvelope(t, transport.lastQueued(t))
	require.Equal(t, models.TypeSubscriptionError, envelope.Type)
	require.Equal(t, "Symbol quota exceeded. Maximum allowed: 2", envelope.Message)
}

func TestSymbolQuotaEnforcedAcrossUserSessions(t *testing.T) {
	svc, repo, transport := newTestSubscriptionService(t, 1, 10)

	svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{
		Action:  "subscribe",
		Symbols: []string{"AAPL"},
	})
	_, ok := repo.Get("sess-1")
	require.True(t, ok)

	// A second session of the same user must not grow the user's total
	// past the quota
	svc.HandleSubscriptionRequest("sess-2", "alice", models.SubscriptionRequest{
		Action:  "subscribe",
		Symbols: []string{"MSFT"},
	})
	_, ok = repo.Get("sess-2")
	require.False(t, ok)
	envelope := requireEnvelope(t, transport.lastQueued(t))
	require.Equal(t, models.TypeSubscriptionError, envelope.Type)
	require.Equal(t, "Symbol quota exceeded. Maximum allowed: 1", envelope.Message)

	// Another user still has their own quota
	svc.HandleSubscriptionRequest("sess-3", "bob", models.SubscriptionRequest{
		Action:  "subscribe",
		Symbols: []string{"MSFT"},
	})
	_, ok = repo.Get("sess-3")
	require.True(t, ok)
}

func TestSymbolQuotaFreedOnDisconnect(t *testing.T) {
	svc, repo, _ := newTestSubscriptionService(t, 1, 10)

	svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{
		Action:  "subscribe",
		Symbols: []string{"AAPL"},
	})
	svc.HandleDisconnect("sess-1")

	svc.HandleSubscriptionRequest("sess-2", "alice", models.SubscriptionRequest{
		Action:  "subscribe",
		Symbols: []string{"MSFT"},
	})
	_, ok := repo.Get("sess-2")
	require.True(t, ok, "disconnect must return the session's symbols to the quota")
}

func TestSymbolQuotaFollowsRemovedSymbols(t *testing.T) {
	svc, repo, _ := newTestSubscriptionService(t, 2, 10)

	svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{
		Action:  "subscribe",
		Symbols: []string{"AAPL", "MSFT"},
	})
	svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{
		Action:  "remove",
		Symbols: []string{"MSFT"},
	})

	// The freed slot is usable from another session of the same user
	svc.HandleSubscriptionRequest("sess-2", "alice", models.SubscriptionRequest{
		Action:  "subscribe",
		Symbols: []string{"TSLA"},
	})
	_, ok := repo.Get("sess-2")
	require.True(t, ok)
}

func TestHandleRequestRateLimited(t *testing.T) {
	svc, _, transport := newTestSubscriptionService(t, 10, 2)

	for i := 0; i < 3; i++ {
		svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{
			Action:  "subscribe",
			Symbols: []string{"AAPL"},
		})
	}

	envelope := requireEnvelope(t, transport.lastQueued(t))
	require.Equal(t, models.TypeSubscriptionError, envelope.Type)
	require.Equal(t, "Rate limit exceeded. Maximum: 2 requests per minute", envelope.Message)
}

func TestResolveUserIDFallsBackToPayloadThenAnonymous(t *testing.T) {
	svc, repo, _ := newTestSubscriptionService(t, 10, 10)

	svc.HandleSubscriptionRequest("sess-1", "", models.SubscriptionRequest{
		Action:  "subscribe",
		Symbols: []string{"AAPL"},
		UserID:  "bob",
	})
	sub, _ := repo.Get("sess-1")
	require.Equal(t, "bob", sub.UserID)

	svc.HandleSubscriptionRequest("sess-2", "", models.SubscriptionRequest{
		Action:  "subscribe",
		Symbols: []string{"AAPL"},
	})
	sub, _ = repo.Get("sess-2")
	require.Equal(t, "anonymous", sub.UserID)
}

func TestHandleTopicSubscribeTouchesMarketTopicsOnly(t *testing.T) {
	svc, repo, _ := newTestSubscriptionService(t, 10, 10)
	base := time.Now()

	repo.SetClock(func() time.Time { return base.Add(-6 * time.Minute) })
	svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{
		Action:  "subscribe",
		Symbols: []string{"AAPL"},
	})

	repo.SetClock(func() time.Time { return base })
	svc.HandleTopicSubscribe("sess-1", "/queue/other")
	require.Equal(t, 0, repo.ActiveCount(), "non-market destination must not refresh activity")

	svc.HandleTopicSubscribe("sess-1", TopicMarketPrefix+"AAPL")
	require.Equal(t, 1, repo.ActiveCount())
}

func TestHandleDisconnectRemovesSubscription(t *testing.T) {
	svc, repo, _ := newTestSubscriptionService(t, 10, 10)

	svc.HandleSubscriptionRequest("sess-1", "alice", models.SubscriptionRequest{
		Action:  "subscribe",
		Symbols: []string{"AAPL"},
	})
	svc.HandleDisconnect("sess-1")

	_, ok := repo.Get("sess-1")
	require.False(t, ok)
	require.Empty(t, repo.SubscribersOf("AAPL"))
}
