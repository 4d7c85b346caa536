package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brokerx/marketfeed/internal/config"
	"github.com/brokerx/marketfeed/internal/repository"
)

func newTestTickService(t *testing.T, catalogRepo *repository.CatalogRepository) (*TickService, *fakeTransport) {
	t.Helper()
	transport := &fakeTransport{}
	subscriptionRepo := repository.NewSubscriptionRepository(5 * time.Minute)
	subscriptionRepo.Subscribe("sess-1", "alice", []string{"AAPL"})
	broadcastService := NewBroadcastService(transport, subscriptionRepo, nil)
	healthService := NewHealthService(30*time.Second, 60*time.Second)
	simulator := NewPriceSimulator(0.02, 1)
	cfg := &config.Config{TickPeriodMs: 5000, SweepPeriodSec: 60, HealthCheckSec: 10}
	return NewTickService(cfg, catalogRepo, subscriptionRepo, simulator, broadcastService, healthService), transport
}

func TestBroadcastTickAdvancesCatalogAndFansOut(t *testing.T) {
	catalogRepo := newTestCatalog(t)
	svc, transport := newTestTickService(t, catalogRepo)

	before, _ := catalogRepo.Get("AAPL")
	svc.broadcastTickJob()

	after, _ := catalogRepo.Get("AAPL")
	require.False(t, after.Timestamp.IsZero(), "tick must stamp the quote")
	require.True(t, after.Timestamp.After(before.Timestamp))

	// One frame for the subscribed symbol plus the bulk topic
	require.Len(t, transport.published, 2)
	require.Equal(t, TopicMarketPrefix+"AAPL", transport.published[0].destination)
	require.Equal(t, TopicMarketAll, transport.published[1].destination)
}

func TestBroadcastTickUsesOneTimestampPerTick(t *testing.T) {
	catalogRepo := newTestCatalog(t)
	svc, transport := newTestTickService(t, catalogRepo)

	svc.broadcastTickJob()

	var timestamps []string
	for _, msg := range transport.published {
		timestamps = append(timestamps, requireEnvelope(t, msg).Timestamp)
	}
	require.NotEmpty(t, timestamps)
	for _, ts := range timestamps[1:] {
		require.Equal(t, timestamps[0], ts, "every envelope of a tick must share its timestamp")
	}
}

func TestBroadcastTickEmptyCatalogIsNoOp(t *testing.T) {
	svc, transport := newTestTickService(t, repository.NewCatalogRepository())

	svc.broadcastTickJob()

	require.Empty(t, transport.published)
}

func TestExpirySweepJobRemovesStaleSessions(t *testing.T) {
	catalogRepo := newTestCatalog(t)
	svc, _ := newTestTickService(t, catalogRepo)

	base := time.Now()
	svc.subscriptionRepo.SetClock(func() time.Time { return base.Add(-6 * time.Minute) })
	svc.subscriptionRepo.Subscribe("stale", "bob", []string{"MSFT"})

	svc.subscriptionRepo.SetClock(func() time.Time { return base })
	svc.expirySweepJob()

	_, ok := svc.subscriptionRepo.Get("stale")
	require.False(t, ok)
}

func TestBroadcastTickRecordsHealth(t *testing.T) {
	catalogRepo := newTestCatalog(t)
	svc, _ := newTestTickService(t, catalogRepo)

	svc.broadcastTickJob()
	svc.healthCheckJob()

	report := svc.healthService.Report(0)
	require.Equal(t, SystemNormal, report.Status)
	require.Contains(t, report.Symbols, "AAPL")
}
