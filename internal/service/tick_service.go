package service

import (
	"context"
	"fmt"
	"time"

	"github.com/brokerx/marketfeed/internal/config"
	"github.com/brokerx/marketfeed/internal/models"
	"github.com/brokerx/marketfeed/internal/repository"
	"github.com/brokerx/marketfeed/pkg/utils/zaplogger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TickService is the single logical clock of the service. It drives the
// broadcast tick, the expiry sweep and the health check. Each job is serial
// with itself: a late run delays the next instead of overlapping it.
type TickService struct {
	cfg              *config.Config
	catalogRepo      *repository.CatalogRepository
	subscriptionRepo *repository.SubscriptionRepository
	simulator        *PriceSimulator
	broadcastService *BroadcastService
	healthService    *HealthService
	c                *cron.Cron
}

// NewTickService creates a new tick service
func NewTickService(
	cfg *config.Config,
	catalogRepo *repository.CatalogRepository,
	subscriptionRepo *repository.SubscriptionRepository,
	simulator *PriceSimulator,
	broadcastService *BroadcastService,
	healthService *HealthService,
) *TickService {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(zaplogger.Logger()))
	return &TickService{
		cfg:              cfg,
		catalogRepo:      catalogRepo,
		subscriptionRepo: subscriptionRepo,
		simulator:        simulator,
		broadcastService: broadcastService,
		healthService:    healthService,
		c: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.DelayIfStillRunning(cronLogger),
		)),
	}
}

// Start registers the periodic jobs and starts the scheduler. The first
// broadcast fires one period after startup.
func (s *TickService) Start() error {
	zaplogger.Info("Initializing TickService")

	if err := s.addJob("Broadcast Tick Job", s.broadcastTickJob, fmt.Sprintf("@every %dms", s.cfg.TickPeriodMs)); err != nil {
		return err
	}
	if err := s.addJob("Expiry Sweep Job", s.expirySweepJob, fmt.Sprintf("@every %ds", s.cfg.SweepPeriodSec)); err != nil {
		return err
	}
	if err := s.addJob("Health Check Job", s.healthCheckJob, fmt.Sprintf("@every %ds", s.cfg.HealthCheckSec)); err != nil {
		return err
	}

	s.c.Start()
	zaplogger.Info("Synchronized market data broadcasting started", zaplogger.Fields{
		"tick_period_ms":   s.cfg.TickPeriodMs,
		"sweep_period_sec": s.cfg.SweepPeriodSec,
	})
	return nil
}

// Stop stops the scheduler. The returned context completes when in-flight
// jobs have finished.
func (s *TickService) Stop() context.Context {
	zaplogger.Info("Stopping TickService")
	return s.c.Stop()
}

func (s *TickService) addJob(name string, job func(), schedule string) error {
	_, err := s.c.AddFunc(schedule, job)
	if err != nil {
		zaplogger.Error("FAILED TO QUEUE SCHEDULED JOB", zaplogger.Fields{
			"job":   name,
			"error": err.Error(),
		})
		return err
	}
	zaplogger.Info("QUEUED SCHEDULED job", zaplogger.Fields{
		"job":      name,
		"schedule": schedule,
	})
	return nil
}

// broadcastTickJob advances every instrument and fans the result out.
// One timestamp string is frozen per tick so every recipient of this tick
// observes coherent data.
func (s *TickService) broadcastTickJob() {
	table := s.catalogRepo.Snapshot()
	if len(table) == 0 {
		return
	}

	for symbol := range table {
		s.catalogRepo.Mutate(symbol, func(q models.Quote) models.Quote {
			next := s.simulator.Next(q, time.Now())
			return next
		})
		s.healthService.RecordUpdate(symbol, time.Now())
	}

	snapshot := models.Snapshot{
		Quotes:    s.catalogRepo.Snapshot(),
		Timestamp: models.FormatTimestamp(time.Now()),
	}
	s.broadcastService.BroadcastSnapshot(snapshot)
}

func (s *TickService) expirySweepJob() {
	removed := s.subscriptionRepo.SweepExpired()
	if removed > 0 {
		zaplogger.Info("Expiry sweep removed subscriptions", zaplogger.Fields{
			"removed": removed,
		})
	}
}

func (s *TickService) healthCheckJob() {
	s.healthService.CheckHealth()
}
