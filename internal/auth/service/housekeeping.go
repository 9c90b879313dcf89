package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/budg/internal/auth/store"
)

const (
	DefaultHousekeepingInterval = time.Hour
	DefaultAuditRetention       = 90 * 24 * time.Hour
)

// Sweeper drops expired entries from an in-process cache.
type Sweeper interface {
	Sweep() int
}

// HousekeepingService periodically prunes old audit events and sweeps
// expired in-process rate counters.
type HousekeepingService struct {
	Store     store.Store
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration
	Sweepers  []Sweeper
	Clock     Clock

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService fills in defaults for a non-positive interval or
// retention.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval, retention time.Duration, sweepers ...Sweeper) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	if retention <= 0 {
		retention = DefaultAuditRetention
	}

	return &HousekeepingService{
		Store:     st,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		Sweepers:  sweepers,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs a cleanup immediately and then on every tick. Call Stop to
// shut the worker down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval, "audit_retention", s.Retention)
}

// Stop blocks until an in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup performs one pass. Each step is independent of the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	cutoff := s.Clock.Now().Add(-s.Retention)

	pruned, err := s.Store.Audit().PruneAuditEvents(ctx, cutoff)
	if err != nil {
		s.Logger.Error("failed to prune audit events", "error", err)
	} else {
		s.Logger.Debug("pruned audit events", "deleted", pruned, "cutoff", cutoff)
	}

	swept := 0
	for _, sw := range s.Sweepers {
		swept += sw.Sweep()
	}

	s.Logger.Info("housekeeping cleanup completed", "audit_events_pruned", pruned, "counters_swept", swept)
}
