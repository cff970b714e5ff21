package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/roster/pkg/observability"
)

// cleanupTimeout bounds a single cleanup run
const cleanupTimeout = time.Minute

// SessionCleaner deletes expired sessions
type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// Scheduler runs session cleanup on a cron schedule
type Scheduler struct {
	cron    *cron.Cron
	cleaner SessionCleaner
	metrics *observability.Metrics
	logger  logrus.FieldLogger
}

// NewScheduler registers the cleanup job under schedule, a standard five
// field cron expression. metrics may be nil.
func NewScheduler(schedule string, cleaner SessionCleaner, metrics *observability.Metrics, logger logrus.FieldLogger) (*Scheduler, error) {
	s := &Scheduler{
		// A run still in progress makes the next tick a no-op
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
		cleaner: cleaner,
		metrics: metrics,
		logger:  logger.WithField("component", "session_cleanup"),
	}

	if _, err := s.cron.AddFunc(schedule, func() { _, _ = s.RunCleanup(context.Background()) }); err != nil {
		return nil, fmt.Errorf("failed to schedule session cleanup %q: %w", schedule, err)
	}
	return s, nil
}

// RunCleanup removes expired sessions once
func (s *Scheduler) RunCleanup(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, cleanupTimeout)
	defer cancel()

	start := time.Now()
	removed, err := s.cleaner.CleanupExpiredSessions(ctx)
	s.metrics.RecordCleanup(removed, err)
	if err != nil {
		s.logger.WithError(err).Error("session cleanup failed")
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"removed":     removed,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("expired sessions removed")
	return removed, nil
}

// Start begins running scheduled jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for a running one to finish or ctx to end
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
