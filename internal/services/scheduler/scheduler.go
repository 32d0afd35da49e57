package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/Alash95/reporter/internal/common"
	"github.com/Alash95/reporter/internal/interfaces"
	"github.com/Alash95/reporter/internal/services/ingest"
)

// Scheduler runs the periodic maintenance sweeps: stuck-processing reset,
// inactive-source cleanup and notification-log trimming
type Scheduler struct {
	cfg      *common.MaintenanceConfig
	pipeline *ingest.Pipeline
	registry interfaces.SourceRegistry
	notifier interfaces.NotificationService
	cron     *cron.Cron
	logger   arbor.ILogger
}

func NewScheduler(
	logger arbor.ILogger,
	cfg *common.MaintenanceConfig,
	pipeline *ingest.Pipeline,
	registry interfaces.SourceRegistry,
	notifier interfaces.NotificationService,
) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		pipeline: pipeline,
		registry: registry,
		notifier: notifier,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start registers the cron entries and begins scheduling
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info().Msg("Maintenance scheduler disabled")
		return nil
	}

	stuckSchedule := s.cfg.StuckSweepSchedule
	if stuckSchedule == "" {
		stuckSchedule = "*/1 * * * *"
	}
	if _, err := s.cron.AddFunc(stuckSchedule, s.runStuckSweep); err != nil {
		return err
	}

	cleanupSchedule := s.cfg.CleanupSchedule
	if cleanupSchedule == "" {
		cleanupSchedule = "0 3 * * *"
	}
	if _, err := s.cron.AddFunc(cleanupSchedule, s.runCleanup); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("stuck_sweep", stuckSchedule).
		Str("cleanup", cleanupSchedule).
		Msg("Maintenance scheduler started")
	return nil
}

// Stop halts scheduling; a sweep already running finishes on its own
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Maintenance scheduler stopped")
}

func (s *Scheduler) runStuckSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	reset, err := s.pipeline.ResetStuck(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Stuck-processing sweep failed")
		return
	}
	if reset > 0 {
		s.logger.Info().Int("reset", reset).Msg("Stuck-processing sweep completed")
	}
}

func (s *Scheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	removed, err := s.registry.CleanupInactive(ctx, s.cfg.InactiveDays)
	if err != nil {
		s.logger.Error().Err(err).Msg("Inactive-source cleanup failed")
	} else if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Inactive-source cleanup completed")
	}

	if err := s.notifier.CleanupLogs(ctx, s.cfg.LogRetentionDays); err != nil {
		s.logger.Error().Err(err).Msg("Notification log cleanup failed")
	}
}
