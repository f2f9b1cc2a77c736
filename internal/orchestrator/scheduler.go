package orchestrator

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/talentwire/jobharvest/internal/pipeline"
)

// Scheduler wraps robfig/cron and starts runs on each source's schedule.
type Scheduler struct {
	cron    *cron.Cron
	service *Service
	logger  *zap.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(service *Service, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(),
		service: service,
		logger:  logger,
	}
}

// Start registers one cron entry per active source with a schedule and
// starts the loop. Sources without a schedule are only run on demand.
func (s *Scheduler) Start(ctx context.Context, sources []pipeline.Source) error {
	for _, src := range sources {
		if src.Schedule == "" {
			continue
		}
		src := src
		_, err := s.cron.AddFunc(src.Schedule, func() {
			run, err := s.service.StartRun(ctx, src.ID, pipeline.RunModeScheduled, 0)
			if err != nil {
				s.logger.Error("scheduled run failed to start",
					zap.String("source_id", src.ID),
					zap.Error(err),
				)
				return
			}
			s.logger.Info("scheduled run queued",
				zap.String("source_id", src.ID),
				zap.String("run_id", run.ID),
			)
		})
		if err != nil {
			return fmt.Errorf("schedule source %s (%q): %w", src.ID, src.Schedule, err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("sources", len(sources)))
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}
