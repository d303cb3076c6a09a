// workers/ingest_scheduler.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-referral-engine/services"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type Ingester interface {
	Run(ctx context.Context) (*services.IngestResult, error)
}

// IngestScheduler triggers ingestion in-process, for deployments without an external cron.
type IngestScheduler struct {
	sched    gocron.Scheduler
	ingester Ingester
	interval time.Duration
	logger   *zap.Logger
}

func NewIngestScheduler(ingester Ingester, interval time.Duration, logger *zap.Logger, opts ...gocron.SchedulerOption) (*IngestScheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("ingest interval must be positive, got %s", interval)
	}
	sched, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestScheduler{sched: sched, ingester: ingester, interval: interval, logger: logger}, nil
}

// Start registers the job and begins ticking. Runs stop being scheduled once ctx is done.
func (s *IngestScheduler) Start(ctx context.Context) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			s.tick(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("signup-ingest"),
	)
	if err != nil {
		return fmt.Errorf("schedule ingestion: %w", err)
	}
	s.sched.Start()
	s.logger.Info("[SCHED] ingestion scheduled", zap.Duration("interval", s.interval))
	return nil
}

func (s *IngestScheduler) tick(ctx context.Context) {
	res, err := s.ingester.Run(ctx)
	switch {
	case errors.Is(err, services.ErrLeaseHeld):
		s.logger.Info("[SCHED] ingestion already running elsewhere")
	case err != nil:
		s.logger.Error("[SCHED] ingestion failed", zap.Error(err))
	default:
		s.logger.Info("[SCHED] ingestion finished",
			zap.Int("new_users", res.NewUsers),
			zap.Int("skipped", res.Skipped),
			zap.Int("unlocked", res.Unlocked))
	}
}

func (s *IngestScheduler) Shutdown() error {
	return s.sched.Shutdown()
}
