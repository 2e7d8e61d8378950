// Package jobs runs periodic maintenance tasks on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"ecoStepAPI/pkg/logger"
)

type Func func(ctx context.Context) error

type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

func NewScheduler(timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: timeout,
	}
}

// Register schedules fn under spec ("@every 15m", "0 3 * * *", ...).
func (s *Scheduler) Register(name, spec string, fn Func) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.run(name, fn)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	logger.Info().Str("job", name).Str("spec", spec).Msg("job scheduled")
	return nil
}

func (s *Scheduler) run(name string, fn Func) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		logger.Error().Err(err).Str("job", name).Msg("job failed")
		return
	}
	logger.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("job finished")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info().Msg("job scheduler stopped")
}
