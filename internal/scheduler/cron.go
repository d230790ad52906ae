package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/mindshare/internal/logger"
)

// Runner drives periodic sweeps via cron and the reconcile pass on a fixed
// ticker.
type Runner struct {
	scheduler         *Scheduler
	cron              *cron.Cron
	sweepSchedule     string
	reconcileInterval time.Duration
	logger            logger.Logger
}

// NewRunner creates the periodic runner. sweepSchedule is a standard 5-field
// cron expression.
func NewRunner(s *Scheduler, sweepSchedule string, reconcileInterval time.Duration, log logger.Logger) *Runner {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &Runner{
		scheduler:         s,
		cron:              c,
		sweepSchedule:     sweepSchedule,
		reconcileInterval: reconcileInterval,
		logger:            log,
	}
}

// Start registers the sweep entry and launches the reconcile loop. It returns
// once everything is running; Stop shuts it down.
func (r *Runner) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.sweepSchedule, func() {
		if _, sweepErr := r.scheduler.Sweep(ctx); sweepErr != nil {
			r.logger.Error("scheduled sweep failed", logger.Error(sweepErr))
		}
	})
	if err != nil {
		return fmt.Errorf("register sweep schedule %q: %w", r.sweepSchedule, err)
	}

	r.cron.Start()
	go r.reconcileLoop(ctx)

	r.logger.Info("scheduler runner started",
		logger.String("sweep_schedule", r.sweepSchedule),
		logger.Duration("reconcile_interval", r.reconcileInterval))
	return nil
}

// Stop halts the cron scheduler and waits for a running sweep to finish.
func (r *Runner) Stop() {
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
	r.logger.Info("scheduler runner stopped")
}

func (r *Runner) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(r.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.scheduler.Reconcile(ctx)
		}
	}
}
