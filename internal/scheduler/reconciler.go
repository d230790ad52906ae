package scheduler

import (
	"context"
	"time"

	"github.com/jonesrussell/mindshare/internal/logger"
)

// redispatchBatch caps how many forgotten queued jobs one reconcile pass
// re-dispatches.
const redispatchBatch = 100

// redispatchAfter is how long a job may sit queued before the reconciler
// assumes its trigger was lost.
const redispatchAfter = 5 * time.Minute

// Reconcile is the periodic repair pass:
//
//  1. stamp executed_at on runs whose jobs have all finished,
//  2. re-queue jobs stuck in processing past the lease timeout,
//  3. re-dispatch triggers for jobs that stayed queued too long.
//
// Each step is independent; a failure in one does not stop the others.
func (s *Scheduler) Reconcile(ctx context.Context) {
	stamped, err := s.runs.MarkExecutedFinished(ctx)
	if err != nil {
		s.logger.Error("reconcile: stamping finished runs failed", logger.Error(err))
	} else if stamped > 0 {
		s.logger.Info("reconcile: runs stamped executed", logger.Int64("count", stamped))
	}

	reclaimed, err := s.jobs.ReclaimStale(ctx, s.leaseTimeout)
	if err != nil {
		s.logger.Error("reconcile: reclaiming stale jobs failed", logger.Error(err))
	} else if reclaimed > 0 {
		s.logger.Warn("reconcile: stale processing jobs re-queued",
			logger.Int64("count", reclaimed))
	}

	redispatched := s.redispatchForgotten(ctx)
	if redispatched > 0 {
		s.logger.Info("reconcile: forgotten jobs re-dispatched",
			logger.Int("count", redispatched))
	}

	if s.telemetry != nil {
		s.telemetry.RecordReconcile(stamped, reclaimed)
	}
}

func (s *Scheduler) redispatchForgotten(ctx context.Context) int {
	before := s.now().Add(-redispatchAfter)
	ids, err := s.jobs.ListQueuedIDs(ctx, before, redispatchBatch)
	if err != nil {
		s.logger.Error("reconcile: listing queued jobs failed", logger.Error(err))
		return 0
	}

	redispatched := 0
	for _, jobID := range ids {
		if _, err := s.dispatcher.Dispatch(ctx, jobID); err != nil {
			s.logger.Warn("reconcile: re-dispatch failed",
				logger.String("job_id", jobID), logger.Error(err))
			continue
		}
		redispatched++
	}
	return redispatched
}
