package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/mindshare/internal/logger"
)

// readErrorBackoff throttles the loop when Redis reads keep failing.
const readErrorBackoff = 2 * time.Second

// ProcessFunc executes one job by id. A returned error means the job was
// marked failed (or could not be reached at all); the trigger is acked either
// way because job state lives in the database.
type ProcessFunc func(ctx context.Context, jobID string) error

// Pool runs a fixed set of workers draining the trigger stream.
type Pool struct {
	consumer    *Consumer
	process     ProcessFunc
	concurrency int
	logger      logger.Logger
}

// NewPool creates a worker pool.
func NewPool(consumer *Consumer, process ProcessFunc, concurrency int, log logger.Logger) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{
		consumer:    consumer,
		process:     process,
		concurrency: concurrency,
		logger:      log,
	}
}

// Run blocks until the context is cancelled, then waits for in-flight jobs to
// finish.
func (p *Pool) Run(ctx context.Context) error {
	if err := p.consumer.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize consumer: %w", err)
	}

	p.logger.Info("worker pool starting",
		logger.Int("concurrency", p.concurrency),
		logger.String("consumer_id", p.consumer.ConsumerID()))

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(workerNum int) {
			defer wg.Done()
			p.workerLoop(ctx, workerNum)
		}(i)
	}
	wg.Wait()

	p.logger.Info("worker pool stopped")
	return nil
}

func (p *Pool) workerLoop(ctx context.Context, workerNum int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		triggers, err := p.consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("trigger read failed",
				logger.Int("worker", workerNum), logger.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(readErrorBackoff):
			}
			continue
		}

		for _, trigger := range triggers {
			p.handle(ctx, workerNum, trigger)
		}
	}
}

func (p *Pool) handle(ctx context.Context, workerNum int, trigger *Trigger) {
	if err := p.process(ctx, trigger.JobID); err != nil {
		p.logger.Warn("job processing failed",
			logger.Int("worker", workerNum),
			logger.String("job_id", trigger.JobID),
			logger.Error(err))
	}

	if err := p.consumer.Ack(ctx, trigger); err != nil {
		p.logger.Error("trigger ack failed",
			logger.String("job_id", trigger.JobID),
			logger.Error(err))
	}
}
