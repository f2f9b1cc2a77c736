package orchestrator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/talentwire/jobharvest/internal/metrics"
)

// Pool drains the run queue with a fixed number of workers. Per-source
// politeness lives in the fetch engine's rate limiter; the pool only
// bounds cross-source concurrency.
type Pool struct {
	queue   Queue
	runner  *Runner
	workers int
	logger  *zap.Logger

	wg sync.WaitGroup
}

// NewPool constructs a Pool.
func NewPool(queue Queue, runner *Runner, workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		queue:   queue,
		runner:  runner,
		workers: workers,
		logger:  logger,
	}
}

// Start launches the workers. They exit when the context finishes or the
// queue closes.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.work(ctx, id)
		}(i)
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) work(ctx context.Context, id int) {
	for {
		runID, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue failed", zap.Int("worker", id), zap.Error(err))
			return
		}

		metrics.IncActiveWorkers()
		p.runner.Execute(ctx, runID)
		metrics.DecActiveWorkers()
	}
}
