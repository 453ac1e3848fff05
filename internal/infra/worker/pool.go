// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"signals-platform/internal/infra/logging"

	"github.com/rs/zerolog"
)

var (
	ErrQueueFull = errors.New("worker queue full")
	ErrStopped   = errors.New("worker pool stopped")
)

type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed number of goroutines.
type Pool struct {
	tasks chan Task
	n     int
	wg    sync.WaitGroup
	log   *zerolog.Logger

	mu      sync.RWMutex
	stopped bool
}

// NewPool sizes the pool to workers (NumCPU when <= 0) with a queue of queue tasks.
func NewPool(name string, workers, queue int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queue <= 0 {
		queue = workers * 4
	}
	if logger == nil {
		logger = logging.Silent()
	}
	l := logger.With().Str("pool", name).Logger()
	return &Pool{tasks: make(chan Task, queue), n: workers, log: &l}
}

// Start launches the workers. Tasks receive ctx.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for task := range p.tasks {
				if err := task(ctx); err != nil {
					p.log.Warn().Err(err).Int("worker", id).Msg("task failed")
				}
			}
		}(i)
	}
}

// Submit queues task without blocking.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new tasks and waits for the queued ones to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.tasks)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
