package worker

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is the backpressure signal: the caller decides whether
	// to fail the request or shed the work.
	ErrQueueFull = errors.New("worker: task queue is full")
	ErrStopped   = errors.New("worker: pool is stopped")
)

// Task is a detached unit of background work. The context it receives is
// never tied to the request that scheduled it; once scheduled, a task runs
// to completion. It is an alias so callers can depend on the plain
// function signature without importing this package.
type Task = func(ctx context.Context)

// Pool is a bounded task queue with a fixed set of workers. It replaces
// bare `go fn()` so that scheduling, backpressure, and shutdown draining
// are explicit.
type Pool struct {
	queue     chan Task
	workers   int
	log       *zap.Logger
	depth     prometheus.Gauge
	startOnce sync.Once
	stopOnce  sync.Once

	mu      sync.Mutex
	stopped bool

	wg   sync.WaitGroup
	done chan struct{}
}

// New creates a pool; depth may be nil when queue-depth metrics are not
// wanted (tests).
func New(workers, queueSize int, log *zap.Logger, depth prometheus.Gauge) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		queue:   make(chan Task, queueSize),
		workers: workers,
		log:     log.With(zap.String("component", "task_pool")),
		depth:   depth,
		done:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.run()
		}
		go func() {
			p.wg.Wait()
			close(p.done)
		}()
		p.log.Info("task_pool_started", zap.Int("workers", p.workers), zap.Int("queue_size", cap(p.queue)))
	})
}

// Schedule enqueues a task without blocking. It must be safe to call from
// a request handler whose context may already be cancelled: enqueueing is
// independent of any caller deadline.
func (p *Pool) Schedule(t Task) error {
	if t == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.queue <- t:
		if p.depth != nil {
			p.depth.Set(float64(len(p.queue)))
		}
		return nil
	default:
		return ErrQueueFull
	}
}

// ScheduleAfter runs t once d has elapsed. The wait happens on a timer,
// not a worker, so long deferrals never occupy the pool; the task is
// enqueued only when the timer fires. A task that cannot be enqueued at
// that moment runs on the timer goroutine instead of being dropped.
func (p *Pool) ScheduleAfter(d time.Duration, t Task) error {
	if t == nil {
		return nil
	}
	if d <= 0 {
		return p.Schedule(t)
	}

	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	time.AfterFunc(d, func() {
		if err := p.Schedule(t); err != nil {
			p.log.Warn("deferred_task_inline", zap.Error(err))
			p.exec(t)
		}
	})
	return nil
}

// Stop closes the queue and waits for the workers to drain every queued
// task, bounded by ctx. Running tasks are never interrupted.
func (p *Pool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.queue)
		p.mu.Unlock()
		p.log.Info("task_pool_stopping", zap.Int("queued", len(p.queue)))
	})

	select {
	case <-p.done:
		p.log.Info("task_pool_stopped")
		return nil
	case <-ctx.Done():
		p.log.Warn("task_pool_drain_aborted", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

func (p *Pool) run() {
	defer p.wg.Done()

	for t := range p.queue {
		if p.depth != nil {
			p.depth.Set(float64(len(p.queue)))
		}
		p.exec(t)
	}
}

func (p *Pool) exec(t Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("task_panic",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()

	t(context.Background())
}
