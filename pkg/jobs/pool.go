package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a unit of background work. Attempt is stamped by the pool
// before each run, starting at 1, so handlers can report it directly.
type Task struct {
	ID      string
	Kind    string
	Payload interface{}
	Attempt int
}

// Handler executes one attempt of a task.
type Handler func(context.Context, Task) error

// Options tunes the worker pool.
type Options struct {
	Workers     int
	QueueDepth  int
	MaxAttempts int
	Backoff     time.Duration
	Logger      *zap.Logger
}

// Pool runs tasks on a fixed set of workers with a bounded attempt
// budget. A failed task is resubmitted after Backoff scaled by the
// attempt number until MaxAttempts runs have been spent, then dropped.
type Pool struct {
	name    string
	handler Handler

	workers     int
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger

	tasks   chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewPool builds a pool around the handler.
func NewPool(name string, handler Handler, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = opts.Workers * 8
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Pool{
		name:        name,
		handler:     handler,
		workers:     opts.Workers,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		logger:      opts.Logger,
		tasks:       make(chan Task, opts.QueueDepth),
	}
}

// Start launches the workers. Subsequent calls are no-ops.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	p.running = true
	p.logger.Info("worker pool started", zap.String("pool", p.name), zap.Int("workers", p.workers))
}

// Stop cancels the workers and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.mu.Unlock()
	p.wg.Wait()
	p.logger.Info("worker pool stopped", zap.String("pool", p.name))
}

// Submit hands a task to the pool for its first attempt.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	ctx := p.ctx
	running := p.running
	p.mu.Unlock()

	if !running {
		return fmt.Errorf("pool %s is not running", p.name)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("pool %s shut down: %w", p.name, ctx.Err())
	case p.tasks <- task:
		return nil
	}
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.tasks:
			task.Attempt++
			if err := p.handler(p.ctx, task); err != nil {
				p.reschedule(task, err)
			}
		}
	}
}

// reschedule requeues a failed task with linear backoff, or drops it
// once the attempt budget is spent.
func (p *Pool) reschedule(task Task, err error) {
	if task.Attempt >= p.maxAttempts {
		p.logger.Error("task abandoned after final attempt",
			zap.String("pool", p.name), zap.String("task_id", task.ID),
			zap.String("kind", task.Kind), zap.Int("attempts", task.Attempt), zap.Error(err))
		return
	}

	delay := time.Duration(task.Attempt) * p.backoff
	p.logger.Warn("task failed, rescheduling",
		zap.String("pool", p.name), zap.String("task_id", task.ID),
		zap.String("kind", task.Kind), zap.Int("attempt", task.Attempt),
		zap.Duration("delay", delay), zap.Error(err))

	time.AfterFunc(delay, func() {
		select {
		case <-p.ctx.Done():
		case p.tasks <- task:
		}
	})
}
