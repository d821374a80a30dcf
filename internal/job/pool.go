package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// PoolConfig bounds how a Pool runs jobs.
type PoolConfig struct {
	Workers int
	Timeout time.Duration
}

// Pool is a Dispatcher that runs jobs on a bounded set of goroutines
// against the Source registered for each target. Every task it returns is
// guaranteed to complete: a source that outlives Timeout is abandoned and
// the task fails with ErrTimeout.
type Pool struct {
	ctx     context.Context
	cancel  context.CancelFunc
	mgr     *Manager
	sem     chan struct{}
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	sources map[string]Source
	closed  bool
	wg      sync.WaitGroup
}

// NewPool creates a pool whose jobs live no longer than ctx.
func NewPool(ctx context.Context, mgr *Manager, cfg PoolConfig, logger *slog.Logger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if mgr == nil {
		mgr = NewManager(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Pool{
		ctx:     ctx,
		cancel:  cancel,
		mgr:     mgr,
		sem:     make(chan struct{}, cfg.Workers),
		timeout: cfg.Timeout,
		logger:  logger,
		sources: make(map[string]Source),
	}
}

// Register binds target to src, replacing any earlier binding.
func (p *Pool) Register(target string, src Source) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources[target] = src
}

// Manager returns the job records kept by this pool.
func (p *Pool) Manager() *Manager { return p.mgr }

// Start implements Dispatcher.
func (p *Pool) Start(target, method string, args Args) *Task {
	job := p.mgr.Create(target, method, args)
	task := NewTask(job.ID)

	p.mu.RLock()
	src, ok := p.sources[target]
	closed := p.closed
	if !closed && ok {
		p.wg.Add(1)
	}
	p.mu.RUnlock()

	switch {
	case closed:
		p.finish(job.ID, task, nil, ErrClosed)
	case !ok:
		p.finish(job.ID, task, nil, fmt.Errorf("%w: %s", ErrUnknownTarget, target))
	default:
		ctx, cancel := context.WithCancel(p.ctx)
		p.mgr.setCancel(job.ID, cancel)
		go p.run(ctx, cancel, job, src, task)
	}
	return task
}

func (p *Pool) run(ctx context.Context, cancel context.CancelFunc, job Job, src Source, task *Task) {
	defer p.wg.Done()
	defer cancel()

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		p.finish(job.ID, task, nil, ErrCancelled)
		return
	}
	defer func() { <-p.sem }()

	if p.timeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, p.timeout)
		defer stop()
	}

	_ = p.mgr.Update(job.ID, func(j *Job) { j.Status = StatusRunning })
	p.logger.Debug("job started", "job", job.ID, "target", job.Target, "method", job.Method)

	type outcome struct {
		tree Tree
		err  error
	}
	out := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				out <- outcome{err: fmt.Errorf("source %s panicked: %v", src.Name(), r)}
			}
		}()
		tree, err := src.Run(ctx, job.Method, job.Args)
		out <- outcome{tree: tree, err: err}
	}()

	select {
	case o := <-out:
		p.finish(job.ID, task, o.tree, o.err)
	case <-ctx.Done():
		err := ErrCancelled
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = ErrTimeout
		}
		p.finish(job.ID, task, nil, err)
	}
}

func (p *Pool) finish(jobID string, task *Task, tree Tree, err error) {
	_ = p.mgr.Update(jobID, func(j *Job) {
		switch {
		case err == nil:
			j.Status = StatusCompleted
		case errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled):
			j.Status = StatusCancelled
			j.Error = err.Error()
		default:
			j.Status = StatusFailed
			j.Error = err.Error()
		}
	})

	if err != nil {
		p.logger.Debug("job failed", "job", jobID, "error", err)
		task.Reject(err)
		return
	}
	p.logger.Debug("job completed", "job", jobID)
	task.Resolve(tree)
}

// Close stops accepting jobs, cancels running ones and waits for workers.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}
