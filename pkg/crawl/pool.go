package crawl

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned if a Submit is attempted after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Job is a unit of work submitted to the Pool. Its error is the job's own business;
// the pool does not inspect it.
type Job func(ctx context.Context) error

// Pool runs jobs using a fixed number of goroutines.
type Pool struct {
	jobs    chan Job
	quit    chan struct{}
	wg      sync.WaitGroup
	workers int

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewPool creates a pool with the given number of workers and job queue capacity.
func NewPool(workers, queue int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = workers * 2
	}
	return &Pool{
		jobs:    make(chan Job, queue),
		quit:    make(chan struct{}),
		workers: workers,
	}
}

// Workers returns the number of goroutines Start launches.
func (p *Pool) Workers() int { return p.workers }

// Start launches the workers. They run until ctx is done or Close has drained the queue.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-p.jobs:
					if !ok {
						return
					}
					_ = job(ctx)
				}
			}
		}()
	}
}

// Submit enqueues a job, blocking while the queue is full.
func (p *Pool) Submit(job Job) error {
	return p.SubmitCtx(context.Background(), job)
}

// SubmitCtx enqueues a job but returns promptly if ctx is done or the pool is closed
// while waiting for queue space.
func (p *Pool) SubmitCtx(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		return nil
	case <-p.quit:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new jobs and waits for the workers to finish what is queued.
// It is safe to call more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		// wake submitters blocked on a full queue before taking the write lock
		close(p.quit)
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
	})
	p.wg.Wait()
}
