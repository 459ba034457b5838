// Package parallel runs independent bound computations on a bounded number
// of goroutines. Each computation is single-threaded; the pool only
// spreads whole subproblems over workers.
package parallel

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrPoolShutdown is returned when trying to submit tasks to a shutdown pool.
var ErrPoolShutdown = errors.New("parallel: pool has been shut down")

// Task is one unit of work. A non-nil error stops the pool.
type Task func(ctx context.Context) error

// WorkerPool runs submitted tasks on a fixed set of workers. The first
// failing task cancels the context of every other task.
type WorkerPool struct {
	maxWorkers int
	taskChan   chan Task
	g          *errgroup.Group
	ctx        context.Context

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
// If maxWorkers is 0 or negative, it defaults to the number of CPU cores.
func NewWorkerPool(ctx context.Context, maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	g, ctx := errgroup.WithContext(ctx)
	wp := &WorkerPool{
		maxWorkers: maxWorkers,
		taskChan:   make(chan Task, maxWorkers*2),
		g:          g,
		ctx:        ctx,
	}
	for i := 0; i < maxWorkers; i++ {
		g.Go(wp.worker)
	}
	return wp
}

// Workers returns the number of workers.
func (wp *WorkerPool) Workers() int { return wp.maxWorkers }

func (wp *WorkerPool) worker() error {
	for {
		select {
		case task, ok := <-wp.taskChan:
			if !ok {
				return nil
			}
			if err := task(wp.ctx); err != nil {
				return err
			}
		case <-wp.ctx.Done():
			return wp.ctx.Err()
		}
	}
}

// Submit queues a task, blocking while the queue is full.
func (wp *WorkerPool) Submit(task Task) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return ErrPoolShutdown
	}
	select {
	case wp.taskChan <- task:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// Wait stops accepting tasks, waits for the queued ones and returns the
// first error.
func (wp *WorkerPool) Wait() error {
	wp.once.Do(func() {
		wp.mu.Lock()
		wp.closed = true
		close(wp.taskChan)
		wp.mu.Unlock()
	})
	return wp.g.Wait()
}

// Map applies fn to every item on a pool of workers and returns the
// results in input order.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	wp := NewWorkerPool(ctx, workers)
	for i, item := range items {
		i, item := i, item
		err := wp.Submit(func(ctx context.Context) error {
			r, err := fn(ctx, i, item)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
		if err != nil {
			break
		}
	}
	if err := wp.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
