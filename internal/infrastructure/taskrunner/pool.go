package taskrunner

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const defaultWorkers = 4

// Pool runs tasks on up to a fixed number of goroutines at once.
// Tasks may block; a task waiting for a free slot never blocks PostTask.
type Pool struct {
	sem    *semaphore.Weighted
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool creates a Pool allowing workers concurrent tasks
func NewPool(workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(workers)),
		logger: logger,
	}
}

// PostTask schedules task on the pool
func (p *Pool) PostTask(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// Acquire only fails on a cancelled context
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		p.execute(task)
	}()
	return nil
}

// Close stops accepting tasks and waits for the running ones to finish
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("background task panicked",
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	task()
}
