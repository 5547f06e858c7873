package taskrunner

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const defaultQueueSize = 256

// Sequence serializes tasks through a single goroutine.
//
// Usage:
//
//	seq := NewSequence("primary", 0, logger)
//	go seq.Run(ctx)
//	defer seq.Close()
//
//	// From any goroutine:
//	_ = seq.PostTask(func() { registry.Resolve(id, nil, pdf) })
type Sequence struct {
	name   string
	queue  chan func()
	logger *zap.Logger

	mu       sync.RWMutex
	closed   bool
	done     chan struct{} // closed by Close
	stopped  chan struct{} // closed when Run stops reading the queue
	finished chan struct{} // closed when Run has drained the queue and returned

	closeOnce sync.Once
	stopOnce  sync.Once
}

// NewSequence creates a Sequence with the given queue size
func NewSequence(name string, queueSize int, logger *zap.Logger) *Sequence {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequence{
		name:     name,
		queue:    make(chan func(), queueSize),
		logger:   logger.With(zap.String("sequence", name)),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// PostTask queues task for execution on the sequence goroutine.
// It blocks while the queue is full.
func (s *Sequence) PostTask(task func()) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	select {
	case s.queue <- task:
		return nil
	case <-s.stopped:
		return ErrClosed
	}
}

// Run executes queued tasks until ctx is cancelled or Close is called.
// Tasks queued before shutdown are still executed.
// MUST be called from exactly one goroutine.
func (s *Sequence) Run(ctx context.Context) {
	defer close(s.finished)
	for {
		select {
		case <-ctx.Done():
			s.markStopped()
			s.Close()
			s.drain()
			return
		case <-s.done:
			s.markStopped()
			s.drain()
			return
		case task := <-s.queue:
			s.execute(task)
		}
	}
}

// Close stops accepting tasks. Run finishes the tasks already queued.
func (s *Sequence) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
}

// Stopped is closed once Run has stopped accepting tasks
func (s *Sequence) Stopped() <-chan struct{} {
	return s.stopped
}

// Finished is closed once Run has executed the last queued task and returned.
// After that no goroutine owns the sequence's state.
func (s *Sequence) Finished() <-chan struct{} {
	return s.finished
}

func (s *Sequence) markStopped() {
	s.stopOnce.Do(func() {
		close(s.stopped)
	})
}

func (s *Sequence) drain() {
	for {
		select {
		case task := <-s.queue:
			s.execute(task)
		default:
			return
		}
	}
}

// execute runs a single task with panic recovery
func (s *Sequence) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked",
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	task()
}
