package taskrunner

import (
	"context"
	"errors"
)

// ErrClosed is returned when posting to a runner that no longer accepts tasks
var ErrClosed = errors.New("task runner closed")

// Runner executes posted tasks on its own execution context
type Runner interface {
	// PostTask schedules task. It returns ErrClosed once the runner has shut down.
	PostTask(task func()) error
}

// PostTaskAndReplyWithResult runs task on background and hands its result to
// reply on replyTo. The result value is passed by the closure only, so the
// two contexts never share it.
//
// When replyTo has shut down before the reply can be queued, reply never runs
// and onDropped (if non-nil) receives the result and the posting error on the
// background goroutine instead.
func PostTaskAndReplyWithResult[T any](background, replyTo Runner, task func() T, reply func(T), onDropped func(T, error)) error {
	return background.PostTask(func() {
		result := task()
		err := replyTo.PostTask(func() {
			reply(result)
		})
		if err != nil && onDropped != nil {
			onDropped(result, err)
		}
	})
}

// PostTaskAndWait runs task on r and blocks until it has finished or ctx is done
func PostTaskAndWait(ctx context.Context, r Runner, task func()) error {
	done := make(chan struct{})
	if err := r.PostTask(func() {
		defer close(done)
		task()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
