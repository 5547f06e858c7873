package taskrunner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPool_LimitsConcurrency(t *testing.T) {
	pool := NewPool(2, zap.NewNop())

	var (
		running atomic.Int32
		peak    atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, pool.PostTask(func() {
			defer wg.Done()
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		}))
	}
	wg.Wait()
	pool.Close()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPool_CloseWaitsAndRejects(t *testing.T) {
	pool := NewPool(1, nil)

	var finished atomic.Bool
	require.NoError(t, pool.PostTask(func() {
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
	}))

	pool.Close()
	assert.True(t, finished.Load())
	assert.ErrorIs(t, pool.PostTask(func() {}), ErrClosed)
}

func TestPostTaskAndReplyWithResult(t *testing.T) {
	pool := NewPool(2, nil)
	defer pool.Close()

	seq := NewSequence("primary", 4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go seq.Run(ctx)

	result := make(chan []byte, 1)
	err := PostTaskAndReplyWithResult(pool, seq,
		func() []byte { return []byte("%PDF-1.4") },
		func(b []byte) { result <- b },
		nil,
	)
	require.NoError(t, err)

	select {
	case b := <-result:
		assert.Equal(t, []byte("%PDF-1.4"), b)
	case <-time.After(time.Second):
		t.Fatal("reply never ran")
	}
}

func TestPostTaskAndReplyWithResult_ClosedReplyTarget(t *testing.T) {
	pool := NewPool(2, nil)
	defer pool.Close()

	seq := NewSequence("primary", 4, nil)
	seq.Close()

	replied := make(chan struct{}, 1)
	dropped := make(chan error, 1)
	err := PostTaskAndReplyWithResult(pool, seq,
		func() int { return 42 },
		func(int) { replied <- struct{}{} },
		func(v int, err error) {
			assert.Equal(t, 42, v)
			dropped <- err
		},
	)
	require.NoError(t, err)

	select {
	case err := <-dropped:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("dropped reply was never reported")
	}
	assert.Empty(t, replied)
}
