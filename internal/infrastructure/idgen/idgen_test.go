package idgen

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/pdfpreview/internal/domain/printing"
	"github.com/erp/pdfpreview/internal/infrastructure/config"
)

func TestAtomicGenerator_Sequential(t *testing.T) {
	g := NewAtomicGenerator(10)
	ctx := context.Background()

	first, err := g.Next(ctx)
	require.NoError(t, err)
	second, err := g.Next(ctx)
	require.NoError(t, err)

	assert.Equal(t, printing.RequestID(11), first)
	assert.Equal(t, printing.RequestID(12), second)
}

func TestAtomicGenerator_ConcurrentUnique(t *testing.T) {
	g := NewAtomicGenerator(0)
	const n = 200

	var (
		mu   sync.Mutex
		seen = make(map[printing.RequestID]struct{}, n)
		wg   sync.WaitGroup
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := g.Next(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestAtomicGenerator_Exhausted(t *testing.T) {
	g := NewAtomicGenerator(math.MaxInt64)
	_, err := g.Next(context.Background())
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestNewRedisGenerator_Unreachable(t *testing.T) {
	_, err := NewRedisGenerator(config.RedisConfig{Host: "127.0.0.1", Port: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

func TestRedisGenerator_ClosedClient(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	g := NewRedisGeneratorWithClient(client, "")
	assert.Equal(t, defaultKey, g.key)
	require.NoError(t, g.Close())

	_, err := g.Next(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to allocate request id")

	_, err = g.Reserve(context.Background(), 8)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reserve request ids")
}

func TestNew_Fallbacks(t *testing.T) {
	logger := zaptest.NewLogger(t)

	disabled := New(config.RedisConfig{}, logger)
	assert.IsType(t, &AtomicGenerator{}, disabled)

	unreachable := New(config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}, logger)
	require.IsType(t, &AtomicGenerator{}, unreachable)
	id, err := unreachable.Next(context.Background())
	require.NoError(t, err)
	assert.Positive(t, int64(id))
}
