// Package idgen allocates print request ids.
package idgen

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/pdfpreview/internal/domain/printing"
	"github.com/erp/pdfpreview/internal/infrastructure/config"
)

const defaultKey = "pdfpreview:request_id"

// ErrExhausted is returned when a counter no longer yields positive ids
var ErrExhausted = errors.New("idgen: request id space exhausted")

// Generator hands out request ids that are unique for its scope
type Generator interface {
	Next(ctx context.Context) (printing.RequestID, error)
}

// Reserver is a Generator that can claim a block of consecutive ids in one call
type Reserver interface {
	Reserve(ctx context.Context, n int) (printing.RequestID, error)
}

// AtomicGenerator is unique within the process
type AtomicGenerator struct {
	last atomic.Int64
}

// NewAtomicGenerator returns a generator whose first id is start+1
func NewAtomicGenerator(start int64) *AtomicGenerator {
	g := &AtomicGenerator{}
	g.last.Store(start)
	return g
}

func (g *AtomicGenerator) Next(context.Context) (printing.RequestID, error) {
	return toRequestID(g.last.Add(1))
}

// Reserve claims n consecutive ids and returns the first
func (g *AtomicGenerator) Reserve(_ context.Context, n int) (printing.RequestID, error) {
	last := g.last.Add(int64(n))
	if _, err := toRequestID(last); err != nil {
		return 0, err
	}
	return toRequestID(last - int64(n) + 1)
}

// RedisGenerator is unique across every process sharing the counter key
type RedisGenerator struct {
	client *redis.Client
	key    string
}

// NewRedisGenerator connects to Redis and verifies the connection
func NewRedisGenerator(cfg config.RedisConfig) (*RedisGenerator, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisGeneratorWithClient(client, cfg.Key), nil
}

// NewRedisGeneratorWithClient wraps an existing client
func NewRedisGeneratorWithClient(client *redis.Client, key string) *RedisGenerator {
	if key == "" {
		key = defaultKey
	}
	return &RedisGenerator{client: client, key: key}
}

func (g *RedisGenerator) Next(ctx context.Context) (printing.RequestID, error) {
	n, err := g.client.Incr(ctx, g.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate request id: %w", err)
	}
	return toRequestID(n)
}

// Reserve claims n consecutive ids with a single INCRBY and returns the first
func (g *RedisGenerator) Reserve(ctx context.Context, n int) (printing.RequestID, error) {
	last, err := g.client.IncrBy(ctx, g.key, int64(n)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to reserve request ids: %w", err)
	}
	if _, err := toRequestID(last); err != nil {
		return 0, err
	}
	return toRequestID(last - int64(n) + 1)
}

// Close closes the Redis client
func (g *RedisGenerator) Close() error {
	return g.client.Close()
}

func toRequestID(n int64) (printing.RequestID, error) {
	id := printing.RequestID(n)
	if n <= 0 || int64(id) != n {
		return 0, ErrExhausted
	}
	return id, nil
}

// New picks the Redis generator when enabled and falls back to a
// process-local counter when Redis is disabled or unreachable.
func New(cfg config.RedisConfig, logger *zap.Logger) Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return NewAtomicGenerator(0)
	}
	g, err := NewRedisGenerator(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, request ids are process-local",
			zap.String("addr", cfg.RedisAddr()), zap.Error(err))
		return NewAtomicGenerator(time.Now().UnixMilli())
	}
	logger.Info("Request ids allocated from Redis",
		zap.String("addr", cfg.RedisAddr()), zap.String("key", g.key))
	return g
}
