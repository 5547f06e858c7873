package idgen

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/erp/pdfpreview/internal/domain/printing"
)

const (
	defaultBlockSize     = 64
	defaultRefillTimeout = 2 * time.Second
)

// Prefetcher keeps a block of ids reserved from a possibly remote Generator
// so that Take never waits on it. Take is meant for the primary context;
// Fill and the refills it starts run elsewhere.
type Prefetcher struct {
	source   Generator
	block    int
	timeout  time.Duration
	fallback *AtomicGenerator
	logger   *zap.Logger

	mu        sync.Mutex
	ids       []printing.RequestID
	refilling bool
}

// NewPrefetcher wraps source. block is the number of ids reserved per round
// trip; zero or less picks a default.
func NewPrefetcher(source Generator, block int, logger *zap.Logger) *Prefetcher {
	if block <= 0 {
		block = defaultBlockSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prefetcher{
		source:   source,
		block:    block,
		timeout:  defaultRefillTimeout,
		fallback: NewAtomicGenerator(time.Now().UnixMilli()),
		logger:   logger,
	}
}

// Fill tops the buffer up to a full block. It blocks on the source and must
// not be called on the primary context.
func (p *Prefetcher) Fill(ctx context.Context) error {
	p.mu.Lock()
	need := p.block - len(p.ids)
	p.mu.Unlock()
	if need <= 0 {
		return nil
	}

	ids, err := p.reserve(ctx, need)
	p.mu.Lock()
	p.ids = append(p.ids, ids...)
	p.mu.Unlock()
	return err
}

// Take returns a reserved id without blocking. A buffer running low starts a
// refill in the background; an empty one falls back to a process-local id.
func (p *Prefetcher) Take() (printing.RequestID, error) {
	p.mu.Lock()
	if len(p.ids) <= p.block/2 && !p.refilling {
		p.refilling = true
		go p.refill()
	}
	if len(p.ids) > 0 {
		id := p.ids[0]
		p.ids = p.ids[1:]
		p.mu.Unlock()
		return id, nil
	}
	p.mu.Unlock()

	p.logger.Warn("request id buffer empty, using a process-local id")
	return p.fallback.Next(context.Background())
}

// Next implements Generator without blocking
func (p *Prefetcher) Next(context.Context) (printing.RequestID, error) {
	return p.Take()
}

func (p *Prefetcher) refill() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	defer func() {
		p.mu.Lock()
		p.refilling = false
		p.mu.Unlock()
	}()
	if err := p.Fill(ctx); err != nil {
		p.logger.Warn("failed to refill request ids", zap.Error(err))
	}
}

// reserve claims n ids, in one call when the source supports it. On error
// it returns whatever it managed to claim.
func (p *Prefetcher) reserve(ctx context.Context, n int) ([]printing.RequestID, error) {
	if r, ok := p.source.(Reserver); ok {
		first, err := r.Reserve(ctx, n)
		if err != nil {
			return nil, err
		}
		ids := make([]printing.RequestID, n)
		for i := range ids {
			ids[i] = first + printing.RequestID(i)
		}
		return ids, nil
	}

	ids := make([]printing.RequestID, 0, n)
	for range n {
		id, err := p.source.Next(ctx)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
