// Package ipc provides the message channel between the host and the
// rendering process of one render session.
package ipc

import (
	"context"
	"errors"
	"sync"

	"github.com/erp/pdfpreview/internal/domain/printing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultBufferSize = 64

// ErrClosed is returned when sending on a closed pipe
var ErrClosed = errors.New("ipc pipe closed")

// pipe is the state shared by both endpoints
type pipe struct {
	session   uuid.UUID
	done      chan struct{}
	closeOnce sync.Once
}

func (p *pipe) close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// Endpoint is one side of a Pipe
type Endpoint struct {
	name   string
	pipe   *pipe
	out    chan<- printing.Message
	recv   chan printing.Message
	logger *zap.Logger
}

// Pipe returns two connected endpoints sharing a fresh session id.
// Messages sent on one are received on the other in order.
func Pipe(bufferSize int, logger *zap.Logger) (host, renderer *Endpoint) {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &pipe{
		session: uuid.New(),
		done:    make(chan struct{}),
	}
	toRenderer := make(chan printing.Message, bufferSize)
	toHost := make(chan printing.Message, bufferSize)

	host = newEndpoint("host", p, toRenderer, toHost, logger)
	renderer = newEndpoint("renderer", p, toHost, toRenderer, logger)
	return host, renderer
}

func newEndpoint(name string, p *pipe, out chan<- printing.Message, in <-chan printing.Message, logger *zap.Logger) *Endpoint {
	e := &Endpoint{
		name: name,
		pipe: p,
		out:  out,
		recv: make(chan printing.Message),
		logger: logger.With(
			zap.String("endpoint", name),
			zap.String("session", p.session.String()),
		),
	}
	go e.pump(in)
	return e
}

// SessionID returns the id shared by both endpoints
func (e *Endpoint) SessionID() uuid.UUID {
	return e.pipe.session
}

// Send delivers msg to the other endpoint, blocking while its buffer is full
func (e *Endpoint) Send(ctx context.Context, msg printing.Message) error {
	select {
	case <-e.pipe.done:
		return ErrClosed
	default:
	}

	if ce := e.logger.Check(zap.DebugLevel, "sending message"); ce != nil {
		if envelope, err := printing.EncodeMessage(msg); err == nil {
			ce.Write(zap.ByteString("envelope", envelope))
		} else {
			ce.Write(zap.String("kind", string(msg.Kind())), zap.Error(err))
		}
	}

	select {
	case e.out <- msg:
		return nil
	case <-e.pipe.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the channel of inbound messages. It is closed once the
// pipe is closed.
func (e *Endpoint) Receive() <-chan printing.Message {
	return e.recv
}

// Close closes the pipe for both endpoints. Buffered messages not yet
// received are dropped.
func (e *Endpoint) Close() error {
	e.pipe.close()
	return nil
}

func (e *Endpoint) pump(in <-chan printing.Message) {
	defer close(e.recv)
	for {
		select {
		case <-e.pipe.done:
			return
		case msg := <-in:
			select {
			case e.recv <- msg:
			case <-e.pipe.done:
				return
			}
		}
	}
}
