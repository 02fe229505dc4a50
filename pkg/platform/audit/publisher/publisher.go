// Package publisher emits audit events to an appender, either synchronously
// or through a buffered background goroutine.
//
// Sync mode (default) is fail-closed: Emit blocks until the append succeeds
// and the caller sees the error. Async mode trades that guarantee for not
// stalling the engine's cooperative scheduling on a slow sink; Close drains
// the buffer.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "consentgate/pkg/platform/audit"
)

// Publisher emits audit events. Zero-value is not usable; construct with New.
type Publisher struct {
	sink   audit.Appender
	logger *slog.Logger

	inbox     chan audit.Event
	closeOnce sync.Once
	done      chan struct{}
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for append failures in async mode.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAsyncBuffer switches the publisher to buffered async mode with the
// given capacity.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

// New creates a publisher over the given sink.
func New(sink audit.Appender, opts ...Option) *Publisher {
	p := &Publisher{
		sink:   sink,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.drain()
	} else {
		close(p.done)
	}
	return p
}

// Emit records an event. In sync mode the append error is returned; in async
// mode Emit only fails when the buffer is full.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.inbox == nil {
		return p.sink.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
		return nil
	default:
		p.logger.Warn("audit buffer full, dropping event", "action", event.Action)
		return nil
	}
}

// Close stops the async worker after draining buffered events. Safe to call
// multiple times and in sync mode.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
		}
	})
	<-p.done
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		// Detached context: the emitting request is long gone by now.
		if err := p.sink.Append(context.Background(), event); err != nil {
			p.logger.Error("audit append failed", "action", event.Action, "error", err)
		}
	}
}
