package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/storefront/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrBusStopped is returned by Publish on an async bus after Stop
var ErrBusStopped = errors.New("event bus stopped")

// BusOption configures an InMemoryEventBus
type BusOption func(*InMemoryEventBus)

// WithAsync dispatches events on a background goroutine through a queue of
// the given size. Publish blocks when the queue is full.
func WithAsync(queueSize int) BusOption {
	return func(b *InMemoryEventBus) {
		if queueSize < 1 {
			queueSize = 1
		}
		b.queue = make(chan envelope, queueSize)
	}
}

type envelope struct {
	ctx   context.Context
	event shared.DomainEvent
}

// InMemoryEventBus implements EventBus with in-memory pub/sub.
// Without WithAsync, handlers run synchronously inside Publish.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	queue    chan envelope
	running  atomic.Bool
	stopOnce sync.Once
	mu       sync.RWMutex // guards sends on queue against close
	wg       sync.WaitGroup
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger, opts ...BusOption) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish hands events to every registered handler. Handler failures are
// logged and never returned to the publisher.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if b.queue == nil {
		for _, event := range events {
			b.dispatch(ctx, event)
		}
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.running.Load() {
		return ErrBusStopped
	}
	// Handlers outlive the request that published the event
	detached := context.WithoutCancel(ctx)
	for _, event := range events {
		select {
		case b.queue <- envelope{ctx: detached, event: event}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers a handler for specific event types
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("handler unsubscribed")
}

// Start starts the dispatch loop of an async bus
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return nil
	}
	if b.queue != nil {
		b.wg.Add(1)
		go b.loop()
	}
	b.logger.Info("event bus started", zap.Bool("async", b.queue != nil))
	return nil
}

// Stop drains queued events and waits for the dispatch loop, or returns
// ctx.Err() if ctx ends first.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	if !b.running.Load() {
		return nil
	}
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.running.Store(false)
		if b.queue != nil {
			close(b.queue)
		}
		b.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		b.logger.Warn("event bus stop timed out with events still queued")
		return ctx.Err()
	}
}

func (b *InMemoryEventBus) loop() {
	defer b.wg.Done()
	for env := range b.queue {
		b.dispatch(env.ctx, env.event)
	}
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, event shared.DomainEvent) {
	for _, handler := range b.registry.GetHandlers(event.EventType()) {
		if err := b.dispatchToHandler(ctx, handler, event); err != nil {
			b.logger.Error("handler failed to process event",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.Error(err),
			)
		}
	}
}

// dispatchToHandler runs one handler, turning a panic into a logged error
func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("event_type", event.EventType()),
				zap.Any("panic", r),
			)
			err = nil
		}
	}()

	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
