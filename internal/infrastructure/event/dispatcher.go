package event

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/shardbase/backend/internal/domain/shared"
	"go.uber.org/zap"
)

const (
	defaultQueueSize = 1024
	defaultWorkers   = 4
)

// AsyncDispatcher implements EventBus with a bounded queue and a fixed
// worker pool. Publish only enqueues: the write path that calls it must
// never wait on consumers, so when the queue is full the event is dropped
// and counted instead of applying backpressure.
type AsyncDispatcher struct {
	registry *HandlerRegistry
	logger   *zap.Logger

	queue   chan shared.DomainEvent
	workers int

	// stateMu orders Publish against Stop so an enqueue can never race
	// the queue close
	stateMu sync.RWMutex
	running bool

	dropped atomic.Int64
	wg      sync.WaitGroup
}

// DispatcherOption configures an AsyncDispatcher
type DispatcherOption func(*AsyncDispatcher)

// WithQueueSize sets the bounded queue capacity
func WithQueueSize(size int) DispatcherOption {
	return func(d *AsyncDispatcher) {
		if size > 0 {
			d.queue = make(chan shared.DomainEvent, size)
		}
	}
}

// WithWorkers sets the number of consumer goroutines
func WithWorkers(n int) DispatcherOption {
	return func(d *AsyncDispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithDispatcherLogger sets the logger
func WithDispatcherLogger(logger *zap.Logger) DispatcherOption {
	return func(d *AsyncDispatcher) {
		d.logger = logger
	}
}

// NewAsyncDispatcher creates a new async dispatcher
func NewAsyncDispatcher(opts ...DispatcherOption) *AsyncDispatcher {
	d := &AsyncDispatcher{
		registry: NewHandlerRegistry(),
		logger:   zap.NewNop(),
		queue:    make(chan shared.DomainEvent, defaultQueueSize),
		workers:  defaultWorkers,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish enqueues events for asynchronous delivery. It never blocks:
// events that do not fit in the queue are dropped with a warning, and a
// stopped dispatcher drops everything it receives.
func (d *AsyncDispatcher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()

	for _, evt := range events {
		if !d.running {
			d.drop(evt, "dispatcher not running")
			continue
		}
		select {
		case d.queue <- evt:
		default:
			d.drop(evt, "queue full")
		}
	}
	return nil
}

// Subscribe registers a handler for specific event types
func (d *AsyncDispatcher) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	d.registry.Register(handler, eventTypes...)
	d.logger.Debug("handler subscribed",
		zap.Strings("event_types", eventTypes),
	)
}

// Start launches the worker pool
func (d *AsyncDispatcher) Start(_ context.Context) error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.running {
		return nil
	}
	d.running = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	d.logger.Info("event dispatcher started",
		zap.Int("workers", d.workers),
		zap.Int("queue_size", cap(d.queue)),
	)
	return nil
}

// Stop drains the queue and waits for in-flight handlers
func (d *AsyncDispatcher) Stop(ctx context.Context) error {
	d.stateMu.Lock()
	if !d.running {
		d.stateMu.Unlock()
		return nil
	}
	d.running = false
	close(d.queue)
	d.stateMu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("event dispatcher stopped",
			zap.Int64("dropped_total", d.dropped.Load()),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped reports how many events have been discarded so far
func (d *AsyncDispatcher) Dropped() int64 {
	return d.dropped.Load()
}

func (d *AsyncDispatcher) work() {
	defer d.wg.Done()
	for evt := range d.queue {
		d.dispatch(evt)
	}
}

func (d *AsyncDispatcher) dispatch(evt shared.DomainEvent) {
	// Handlers run after the originating request has completed, so
	// delivery uses a fresh context rather than the request's.
	ctx := context.Background()
	for _, handler := range d.registry.GetHandlers(evt.EventType()) {
		if err := d.dispatchToHandler(ctx, handler, evt); err != nil {
			d.logger.Error("handler failed to process event",
				zap.String("event_type", evt.EventType()),
				zap.String("event_id", evt.EventID().String()),
				zap.Error(err),
			)
		}
	}
}

// dispatchToHandler safely dispatches an event to a handler
func (d *AsyncDispatcher) dispatchToHandler(ctx context.Context, handler shared.EventHandler, evt shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panicked",
				zap.String("event_type", evt.EventType()),
				zap.Any("panic", r),
			)
		}
	}()

	return handler.Handle(ctx, evt)
}

func (d *AsyncDispatcher) drop(evt shared.DomainEvent, reason string) {
	d.dropped.Add(1)
	d.logger.Warn("event dropped",
		zap.String("event_type", evt.EventType()),
		zap.String("event_id", evt.EventID().String()),
		zap.String("reason", reason),
	)
}

// Ensure AsyncDispatcher implements EventBus
var _ shared.EventBus = (*AsyncDispatcher)(nil)
