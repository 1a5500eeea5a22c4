package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events when the buffer is full instead of waiting.
	// Event types listed in Retain are exempt and always wait for room or
	// for the caller's context.
	DropIfFull bool
	Retain     []string

	// OnDrop is called synchronously for every discarded event. It must not
	// block.
	OnDrop func(Event)
}

// Dispatcher forwards audit events to a sink from a single worker goroutine.
type Dispatcher struct {
	sink       Sink
	queue      chan Event
	retain     map[string]struct{}
	dropIfFull bool
	onDrop     func(Event)

	// mu guards closed and the close of queue against in-flight sends.
	mu      sync.RWMutex
	closed  bool
	stopped chan struct{}

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewDispatcher starts the worker. It returns nil when audit is disabled; a
// nil *Dispatcher accepts every method as a no-op.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		queue:      make(chan Event, cfg.BufferSize),
		retain:     make(map[string]struct{}, len(cfg.Retain)),
		dropIfFull: cfg.DropIfFull,
		onDrop:     cfg.OnDrop,
		stopped:    make(chan struct{}),
	}
	for _, eventType := range cfg.Retain {
		d.retain[eventType] = struct{}{}
	}

	go d.drain()
	return d
}

func (d *Dispatcher) drain() {
	defer close(d.stopped)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
		d.delivered.Add(1)
	}
}

// Emit queues event. Events after Close are ignored.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if _, keep := d.retain[event.EventType]; d.dropIfFull && !keep {
		select {
		case d.queue <- event:
		default:
			d.drop(event)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.drop(event)
	}
}

func (d *Dispatcher) drop(event Event) {
	d.dropped.Add(1)
	if d.onDrop != nil {
		d.onDrop(event)
	}
}

// Close stops accepting events, lets the worker deliver what is buffered and
// waits for it to exit.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.stopped
}

// Dropped counts discarded events.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered counts events handed to the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
