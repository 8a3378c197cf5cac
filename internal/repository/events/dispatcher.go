package events

import (
	"context"
	"errors"
	"sync"

	"github.com/oshokin/homee/internal/domain/home"
	"github.com/oshokin/homee/internal/logger"
	"github.com/oshokin/homee/internal/metrics"
)

// Sink accepts events. Emit never fails and never blocks indefinitely on a broken writer.
type Sink interface {
	Emit(ev home.Event)
}

// Writer stores or forwards events. Write errors are logged by the dispatcher and not retried.
type Writer interface {
	Name() string
	Write(ctx context.Context, ev home.Event) error
}

// DefaultBufferSize is the dispatcher queue capacity used when none is configured.
const DefaultBufferSize = 256

// errDispatcherClosed is logged when events arrive after Close.
var errDispatcherClosed = errors.New("dispatcher closed")

// Dispatcher queues events and delivers them to writers from a single goroutine,
// preserving emission order per writer.
type Dispatcher struct {
	// ctx carries the logger for the drain goroutine.
	ctx     context.Context
	queue   chan home.Event
	writers []Writer
	metrics *metrics.Manager
	done    chan struct{}
	// stop is closed by Close and releases emitters blocked on a full queue.
	stop chan struct{}
	// senders counts emitters between the closed check and their send.
	senders sync.WaitGroup

	// mu guards closed. It is never held across a blocking send.
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts a dispatcher delivering to writers.
func NewDispatcher(ctx context.Context, bufferSize int, m *metrics.Manager, writers ...Writer) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	d := &Dispatcher{
		ctx:     logger.WithName(context.WithoutCancel(ctx), "events"),
		queue:   make(chan home.Event, bufferSize),
		writers: writers,
		metrics: m,
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
	}

	go d.drain()

	return d
}

// Emit queues ev. It blocks only while the queue is full, and never past Close.
func (d *Dispatcher) Emit(ev home.Event) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		logger.WarnKV(d.ctx, "Event dropped", "kind", ev.Kind, "error", errDispatcherClosed)

		return
	}

	d.senders.Add(1)
	d.mu.RUnlock()

	defer d.senders.Done()

	select {
	case d.queue <- ev:
	case <-d.stop:
		logger.WarnKV(d.ctx, "Event dropped", "kind", ev.Kind, "error", errDispatcherClosed)
	}
}

// Close stops accepting events, waits until every queued event was delivered and
// closes writers that implement io.Closer. It returns ctx.Err() if ctx ends first.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.stop)

		go func() {
			d.senders.Wait()
			close(d.queue)
		}()
	}
	d.mu.Unlock()

	select {
	case <-d.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var errs []error

	for _, w := range d.writers {
		if c, ok := w.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

func (d *Dispatcher) drain() {
	defer close(d.done)

	for ev := range d.queue {
		d.metrics.RecordEvent(string(ev.Kind))

		for _, w := range d.writers {
			if err := w.Write(d.ctx, ev); err != nil {
				d.metrics.RecordEventWriteError(w.Name())
				logger.ErrorKV(d.ctx, "Event write failed", "writer", w.Name(), "kind", ev.Kind, "error", err)
			}
		}
	}
}
