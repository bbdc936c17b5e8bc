// Package async decouples event producers from slow outputs with a buffered
// channel and a single drain goroutine.
package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/output"
)

const (
	defaultBufferSize   = 1024
	defaultDrainTimeout = 5 * time.Second
)

var (
	// Events dropped because the buffer was full in drop-on-full mode.
	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avrca_output_async_dropped_total",
		Help: "Events dropped by async outputs with a full buffer.",
	})
	// Inner output write failures seen by the drain goroutine.
	failedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "avrca_output_async_write_errors_total",
		Help: "Inner output write errors observed by async outputs.",
	})
)

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the channel buffer capacity. Default: 1024.
func WithBufferSize(n int) Option {
	return func(a *Async) { a.bufSize = n }
}

// WithOnError sets the callback invoked when the inner output's Write fails.
// Default: logs a warning via slog.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.errFunc = f }
}

// WithDropOnFull makes Write return immediately, dropping the event, when the
// buffer is full instead of blocking.
func WithDropOnFull() Option {
	return func(a *Async) { a.dropOnFull = true }
}

// Async writes into a buffered channel; a background goroutine drains it to
// the wrapped output. Errors from the inner output go to errFunc rather than
// to the caller.
type Async struct {
	inner      output.Output
	ch         chan model.Event
	done       chan struct{}
	errFunc    func(error)
	bufSize    int
	dropOnFull bool
	closeOnce  sync.Once
}

// New wraps an output.Output in an async channel-based writer.
// The background drain goroutine starts immediately.
func New(inner output.Output, opts ...Option) *Async {
	a := &Async{
		inner:   inner,
		bufSize: defaultBufferSize,
		errFunc: func(err error) { slog.Warn("async output write error", "error", err) },
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.bufSize < 1 {
		a.bufSize = 1
	}
	a.ch = make(chan model.Event, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Write sends the event into the channel. By default it blocks while the
// channel is full, returning early only if ctx ends. With WithDropOnFull it
// returns nil immediately and the event is lost.
func (a *Async) Write(ctx context.Context, event model.Event) error {
	if a.dropOnFull {
		select {
		case a.ch <- event:
		default:
			droppedTotal.Inc()
			slog.Warn("async output buffer full, dropping event",
				"event_id", event.ID, "signal", event.Signal)
		}
		return nil
	}
	select {
	case a.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the channel, waits for the drain goroutine to finish
// (with a timeout), then closes the inner output.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.ch)
		select {
		case <-a.done:
		case <-time.After(defaultDrainTimeout):
			slog.Warn("async output drain timed out")
		}
		err = a.inner.Close()
	})
	return err
}

func (a *Async) drain() {
	defer close(a.done)
	for event := range a.ch {
		if err := a.inner.Write(context.Background(), event); err != nil {
			failedTotal.Inc()
			a.errFunc(err)
		}
	}
}
