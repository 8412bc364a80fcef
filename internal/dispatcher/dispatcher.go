package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace/internal/logger"
	"github.com/feral-file/ff-marketplace/internal/metrics"
)

// Handler handles a single side-effect message
type Handler func(ctx context.Context, msg Message) error

// Config holds the configuration for the dispatcher
type Config struct {
	// Workers is the number of handlers that may run concurrently
	Workers int
}

// Failure describes a handler that failed to process a message
type Failure struct {
	MessageID ulid.ULID
	Kind      Kind
	Handler   string
	Err       error
}

// Report is the outcome of a dispatch. Every subscribed handler has finished by the
// time it is returned.
type Report struct {
	Delivered int
	Failures  []Failure
}

// OK reports whether every handler succeeded
func (r Report) OK() bool {
	return len(r.Failures) == 0
}

// Dispatcher fans side-effect messages out to the handlers subscribed to their kind
//
//go:generate mockgen -source=dispatcher.go -destination=../mocks/dispatcher.go -package=mocks -mock_names=Dispatcher=MockDispatcher
type Dispatcher interface {
	// Subscribe registers a named handler for a message kind
	Subscribe(kind Kind, name string, handler Handler)

	// Dispatch delivers the messages to their handlers and waits for all of them.
	// A failing handler neither blocks its siblings nor affects the caller's state.
	Dispatch(ctx context.Context, msgs ...Message) Report

	// Close stops the worker pool after in-flight handlers finish
	Close()
}

type subscriber struct {
	name    string
	handler Handler
}

type dispatcher struct {
	mu          sync.RWMutex
	subscribers map[Kind][]subscriber
	pool        pond.Pool
}

// New creates a dispatcher backed by a bounded worker pool
func New(cfg Config) Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &dispatcher{
		subscribers: make(map[Kind][]subscriber),
		pool:        pond.NewPool(workers),
	}
}

// Subscribe registers a named handler for a message kind
func (d *dispatcher) Subscribe(kind Kind, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.subscribers[kind] = append(d.subscribers[kind], subscriber{name: name, handler: handler})
}

// Dispatch delivers the messages to their handlers and waits for all of them
func (d *dispatcher) Dispatch(ctx context.Context, msgs ...Message) Report {
	var (
		report Report
		mu     sync.Mutex
	)

	if len(msgs) == 0 {
		return report
	}

	d.mu.RLock()
	subscribers := make(map[Kind][]subscriber, len(d.subscribers))
	for k, subs := range d.subscribers {
		subscribers[k] = subs
	}
	d.mu.RUnlock()

	group := d.pool.NewGroup()
	for _, msg := range msgs {
		subs := subscribers[msg.Kind]
		if len(subs) == 0 {
			logger.DebugCtx(ctx, "No subscriber for side-effect message", zap.String("kind", string(msg.Kind)))
			continue
		}

		for _, sub := range subs {
			group.Submit(func() {
				err := invoke(ctx, sub.handler, msg)

				mu.Lock()
				defer mu.Unlock()

				if err == nil {
					report.Delivered++
					return
				}

				report.Failures = append(report.Failures, Failure{
					MessageID: msg.ID,
					Kind:      msg.Kind,
					Handler:   sub.name,
					Err:       err,
				})
				metrics.Pipeline().RecordSideEffectFailure(string(msg.Kind), sub.name)
				logger.ErrorCtx(ctx, fmt.Errorf("side-effect handler failed: %w", err),
					zap.String("kind", string(msg.Kind)),
					zap.String("handler", sub.name),
					zap.String("messageID", msg.ID.String()),
					zap.Any("payload", msg.Payload))
			})
		}
	}

	if err := group.Wait(); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("side-effect dispatch interrupted: %w", err))
	}

	mu.Lock()
	defer mu.Unlock()
	return report
}

// invoke runs a handler and converts a panic into an error
func invoke(ctx context.Context, handler Handler, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return handler(ctx, msg)
}

// Close stops the worker pool after in-flight handlers finish
func (d *dispatcher) Close() {
	d.pool.StopAndWait()
}
