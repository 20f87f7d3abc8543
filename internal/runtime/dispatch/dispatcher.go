package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/drblury/topicflow/internal/runtime/contracts"
	errspkg "github.com/drblury/topicflow/internal/runtime/errors"
	"github.com/drblury/topicflow/internal/runtime/logging"
)

type dispatchMarker struct{}

// OnDispatchGoroutine reports whether ctx was handed out by the dispatcher
// to a handler.
func OnDispatchGoroutine(ctx context.Context) bool {
	v, _ := ctx.Value(dispatchMarker{}).(bool)
	return v
}

func markDispatch(ctx context.Context) context.Context {
	return context.WithValue(ctx, dispatchMarker{}, true)
}

type delivery struct {
	ctx      context.Context
	msg      contracts.Message
	injected bool
	done     chan error
}

// DefaultQueueSize bounds the number of pending deliveries.
const DefaultQueueSize = 256

// Dispatcher owns the dispatch goroutine. Inbound messages and injected
// messages are handled one at a time, in arrival order, so handlers and the
// sends they trigger never run concurrently.
type Dispatcher struct {
	table    *Table
	handlers *HandlerTable
	logger   logging.ServiceLogger

	queue   chan delivery
	stopped chan struct{}
	once    sync.Once
}

// NewDispatcher returns a Dispatcher queueing up to queueSize deliveries;
// DefaultQueueSize is used when queueSize is not positive.
func NewDispatcher(table *Table, handlers *HandlerTable, logger logging.ServiceLogger, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if handlers == nil {
		handlers = NewHandlerTable()
	}
	return &Dispatcher{
		table:    table,
		handlers: handlers,
		logger:   logging.OrNop(logger),
		queue:    make(chan delivery, queueSize),
		stopped:  make(chan struct{}),
	}
}

// Run processes deliveries until ctx is done. It must be called once.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.once.Do(func() { close(d.stopped) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case del := <-d.queue:
			err := d.handle(del)
			if del.done != nil {
				del.done <- err
			}
		}
	}
}

func (d *Dispatcher) handle(del delivery) error {
	hctx := markDispatch(del.ctx)
	var errs []error
	for _, h := range d.handlers.For(del.msg.MessageFullName(), del.injected) {
		if err := h.Handle(hctx, del.msg); err != nil {
			d.logger.Error("Handler failed", err, logging.LogFields{
				"handler":  h.Name,
				"message":  del.msg.MessageFullName(),
				"injected": del.injected,
			})
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Deliver hands an inbound message to the dispatch goroutine and waits for
// its handlers to finish.
func (d *Dispatcher) Deliver(ctx context.Context, msg contracts.Message) error {
	if msg == nil {
		return errspkg.ErrMessageRequired
	}
	done := make(chan error, 1)
	if err := d.enqueue(ctx, delivery{ctx: ctx, msg: msg, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		return errspkg.ErrNotStarted
	}
}

// Inject queues msg for local handling on the dispatch goroutine and returns
// without waiting. Handlers must not inject: ctx from a handler is rejected.
func (d *Dispatcher) Inject(ctx context.Context, msg contracts.Message) error {
	if msg == nil {
		return errspkg.ErrMessageRequired
	}
	if OnDispatchGoroutine(ctx) {
		return errspkg.ErrInjectFromDispatch
	}
	id := contracts.IDOf(msg)
	if _, ok := d.table.Lookup(id); !ok {
		return &errspkg.UnregisteredMessageError{Message: msg.MessageFullName(), ID: uint64(id)}
	}
	return d.enqueue(ctx, delivery{ctx: context.WithoutCancel(ctx), msg: msg, injected: true})
}

func (d *Dispatcher) enqueue(ctx context.Context, del delivery) error {
	select {
	case d.queue <- del:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		return errspkg.ErrNotStarted
	}
}
