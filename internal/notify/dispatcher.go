package notify

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrQueueFull = errors.New("notification queue full")

// Dispatcher queues events and delivers them from a background worker, so a
// slow relay never holds up the request that produced the event. Each delivery
// gets its own timeout, detached from the request context.
type Dispatcher struct {
	next    Notifier
	queue   chan Event
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewDispatcher(next Notifier, size int, timeout time.Duration, log logrus.FieldLogger) *Dispatcher {
	if size < 1 {
		size = 1
	}
	return &Dispatcher{
		next:    next,
		queue:   make(chan Event, size),
		timeout: timeout,
		log:     log,
	}
}

// Notify enqueues ev without blocking.
func (d *Dispatcher) Notify(_ context.Context, ev Event) error {
	select {
	case d.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run delivers queued events until ctx is done. Events still queued at that
// point are dropped and counted in the log.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if n := len(d.queue); n > 0 {
				d.log.WithField("dropped", n).Warn("notification queue not drained at shutdown")
			}
			return
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.next.Notify(ctx, ev); err != nil {
		d.log.WithError(err).WithFields(logrus.Fields{
			"order_id": ev.Order.ID,
			"status":   ev.Order.Status,
		}).Warn("order notification failed")
	}
}
