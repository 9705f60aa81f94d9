package router

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"stockwatch/metrics"
	"stockwatch/queue"
)

// Notifier performs the terminal, side-effecting delivery of one routed
// event.
type Notifier interface {
	Notify(ctx context.Context, env Envelope) error
}

// Drainer pulls envelopes off the dispatch queue strictly one at a time and
// hands them to the notifier. Final dispatch must not run against itself, so
// the next receive only happens after the current envelope is acked or
// nacked.
type Drainer struct {
	queue    queue.Queue
	notifier Notifier
	log      *zap.SugaredLogger
}

func NewDrainer(q queue.Queue, notifier Notifier, log *zap.SugaredLogger) *Drainer {
	return &Drainer{queue: q, notifier: notifier, log: log}
}

// Drain blocks until the context is canceled.
func (d *Drainer) Drain(ctx context.Context) {
	for {
		msg, err := d.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			d.log.Errorw("Queue receive error", "error", err)
			continue
		}

		var env Envelope
		if err := json.Unmarshal(msg.Body, &env); err != nil {
			// Redelivery cannot repair a malformed envelope.
			d.log.Errorw("Dropping malformed envelope", "message_id", msg.ID, "error", err)
			metrics.IncrementMalformedEvents()
			d.queue.Ack(msg.ID)
			continue
		}

		if err := d.notifier.Notify(ctx, env); err != nil {
			d.log.Warnw("Notification failed, leaving for redelivery",
				"message_id", msg.ID,
				"envelope_id", env.ID,
				"error", err,
			)
			d.queue.Nack(msg.ID)
			continue
		}

		d.queue.Ack(msg.ID)
		metrics.IncrementNotifications()
	}
}
