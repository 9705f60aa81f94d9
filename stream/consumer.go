package stream

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"stockwatch/metrics"
	"stockwatch/models"
)

// ErrMalformed marks a change event that is missing fields the handler
// needs. Malformed events are dropped immediately: redelivery cannot repair
// the data.
var ErrMalformed = errors.New("malformed change event")

// Handler processes a single change event. Returning an error schedules the
// event for redelivery, except for ErrMalformed.
type Handler func(ctx context.Context, ev models.ChangeEvent) error

// DeadLetter receives events that exhausted their redeliveries.
type DeadLetter func(ev models.ChangeEvent, err error)

type ConsumerConfig struct {
	// BatchSize bounds how many events one processing round may hold.
	BatchSize int
	// Window bounds how long a partial batch is buffered before it is
	// processed anyway.
	Window time.Duration
	// MaxRetries bounds redeliveries per event. With MaxRetries 1 an event
	// is attempted at most twice before it is dead-lettered.
	MaxRetries int
}

func (c *ConsumerConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.Window <= 0 {
		c.Window = 5 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
}

// Consumer drains a subscription in bounded batches and reports success or
// failure per event, not per batch. Failed events are redelivered in a later
// batch until MaxRetries is spent, then handed to the dead-letter hook.
type Consumer struct {
	sub        *Subscription
	handler    Handler
	cfg        ConsumerConfig
	deadLetter DeadLetter
	log        *zap.SugaredLogger

	attempts map[string]int
	redub    []models.ChangeEvent
}

func NewConsumer(sub *Subscription, handler Handler, cfg ConsumerConfig, deadLetter DeadLetter, log *zap.SugaredLogger) *Consumer {
	cfg.applyDefaults()
	return &Consumer{
		sub:        sub,
		handler:    handler,
		cfg:        cfg,
		deadLetter: deadLetter,
		log:        log,
		attempts:   make(map[string]int),
	}
}

// Run loops until the context is canceled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		batch, ok := c.collect(ctx)
		if !ok {
			return
		}
		c.process(ctx, batch)
	}
}

// collect gathers up to BatchSize events, waiting at most Window after the
// first one arrives. Events awaiting redelivery are drained first.
func (c *Consumer) collect(ctx context.Context) ([]models.ChangeEvent, bool) {
	var batch []models.ChangeEvent

	if len(c.redub) > 0 {
		n := len(c.redub)
		if n > c.cfg.BatchSize {
			n = c.cfg.BatchSize
		}
		batch = append(batch, c.redub[:n]...)
		c.redub = c.redub[n:]
		if len(batch) >= c.cfg.BatchSize {
			return batch, true
		}
	}

	if len(batch) == 0 {
		select {
		case <-ctx.Done():
			return nil, false
		case ev := <-c.sub.Events():
			batch = append(batch, ev)
		}
	}

	timer := time.NewTimer(c.cfg.Window)
	defer timer.Stop()

	for len(batch) < c.cfg.BatchSize {
		select {
		case <-ctx.Done():
			return batch, len(batch) > 0
		case <-timer.C:
			return batch, true
		case ev := <-c.sub.Events():
			batch = append(batch, ev)
		}
	}

	return batch, true
}

func (c *Consumer) process(ctx context.Context, batch []models.ChangeEvent) {
	for _, ev := range batch {
		err := c.handle(ctx, ev)
		if err == nil {
			delete(c.attempts, ev.ID)
			continue
		}

		if errors.Is(err, ErrMalformed) {
			c.log.Errorw("Dropping malformed change event",
				"subscription", c.sub.Name(),
				"event_id", ev.ID,
				"error", err,
			)
			metrics.IncrementMalformedEvents()
			delete(c.attempts, ev.ID)
			continue
		}

		c.attempts[ev.ID]++
		if c.attempts[ev.ID] > c.cfg.MaxRetries {
			c.log.Errorw("Change event exhausted redeliveries",
				"subscription", c.sub.Name(),
				"event_id", ev.ID,
				"ticker", ev.New.Ticker,
				"attempts", c.attempts[ev.ID],
				"error", err,
			)
			metrics.IncrementDeadLetters()
			delete(c.attempts, ev.ID)
			if c.deadLetter != nil {
				c.deadLetter(ev, err)
			}
			continue
		}

		c.log.Warnw("Change event failed, scheduling redelivery",
			"subscription", c.sub.Name(),
			"event_id", ev.ID,
			"ticker", ev.New.Ticker,
			"error", err,
		)
		c.redub = append(c.redub, ev)
	}
}

// handle invokes the handler with panic recovery so one poisoned event
// cannot take the consumer loop down.
func (c *Consumer) handle(ctx context.Context, ev models.ChangeEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v\n%s", r, debug.Stack())
		}
	}()

	return c.handler(ctx, ev)
}
