package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stockwatch/bus"
	"stockwatch/metrics"
	"stockwatch/queue"
)

// Envelope wraps a matched domain event with routing metadata before it goes
// onto the dispatch queue.
type Envelope struct {
	ID         string    `json:"id"`
	Rule       string    `json:"rule"`
	ReceivedAt time.Time `json:"received_at"`
	Event      bus.Event `json:"event"`
}

// Router subscribes to the bus with a pattern filter and forwards every
// matching event onto the dispatch queue.
type Router struct {
	bus    bus.Bus
	queue  queue.Queue
	rule   string
	filter bus.Filter
	log    *zap.SugaredLogger
}

func NewRouter(b bus.Bus, q queue.Queue, rule string, filter bus.Filter, log *zap.SugaredLogger) *Router {
	return &Router{bus: b, queue: q, rule: rule, filter: filter, log: log}
}

// Run blocks until the context is canceled.
func (r *Router) Run(ctx context.Context) error {
	events, err := r.bus.Subscribe(ctx, r.rule, r.filter)
	if err != nil {
		return fmt.Errorf("subscribe rule %q: %w", r.rule, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}

			env := Envelope{
				ID:         uuid.New().String(),
				Rule:       r.rule,
				ReceivedAt: time.Now(),
				Event:      ev,
			}
			body, err := json.Marshal(env)
			if err != nil {
				r.log.Errorw("Failed to marshal envelope", "rule", r.rule, "error", err)
				continue
			}

			if err := r.queue.Enqueue(ctx, body); err != nil {
				r.log.Errorw("Failed to enqueue envelope", "rule", r.rule, "error", err)
				continue
			}
			metrics.IncrementEventsRouted()
		}
	}
}
