package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// MemoryBus fans events out to in-process subscribers. Delivery is
// at-least-once from the pipeline's point of view: publishing succeeds once
// the event is placed on every matching subscription buffer.
type MemoryBus struct {
	mu   sync.RWMutex
	subs []*memorySub
	log  *zap.SugaredLogger
}

type memorySub struct {
	name   string
	filter Filter
	ch     chan Event
	done   <-chan struct{}
}

func NewMemoryBus(log *zap.SugaredLogger) *MemoryBus {
	return &MemoryBus{log: log}
}

func (b *MemoryBus) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if !sub.filter.Match(ev) {
			continue
		}
		select {
		case <-sub.done:
		case sub.ch <- ev:
		default:
			b.log.Warnw("Subscriber buffer full, dropping event",
				"subscriber", sub.name,
				"detail_type", ev.DetailType,
			)
		}
	}

	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, name string, filter Filter) (<-chan Event, error) {
	sub := &memorySub{
		name:   name,
		filter: filter,
		ch:     make(chan Event, 256),
		done:   ctx.Done(),
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub.ch, nil
}
