package stream

import (
	"sync"

	"go.uber.org/zap"

	"stockwatch/models"
)

// Filter selects which change events a subscription receives. Empty slices
// match everything.
type Filter struct {
	Types []models.RecordType
	Kinds []models.ChangeKind
}

func (f Filter) Match(ev models.ChangeEvent) bool {
	if len(f.Types) > 0 && !containsType(f.Types, ev.New.Type) {
		return false
	}
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, ev.Kind) {
		return false
	}
	return true
}

func containsType(types []models.RecordType, t models.RecordType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func containsKind(kinds []models.ChangeKind, k models.ChangeKind) bool {
	for _, candidate := range kinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// Topic fans the table's change feed out to filtered subscriptions. Each
// subscription owns a buffered channel; a subscriber that cannot keep up has
// events dropped rather than stalling table writes.
type Topic struct {
	mu   sync.RWMutex
	subs []*Subscription
	log  *zap.SugaredLogger
}

func NewTopic(log *zap.SugaredLogger) *Topic {
	return &Topic{log: log}
}

// Subscribe registers a named subscription. The buffer bounds how many
// undelivered events the subscription may hold.
func (t *Topic) Subscribe(name string, filter Filter, buffer int) *Subscription {
	sub := &Subscription{
		name:   name,
		filter: filter,
		ch:     make(chan models.ChangeEvent, buffer),
	}

	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()

	return sub
}

// Emit delivers the event to every matching subscription.
func (t *Topic) Emit(ev models.ChangeEvent) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, sub := range t.subs {
		if !sub.filter.Match(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			t.log.Warnw("Subscription buffer full, dropping change event",
				"subscription", sub.name,
				"event_id", ev.ID,
				"ticker", ev.New.Ticker,
			)
		}
	}
}

// Subscription is one consumer's view of the change feed.
type Subscription struct {
	name   string
	filter Filter
	ch     chan models.ChangeEvent
}

func (s *Subscription) Name() string { return s.name }

func (s *Subscription) Events() <-chan models.ChangeEvent { return s.ch }
