package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"stockwatch/models"
)

// Table wraps a Store with a change feed: every successful Put emits one
// change event carrying the before and after row images. The read-old /
// write-new / emit sequence runs under a single lock, so per-ticker event
// order matches write order.
type Table struct {
	mu    sync.Mutex
	store Store
	topic ChangeSink
}

// ChangeSink receives the table's change feed.
type ChangeSink interface {
	Emit(ev models.ChangeEvent)
}

func NewTable(store Store, topic ChangeSink) *Table {
	return &Table{store: store, topic: topic}
}

func (t *Table) Put(ctx context.Context, rec models.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	old, found, err := t.store.Get(ctx, rec.Type, rec.Ticker)
	if err != nil {
		return fmt.Errorf("read prior image: %w", err)
	}

	if err := t.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("write row: %w", err)
	}

	ev := models.ChangeEvent{
		ID:   uuid.New().String(),
		Kind: models.ChangeInsert,
		New:  rec,
	}
	if found {
		ev.Kind = models.ChangeModify
		prior := old
		ev.Old = &prior
	}
	t.topic.Emit(ev)

	return nil
}

func (t *Table) Get(ctx context.Context, typ models.RecordType, ticker string) (models.Record, bool, error) {
	return t.store.Get(ctx, typ, ticker)
}

func (t *Table) List(ctx context.Context, typ models.RecordType) ([]models.Record, error) {
	return t.store.List(ctx, typ)
}
