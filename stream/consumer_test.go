package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"stockwatch/models"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func priceEvent(id, ticker string) models.ChangeEvent {
	return models.ChangeEvent{
		ID:   id,
		Kind: models.ChangeInsert,
		New:  models.Record{Type: models.RecordTypePrice, Ticker: ticker},
	}
}

type handlerLog struct {
	mu    sync.Mutex
	calls map[string]int
}

func newHandlerLog() *handlerLog {
	return &handlerLog{calls: make(map[string]int)}
}

func (h *handlerLog) record(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls[id]++
	return h.calls[id]
}

func (h *handlerLog) count(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[id]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestConsumerProcessesBatch(t *testing.T) {
	topic := NewTopic(testLogger())
	sub := topic.Subscribe("test", Filter{}, 16)

	calls := newHandlerLog()
	handler := func(ctx context.Context, ev models.ChangeEvent) error {
		calls.record(ev.ID)
		return nil
	}

	c := NewConsumer(sub, handler, ConsumerConfig{BatchSize: 10, Window: 20 * time.Millisecond, MaxRetries: 1}, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	for i := 0; i < 3; i++ {
		topic.Emit(priceEvent(fmt.Sprintf("ev-%d", i), "BINANCE:BTCUSDT"))
	}

	waitFor(t, func() bool {
		return calls.count("ev-0") == 1 && calls.count("ev-1") == 1 && calls.count("ev-2") == 1
	})
}

func TestConsumerRetriesFailedEventOnce(t *testing.T) {
	topic := NewTopic(testLogger())
	sub := topic.Subscribe("test", Filter{}, 16)

	calls := newHandlerLog()
	handler := func(ctx context.Context, ev models.ChangeEvent) error {
		if ev.ID == "flaky" && calls.record(ev.ID) == 1 {
			return errors.New("transient store failure")
		}
		if ev.ID != "flaky" {
			calls.record(ev.ID)
		}
		return nil
	}

	c := NewConsumer(sub, handler, ConsumerConfig{BatchSize: 10, Window: 10 * time.Millisecond, MaxRetries: 1}, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	topic.Emit(priceEvent("flaky", "BINANCE:BTCUSDT"))
	topic.Emit(priceEvent("steady", "BINANCE:ETHUSDT"))

	// The failing event is retried; its batch-mate is not reprocessed.
	waitFor(t, func() bool { return calls.count("flaky") == 2 })
	time.Sleep(50 * time.Millisecond)
	if got := calls.count("steady"); got != 1 {
		t.Fatalf("batch-mate reprocessed %d times, want 1", got)
	}
}

func TestConsumerDeadLettersAfterRetryBudget(t *testing.T) {
	topic := NewTopic(testLogger())
	sub := topic.Subscribe("test", Filter{}, 16)

	calls := newHandlerLog()
	handler := func(ctx context.Context, ev models.ChangeEvent) error {
		calls.record(ev.ID)
		return errors.New("permanent failure")
	}

	var (
		mu   sync.Mutex
		dead []string
	)
	deadLetter := func(ev models.ChangeEvent, err error) {
		mu.Lock()
		dead = append(dead, ev.ID)
		mu.Unlock()
	}

	c := NewConsumer(sub, handler, ConsumerConfig{BatchSize: 10, Window: 10 * time.Millisecond, MaxRetries: 1}, deadLetter, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	topic.Emit(priceEvent("poison", "BINANCE:BTCUSDT"))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dead) == 1
	})

	// One initial attempt plus exactly one redelivery, never a third.
	time.Sleep(100 * time.Millisecond)
	if got := calls.count("poison"); got != 2 {
		t.Fatalf("poison event attempted %d times, want 2", got)
	}
}

func TestConsumerDropsMalformedEventsWithoutRetry(t *testing.T) {
	topic := NewTopic(testLogger())
	sub := topic.Subscribe("test", Filter{}, 16)

	calls := newHandlerLog()
	handler := func(ctx context.Context, ev models.ChangeEvent) error {
		calls.record(ev.ID)
		return fmt.Errorf("%w: missing ticker", ErrMalformed)
	}

	var deadLettered atomic.Bool
	deadLetter := func(models.ChangeEvent, error) { deadLettered.Store(true) }

	c := NewConsumer(sub, handler, ConsumerConfig{BatchSize: 10, Window: 10 * time.Millisecond, MaxRetries: 1}, deadLetter, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	topic.Emit(priceEvent("malformed", "BINANCE:BTCUSDT"))

	waitFor(t, func() bool { return calls.count("malformed") == 1 })
	time.Sleep(50 * time.Millisecond)
	if got := calls.count("malformed"); got != 1 {
		t.Fatalf("malformed event retried: %d attempts, want 1", got)
	}
	if deadLettered.Load() {
		t.Fatal("malformed events are dropped, not dead-lettered")
	}
}

func TestConsumerRecoversFromHandlerPanic(t *testing.T) {
	topic := NewTopic(testLogger())
	sub := topic.Subscribe("test", Filter{}, 16)

	calls := newHandlerLog()
	handler := func(ctx context.Context, ev models.ChangeEvent) error {
		if ev.ID == "bomb" {
			calls.record(ev.ID)
			panic("poisoned row image")
		}
		calls.record(ev.ID)
		return nil
	}

	c := NewConsumer(sub, handler, ConsumerConfig{BatchSize: 10, Window: 10 * time.Millisecond, MaxRetries: 0}, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	topic.Emit(priceEvent("bomb", "BINANCE:BTCUSDT"))
	topic.Emit(priceEvent("after", "BINANCE:ETHUSDT"))

	// The loop survives the panic and keeps consuming.
	waitFor(t, func() bool { return calls.count("after") == 1 })
}

func TestFilterSelectsTypeAndKind(t *testing.T) {
	f := Filter{
		Types: []models.RecordType{models.RecordTypePrice},
		Kinds: []models.ChangeKind{models.ChangeModify},
	}

	match := models.ChangeEvent{Kind: models.ChangeModify, New: models.Record{Type: models.RecordTypePrice}}
	if !f.Match(match) {
		t.Fatal("expected PRICE MODIFY to match")
	}

	wrongKind := models.ChangeEvent{Kind: models.ChangeInsert, New: models.Record{Type: models.RecordTypePrice}}
	if f.Match(wrongKind) {
		t.Fatal("INSERT must not match a MODIFY-only filter")
	}

	wrongType := models.ChangeEvent{Kind: models.ChangeModify, New: models.Record{Type: models.RecordTypeDelta}}
	if f.Match(wrongType) {
		t.Fatal("DELTA must not match a PRICE-only filter")
	}
}
