package router

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"stockwatch/bus"
	"stockwatch/queue"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestRouterEnvelopesMatchingEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewMemoryBus(testLogger())
	q := queue.NewMemoryQueue(8, 2, nil, testLogger())
	r := NewRouter(b, q, "stockwatch-price-events", bus.Filter{Source: "stockwatch"}, testLogger())
	go r.Run(ctx)

	// Give the subscription a moment to register.
	time.Sleep(20 * time.Millisecond)

	_ = b.Publish(ctx, bus.Event{
		Source:     "stockwatch",
		DetailType: "SymbolPriceDeltaEvent",
		Detail:     json.RawMessage(`{"symbol":"AAPL","delta":"5","type":"price_delta"}`),
		Time:       time.Now(),
	})
	_ = b.Publish(ctx, bus.Event{
		Source:     "unrelated",
		DetailType: "SomethingElse",
		Detail:     json.RawMessage(`{}`),
	})

	receiveCtx, receiveCancel := context.WithTimeout(ctx, time.Second)
	defer receiveCancel()
	msg, err := q.Receive(receiveCtx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Rule != "stockwatch-price-events" {
		t.Fatalf("rule: got %q", env.Rule)
	}
	if env.ID == "" {
		t.Fatal("envelope must carry an ID")
	}
	if env.Event.DetailType != "SymbolPriceDeltaEvent" {
		t.Fatalf("event detail type: got %q", env.Event.DetailType)
	}
	q.Ack(msg.ID)

	// The unrelated event must not have been routed.
	shortCtx, shortCancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer shortCancel()
	if _, err := q.Receive(shortCtx); err == nil {
		t.Fatal("non-matching event was routed")
	}
}

type flakyNotifier struct {
	mu       sync.Mutex
	failures int
	notified []Envelope
}

func (n *flakyNotifier) Notify(_ context.Context, env Envelope) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failures > 0 {
		n.failures--
		return errors.New("notification send failed")
	}
	n.notified = append(n.notified, env)
	return nil
}

func (n *flakyNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notified)
}

func enqueueEnvelope(t *testing.T, q queue.Queue, id string) {
	t.Helper()
	body, err := json.Marshal(Envelope{
		ID:         id,
		Rule:       "stockwatch-price-events",
		ReceivedAt: time.Now(),
		Event:      bus.Event{Source: "stockwatch", DetailType: "SymbolPriceDeltaEvent", Detail: json.RawMessage(`{}`)},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := q.Enqueue(context.Background(), body); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
}

func TestDrainerRedeliversFailedNotification(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewMemoryQueue(8, 2, nil, testLogger())
	notifier := &flakyNotifier{failures: 1}
	d := NewDrainer(q, notifier, testLogger())
	go d.Drain(ctx)

	enqueueEnvelope(t, q, "env-1")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if notifier.count() == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("envelope was not redelivered after a failed notification")
}

func TestDrainerDropsMalformedEnvelope(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewMemoryQueue(8, 2, nil, testLogger())
	notifier := &flakyNotifier{}
	d := NewDrainer(q, notifier, testLogger())
	go d.Drain(ctx)

	_ = q.Enqueue(ctx, []byte("not json"))
	enqueueEnvelope(t, q, "env-1")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if notifier.count() == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("drainer stalled on a malformed envelope")
}
