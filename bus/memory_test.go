package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"
)

func publish(t *testing.T, b *MemoryBus, source, detailType string) {
	t.Helper()
	err := b.Publish(context.Background(), Event{
		Source:     source,
		DetailType: detailType,
		Detail:     json.RawMessage(`{}`),
		Time:       time.Now(),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestMemoryBusDeliversToMatchingSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewMemoryBus(zap.NewNop().Sugar())
	matching, _ := b.Subscribe(ctx, "match", Filter{Source: "stockwatch"})
	other, _ := b.Subscribe(ctx, "other", Filter{Source: "somethingelse"})

	publish(t, b, "stockwatch", "SymbolPriceDeltaEvent")

	select {
	case ev := <-matching:
		if ev.DetailType != "SymbolPriceDeltaEvent" {
			t.Fatalf("detail type: got %q", ev.DetailType)
		}
	case <-time.After(time.Second):
		t.Fatal("matching subscriber received nothing")
	}

	select {
	case <-other:
		t.Fatal("source filter leaked an event")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestMemoryBusFiltersOnDetailType(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewMemoryBus(zap.NewNop().Sugar())
	deltasOnly, _ := b.Subscribe(ctx, "deltas", Filter{
		Source:      "stockwatch",
		DetailTypes: []string{"SymbolPriceDeltaEvent"},
	})

	publish(t, b, "stockwatch", "SymbolPriceEvent")
	publish(t, b, "stockwatch", "SymbolPriceDeltaEvent")

	select {
	case ev := <-deltasOnly:
		if ev.DetailType != "SymbolPriceDeltaEvent" {
			t.Fatalf("filter leaked %q", ev.DetailType)
		}
	case <-time.After(time.Second):
		t.Fatal("filtered subscriber received nothing")
	}
}

func TestFilterEmptyMatchesEverything(t *testing.T) {
	f := Filter{}
	if !f.Match(Event{Source: "anything", DetailType: "whatever"}) {
		t.Fatal("empty filter must match any event")
	}
}
