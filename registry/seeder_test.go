package registry

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"stockwatch/models"
	"stockwatch/store"
)

type nopSink struct{}

func (nopSink) Emit(models.ChangeEvent) {}

// failingStore fails writes for one ticker and delegates the rest.
type failingStore struct {
	store.Store
	failTicker string
}

func (s *failingStore) Put(ctx context.Context, rec models.Record) error {
	if rec.Ticker == s.failTicker {
		return errors.New("write rejected")
	}
	return s.Store.Put(ctx, rec)
}

func entries() []Entry {
	return []Entry{
		{Name: "BTC", Ticker: "BINANCE:BTCUSDT"},
		{Name: "ETH", Ticker: "BINANCE:ETHUSDT"},
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	table := store.NewTable(store.NewMemoryStore(), nopSink{})
	seeder := NewSeeder(table, zap.NewNop().Sugar())
	ctx := context.Background()

	if err := seeder.Seed(ctx, entries()); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if err := seeder.Seed(ctx, entries()); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	rows, err := table.List(ctx, models.RecordTypeSymbol)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected exactly one row per ticker, got %d rows", len(rows))
	}
}

func TestSeedSupersetAddsOnlyNewSymbols(t *testing.T) {
	table := store.NewTable(store.NewMemoryStore(), nopSink{})
	seeder := NewSeeder(table, zap.NewNop().Sugar())
	ctx := context.Background()

	if err := seeder.Seed(ctx, entries()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	superset := append(entries(), Entry{Name: "SOL", Ticker: "BINANCE:SOLUSDT"})
	if err := seeder.Seed(ctx, superset); err != nil {
		t.Fatalf("superset seed: %v", err)
	}

	rows, _ := table.List(ctx, models.RecordTypeSymbol)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows after superset seed, got %d", len(rows))
	}
}

func TestSeedAppliesRemainingEntriesOnFailure(t *testing.T) {
	backing := &failingStore{Store: store.NewMemoryStore(), failTicker: "BINANCE:BTCUSDT"}
	table := store.NewTable(backing, nopSink{})
	seeder := NewSeeder(table, zap.NewNop().Sugar())
	ctx := context.Background()

	err := seeder.Seed(ctx, entries())
	if err == nil {
		t.Fatal("expected an error for the failing entry")
	}

	_, found, _ := table.Get(ctx, models.RecordTypeSymbol, "BINANCE:ETHUSDT")
	if !found {
		t.Fatal("entry after the failing one was not applied")
	}
}

func TestSeedRejectsEmptyTicker(t *testing.T) {
	table := store.NewTable(store.NewMemoryStore(), nopSink{})
	seeder := NewSeeder(table, zap.NewNop().Sugar())

	err := seeder.Seed(context.Background(), []Entry{{Name: "BAD"}})
	if err == nil {
		t.Fatal("expected an error for an empty ticker")
	}
}
