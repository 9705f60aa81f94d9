package registry

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"stockwatch/models"
	"stockwatch/store"
)

// Entry is one symbol to track: a display name plus the quote-source ticker.
type Entry struct {
	Name   string `yaml:"name"`
	Ticker string `yaml:"ticker"`
}

// DefaultEntries is the seed list applied when no symbol list is configured.
func DefaultEntries() []Entry {
	return []Entry{
		{Name: "BTC", Ticker: "BINANCE:BTCUSDT"},
		{Name: "ETH", Ticker: "BINANCE:ETHUSDT"},
	}
}

// Seeder ensures every configured symbol exists as a SYMBOL row. Seeding is
// idempotent: rows that already exist are left untouched, so re-running with
// the same or a superset list never duplicates or mutates anything.
type Seeder struct {
	table *store.Table
	log   *zap.SugaredLogger
}

func NewSeeder(table *store.Table, log *zap.SugaredLogger) *Seeder {
	return &Seeder{table: table, log: log}
}

// Seed applies the entries one by one. A failing entry is logged and skipped
// so the rest of the list still lands; the joined error reports every entry
// that could not be applied.
func (s *Seeder) Seed(ctx context.Context, entries []Entry) error {
	var errs []error

	for _, entry := range entries {
		if entry.Ticker == "" {
			errs = append(errs, fmt.Errorf("entry %q: empty ticker", entry.Name))
			continue
		}

		_, found, err := s.table.Get(ctx, models.RecordTypeSymbol, entry.Ticker)
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %q: %w", entry.Ticker, err))
			continue
		}
		if found {
			s.log.Debugw("Symbol already registered", "ticker", entry.Ticker)
			continue
		}

		if err := s.table.Put(ctx, models.NewSymbolRecord(entry.Ticker, entry.Name)); err != nil {
			s.log.Errorw("Failed to register symbol",
				"ticker", entry.Ticker,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("entry %q: %w", entry.Ticker, err))
			continue
		}

		s.log.Infow("Symbol registered", "ticker", entry.Ticker, "name", entry.Name)
	}

	return errors.Join(errs...)
}
