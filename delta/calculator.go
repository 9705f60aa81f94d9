package delta

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stockwatch/metrics"
	"stockwatch/models"
	"stockwatch/store"
	"stockwatch/stream"
)

// Calculator consumes PRICE change events and maintains one DELTA row per
// ticker: the signed difference between the two most recent observations. It
// never writes PRICE rows.
type Calculator struct {
	table *store.Table
	now   func() time.Time
	log   *zap.SugaredLogger
}

func NewCalculator(table *store.Table, log *zap.SugaredLogger) *Calculator {
	return &Calculator{table: table, now: time.Now, log: log}
}

// Handle processes one PRICE change event. The first observation for a
// ticker has no prior image and therefore no delta; that is a skip, not an
// error.
func (c *Calculator) Handle(ctx context.Context, ev models.ChangeEvent) error {
	if ev.New.Type != models.RecordTypePrice {
		return nil
	}
	if ev.New.Ticker == "" {
		return fmt.Errorf("%w: price event without ticker", stream.ErrMalformed)
	}

	if ev.Old == nil {
		c.log.Debugw("First observation, no delta yet", "ticker", ev.New.Ticker)
		return nil
	}

	delta := ev.New.Price.Sub(ev.Old.Price)
	rec := models.NewDeltaRecord(ev.New.Ticker, delta, c.now())
	if err := c.table.Put(ctx, rec); err != nil {
		return fmt.Errorf("write delta for %s: %w", ev.New.Ticker, err)
	}

	c.log.Infow("Delta stored", "ticker", ev.New.Ticker, "delta", delta.String())
	metrics.IncrementDeltasComputed()

	return nil
}
