package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stockwatch/bus"
	"stockwatch/metrics"
	"stockwatch/models"
	"stockwatch/stream"
)

// Source is the tag every event published by this pipeline carries.
// Subscribers filter on it.
const Source = "stockwatch"

// Detail types published onto the bus.
const (
	PriceDeltaDetailType = "SymbolPriceDeltaEvent"
	PriceDetailType      = "SymbolPriceEvent"
)

// Dispatcher turns table writes into domain events on the bus. Every DELTA
// write publishes; PRICE writes publish only on overwrite, since the first
// observation is not a price change yet. Redelivered change events produce
// duplicate publications; consumers are expected to tolerate them.
type Dispatcher struct {
	bus bus.Bus
	now func() time.Time
	log *zap.SugaredLogger
}

func NewDispatcher(b bus.Bus, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{bus: b, now: time.Now, log: log}
}

func (d *Dispatcher) Handle(ctx context.Context, ev models.ChangeEvent) error {
	if ev.New.Ticker == "" {
		return fmt.Errorf("%w: change event without ticker", stream.ErrMalformed)
	}

	switch ev.New.Type {
	case models.RecordTypeDelta:
		detail := models.NewPriceDeltaEvent(ev.New.Ticker, ev.New.Delta, ev.New.ComputedAt)
		return d.publish(ctx, PriceDeltaDetailType, detail)
	case models.RecordTypePrice:
		if ev.Kind != models.ChangeModify {
			return nil
		}
		detail := models.NewPriceEvent(ev.New.Ticker, ev.New.Price)
		return d.publish(ctx, PriceDetailType, detail)
	default:
		return nil
	}
}

func (d *Dispatcher) publish(ctx context.Context, detailType string, detail interface{}) error {
	raw, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", stream.ErrMalformed, detailType, err)
	}

	err = d.bus.Publish(ctx, bus.Event{
		Source:     Source,
		DetailType: detailType,
		Detail:     raw,
		Time:       d.now(),
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", detailType, err)
	}

	d.log.Infow("Domain event published", "detail_type", detailType)
	metrics.IncrementEventsPublished(detailType)

	return nil
}
