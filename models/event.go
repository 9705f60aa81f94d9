package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PriceDeltaEventType = "price_delta"
	PriceEventType      = "price"
)

// EventHeader is the common prefix of every domain event detail. Consumers
// decode it first to learn which concrete event to unmarshal.
type EventHeader struct {
	Type string `json:"type"`
}

func (e EventHeader) IsPriceDeltaEvent() bool {
	return e.Type == PriceDeltaEventType
}

func (e EventHeader) IsPriceEvent() bool {
	return e.Type == PriceEventType
}

// PriceDeltaEvent announces the signed difference between two consecutive
// price observations of a symbol.
type PriceDeltaEvent struct {
	Symbol     string          `json:"symbol"`
	Delta      decimal.Decimal `json:"delta"`
	ComputedAt time.Time       `json:"computed_at"`
	Type       string          `json:"type"`
}

func NewPriceDeltaEvent(symbol string, delta decimal.Decimal, computedAt time.Time) PriceDeltaEvent {
	return PriceDeltaEvent{
		Symbol:     symbol,
		Delta:      delta,
		ComputedAt: computedAt,
		Type:       PriceDeltaEventType,
	}
}

func (e *PriceDeltaEvent) UnmarshalJSON(b []byte) error {
	type plain PriceDeltaEvent

	if err := json.Unmarshal(b, (*plain)(e)); err != nil {
		return err
	}
	if e.Symbol == "" {
		return errors.New("empty symbol")
	}

	return nil
}

// PriceEvent announces a fresh price observation for a symbol.
type PriceEvent struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Type   string          `json:"type"`
}

func NewPriceEvent(symbol string, price decimal.Decimal) PriceEvent {
	return PriceEvent{
		Symbol: symbol,
		Price:  price,
		Type:   PriceEventType,
	}
}

func (e *PriceEvent) UnmarshalJSON(b []byte) error {
	type plain PriceEvent

	if err := json.Unmarshal(b, (*plain)(e)); err != nil {
		return err
	}
	if e.Symbol == "" {
		return errors.New("empty symbol")
	}

	return nil
}
