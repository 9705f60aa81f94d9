package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordType partitions the single watch table. Every row is addressed by
// (record type, ticker).
type RecordType string

const (
	RecordTypeSymbol RecordType = "SYMBOL"
	RecordTypePrice  RecordType = "PRICE"
	RecordTypeDelta  RecordType = "DELTA"
)

// Record is one row of the watch table. Attributes are sparse: SYMBOL rows
// carry DisplayName, PRICE rows carry Price/ObservedAt, DELTA rows carry
// Delta/ComputedAt.
type Record struct {
	Type   RecordType
	Ticker string

	DisplayName string

	Price      decimal.Decimal
	ObservedAt time.Time

	Delta      decimal.Decimal
	ComputedAt time.Time
}

// Key identifies the row the record occupies.
func (r Record) Key() string {
	return string(r.Type) + "/" + r.Ticker
}

func NewSymbolRecord(ticker, displayName string) Record {
	return Record{Type: RecordTypeSymbol, Ticker: ticker, DisplayName: displayName}
}

func NewPriceRecord(ticker string, price decimal.Decimal, observedAt time.Time) Record {
	return Record{Type: RecordTypePrice, Ticker: ticker, Price: price, ObservedAt: observedAt}
}

func NewDeltaRecord(ticker string, delta decimal.Decimal, computedAt time.Time) Record {
	return Record{Type: RecordTypeDelta, Ticker: ticker, Delta: delta, ComputedAt: computedAt}
}
