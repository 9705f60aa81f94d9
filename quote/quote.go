package quote

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Gateway fetches the latest known price for a symbol from the external
// quote source.
type Gateway interface {
	LastPrice(ctx context.Context, symbol, token string) (decimal.Decimal, error)
}

var (
	// ErrClientStatus marks a 4xx response from the quote source.
	ErrClientStatus = errors.New("quote source rejected the request")
	// ErrServerStatus marks a 5xx response from the quote source.
	ErrServerStatus = errors.New("quote source unavailable")
	// ErrNoData marks a well-formed response that carried no closes to
	// extract a price from.
	ErrNoData = errors.New("quote response carried no close prices")
)
