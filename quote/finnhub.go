package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://finnhub.io/api/v1/crypto/candle"

// Client fetches candles from the finnhub candle endpoint and extracts the
// most recent close. Calls run behind a circuit breaker so a flapping quote
// source fails fast instead of eating the whole fetch budget.
type Client struct {
	baseURL    string
	resolution string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	now        func() time.Time
}

func NewClient(baseURL string, timeout time.Duration, log *zap.SugaredLogger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "quote-source-breaker",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Infow("Circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
	})

	return &Client{
		baseURL:    baseURL,
		resolution: "1",
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		now:        time.Now,
	}
}

// candleResponse is the slice of the finnhub payload the pipeline cares
// about: the close series.
type candleResponse struct {
	Closes []decimal.Decimal `json:"c"`
	Status string            `json:"s"`
}

func (c *Client) LastPrice(ctx context.Context, symbol, token string) (decimal.Decimal, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, symbol, token)
	})
	if err != nil {
		return decimal.Decimal{}, err
	}

	return out.(decimal.Decimal), nil
}

func (c *Client) fetch(ctx context.Context, symbol, token string) (decimal.Decimal, error) {
	to := c.now().Unix()
	from := to - 60

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("token", token)
	query.Set("resolution", c.resolution)
	query.Set("from", strconv.FormatInt(from, 10))
	query.Set("to", strconv.FormatInt(to, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("build quote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("quote request for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return decimal.Decimal{}, fmt.Errorf("%w: status %d for %s", ErrServerStatus, resp.StatusCode, symbol)
	case resp.StatusCode >= 400:
		return decimal.Decimal{}, fmt.Errorf("%w: status %d for %s", ErrClientStatus, resp.StatusCode, symbol)
	}

	var candles candleResponse
	if err := json.NewDecoder(resp.Body).Decode(&candles); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode quote response for %s: %w", symbol, err)
	}
	if len(candles.Closes) == 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: symbol %s", ErrNoData, symbol)
	}

	return candles.Closes[len(candles.Closes)-1], nil
}
