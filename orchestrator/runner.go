package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"stockwatch/metrics"
	"stockwatch/models"
	"stockwatch/quote"
	"stockwatch/secrets"
	"stockwatch/store"
)

// Result summarizes one fetch run: how many symbols were attempted and how
// many of them failed.
type Result struct {
	Processed int
	Failed    int
}

type RunnerConfig struct {
	// SecretName is the credential store key holding the quote-source API
	// token.
	SecretName string
	// Concurrency bounds in-flight quote calls. It defaults to 1: fetches
	// run serially so the run never trips the quote source's rate limit.
	Concurrency int
	// FetchTimeout bounds one quote call. A hung fetch fails that symbol
	// only, not the run.
	FetchTimeout time.Duration
}

func (c *RunnerConfig) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
}

// Runner executes one fetch cycle: resolve the API credential, list the
// tracked symbols, fetch a price per symbol behind the concurrency limiter,
// and write each observation the moment it lands. A crash mid-run loses only
// the prices not yet fetched.
type Runner struct {
	table   *store.Table
	gateway quote.Gateway
	creds   secrets.Source
	cfg     RunnerConfig
	limit   chan struct{}
	now     func() time.Time
	log     *zap.SugaredLogger
}

func NewRunner(table *store.Table, gateway quote.Gateway, creds secrets.Source, cfg RunnerConfig, log *zap.SugaredLogger) *Runner {
	cfg.applyDefaults()
	return &Runner{
		table:   table,
		gateway: gateway,
		creds:   creds,
		cfg:     cfg,
		limit:   make(chan struct{}, cfg.Concurrency),
		now:     time.Now,
		log:     log,
	}
}

// Run performs one fetch cycle. A missing credential or unlistable symbol
// set fails the run before any write; a per-symbol fetch failure is counted
// and skipped, with the next scheduled run serving as its retry.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	started := r.now()

	token, err := r.creds.Get(r.cfg.SecretName)
	if err != nil {
		metrics.ObserveRun("credential_error", time.Since(started))
		return Result{}, fmt.Errorf("fetch credential: %w", err)
	}

	symbols, err := r.table.List(ctx, models.RecordTypeSymbol)
	if err != nil {
		metrics.ObserveRun("list_error", time.Since(started))
		return Result{}, fmt.Errorf("list symbols: %w", err)
	}
	if len(symbols) == 0 {
		r.log.Infow("No symbols registered, run is a no-op")
		metrics.ObserveRun("ok", time.Since(started))
		return Result{}, nil
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)

	for _, symbol := range symbols {
		select {
		case r.limit <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			metrics.ObserveRun("canceled", time.Since(started))
			return Result{Processed: len(symbols), Failed: failed}, ctx.Err()
		}

		wg.Add(1)
		go func(symbol models.Record) {
			defer wg.Done()
			defer func() { <-r.limit }()

			if err := r.fetchOne(ctx, symbol.Ticker, token); err != nil {
				r.log.Warnw("Symbol fetch failed, skipping until next run",
					"ticker", symbol.Ticker,
					"error", err,
				)
				metrics.IncrementFetchFailures()
				mu.Lock()
				failed++
				mu.Unlock()
			}
			metrics.IncrementSymbolsProcessed()
		}(symbol)
	}

	wg.Wait()

	result := Result{Processed: len(symbols), Failed: failed}
	r.log.Infow("Fetch run finished",
		"processed", result.Processed,
		"failed", result.Failed,
		"duration", time.Since(started),
	)
	metrics.ObserveRun("ok", time.Since(started))

	return result, nil
}

func (r *Runner) fetchOne(ctx context.Context, ticker, token string) error {
	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()

	price, err := r.gateway.LastPrice(fetchCtx, ticker, token)
	if err != nil {
		return err
	}

	if err := r.table.Put(ctx, models.NewPriceRecord(ticker, price, r.now())); err != nil {
		return fmt.Errorf("write price: %w", err)
	}

	r.log.Infow("Price stored", "ticker", ticker, "price", price.String())
	return nil
}
