package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Prometheus metrics
	symbolsProcessedMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockwatch_symbols_processed_total",
		Help: "The total number of symbols processed by fetch runs",
	})

	fetchFailuresMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockwatch_fetch_failures_total",
		Help: "Total number of per-symbol quote fetch failures",
	})

	runsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockwatch_runs_total",
		Help: "Total number of orchestrator runs by outcome",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stockwatch_run_duration_seconds",
		Help:    "Time spent per orchestrator run",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	skippedTicksMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockwatch_scheduler_skipped_ticks_total",
		Help: "Scheduler ticks skipped because the previous run was still in flight",
	})

	deltasComputedMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockwatch_deltas_computed_total",
		Help: "Total number of price deltas computed",
	})

	eventsPublishedMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockwatch_events_published_total",
		Help: "Total number of domain events published by type",
	}, []string{"type"})

	eventsRoutedMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockwatch_events_routed_total",
		Help: "Total number of domain events routed onto the dispatch queue",
	})

	notificationsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockwatch_notifications_total",
		Help: "Total number of notifications delivered by the drain consumer",
	})

	deadLettersMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockwatch_dead_letters_total",
		Help: "Events that exhausted redelivery and were surfaced for inspection",
	})

	malformedEventsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockwatch_malformed_events_total",
		Help: "Change events dropped because required fields were missing",
	})

	// Internal counters
	symbolsProcessed uint64
	fetchFailures    uint64
	lastRunFinished  atomic.Int64
	startTime        = time.Now()
)

func IncrementSymbolsProcessed() {
	atomic.AddUint64(&symbolsProcessed, 1)
	symbolsProcessedMetric.Inc()
}

func IncrementFetchFailures() {
	atomic.AddUint64(&fetchFailures, 1)
	fetchFailuresMetric.Inc()
}

func ObserveRun(outcome string, duration time.Duration) {
	runsMetric.WithLabelValues(outcome).Inc()
	runDuration.Observe(duration.Seconds())
	lastRunFinished.Store(time.Now().Unix())
}

func IncrementSkippedTicks() {
	skippedTicksMetric.Inc()
}

func IncrementDeltasComputed() {
	deltasComputedMetric.Inc()
}

func IncrementEventsPublished(eventType string) {
	eventsPublishedMetric.WithLabelValues(eventType).Inc()
}

func IncrementEventsRouted() {
	eventsRoutedMetric.Inc()
}

func IncrementNotifications() {
	notificationsMetric.Inc()
}

func IncrementDeadLetters() {
	deadLettersMetric.Inc()
}

func IncrementMalformedEvents() {
	malformedEventsMetric.Inc()
}

func GetStats() (uint64, uint64, time.Time, time.Duration) {
	return atomic.LoadUint64(&symbolsProcessed),
		atomic.LoadUint64(&fetchFailures),
		time.Unix(lastRunFinished.Load(), 0),
		time.Since(startTime)
}

// StatsHandler serves the atomic snapshot as plain text, a cheap peek at the
// pipeline without scraping /metrics.
func StatsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	processed, failures, lastRun, uptime := GetStats()
	w.Write([]byte(
		"stockwatch_symbols_processed_total " + strconv.FormatUint(processed, 10) + "\n" +
			"stockwatch_fetch_failures_total " + strconv.FormatUint(failures, 10) + "\n" +
			"stockwatch_last_run_finished_timestamp " + strconv.FormatInt(lastRun.Unix(), 10) + "\n" +
			"stockwatch_uptime_seconds " + strconv.FormatFloat(uptime.Seconds(), 'f', 1, 64) + "\n",
	))
}
