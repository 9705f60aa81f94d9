package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStatsHandlerReportsSnapshot(t *testing.T) {
	before, _, _, _ := GetStats()
	IncrementSymbolsProcessed()
	IncrementFetchFailures()

	rec := httptest.NewRecorder()
	StatsHandler(rec, httptest.NewRequest("GET", "/stats", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "text/plain" {
		t.Fatalf("content type: got %q", ct)
	}

	body := rec.Body.String()
	for _, line := range []string{
		"stockwatch_symbols_processed_total ",
		"stockwatch_fetch_failures_total ",
		"stockwatch_last_run_finished_timestamp ",
		"stockwatch_uptime_seconds ",
	} {
		if !strings.Contains(body, line) {
			t.Fatalf("stats output missing %q:\n%s", line, body)
		}
	}

	after, _, _, _ := GetStats()
	if after != before+1 {
		t.Fatalf("symbols processed: got %d, want %d", after, before+1)
	}
}
