package monitoring

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"time"
)

type HealthStatus struct {
	Status          string            `json:"status"`
	Uptime          string            `json:"uptime"`
	StartTime       time.Time         `json:"start_time"`
	GoroutineCount  int               `json:"goroutine_count"`
	ComponentStatus map[string]string `json:"component_status"`
}

var (
	startTime = time.Now()

	mu           sync.RWMutex
	healthChecks = make(map[string]func() bool)
)

// RegisterHealthCheck adds a named component probe to the /health report.
func RegisterHealthCheck(name string, check func() bool) {
	mu.Lock()
	healthChecks[name] = check
	mu.Unlock()
}

func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:          "ok",
		Uptime:          time.Since(startTime).String(),
		StartTime:       startTime,
		GoroutineCount:  runtime.NumGoroutine(),
		ComponentStatus: make(map[string]string),
	}

	mu.RLock()
	for name, check := range healthChecks {
		if check() {
			status.ComponentStatus[name] = "healthy"
		} else {
			status.ComponentStatus[name] = "unhealthy"
			status.Status = "degraded"
		}
	}
	mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if status.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}
