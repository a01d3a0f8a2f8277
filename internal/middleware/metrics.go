package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics. It also observes analysis runs.
type Metrics struct {
	RequestsTotal      atomic.Uint64
	RequestsInProgress atomic.Int64
	RequestsSuccess    atomic.Uint64
	RequestsFailed     atomic.Uint64

	RunsTotal     atomic.Uint64
	RunsRunning   atomic.Int64
	RunsCompleted atomic.Uint64
	RunsCancelled atomic.Uint64
	RunsFailed    atomic.Uint64
	ItemsAnalyzed atomic.Uint64
	ItemsDegraded atomic.Uint64

	StartTime time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

func (m *Metrics) RunStarted() {
	m.RunsTotal.Add(1)
	m.RunsRunning.Add(1)
}

func (m *Metrics) ItemAnalyzed(failed bool) {
	m.ItemsAnalyzed.Add(1)
	if failed {
		m.ItemsDegraded.Add(1)
	}
}

func (m *Metrics) RunFinished(state string) {
	m.RunsRunning.Add(-1)
	switch state {
	case "COMPLETED":
		m.RunsCompleted.Add(1)
	case "CANCELLED":
		m.RunsCancelled.Add(1)
	default:
		m.RunsFailed.Add(1)
	}
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]any {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]any{
		"requests_total":       m.RequestsTotal.Load(),
		"requests_in_progress": m.RequestsInProgress.Load(),
		"requests_success":     m.RequestsSuccess.Load(),
		"requests_failed":      m.RequestsFailed.Load(),
		"runs_total":           m.RunsTotal.Load(),
		"runs_running":         m.RunsRunning.Load(),
		"runs_completed":       m.RunsCompleted.Load(),
		"runs_cancelled":       m.RunsCancelled.Load(),
		"runs_failed":          m.RunsFailed.Load(),
		"items_analyzed":       m.ItemsAnalyzed.Load(),
		"items_degraded":       m.ItemsDegraded.Load(),
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
		"memory": map[string]any{
			"alloc_bytes":       mem.Alloc,
			"total_alloc_bytes": mem.TotalAlloc,
			"sys_bytes":         mem.Sys,
			"num_gc":            mem.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsTotal.Add(1)
		m.RequestsInProgress.Add(1)
		defer m.RequestsInProgress.Add(-1)

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			m.RequestsSuccess.Add(1)
		} else {
			m.RequestsFailed.Add(1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.Snapshot())
}
