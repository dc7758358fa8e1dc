// Package metrics exposes Prometheus counters for session and local store activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionEvents counts session lifecycle events by kind.
	SessionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gg_session_events_total",
			Help: "Session lifecycle events (persist, restore, clear, stale, unauthorized)",
		},
		[]string{"event"},
	)

	// StoreMutations counts local store mutations by store, operation and result.
	StoreMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gg_store_mutations_total",
			Help: "Local store mutations",
		},
		[]string{"store", "op", "result"},
	)

	// StorageErrors counts swallowed persistence failures by component.
	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gg_storage_errors_total",
			Help: "Persistence failures that were logged and ignored",
		},
		[]string{"component"},
	)

	// Requests counts outgoing API calls by auth attachment outcome and status class.
	Requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gg_api_requests_total",
			Help: "Outgoing API requests",
		},
		[]string{"auth", "status"},
	)
)

// Session event labels.
const (
	EventPersist      = "persist"
	EventRestore      = "restore"
	EventClear        = "clear"
	EventStale        = "stale"
	EventUnauthorized = "unauthorized"
	EventConfirmed    = "confirmed"
)

// StatusClass maps an HTTP status to 2xx/3xx/4xx/5xx or "error" for transport failures.
func StatusClass(code int) string {
	switch {
	case code <= 0:
		return "error"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
