package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace for all explore-with-me metrics
const namespace = "ewm"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo exposes build information as labels (value is always 1)
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// Participation metrics
var (
	// RequestsSubmitted counts accepted participation requests by initial status
	RequestsSubmitted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participation_requests_submitted_total",
			Help:      "Total number of participation requests accepted, by initial status",
		},
		[]string{"status"},
	)

	// AdmissionDecisions counts requests confirmed or rejected by admission calls
	AdmissionDecisions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_decisions_total",
			Help:      "Total number of requests decided by admission calls",
		},
		[]string{"outcome"},
	)

	// CapacityExhausted counts operations refused because an event was full
	CapacityExhausted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_exhausted_total",
			Help:      "Total number of submissions or admission calls refused on a full event",
		},
		[]string{"operation"},
	)

	// LedgerOperations counts seat reservations and releases
	LedgerOperations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Total number of capacity ledger reservations and releases",
		},
		[]string{"op"},
	)

	// LedgerDrift counts events whose stored counter disagreed with their CONFIRMED requests
	LedgerDrift = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_drift_corrected_total",
			Help:      "Total number of events whose confirmed counter was corrected by reconciliation",
		},
	)

	// LockContention counts per-event lock timeouts surfaced to callers
	LockContention = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_lock_contention_total",
			Help:      "Total number of operations that timed out waiting for an event lock",
		},
		[]string{"path"},
	)
)

// Init registers runtime collectors and sets version information
func Init(version, commit, buildDate string) {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}

// Handler serves the registry in the Prometheus exposition format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
