package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics shared across the application.
// Domain packages keep their own metric structs; these cover cross-cutting
// counters the handlers and workers report into.
type Metrics struct {
	RegistrationsTotal     prometheus.Counter
	ApprovalsTotal         prometheus.Counter
	JournalAppendsTotal    *prometheus.CounterVec
	JournalAppendFailures  prometheus.Counter
	TransitionsCompleted   *prometheus.CounterVec
	MigrationFailures      prometheus.Counter
	GateExportDuration     prometheus.Histogram
	ArchivePurgedTotal     prometheus.Counter
	RequestDurationSeconds *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RegistrationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "altona_registrations_total",
			Help: "Total number of self-registrations received",
		}),
		ApprovalsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "altona_approvals_total",
			Help: "Total number of registrations approved by an admin",
		}),
		JournalAppendsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "altona_journal_appends_total",
			Help: "Change journal rows written, by change type",
		}, []string{"change_type"}),
		JournalAppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "altona_journal_append_failures_total",
			Help: "Change journal writes that failed and were only logged",
		}),
		TransitionsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "altona_transitions_completed_total",
			Help: "Completed property transitions, by migration kind",
		}, []string{"kind"}),
		MigrationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "altona_migration_failures_total",
			Help: "Transition migrations rolled back due to an error",
		}),
		GateExportDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "altona_gate_export_duration_seconds",
			Help:    "Latency of gate register exports",
			Buckets: prometheus.DefBuckets,
		}),
		ArchivePurgedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "altona_archive_purged_total",
			Help: "Archive records removed by the retention purger",
		}),
		RequestDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "altona_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
