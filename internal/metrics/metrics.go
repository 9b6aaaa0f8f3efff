// Package metrics holds the Prometheus collectors for the intake pipeline.
package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for NotificationsTotal.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

var (
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadbridge_notifications_total",
			Help: "Vendor notifications handled, by classification and outcome",
		},
		[]string{"kind", "outcome"},
	)

	AutomationLogFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadbridge_automation_log_failures_total",
		Help: "Automation log appends that failed and were dropped",
	})

	ScheduleFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadbridge_schedule_fallbacks_total",
		Help: "Bookings whose date could not be parsed and were scheduled at ingestion time",
	})

	ArchiveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadbridge_archive_failures_total",
		Help: "Raw notification archive writes that failed",
	})
)

// RegisterDBStats exposes database/sql pool statistics.
func RegisterDBStats(db *sql.DB, name string) error {
	return prometheus.Register(collectors.NewDBStatsCollector(db, name))
}
