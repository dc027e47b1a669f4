package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	RunCount          prometheus.Counter
	MessagesFetched   prometheus.Counter
	BugsCreated       prometheus.Counter
	BugsUpdated       prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	ErrorsSkipped     prometheus.Counter
	ProcessingTime    prometheus.Histogram
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		RunCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bug_tracker_run_count",
			Help: "Total number of mailbox reconciliation runs",
		}),
		MessagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bug_tracker_messages_fetched",
			Help: "Total number of unseen messages fetched",
		}),
		BugsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bug_tracker_bugs_created",
			Help: "Total number of bugs created from emails",
		}),
		BugsUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bug_tracker_bugs_updated",
			Help: "Total number of bug updates applied from emails",
		}),
		DuplicatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bug_tracker_duplicates_skipped",
			Help: "Total number of messages skipped as already processed",
		}),
		ErrorsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bug_tracker_errors_skipped",
			Help: "Total number of messages skipped due to errors and left unseen",
		}),
		ProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bug_tracker_processing_duration_seconds",
			Help:    "Time spent on one reconciliation run",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
