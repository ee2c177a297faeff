package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the outage service.
type Metrics struct {
	OutageWrites       *prometheus.CounterVec // labels: op={create,update,delete}, outcome={ok,invalid,not_found,error}
	MergesPerformed    prometheus.Counter
	RowsSuperseded     prometheus.Counter
	SchedulesAssembled prometheus.Counter

	// Change-feed metrics.
	EventsPublished    prometheus.Counter
	EventPublishErrors prometheus.Counter

	RequestDuration *prometheus.HistogramVec // labels: route, method
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.OutageWrites,
		m.MergesPerformed,
		m.RowsSuperseded,
		m.SchedulesAssembled,
		m.EventsPublished,
		m.EventPublishErrors,
		m.RequestDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		OutageWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "delestage",
			Name:      "outage_writes_total",
			Help:      "Outage write operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		MergesPerformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "delestage",
			Name:      "merges_performed_total",
			Help:      "Writes that coalesced overlapping outage windows.",
		}),
		RowsSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "delestage",
			Name:      "rows_superseded_total",
			Help:      "Stored outage rows deleted because a merge absorbed them.",
		}),
		SchedulesAssembled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "delestage",
			Name:      "schedules_assembled_total",
			Help:      "Schedule read requests served.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "delestage",
			Name:      "events_published_total",
			Help:      "Outage change events published to the change feed.",
		}),
		EventPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "delestage",
			Name:      "event_publish_errors_total",
			Help:      "Change feed publish failures (writes still succeed).",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "delestage",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}, []string{"route", "method"}),
	}
}
