package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus instruments.
type Metrics struct {
	QueriesTotal      *prometheus.CounterVec
	UpdatesTotal      prometheus.Counter
	ResetsTotal       prometheus.Counter
	ArcadesCreated    prometheus.Counter
	RequestDuration   *prometheus.HistogramVec
	OperationFailures *prometheus.CounterVec
}

// NewMetrics registers the instruments on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "queuehall_queries_total",
			Help: "Keyword queries answered, labelled by match mode.",
		}, []string{"mode"}),
		UpdatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "queuehall_queue_updates_total",
			Help: "Queue count updates applied.",
		}),
		ResetsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "queuehall_resets_total",
			Help: "Tenant data resets performed.",
		}),
		ArcadesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "queuehall_arcades_created_total",
			Help: "Arcades created.",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "queuehall_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		OperationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "queuehall_operation_failures_total",
			Help: "Operations rejected or failed, labelled by error kind.",
		}, []string{"kind"}),
	}
}
