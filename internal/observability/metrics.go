package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	SimulationRuns    *prometheus.CounterVec
	SimulationLatency prometheus.Histogram
	ProviderErrors    *prometheus.CounterVec
	BatchFailures     prometheus.Counter
	StoreOps          *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SimulationRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulation_runs_total",
			Help:      "Simulation runs by model family and outcome.",
		}, []string{"family", "outcome"}),
		SimulationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "simulation_latency_seconds",
			Help:      "Wall-clock duration of a full conversation replay.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Hosted provider errors by provider and kind.",
		}, []string{"provider", "kind"}),
		BatchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_failures_total",
			Help:      "Conversations that failed during a simulate-all batch.",
		}),
		StoreOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_ops_total",
			Help:      "Conversation store operations by op and outcome.",
		}, []string{"op", "outcome"}),
	}
}

func (m *Metrics) ObserveSimulation(family string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.SimulationRuns.WithLabelValues(family, outcome).Inc()
	if err == nil {
		m.SimulationLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveStoreOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.StoreOps.WithLabelValues(op, outcome).Inc()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
