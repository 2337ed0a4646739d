package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors for calendar generation. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	attempts      *prometheus.CounterVec
	outcomes      *prometheus.CounterVec
	inFlight      prometheus.Gauge
	batches       *prometheus.CounterVec
	batchDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calendar_generation_attempts_total",
			Help: "Remote image edit attempts by result.",
		}, []string{"result"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calendar_generation_outcomes_total",
			Help: "Per-page generation outcomes after retries.",
		}, []string{"status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "calendar_generation_in_flight",
			Help: "Pages currently being generated.",
		}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calendar_batches_total",
			Help: "Calendar runs by final status.",
		}, []string{"status"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "calendar_batch_duration_seconds",
			Help:    "Wall time of a calendar run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}

	if reg != nil {
		reg.MustRegister(m.attempts, m.outcomes, m.inFlight, m.batches, m.batchDuration)
	}
	return m
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) Attempt(result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(result).Inc()
}

func (m *Metrics) Outcome(ok bool) {
	if m == nil {
		return
	}
	status := "failed"
	if ok {
		status = "succeeded"
	}
	m.outcomes.WithLabelValues(status).Inc()
}

func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) TaskDone() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}

func (m *Metrics) Batch(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(status).Inc()
	m.batchDuration.Observe(elapsed.Seconds())
}
