package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutcomeOK labels a successful render or generation.
const OutcomeOK = "ok"

// Metrics groups the service's Prometheus instruments.
type Metrics struct {
	Renders        *prometheus.CounterVec
	RenderDuration *prometheus.HistogramVec
	Generations    *prometheus.CounterVec
	InFlight       prometheus.Gauge
}

// NewMetrics creates the instruments and registers them with reg. A nil reg leaves
// them unregistered, which is what most tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trio_renders_total",
				Help: "Total number of render requests by outcome",
			},
			[]string{"outcome"},
		),
		RenderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trio_render_duration_seconds",
				Help:    "Wall-clock duration of render invocations",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		),
		Generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trio_generations_total",
				Help: "Total number of substance generation requests by outcome",
			},
			[]string{"outcome"},
		),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trio_renders_in_flight",
			Help: "Render invocations that have not produced a result yet, abandoned ones included",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Renders, m.RenderDuration, m.Generations, m.InFlight)
	}
	return m
}

// ObserveRender records one render outcome. A nil receiver is a no-op.
func (m *Metrics) ObserveRender(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Renders.WithLabelValues(outcome).Inc()
	m.RenderDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveGeneration records one generation outcome. A nil receiver is a no-op.
func (m *Metrics) ObserveGeneration(outcome string) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(outcome).Inc()
}

// Started and Finished bracket a worker invocation.
func (m *Metrics) Started() {
	if m != nil {
		m.InFlight.Inc()
	}
}

func (m *Metrics) Finished() {
	if m != nil {
		m.InFlight.Dec()
	}
}
