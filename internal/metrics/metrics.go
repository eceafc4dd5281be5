package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "transitiond"

// Metrics holds the collectors for timeline activity. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	ops         *prometheus.CounterVec
	clips       prometheus.Gauge
	transitions prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transition_ops_total",
			Help:      "Transition mutations by operation and whether they changed geometry.",
		}, []string{"op", "result"}),
		clips: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clips",
			Help:      "Clips currently on the timeline.",
		}),
		transitions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transitions",
			Help:      "Transitions currently on the timeline.",
		}),
	}
	m.registry.MustRegister(
		m.ops,
		m.clips,
		m.transitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOp counts one transition operation. applied is false when the
// operation left the transition unchanged.
func (m *Metrics) ObserveOp(op string, applied bool) {
	if m == nil {
		return
	}
	result := "noop"
	if applied {
		result = "applied"
	}
	m.ops.WithLabelValues(op, result).Inc()
}

func (m *Metrics) SetCounts(clips, transitions int) {
	if m == nil {
		return
	}
	m.clips.Set(float64(clips))
	m.transitions.Set(float64(transitions))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
