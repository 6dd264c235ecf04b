// Package metrics counts simulation events for Prometheus.
package metrics

import (
	"context"
	"github.com/medcircle/medresident/internal/simulation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"strconv"
)

// Metrics is a [simulation.Observer] that keeps its collectors in a private registry.
type Metrics struct {
	registry  *prometheus.Registry
	started   *prometheus.CounterVec
	completed *prometheus.CounterVec
	decisions *prometheus.CounterVec
	timeouts  *prometheus.CounterVec
	scores    *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		started: prometheus.NewCounterVec(
			prometheus.CounterOpts{ //nolint:exhaustruct // optional fields
				Name: "medresident_simulations_started_total",
				Help: "Total number of started simulations",
			},
			[]string{"scenario"},
		),
		completed: prometheus.NewCounterVec(
			prometheus.CounterOpts{ //nolint:exhaustruct // optional fields
				Name: "medresident_simulations_completed_total",
				Help: "Total number of completed simulations",
			},
			[]string{"scenario", "performance"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{ //nolint:exhaustruct // optional fields
				Name: "medresident_decisions_total",
				Help: "Total number of decisions made by learners",
			},
			[]string{"scenario", "correct"},
		),
		timeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{ //nolint:exhaustruct // optional fields
				Name: "medresident_decision_timeouts_total",
				Help: "Total number of decision points whose countdown expired",
			},
			[]string{"scenario"},
		),
		scores: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{ //nolint:exhaustruct // optional fields
				Name:    "medresident_simulation_score_ratio",
				Help:    "Final score of completed simulations relative to the perfect score",
				Buckets: []float64{0, 0.25, 0.5, 0.6, 0.75, 0.9, 1}, //nolint:mnd // performance thresholds
			},
			[]string{"scenario"},
		),
	}
	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}), //nolint:exhaustruct // defaults
		m.started, m.completed, m.decisions, m.timeouts, m.scores,
	)
	return m
}

func (m *Metrics) OnEvent(_ context.Context, e simulation.Event) {
	scenario := e.Snapshot.ScenarioID
	switch e.Type {
	case simulation.EventStarted:
		m.started.WithLabelValues(scenario).Inc()
	case simulation.EventDecided:
		if n := len(e.Snapshot.History); n > 0 {
			m.decisions.WithLabelValues(scenario, strconv.FormatBool(e.Snapshot.History[n-1].Correct)).Inc()
		}
	case simulation.EventTimedOut:
		m.timeouts.WithLabelValues(scenario).Inc()
	case simulation.EventCompleted:
		m.completed.WithLabelValues(scenario, e.Snapshot.Performance.Slug()).Inc()
		if e.Snapshot.Perfect > 0 {
			m.scores.WithLabelValues(scenario).Observe(float64(e.Snapshot.Score) / float64(e.Snapshot.Perfect))
		}
	case simulation.EventTicked, simulation.EventReset:
	}
}

// Registry exposes the collectors, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}) //nolint:exhaustruct // defaults
}
