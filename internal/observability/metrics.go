package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Turn outcomes recorded on turns_total.
const (
	OutcomeOK             = "ok"
	OutcomeTransportError = "transport_error"
	OutcomeUnparseable    = "unparseable"
	OutcomeImageError     = "image_error"
	OutcomeInternalError  = "internal_error"
)

// Metrics groups the Prometheus collectors updated by the turn orchestrator.
type Metrics struct {
	turns             *prometheus.CounterVec
	turnDuration      prometheus.Histogram
	operations        *prometheus.CounterVec
	droppedCandidates *prometheus.CounterVec
}

// NewMetrics creates the collectors under namespace and registers them with reg.
// A nil reg leaves the collectors unregistered, which is useful for throwaway adapters.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Turns run against the reasoning endpoint, by outcome.",
		}, []string{"outcome"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a full turn, including the endpoint round trip.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Validated operations returned to the caller, by kind.",
		}, []string{"kind"}),
		droppedCandidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_dropped_total",
			Help:      "Candidate records discarded during validation, by reason.",
		}, []string{"reason"}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.turns, m.turnDuration, m.operations, m.droppedCandidates} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveTurn records the outcome and duration of one turn.
func (m *Metrics) ObserveTurn(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(d.Seconds())
}

// AddOperation counts one validated operation of the given kind.
func (m *Metrics) AddOperation(kind string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(kind).Inc()
}

// AddDropped counts one discarded candidate.
func (m *Metrics) AddDropped(reason string) {
	if m == nil {
		return
	}
	m.droppedCandidates.WithLabelValues(reason).Inc()
}
