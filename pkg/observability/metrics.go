package observability

import (
	"context"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatflow"

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	Turns          *prometheus.CounterVec
	TurnDuration   *prometheus.HistogramVec
	Transitions    *prometheus.CounterVec
	RemoteCalls    *prometheus.CounterVec
	RemoteDuration *prometheus.HistogramVec
	QualityScore   prometheus.Histogram
	Evictions      prometheus.Counter
	ActiveTurns    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Processed turns by channel, resulting state and outcome.",
		}, []string{"channel", "state", "outcome"}),
		TurnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a processed turn.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "State transitions by source, target and intent.",
		}, []string{"from", "to", "intent"}),
		RemoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Calls to remote collaborators by operation and result.",
		}, []string{"op", "result"}),
		RemoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Latency of calls to remote collaborators.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 3, 5},
		}, []string{"op"}),
		QualityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_quality_score",
			Help:      "Per-turn quality score (0-100).",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Contexts removed by the eviction policy.",
		}),
		ActiveTurns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_turns",
			Help:      "Turns currently being processed.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Turns, m.TurnDuration, m.Transitions, m.RemoteCalls,
			m.RemoteDuration, m.QualityScore, m.Evictions, m.ActiveTurns)
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnStart: func(_ context.Context, _ *domain.TurnEvent) {
			m.ActiveTurns.Inc()
		},
		OnTurnEnd: func(_ context.Context, e *domain.TurnEvent) {
			m.ActiveTurns.Dec()
			outcome := "ok"
			if e.Err != nil {
				outcome = "error"
			}
			m.Turns.WithLabelValues(e.Channel, string(e.State), outcome).Inc()
			m.TurnDuration.WithLabelValues(e.Channel).Observe(e.Duration.Seconds())
			if e.Metrics != nil {
				m.QualityScore.Observe(e.Metrics.QualityScore())
			}
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(string(e.From), string(e.To), e.Intent).Inc()
		},
		OnRemoteCall: func(_ context.Context, e *domain.RemoteCallEvent) {
			result := "ok"
			if e.Fallback {
				result = "fallback"
			}
			m.RemoteCalls.WithLabelValues(e.Op, result).Inc()
			m.RemoteDuration.WithLabelValues(e.Op).Observe(e.Duration.Seconds())
		},
		OnEviction: func(_ context.Context, _ *domain.EvictionEvent) {
			m.Evictions.Inc()
		},
	}
}
