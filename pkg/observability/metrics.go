package observability

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "quire"

// Metrics holds the collectors updated by the hooks returned from Hooks.
type Metrics struct {
	NodeVisits     *prometheus.CounterVec
	RuleMatches    *prometheus.CounterVec
	InvalidTargets *prometheus.CounterVec
	RunsFinished   *prometheus.CounterVec
	RunTransitions *prometheus.CounterVec
	AsyncResults   prometheus.Counter
	StepDuration   *prometheus.HistogramVec

	mu      sync.Mutex
	entered map[string]time.Time
}

// NewMetrics creates the collectors and registers them with reg.
// A nil registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "node_visits_total",
			Help:      "Total number of node visits.",
		}, []string{"assessment", "node_kind", "direction"}),
		RuleMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rule_matches_total",
			Help:      "Survey rules that redirected navigation.",
		}, []string{"operator"}),
		InvalidTargets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "invalid_targets_total",
			Help:      "Rule targets that could not be resolved and fell back to the next step.",
		}, []string{"node_id"}),
		RunsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_finished_total",
			Help:      "Runs that reached a terminal status.",
		}, []string{"assessment", "status"}),
		RunTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "run_transitions_total",
			Help:      "Pause and resume transitions.",
		}, []string{"event"}),
		AsyncResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "async_results_total",
			Help:      "Background action results recorded.",
		}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "step_duration_seconds",
			Help:      "Time spent on a step between entering and leaving it.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"node_kind"}),
		entered: make(map[string]time.Time),
	}
	if reg != nil {
		reg.MustRegister(m.NodeVisits, m.RuleMatches, m.InvalidTargets,
			m.RunsFinished, m.RunTransitions, m.AsyncResults, m.StepDuration)
	}
	return m
}

// stepKey identifies a visit; event timestamps are used so injected clocks
// produce deterministic durations.
func stepKey(e *domain.NodeEvent) string {
	return e.SessionID + "|" + strings.Join(e.Path, "/")
}

// Hooks returns lifecycle hooks that feed the collectors. assessment labels
// the node visit and run counters.
func (m *Metrics) Hooks(assessment string) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(assessment, string(e.NodeKind), string(e.Direction)).Inc()
			m.mu.Lock()
			m.entered[stepKey(e)] = e.Timestamp
			m.mu.Unlock()
		},
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			key := stepKey(e)
			m.mu.Lock()
			start, ok := m.entered[key]
			delete(m.entered, key)
			m.mu.Unlock()
			if ok && !e.Timestamp.Before(start) {
				m.StepDuration.WithLabelValues(string(e.NodeKind)).Observe(e.Timestamp.Sub(start).Seconds())
			}
		},
		OnRuleMatched: func(_ context.Context, e *domain.RuleEvent) {
			m.RuleMatches.WithLabelValues(string(e.Operator)).Inc()
		},
		OnInvalidTarget: func(_ context.Context, e *domain.RuleEvent) {
			m.InvalidTargets.WithLabelValues(e.NodeID).Inc()
		},
		OnRunPaused: func(_ context.Context, _ *domain.RunEvent) {
			m.RunTransitions.WithLabelValues("paused").Inc()
		},
		OnRunResumed: func(_ context.Context, _ *domain.RunEvent) {
			m.RunTransitions.WithLabelValues("resumed").Inc()
		},
		OnRunFinished: func(_ context.Context, e *domain.RunEvent) {
			m.RunsFinished.WithLabelValues(e.AssessmentID, string(e.Status)).Inc()
		},
		OnAsyncResult: func(_ context.Context, _ *domain.AsyncEvent) {
			m.AsyncResults.Inc()
		},
	}
}
