package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/dsl"
	"github.com/aretw0/quire/pkg/graph"
	"github.com/aretw0/quire/pkg/observability"
	"github.com/aretw0/quire/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(2 * time.Second)
	return c.t
}

func runLinear(t *testing.T, hooks domain.LifecycleHooks) {
	t.Helper()
	ctx := context.Background()

	b := dsl.New("linear")
	b.Instruction("A")
	b.Question("B", domain.AnswerInteger)
	b.Completion("C")
	a, err := b.Build()
	require.NoError(t, err)
	g, err := graph.New(a)
	require.NoError(t, err)

	clk := &tickClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s, err := session.Start(ctx, g,
		session.WithSessionID("obs"),
		session.WithClock(clk.now),
		session.WithLifecycleHooks(hooks),
	)
	require.NoError(t, err)

	_, err = s.GoForward(ctx)
	require.NoError(t, err)
	_, err = s.GoBackward(ctx)
	require.NoError(t, err)
	_, err = s.GoForward(ctx)
	require.NoError(t, err)
	require.NoError(t, s.SetAnswer(ctx, domain.Int(2)))
	_, err = s.GoForward(ctx)
	require.NoError(t, err)
	_, err = s.GoForward(ctx)
	require.NoError(t, err)
	require.True(t, s.Terminated())
}

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)

	runLinear(t, m.Hooks("linear"))

	instruction := string(domain.KindInstruction)
	question := string(domain.KindQuestion)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues("linear", instruction, "forward")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues("linear", instruction, "backward")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues("linear", question, "forward")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsFinished.WithLabelValues("linear", string(domain.StatusCompleted))))

	// At least the instruction and question series were observed on leave.
	assert.GreaterOrEqual(t, testutil.CollectAndCount(m.StepDuration), 2)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "quire_node_visits_total")
	assert.Contains(t, names, "quire_runs_finished_total")
	assert.Contains(t, names, "quire_step_duration_seconds")
}

func TestMetrics_RuleAndAsyncCounters(t *testing.T) {
	m := observability.NewMetrics(nil)
	hooks := m.Hooks("x")
	ctx := context.Background()

	hooks.OnRuleMatched(ctx, &domain.RuleEvent{Operator: domain.OpEqual})
	hooks.OnInvalidTarget(ctx, &domain.RuleEvent{NodeID: "q1"})
	hooks.OnRunPaused(ctx, &domain.RunEvent{})
	hooks.OnRunResumed(ctx, &domain.RunEvent{})
	hooks.OnAsyncResult(ctx, &domain.AsyncEvent{ResultID: "gps"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RuleMatches.WithLabelValues(string(domain.OpEqual))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvalidTargets.WithLabelValues("q1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunTransitions.WithLabelValues("paused")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunTransitions.WithLabelValues("resumed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AsyncResults))
}

func TestMetrics_StepDuration(t *testing.T) {
	m := observability.NewMetrics(nil)
	hooks := m.Hooks("x")
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	enter := &domain.NodeEvent{EventBase: domain.EventBase{Timestamp: start, SessionID: "s"}, NodeKind: domain.KindQuestion, Path: []string{"q"}}
	leave := &domain.NodeEvent{EventBase: domain.EventBase{Timestamp: start.Add(7 * time.Second), SessionID: "s"}, NodeKind: domain.KindQuestion, Path: []string{"q"}}
	hooks.OnNodeEnter(ctx, enter)
	hooks.OnNodeLeave(ctx, leave)
	// A leave without a matching enter is ignored.
	hooks.OnNodeLeave(ctx, leave)

	expected := `
# HELP quire_step_duration_seconds Time spent on a step between entering and leaving it.
# TYPE quire_step_duration_seconds histogram
quire_step_duration_seconds_bucket{node_kind="question",le="1"} 0
quire_step_duration_seconds_bucket{node_kind="question",le="5"} 0
quire_step_duration_seconds_bucket{node_kind="question",le="15"} 1
quire_step_duration_seconds_bucket{node_kind="question",le="30"} 1
quire_step_duration_seconds_bucket{node_kind="question",le="60"} 1
quire_step_duration_seconds_bucket{node_kind="question",le="120"} 1
quire_step_duration_seconds_bucket{node_kind="question",le="300"} 1
quire_step_duration_seconds_bucket{node_kind="question",le="600"} 1
quire_step_duration_seconds_bucket{node_kind="question",le="+Inf"} 1
quire_step_duration_seconds_sum{node_kind="question"} 7
quire_step_duration_seconds_count{node_kind="question"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(m.StepDuration, bytes.NewBufferString(expected)))
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	runLinear(t, observability.LogHooks(logger))

	out := buf.String()
	assert.Contains(t, out, "msg=node_enter")
	assert.Contains(t, out, "node_id=B")
	assert.Contains(t, out, "direction=backward")
	assert.Contains(t, out, "msg=run_finished")
	assert.Contains(t, out, "status=completed")
}
