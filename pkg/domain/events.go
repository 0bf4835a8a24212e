package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter     EventType = "node_enter"
	EventNodeLeave     EventType = "node_leave"
	EventRuleMatched   EventType = "rule_matched"
	EventInvalidTarget EventType = "invalid_target"
	EventRunPaused     EventType = "run_paused"
	EventRunResumed    EventType = "run_resumed"
	EventRunFinished   EventType = "run_finished"
	EventAsyncResult   EventType = "async_result"
)

// Direction is the way a transition moved.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID    string    `json:"node_id"`
	NodeKind  NodeKind  `json:"node_kind"`
	Path      []string  `json:"path"`
	Direction Direction `json:"direction"`
}

// RuleEvent reports a survey rule decision.
type RuleEvent struct {
	EventBase
	NodeID   string       `json:"node_id"`
	Target   string       `json:"target"`
	Operator RuleOperator `json:"operator,omitempty"`
	Err      error        `json:"-"`
}

// RunEvent reports a run lifecycle change.
type RunEvent struct {
	EventBase
	AssessmentID string          `json:"assessment_id"`
	Status       ExecutionStatus `json:"status"`
}

// AsyncEvent reports a background action result.
type AsyncEvent struct {
	EventBase
	ResultID string `json:"result_id"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter     func(context.Context, *NodeEvent)
	OnNodeLeave     func(context.Context, *NodeEvent)
	OnRuleMatched   func(context.Context, *RuleEvent)
	OnInvalidTarget func(context.Context, *RuleEvent)
	OnRunPaused     func(context.Context, *RunEvent)
	OnRunResumed    func(context.Context, *RunEvent)
	OnRunFinished   func(context.Context, *RunEvent)
	OnAsyncResult   func(context.Context, *AsyncEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter:     chain(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave:     chain(h.OnNodeLeave, other.OnNodeLeave),
		OnRuleMatched:   chain(h.OnRuleMatched, other.OnRuleMatched),
		OnInvalidTarget: chain(h.OnInvalidTarget, other.OnInvalidTarget),
		OnRunPaused:     chain(h.OnRunPaused, other.OnRunPaused),
		OnRunResumed:    chain(h.OnRunResumed, other.OnRunResumed),
		OnRunFinished:   chain(h.OnRunFinished, other.OnRunFinished),
		OnAsyncResult:   chain(h.OnAsyncResult, other.OnAsyncResult),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
