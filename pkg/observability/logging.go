package observability

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aretw0/quire/pkg/domain"
)

// LogHooks returns hooks that log every lifecycle event. Navigation is
// logged at Debug, invalid targets at Warn, and run transitions at Info.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter",
				"session_id", e.SessionID,
				"node_id", e.NodeID,
				"kind", e.NodeKind,
				"path", strings.Join(e.Path, "/"),
				"direction", e.Direction,
			)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_leave", "session_id", e.SessionID, "node_id", e.NodeID)
		},
		OnRuleMatched: func(ctx context.Context, e *domain.RuleEvent) {
			logger.DebugContext(ctx, "rule_matched",
				"session_id", e.SessionID,
				"node_id", e.NodeID,
				"operator", e.Operator,
				"target", e.Target,
			)
		},
		OnInvalidTarget: func(ctx context.Context, e *domain.RuleEvent) {
			logger.WarnContext(ctx, "invalid_target",
				"session_id", e.SessionID,
				"node_id", e.NodeID,
				"target", e.Target,
				"err", e.Err,
			)
		},
		OnRunPaused: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_paused", "session_id", e.SessionID, "assessment_id", e.AssessmentID)
		},
		OnRunResumed: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_resumed", "session_id", e.SessionID, "assessment_id", e.AssessmentID)
		},
		OnRunFinished: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_finished",
				"session_id", e.SessionID,
				"assessment_id", e.AssessmentID,
				"status", e.Status,
			)
		},
		OnAsyncResult: func(ctx context.Context, e *domain.AsyncEvent) {
			logger.DebugContext(ctx, "async_result", "session_id", e.SessionID, "result_id", e.ResultID)
		},
	}
}
