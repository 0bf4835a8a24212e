package runtime

import (
	"log/slog"
	"time"

	"github.com/aretw0/quire/internal/logging"
	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/rules"
)

// Option configures a Navigator.
type Option func(*Navigator)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Navigator) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(n *Navigator) {
		n.hooks = hooks
	}
}

// WithRuleEvaluator replaces the survey rule evaluator.
func WithRuleEvaluator(eval rules.Evaluator) Option {
	return func(n *Navigator) {
		if eval != nil {
			n.evaluate = eval
		}
	}
}

// WithClock sets the time source used for result stamps.
func WithClock(now func() time.Time) Option {
	return func(n *Navigator) {
		if now != nil {
			n.now = now
		}
	}
}

// WithSessionID tags emitted events.
func WithSessionID(id string) Option {
	return func(n *Navigator) {
		n.sessionID = id
	}
}

func defaults(n *Navigator) {
	n.logger = logging.NewNop()
	n.evaluate = rules.Evaluate
	n.now = time.Now
}
