package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/quire/internal/logging"
	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/graph"
	"github.com/aretw0/quire/pkg/ports"
	"github.com/aretw0/quire/pkg/rules"
)

// ActionHandler runs app-defined button actions. *registry.Registry implements it.
type ActionHandler interface {
	Handle(ctx context.Context, call domain.ActionCall) (domain.ActionResponse, error)
}

// Resolver returns the step graph of an assessment. The Manager uses it to
// reopen persisted sessions.
type Resolver func(ctx context.Context, assessmentID string) (*graph.Graph, error)

type options struct {
	sessionID string
	store     ports.StateStore
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	now       func() time.Time
	evaluate  rules.Evaluator
	actions   ActionHandler

	// Manager only.
	locker   ports.DistributedLocker
	lockTTL  time.Duration
	resolver Resolver
}

// Option configures a Session or a Manager.
type Option func(*options)

// WithSessionID sets the session ID of a fresh run. A random UUID is used otherwise.
func WithSessionID(id string) Option {
	return func(o *options) {
		o.sessionID = id
	}
}

// WithStore persists a snapshot after every committed transition.
func WithStore(store ports.StateStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *options) {
		o.hooks = o.hooks.Merge(hooks)
	}
}

// WithClock sets the time source for result stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRuleEvaluator replaces the survey rule evaluator.
func WithRuleEvaluator(eval rules.Evaluator) Option {
	return func(o *options) {
		o.evaluate = eval
	}
}

// WithActionHandler delegates custom button actions.
func WithActionHandler(h ActionHandler) Option {
	return func(o *options) {
		o.actions = h
	}
}

// WithLocker enables distributed locking in the Manager.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(o *options) {
		o.locker = locker
	}
}

// WithLockTTL sets how long a distributed lock survives a crashed holder.
func WithLockTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

// WithResolver lets the Manager reopen sessions by assessment ID.
func WithResolver(r Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:  logging.NewNop(),
		now:     time.Now,
		lockTTL: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
