package quire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/loam"
	"github.com/aretw0/quire/internal/logging"
	loamAdapter "github.com/aretw0/quire/pkg/adapters/loam"
	"github.com/aretw0/quire/pkg/adapters/memory"
	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/graph"
	"github.com/aretw0/quire/pkg/ports"
	"github.com/aretw0/quire/pkg/rules"
	"github.com/aretw0/quire/pkg/session"
)

// Version is the module release.
const Version = "0.4.0"

// ErrNotWatchable is returned by Watch when the loader cannot report changes.
var ErrNotWatchable = errors.New("current loader does not support watching")

// Engine is the high-level entry point for the quire library. It resolves
// assessments through a DefinitionLoader, caches their step graphs and drives
// persisted sessions through a session.Manager. It implements ports.Engine.
type Engine struct {
	loader  ports.DefinitionLoader
	store   ports.StateStore
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	now     func() time.Time
	eval    rules.Evaluator
	actions session.ActionHandler
	locker  ports.DistributedLocker
	lockTTL time.Duration

	manager *session.Manager

	mu     sync.RWMutex
	graphs map[string]*graph.Graph

	// Name labels the definition source, e.g. the directory name.
	Name string
}

var _ ports.Engine = (*Engine)(nil)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLoader injects a custom DefinitionLoader, bypassing the default Loam initialization.
func WithLoader(l ports.DefinitionLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithStore sets where sessions are persisted. Defaults to memory.
func WithStore(s ports.StateStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. Calls accumulate.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithClock sets the time source for result stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithRuleEvaluator replaces the survey rule evaluator.
func WithRuleEvaluator(eval rules.Evaluator) Option {
	return func(e *Engine) {
		e.eval = eval
	}
}

// WithActionHandler delegates custom button actions, e.g. to a *registry.Registry.
func WithActionHandler(h session.ActionHandler) Option {
	return func(e *Engine) {
		e.actions = h
	}
}

// WithLocker serializes sessions across processes.
func WithLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = l
		e.lockTTL = ttl
	}
}

// New initializes a new Engine.
// By default, it reads definitions from a Loam repository at the given path.
// If WithLoader option is provided, dir can be empty and Loam is skipped.
func New(dir string, opts ...Option) (*Engine, error) {
	eng := &Engine{graphs: make(map[string]*graph.Graph)}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.loader == nil {
		if dir == "" {
			return nil, fmt.Errorf("definitions directory is required when no custom loader is provided")
		}
		absPath, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		eng.Name = filepath.Base(absPath)

		// Strict mode keeps numbers as json.Number so integer answers and
		// rule values do not turn into floats. The engine never writes
		// definitions, hence read-only.
		l, err := loamAdapter.Open(absPath, loam.WithStrict(true), loam.WithReadOnly(true))
		if err != nil {
			return nil, err
		}
		eng.loader = l
	} else if dir != "" {
		eng.Name = filepath.Base(dir)
	}

	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("definitions", eng.Name)
	}

	sessionOpts := []session.Option{
		session.WithLogger(eng.logger),
		session.WithLifecycleHooks(eng.hooks),
		session.WithClock(eng.now),
		session.WithResolver(eng.Graph),
	}
	if eng.eval != nil {
		sessionOpts = append(sessionOpts, session.WithRuleEvaluator(eng.eval))
	}
	if eng.actions != nil {
		sessionOpts = append(sessionOpts, session.WithActionHandler(eng.actions))
	}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker), session.WithLockTTL(eng.lockTTL))
	}
	eng.manager = session.NewManager(eng.store, sessionOpts...)
	return eng, nil
}

// Graph returns the indexed step graph of an assessment, loading it on first use.
func (e *Engine) Graph(ctx context.Context, assessmentID string) (*graph.Graph, error) {
	e.mu.RLock()
	g, ok := e.graphs[assessmentID]
	e.mu.RUnlock()
	if ok {
		return g, nil
	}

	a, err := e.loader.Load(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	g, err = graph.New(a)
	if err != nil {
		return nil, err
	}
	for _, issue := range g.Validate() {
		e.logger.WarnContext(ctx, "definition issue", "assessment", assessmentID, "issue", issue.String())
	}

	e.mu.Lock()
	e.graphs[assessmentID] = g
	e.mu.Unlock()
	return g, nil
}

// Invalidate drops cached graphs so the next call reloads them. Sessions
// already running keep the graph they started with until reopened.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	clear(e.graphs)
	e.mu.Unlock()
}

// Assessments lists the identifiers available to Start.
func (e *Engine) Assessments(ctx context.Context) ([]string, error) {
	return e.loader.List(ctx)
}

// Start begins a fresh run and persists it. An empty sessionID generates one.
func (e *Engine) Start(ctx context.Context, assessmentID, sessionID string) (*domain.StepView, error) {
	g, err := e.Graph(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	s, err := e.manager.Start(ctx, g, sessionID)
	if err != nil {
		return nil, err
	}
	v := s.View()
	return &v, nil
}

// Open reattaches to a persisted session, e.g. for a runner that drives it
// directly. The caller must not use it concurrently with Engine calls for the
// same session.
func (e *Engine) Open(ctx context.Context, sessionID string) (*session.Session, error) {
	var s *session.Session
	err := e.manager.Do(ctx, sessionID, func(_ context.Context, sess *session.Session) error {
		s = sess
		return nil
	})
	return s, err
}

// LoadOrStart opens sessionID if it exists, or starts it as a fresh run of assessmentID.
func (e *Engine) LoadOrStart(ctx context.Context, assessmentID, sessionID string) (*session.Session, error) {
	g, err := e.Graph(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	return e.manager.LoadOrStart(ctx, g, sessionID)
}

// View renders the current step of a session without changing it.
func (e *Engine) View(ctx context.Context, sessionID string) (*domain.StepView, error) {
	return e.do(ctx, sessionID, func(_ context.Context, s *session.Session) (domain.StepView, error) {
		return s.View(), nil
	})
}

// Answer records a value for the current step. A null value clears it.
func (e *Engine) Answer(ctx context.Context, sessionID string, value domain.Value) (*domain.StepView, error) {
	return e.do(ctx, sessionID, func(ctx context.Context, s *session.Session) (domain.StepView, error) {
		var err error
		if value.IsNull() {
			err = s.ClearAnswer(ctx)
		} else {
			err = s.SetAnswer(ctx, value)
		}
		return s.View(), err
	})
}

// Perform triggers a button action on the current step.
func (e *Engine) Perform(ctx context.Context, sessionID string, action domain.ButtonAction) (*domain.StepView, error) {
	return e.do(ctx, sessionID, func(ctx context.Context, s *session.Session) (domain.StepView, error) {
		return s.Perform(ctx, action)
	})
}

// Resume restarts a paused or interrupted run.
func (e *Engine) Resume(ctx context.Context, sessionID string) (*domain.StepView, error) {
	s, err := e.manager.Resume(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	v := s.View()
	return &v, nil
}

// RecordAsync stores a background action result on a persisted session.
func (e *Engine) RecordAsync(ctx context.Context, sessionID string, r domain.Result) error {
	return e.manager.Do(ctx, sessionID, func(ctx context.Context, s *session.Session) error {
		return s.RecordAsync(ctx, r)
	})
}

// Snapshot returns the persisted state, result tree included.
func (e *Engine) Snapshot(ctx context.Context, sessionID string) (*domain.State, error) {
	return e.manager.Load(ctx, sessionID)
}

// Sessions lists stored session IDs.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.manager.List(ctx)
}

// Delete removes a session.
func (e *Engine) Delete(ctx context.Context, sessionID string) error {
	return e.manager.Delete(ctx, sessionID)
}

func (e *Engine) do(ctx context.Context, sessionID string, fn func(context.Context, *session.Session) (domain.StepView, error)) (*domain.StepView, error) {
	var (
		view   domain.StepView
		called bool
	)
	err := e.manager.Do(ctx, sessionID, func(ctx context.Context, s *session.Session) error {
		var err error
		view, err = fn(ctx, s)
		called = true
		return err
	})
	if !called {
		return nil, err
	}
	return &view, err
}

// Watch forwards change signals from the loader, dropping cached graphs on each.
// Returns ErrNotWatchable if the loader does not support watching.
func (e *Engine) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, ok := e.loader.(ports.Watchable)
	if !ok {
		return nil, ErrNotWatchable
	}
	changes, err := w.Watch(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for range changes {
			e.Invalidate()
			e.logger.InfoContext(ctx, "definitions changed, cache cleared")
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out, nil
}

// Loader returns the underlying DefinitionLoader.
func (e *Engine) Loader() ports.DefinitionLoader {
	return e.loader
}

// Store returns the underlying StateStore.
func (e *Engine) Store() ports.StateStore {
	return e.store
}

// Manager returns the session manager, e.g. to wrap it in a transport.
func (e *Engine) Manager() *session.Manager {
	return e.manager
}
