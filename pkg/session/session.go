package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/quire/internal/runtime"
	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/graph"
	"github.com/aretw0/quire/pkg/ports"
	"github.com/aretw0/quire/pkg/schema"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Session is one run of an assessment. It serializes navigation, validates
// answers and emits a snapshot to the store after every committed transition.
// Async results may be recorded from other goroutines at any time.
type Session struct {
	mu     sync.Mutex
	id     string
	graph  *graph.Graph
	nav    *runtime.Navigator
	result *domain.AssessmentResult
	status domain.ExecutionStatus
	opts   options
}

// Start begins a fresh run of the assessment indexed by g.
func Start(ctx context.Context, g *graph.Graph, opts ...Option) (*Session, error) {
	o := newOptions(opts)
	if o.sessionID == "" {
		o.sessionID = uuid.NewString()
	}
	a := g.Assessment()
	res := domain.NewAssessmentResult(a.Identifier, a.Version, uuid.New())
	res.SetStart(o.now())

	s := newSession(g, o, o.hooks)
	if _, err := s.nav.Start(ctx, res); err != nil {
		return nil, fmt.Errorf("start %s: %w", a.Identifier, err)
	}
	s.result = res
	s.status = s.nav.Status()
	o.logger.InfoContext(ctx, "session started", "session_id", s.id, "assessment", a.Identifier, "run", res.TaskRunUUID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(ctx); err != nil {
		return s, err
	}
	return s, nil
}

// Resume restarts a persisted run, typically after the process was restarted or
// the respondent came back to a paused run. The snapshot is deep-copied, its
// start date is re-stamped unless the run already ended, and the run UUID is kept.
func Resume(ctx context.Context, g *graph.Graph, st *domain.State, opts ...Option) (*Session, error) {
	o := newOptions(opts)
	s, err := restore(ctx, g, st, o, true)
	if err != nil {
		return nil, err
	}
	o.logger.InfoContext(ctx, "session resumed", "session_id", s.id, "status", s.status)
	if s.status.Terminal() {
		return s, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(ctx); err != nil {
		return s, err
	}
	return s, nil
}

// Open reattaches to a persisted run without treating it as a restart: the
// start date and status are kept. Stateless transports open the session on
// every request.
func Open(ctx context.Context, g *graph.Graph, st *domain.State, opts ...Option) (*Session, error) {
	return restore(ctx, g, st, newOptions(opts), false)
}

func restore(ctx context.Context, g *graph.Graph, st *domain.State, o options, restart bool) (*Session, error) {
	if st == nil || st.Result == nil {
		return nil, &domain.SnapshotError{Reason: "no result"}
	}
	root := g.Root()
	if st.AssessmentID != "" && st.AssessmentID != root.Identifier {
		return nil, &domain.SnapshotError{SessionID: st.SessionID, Reason: fmt.Sprintf("snapshot belongs to assessment %q, not %q", st.AssessmentID, root.Identifier)}
	}

	o.sessionID = st.SessionID
	res := st.Result.Copy()
	terminated := st.Terminated()
	if restart && !terminated {
		res.SetStart(o.now())
	}

	hooks := o.hooks
	if !restart {
		hooks.OnRunResumed = nil
	}
	s := newSession(g, o, hooks)
	if _, err := s.nav.Restore(ctx, res, st.Status); err != nil {
		var serr *domain.SnapshotError
		if errors.As(err, &serr) && serr.SessionID == "" {
			serr.SessionID = st.SessionID
		}
		return nil, err
	}
	s.result = res

	switch {
	case st.Status.Terminal():
		s.status = st.Status
	case s.nav.Terminal():
		s.status = s.nav.Status()
	case st.Status == domain.StatusPaused && !restart:
		s.status = domain.StatusPaused
	default:
		s.status = domain.StatusActive
	}
	return s, nil
}

func newSession(g *graph.Graph, o options, hooks domain.LifecycleHooks) *Session {
	navOpts := []runtime.Option{
		runtime.WithLogger(o.logger),
		runtime.WithLifecycleHooks(hooks),
		runtime.WithClock(o.now),
		runtime.WithSessionID(o.sessionID),
	}
	if o.evaluate != nil {
		navOpts = append(navOpts, runtime.WithRuleEvaluator(o.evaluate))
	}
	return &Session{
		id:    o.sessionID,
		graph: g,
		nav:   runtime.NewNavigator(g, navOpts...),
		opts:  o,
	}
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Graph returns the step graph of the run.
func (s *Session) Graph() *graph.Graph { return s.graph }

// Status returns the lifecycle status.
func (s *Session) Status() domain.ExecutionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Terminated reports whether the run has ended.
func (s *Session) Terminated() bool {
	return s.Status().Terminal()
}

// Snapshot returns a deep copy of the persisted state.
func (s *Session) Snapshot() *domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state().Clone()
}

// Result returns a deep copy of the result tree.
func (s *Session) Result() *domain.AssessmentResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result.Copy()
}

// View renders the current step.
func (s *Session) View() domain.StepView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

// SetAnswer validates and records an answer for the current step.
func (s *Session) SetAnswer(ctx context.Context, v domain.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.setAnswer(v); err != nil {
		return err
	}
	return s.persist(ctx)
}

// ClearAnswer removes the current step's answer.
func (s *Session) ClearAnswer(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	r, ok := s.nav.CurrentResult().(*domain.AnswerResult)
	if !ok {
		return domain.ErrNoInput
	}
	r.SetAnswer(nil)
	return s.persist(ctx)
}

// GoForward leaves the current step. A required question without an answer
// returns domain.ErrAnswerRequired and nothing changes.
func (s *Session) GoForward(ctx context.Context) (domain.StepView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.goForward(ctx); err != nil {
		return s.view(), err
	}
	return s.view(), s.persist(ctx)
}

// GoBackward returns to the previously visited step; at the first step it exits the run.
func (s *Session) GoBackward(ctx context.Context) (domain.StepView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.goBackward(ctx); err != nil {
		return s.view(), err
	}
	return s.view(), s.persist(ctx)
}

// Skip clears the current answer and moves forward, even past a required question.
func (s *Session) Skip(ctx context.Context) (domain.StepView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.skip(ctx); err != nil {
		return s.view(), err
	}
	return s.view(), s.persist(ctx)
}

// Pause suspends navigation until Unpause or a Resume in another process.
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pause(ctx); err != nil {
		return err
	}
	return s.persist(ctx)
}

// Unpause lets a paused run continue.
func (s *Session) Unpause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return domain.ErrTerminated
	}
	if s.status != domain.StatusPaused {
		return nil
	}
	s.status = domain.StatusActive
	s.emitRun(ctx, s.opts.hooks.OnRunResumed, domain.EventRunResumed)
	return s.persist(ctx)
}

// Cancel ends the run immediately and freezes the tree.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return domain.ErrTerminated
	}
	s.cancel(ctx)
	return s.persist(ctx)
}

// ReviewInstructions goes back to the most recently visited instruction step.
func (s *Session) ReviewInstructions(ctx context.Context) (domain.StepView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reviewInstructions(ctx); err != nil {
		return s.view(), err
	}
	return s.view(), s.persist(ctx)
}

// Perform triggers a button action. Custom actions go to the ActionHandler.
func (s *Session) Perform(ctx context.Context, action domain.ButtonAction) (domain.StepView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.perform(ctx, action); err != nil {
		return s.view(), err
	}
	return s.view(), s.persist(ctx)
}

// PreviousResult returns a deep copy of the most recent path-history result
// recorded for identifier anywhere in the tree.
func (s *Session) PreviousResult(identifier string) (domain.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := findLatest(&s.result.CollectionResult, identifier)
	if r == nil {
		return nil, false
	}
	return r.DeepCopy(), true
}

func findLatest(c *domain.CollectionResult, identifier string) domain.Result {
	hist := c.PathHistory()
	for i := len(hist) - 1; i >= 0; i-- {
		r := hist[i]
		if br, ok := r.(domain.BranchNodeResult); ok {
			if found := findLatest(br.Collection(), identifier); found != nil {
				return found
			}
		}
		if r.ResultIdentifier() == identifier {
			return r
		}
	}
	return nil
}

// RecordAsync stores a background result in the run's async set and persists
// the snapshot. Re-recording an identifier replaces the previous result.
func (s *Session) RecordAsync(ctx context.Context, r domain.Result) error {
	if err := s.recordAsync(ctx, r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(ctx)
}

// recordAsync writes into the async set without persisting. The set has its
// own lock, so navigation does not wait on recorders.
func (s *Session) recordAsync(ctx context.Context, r domain.Result) error {
	if r == nil || r.ResultIdentifier() == "" {
		return errors.New("async result needs an identifier")
	}
	s.mu.Lock()
	terminal := s.status.Terminal()
	s.mu.Unlock()
	if terminal {
		return domain.ErrTerminated
	}

	s.result.SetAsyncResult(r)
	if fn := s.opts.hooks.OnAsyncResult; fn != nil {
		fn(ctx, &domain.AsyncEvent{
			EventBase: domain.EventBase{Timestamp: s.opts.now(), Type: domain.EventAsyncResult, SessionID: s.id},
			ResultID:  r.ResultIdentifier(),
		})
	}
	return nil
}

// RunRecorders runs the recorders concurrently with navigation and records each
// result as it arrives. The first failure cancels the others. A snapshot is
// persisted once all recorders have returned.
func (s *Session) RunRecorders(ctx context.Context, recorders ...ports.AsyncRecorder) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, rec := range recorders {
		g.Go(func() error {
			r, err := rec.Record(gctx)
			if err != nil {
				return fmt.Errorf("recorder %s: %w", rec.Identifier(), err)
			}
			if r == nil {
				return nil
			}
			return s.recordAsync(gctx, r)
		})
	}
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(err, s.persist(ctx))
}

func (s *Session) guard() error {
	switch {
	case s.status.Terminal():
		return domain.ErrTerminated
	case s.status == domain.StatusPaused:
		return domain.ErrPaused
	}
	return nil
}

func (s *Session) setAnswer(v domain.Value) error {
	if err := s.guard(); err != nil {
		return err
	}
	node := s.nav.Current()
	r, ok := s.nav.CurrentResult().(*domain.AnswerResult)
	if !ok || !node.AcceptsInput() {
		return domain.ErrNoInput
	}
	if err := schema.ValidateAnswer(node, v); err != nil {
		return err
	}
	r.SetAnswer(&v)
	return nil
}

func (s *Session) canProceed() bool {
	node := s.nav.Current()
	if node == nil {
		return false
	}
	return node.IsOptional() || s.nav.Answer() != nil
}

func (s *Session) goForward(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	if !s.canProceed() {
		return domain.ErrAnswerRequired
	}
	out, err := s.nav.GoForward(ctx)
	if err != nil {
		return err
	}
	s.settle(out)
	return nil
}

func (s *Session) goBackward(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	out, err := s.nav.GoBackward(ctx)
	if err != nil {
		return err
	}
	s.settle(out)
	return nil
}

func (s *Session) skip(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	if r, ok := s.nav.CurrentResult().(*domain.AnswerResult); ok {
		prev := r.Answer()
		r.SetAnswer(nil)
		out, err := s.nav.GoForward(ctx)
		if err != nil {
			// Leave the tree as it was.
			r.SetAnswer(prev)
			return err
		}
		s.settle(out)
		return nil
	}
	out, err := s.nav.GoForward(ctx)
	if err != nil {
		return err
	}
	s.settle(out)
	return nil
}

func (s *Session) pause(ctx context.Context) error {
	if err := s.guard(); err != nil {
		if errors.Is(err, domain.ErrPaused) {
			return nil
		}
		return err
	}
	if !s.nav.CanPause() {
		return domain.ErrPauseDisabled
	}
	s.status = domain.StatusPaused
	s.emitRun(ctx, s.opts.hooks.OnRunPaused, domain.EventRunPaused)
	s.opts.logger.DebugContext(ctx, "session paused", "session_id", s.id, "node", s.nav.CurrentPath().String())
	return nil
}

func (s *Session) cancel(ctx context.Context) {
	s.nav.Terminate(ctx, domain.StatusCancelled)
	s.status = domain.StatusCancelled
	s.opts.logger.InfoContext(ctx, "session cancelled", "session_id", s.id)
}

func (s *Session) reviewInstructions(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	out, err := s.nav.GoBackTo(ctx, func(n *domain.Node) bool { return n.Kind == domain.KindInstruction })
	if err != nil {
		return err
	}
	s.settle(out)
	return nil
}

func (s *Session) perform(ctx context.Context, action domain.ButtonAction) error {
	if action != domain.ActionCancel && action != domain.ActionPause && s.nav.IsHidden(action) && !s.status.Terminal() {
		return fmt.Errorf("%w: %s is hidden on %s", domain.ErrUnhandledAction, action, s.nav.CurrentPath().String())
	}
	switch action {
	case domain.ActionGoForward:
		return s.goForward(ctx)
	case domain.ActionGoBackward:
		return s.goBackward(ctx)
	case domain.ActionSkip:
		return s.skip(ctx)
	case domain.ActionPause:
		return s.pause(ctx)
	case domain.ActionCancel:
		if s.status.Terminal() {
			return domain.ErrTerminated
		}
		s.cancel(ctx)
		return nil
	case domain.ActionReviewInstructions:
		return s.reviewInstructions(ctx)
	}
	return s.performCustom(ctx, action)
}

func (s *Session) performCustom(ctx context.Context, action domain.ButtonAction) error {
	if err := s.guard(); err != nil {
		return err
	}
	if s.opts.actions == nil {
		return fmt.Errorf("%w: %s", domain.ErrUnhandledAction, action)
	}
	call := domain.ActionCall{
		SessionID: s.id,
		Action:    action,
		Path:      s.nav.CurrentPath(),
		Node:      s.nav.Current(),
	}
	if a := s.nav.Answer(); a != nil {
		c := a.Clone()
		call.Answer = &c
	}
	resp, err := s.opts.actions.Handle(ctx, call)
	if err != nil {
		return err
	}
	if resp.Answer != nil {
		if err := s.setAnswer(*resp.Answer); err != nil {
			return err
		}
	}
	if resp.Then == "" {
		return nil
	}
	if resp.Then.IsCustom() {
		return fmt.Errorf("%w: action %s cannot chain custom action %s", domain.ErrUnhandledAction, action, resp.Then)
	}
	return s.perform(ctx, resp.Then)
}

// settle syncs the session status with a navigation outcome.
func (s *Session) settle(out runtime.Outcome) {
	if out.Terminal {
		s.status = out.Status
	}
}

func (s *Session) state() *domain.State {
	return &domain.State{
		SessionID:    s.id,
		AssessmentID: s.graph.Root().Identifier,
		Status:       s.status,
		CurrentPath:  slices.Clone(s.nav.CurrentPath()),
		Result:       s.result,
		UpdatedAt:    s.opts.now(),
	}
}

// persist emits the snapshot to the store. Callers hold s.mu.
func (s *Session) persist(ctx context.Context) error {
	if s.opts.store == nil {
		return nil
	}
	st := s.state().Clone()
	if err := s.opts.store.Save(ctx, s.id, st); err != nil {
		s.opts.logger.ErrorContext(ctx, "failed to persist session", "session_id", s.id, "error", err)
		return fmt.Errorf("persist session %s: %w", s.id, err)
	}
	return nil
}

func (s *Session) emitRun(ctx context.Context, fn func(context.Context, *domain.RunEvent), typ domain.EventType) {
	if fn == nil {
		return
	}
	fn(ctx, &domain.RunEvent{
		EventBase:    domain.EventBase{Timestamp: s.opts.now(), Type: typ, SessionID: s.id},
		AssessmentID: s.graph.Root().Identifier,
		Status:       s.status,
	})
}
