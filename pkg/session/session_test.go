package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/quire/pkg/adapters/memory"
	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/dsl"
	"github.com/aretw0/quire/pkg/graph"
	"github.com/aretw0/quire/pkg/ports"
	"github.com/aretw0/quire/pkg/registry"
	"github.com/aretw0/quire/pkg/schema"
	"github.com/aretw0/quire/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clock ticks one second per reading.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func mustGraph(t *testing.T, b *dsl.Builder) *graph.Graph {
	t.Helper()
	a, err := b.Build()
	require.NoError(t, err)
	g, err := graph.New(a)
	require.NoError(t, err)
	return g
}

func linear() *dsl.Builder {
	b := dsl.New("linear").Version("1.0")
	b.Instruction("A").Title("Welcome")
	b.Question("B", domain.AnswerInteger).Title("How many?")
	b.Completion("C").Title("Thanks")
	return b
}

func historyIDs(res *domain.AssessmentResult) []string {
	var out []string
	for _, r := range res.PathHistory() {
		out = append(out, r.ResultIdentifier())
	}
	return out
}

func actions(v domain.StepView) []domain.ButtonAction {
	var out []domain.ButtonAction
	for _, b := range v.Buttons {
		out = append(out, b.Action)
	}
	return out
}

func TestSession_LinearRun(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	var finished atomic.Int32
	hooks := domain.LifecycleHooks{
		OnRunFinished: func(_ context.Context, e *domain.RunEvent) {
			finished.Add(1)
			assert.Equal(t, domain.StatusCompleted, e.Status)
		},
	}

	s, err := session.Start(ctx, mustGraph(t, linear()),
		session.WithSessionID("run-1"),
		session.WithStore(store),
		session.WithClock(newClock().now),
		session.WithLifecycleHooks(hooks),
	)
	require.NoError(t, err)
	assert.Equal(t, "run-1", s.ID())

	v := s.View()
	assert.Equal(t, "A", v.Identifier)
	assert.Equal(t, "Welcome", v.Title)
	assert.True(t, v.CanProceed)
	assert.Equal(t, []domain.ButtonAction{domain.ActionGoBackward, domain.ActionGoForward, domain.ActionPause, domain.ActionCancel}, actions(v))

	st, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, st.CurrentPath)

	v, err = s.GoForward(ctx)
	require.NoError(t, err)
	assert.Equal(t, "B", v.Identifier)
	assert.False(t, v.CanProceed)
	assert.Equal(t, 1, v.Index)
	assert.Equal(t, 3, v.Total)

	v, err = s.GoForward(ctx)
	assert.ErrorIs(t, err, domain.ErrAnswerRequired)
	assert.Equal(t, "B", v.Identifier)

	require.NoError(t, s.SetAnswer(ctx, domain.Int(4)))
	v, err = s.GoForward(ctx)
	require.NoError(t, err)
	assert.Equal(t, "C", v.Identifier)
	assert.Equal(t, "Done", v.Buttons[1].Title)

	v, err = s.GoForward(ctx)
	require.NoError(t, err)
	assert.True(t, v.Terminal)
	assert.Equal(t, domain.StatusCompleted, v.Status)
	assert.EqualValues(t, 1, finished.Load())

	_, err = s.GoForward(ctx)
	assert.ErrorIs(t, err, domain.ErrTerminated)

	st, err = store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, st.Status)
	assert.True(t, st.Result.Terminated())
	assert.Equal(t, "1.0", st.Result.VersionString)
	assert.Equal(t, []string{"A", "B", "C"}, historyIDs(st.Result))
	assert.Empty(t, st.CurrentPath)
}

func TestSession_SkipRuleScenario(t *testing.T) {
	ctx := context.Background()
	b := dsl.New("skip")
	b.Question("A", domain.AnswerInteger).SkipIf(1, "C")
	b.Instruction("B")
	b.Completion("C")

	s, err := session.Start(ctx, mustGraph(t, b))
	require.NoError(t, err)

	require.NoError(t, s.SetAnswer(ctx, domain.Int(1)))
	v, err := s.GoForward(ctx)
	require.NoError(t, err)
	assert.Equal(t, "C", v.Identifier)
	assert.Equal(t, []string{"A", "C"}, historyIDs(s.Result()))
}

func TestSession_BacktrackAndChangeAnswer(t *testing.T) {
	ctx := context.Background()
	b := dsl.New("backtrack")
	b.Question("A", domain.AnswerInteger).SkipIf(1, "C")
	b.Instruction("B")
	b.Completion("C")

	s, err := session.Start(ctx, mustGraph(t, b))
	require.NoError(t, err)

	require.NoError(t, s.SetAnswer(ctx, domain.Int(2)))
	v, err := s.GoForward(ctx)
	require.NoError(t, err)
	assert.Equal(t, "B", v.Identifier)

	v, err = s.GoBackward(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", v.Identifier)
	require.NotNil(t, v.Answer)
	assert.True(t, v.Answer.Equal(domain.Int(2)))

	require.NoError(t, s.SetAnswer(ctx, domain.Int(1)))
	v, err = s.GoForward(ctx)
	require.NoError(t, err)
	assert.Equal(t, "C", v.Identifier)
	assert.Equal(t, []string{"A", "C"}, historyIDs(s.Result()))
}

func TestSession_CancelThenResume(t *testing.T) {
	ctx := context.Background()
	g := mustGraph(t, linear())
	c := newClock()

	s, err := session.Start(ctx, g, session.WithClock(c.now))
	require.NoError(t, err)
	_, err = s.GoForward(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Cancel(ctx))
	assert.ErrorIs(t, s.Cancel(ctx), domain.ErrTerminated)
	assert.Equal(t, domain.StatusCancelled, s.Status())

	st := s.Snapshot()
	resumed, err := session.Resume(ctx, g, st, session.WithClock(c.now))
	require.NoError(t, err)

	assert.True(t, resumed.Terminated())
	assert.Equal(t, domain.StatusCancelled, resumed.Status())
	assert.True(t, resumed.View().Terminal)
	assert.Equal(t, st.Result.StartDate, resumed.Result().StartDate, "terminated runs keep their start date")

	_, err = resumed.GoForward(ctx)
	assert.ErrorIs(t, err, domain.ErrTerminated)
	assert.ErrorIs(t, resumed.SetAnswer(ctx, domain.Int(1)), domain.ErrTerminated)
}

func TestSession_ResumeAndOpen(t *testing.T) {
	ctx := context.Background()
	g := mustGraph(t, linear())
	c := newClock()

	s, err := session.Start(ctx, g, session.WithClock(c.now))
	require.NoError(t, err)
	_, err = s.GoForward(ctx)
	require.NoError(t, err)
	require.NoError(t, s.SetAnswer(ctx, domain.Int(7)))
	require.NoError(t, s.Pause(ctx))
	st := s.Snapshot()
	assert.Equal(t, domain.StatusPaused, st.Status)

	var resumedEvents atomic.Int32
	hooks := session.WithLifecycleHooks(domain.LifecycleHooks{
		OnRunResumed: func(context.Context, *domain.RunEvent) { resumedEvents.Add(1) },
	})

	t.Run("Resume restarts the run", func(t *testing.T) {
		resumedEvents.Store(0)
		r, err := session.Resume(ctx, g, st, session.WithClock(c.now), hooks)
		require.NoError(t, err)

		v := r.View()
		assert.Equal(t, domain.StatusActive, v.Status)
		assert.Equal(t, "B", v.Identifier)
		require.NotNil(t, v.Answer)
		assert.True(t, v.Answer.Equal(domain.Int(7)))

		res := r.Result()
		assert.Equal(t, st.Result.TaskRunUUID, res.TaskRunUUID)
		assert.True(t, res.StartDate.After(st.Result.StartDate), "start date is re-stamped")
		assert.EqualValues(t, 1, resumedEvents.Load())
	})

	t.Run("Open reattaches", func(t *testing.T) {
		resumedEvents.Store(0)
		o, err := session.Open(ctx, g, st, session.WithClock(c.now), hooks)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusPaused, o.Status())
		assert.Equal(t, st.Result.StartDate, o.Result().StartDate)
		assert.Zero(t, resumedEvents.Load())

		_, err = o.GoForward(ctx)
		assert.ErrorIs(t, err, domain.ErrPaused)
	})

	t.Run("snapshot is not shared", func(t *testing.T) {
		r, err := session.Resume(ctx, g, st)
		require.NoError(t, err)
		_, err = r.GoForward(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, historyIDs(st.Result))
	})

	t.Run("foreign snapshot", func(t *testing.T) {
		ob := dsl.New("other")
		ob.Instruction("x")
		_, err := session.Resume(ctx, mustGraph(t, ob), st)
		assert.ErrorIs(t, err, domain.ErrMalformedSnapshot)
	})
}

func TestSession_Skip(t *testing.T) {
	ctx := context.Background()
	b := dsl.New("skippable")
	b.Question("opt", domain.AnswerString).Optional().SkipText("Not now")
	b.Question("req", domain.AnswerInteger)
	b.Completion("end")

	s, err := session.Start(ctx, mustGraph(t, b))
	require.NoError(t, err)

	v := s.View()
	assert.True(t, v.CanProceed)
	assert.Contains(t, v.Buttons, domain.ButtonView{Action: domain.ActionSkip, Title: "Not now"})

	require.NoError(t, s.SetAnswer(ctx, domain.String("draft")))
	v, err = s.Skip(ctx)
	require.NoError(t, err)
	assert.Equal(t, "req", v.Identifier)
	assert.NotContains(t, actions(v), domain.ActionSkip, "required questions show no skip button")

	prev, ok := s.PreviousResult("opt")
	require.True(t, ok)
	assert.Nil(t, prev.(*domain.AnswerResult).Answer(), "skip clears the answer")

	v, err = s.Skip(ctx)
	require.NoError(t, err)
	assert.Equal(t, "end", v.Identifier)
}

func TestSession_Pause(t *testing.T) {
	ctx := context.Background()
	b := dsl.New("pausing")
	b.Instruction("a")
	locked := b.Section("locked").HideButtons(domain.ActionPause)
	locked.Instruction("inner")
	locked.Instruction("override").Button(domain.ActionPause, "Pause here")
	b.Completion("end")

	var paused atomic.Int32
	s, err := session.Start(ctx, mustGraph(t, b), session.WithLifecycleHooks(domain.LifecycleHooks{
		OnRunPaused: func(context.Context, *domain.RunEvent) { paused.Add(1) },
	}))
	require.NoError(t, err)

	require.NoError(t, s.Pause(ctx))
	assert.Equal(t, domain.StatusPaused, s.Status())
	assert.EqualValues(t, 1, paused.Load())
	assert.False(t, s.View().CanPause)
	require.NoError(t, s.Pause(ctx), "pausing twice is a no-op")

	_, err = s.GoForward(ctx)
	assert.ErrorIs(t, err, domain.ErrPaused)
	_, err = s.Perform(ctx, domain.ActionGoForward)
	assert.ErrorIs(t, err, domain.ErrPaused)

	require.NoError(t, s.Unpause(ctx))
	assert.Equal(t, domain.StatusActive, s.Status())

	v, err := s.GoForward(ctx)
	require.NoError(t, err)
	assert.Equal(t, "inner", v.Identifier)
	assert.False(t, v.CanPause)
	assert.NotContains(t, actions(v), domain.ActionPause)
	assert.ErrorIs(t, s.Pause(ctx), domain.ErrPauseDisabled)

	v, err = s.GoForward(ctx)
	require.NoError(t, err)
	assert.Equal(t, "override", v.Identifier)
	assert.True(t, v.CanPause)
	assert.Contains(t, v.Buttons, domain.ButtonView{Action: domain.ActionPause, Title: "Pause here"})
}

func TestSession_InvalidAnswers(t *testing.T) {
	ctx := context.Background()
	s, err := session.Start(ctx, mustGraph(t, linear()))
	require.NoError(t, err)

	assert.ErrorIs(t, s.SetAnswer(ctx, domain.Int(1)), domain.ErrNoInput)

	_, err = s.GoForward(ctx)
	require.NoError(t, err)

	err = s.SetAnswer(ctx, domain.String("many"))
	require.ErrorIs(t, err, domain.ErrInvalidAnswer)
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "B", verr.Key)
	assert.Nil(t, s.View().Answer, "rejected answers are not recorded")

	require.NoError(t, s.SetAnswer(ctx, domain.Int(3)))
	require.NoError(t, s.ClearAnswer(ctx))
	assert.False(t, s.View().CanProceed)
}

func TestSession_CustomActions(t *testing.T) {
	ctx := context.Background()
	b := dsl.New("lookup")
	b.Question("zip", domain.AnswerString).
		Button("lookup", "Look up").
		Button("loop", "Loop")
	b.Completion("end").Hide(domain.ActionGoBackward)
	g := mustGraph(t, b)

	reg := registry.NewRegistry()
	reg.Register("lookup", func(ctx context.Context, call domain.ActionCall) (domain.ActionResponse, error) {
		assert.Equal(t, []string{"zip"}, call.Path)
		assert.Equal(t, "zip", call.Node.Identifier)
		v := domain.String("12345")
		return domain.ActionResponse{Answer: &v, Then: domain.ActionGoForward}, nil
	})
	reg.Register("loop", func(context.Context, domain.ActionCall) (domain.ActionResponse, error) {
		return domain.ActionResponse{Then: "lookup"}, nil
	})

	t.Run("without handler", func(t *testing.T) {
		s, err := session.Start(ctx, g)
		require.NoError(t, err)
		_, err = s.Perform(ctx, "lookup")
		assert.ErrorIs(t, err, domain.ErrUnhandledAction)
	})

	s, err := session.Start(ctx, g, session.WithActionHandler(reg))
	require.NoError(t, err)

	v := s.View()
	assert.Equal(t, []domain.ButtonAction{
		domain.ActionGoBackward, domain.ActionGoForward, domain.ActionPause, domain.ActionCancel, "lookup", "loop",
	}, actions(v))

	_, err = s.Perform(ctx, "unknown")
	assert.ErrorIs(t, err, domain.ErrUnhandledAction)
	_, err = s.Perform(ctx, "loop")
	assert.ErrorIs(t, err, domain.ErrUnhandledAction)

	v, err = s.Perform(ctx, "lookup")
	require.NoError(t, err)
	assert.Equal(t, "end", v.Identifier)
	prev, ok := s.PreviousResult("zip")
	require.True(t, ok)
	assert.True(t, prev.(*domain.AnswerResult).Answer().Equal(domain.String("12345")))

	_, err = s.Perform(ctx, domain.ActionGoBackward)
	assert.ErrorIs(t, err, domain.ErrUnhandledAction, "hidden actions cannot be performed")

	v, err = s.Perform(ctx, domain.ActionCancel)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, v.Status)
}

func TestSession_ReviewInstructions(t *testing.T) {
	ctx := context.Background()
	b := dsl.New("review")
	b.Instruction("how").Title("How this works")
	b.Question("q", domain.AnswerString).Button(domain.ActionReviewInstructions, "")
	b.Completion("end")

	s, err := session.Start(ctx, mustGraph(t, b))
	require.NoError(t, err)
	assert.NotContains(t, actions(s.View()), domain.ActionReviewInstructions)

	_, err = s.ReviewInstructions(ctx)
	assert.ErrorIs(t, err, domain.ErrNoInstructions)

	v, err := s.GoForward(ctx)
	require.NoError(t, err)
	assert.Contains(t, v.Buttons, domain.ButtonView{Action: domain.ActionReviewInstructions, Title: "Review instructions"})

	v, err = s.Perform(ctx, domain.ActionReviewInstructions)
	require.NoError(t, err)
	assert.Equal(t, "how", v.Identifier)
	assert.Equal(t, []string{"how"}, historyIDs(s.Result()))
}

func TestSession_ViewText(t *testing.T) {
	ctx := context.Background()
	b := dsl.New("text")
	b.Instruction("detail-only").Detail("Just a detail")
	b.Instruction("sub").Subtitle("Subtitle").Detail("Detail")
	b.Custom("map", "geo").Title("Pick a spot").Payload("zoom", 3)

	s, err := session.Start(ctx, mustGraph(t, b))
	require.NoError(t, err)

	v := s.View()
	assert.Equal(t, "Just a detail", v.Title)
	assert.Empty(t, v.Detail)

	v, _ = s.GoForward(ctx)
	assert.Equal(t, "Subtitle", v.Title)
	assert.Empty(t, v.Subtitle)
	assert.Equal(t, "Detail", v.Detail)

	v, _ = s.GoForward(ctx)
	assert.Equal(t, domain.KindCustom, v.Kind)
	assert.Equal(t, "geo", v.CustomType)
	assert.Equal(t, 3, v.Payload["zoom"])
}

func TestSession_PreviousResult(t *testing.T) {
	ctx := context.Background()
	b := dsl.New("nested")
	b.Instruction("intro")
	b.Section("S").Question("Q1", domain.AnswerString)
	b.Completion("done")

	s, err := session.Start(ctx, mustGraph(t, b))
	require.NoError(t, err)
	_, err = s.GoForward(ctx)
	require.NoError(t, err)
	require.NoError(t, s.SetAnswer(ctx, domain.String("first")))
	_, err = s.GoForward(ctx)
	require.NoError(t, err)

	r, ok := s.PreviousResult("Q1")
	require.True(t, ok)
	ans := r.(*domain.AnswerResult)
	assert.True(t, ans.Answer().Equal(domain.String("first")))

	other := domain.String("changed")
	ans.SetAnswer(&other)
	again, _ := s.PreviousResult("Q1")
	assert.True(t, again.(*domain.AnswerResult).Answer().Equal(domain.String("first")), "lookups return copies")

	sec, ok := s.PreviousResult("S")
	require.True(t, ok)
	assert.Equal(t, domain.ResultCollection, sec.ResultType())

	_, ok = s.PreviousResult("missing")
	assert.False(t, ok)
}

func TestSession_RecordAsync_Concurrent(t *testing.T) {
	ctx := context.Background()
	var events atomic.Int32
	s, err := session.Start(ctx, mustGraph(t, linear()),
		session.WithStore(memory.NewStore()),
		session.WithLifecycleHooks(domain.LifecycleHooks{
			OnAsyncResult: func(context.Context, *domain.AsyncEvent) { events.Add(1) },
		}),
	)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := domain.NewAnswerResult(fmt.Sprintf("sensor-%d", i%4), domain.AnswerType{Kind: domain.AnswerInteger})
			v := domain.Int(int64(i))
			r.SetAnswer(&v)
			assert.NoError(t, s.RecordAsync(ctx, r))
		}(i)
	}
	// Navigation proceeds while results arrive.
	_, err = s.GoForward(ctx)
	require.NoError(t, err)
	_ = s.View()
	wg.Wait()

	res := s.Result()
	assert.Len(t, res.AsyncResults(), 4)
	assert.EqualValues(t, 40, events.Load())

	last := domain.NewAnswerResult("sensor-0", domain.AnswerType{Kind: domain.AnswerInteger})
	v := domain.Int(99)
	last.SetAnswer(&v)
	require.NoError(t, s.RecordAsync(ctx, last))
	got, ok := s.Result().AsyncResult("sensor-0")
	require.True(t, ok)
	assert.True(t, got.(*domain.AnswerResult).Answer().Equal(domain.Int(99)), "last write wins")

	assert.Error(t, s.RecordAsync(ctx, domain.NewStepResult("")))
	require.NoError(t, s.Cancel(ctx))
	assert.ErrorIs(t, s.RecordAsync(ctx, domain.NewStepResult("late")), domain.ErrTerminated)
}

func TestSession_RecordAsync_Persists(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	s, err := session.Start(ctx, mustGraph(t, linear()), session.WithStore(store))
	require.NoError(t, err)

	require.NoError(t, s.RecordAsync(ctx, domain.NewStepResult("gps")))

	st, err := store.Load(ctx, s.ID())
	require.NoError(t, err)
	_, ok := st.Result.AsyncResult("gps")
	assert.True(t, ok)
}

func TestSession_RunRecorders(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	s, err := session.Start(ctx, mustGraph(t, linear()), session.WithStore(store))
	require.NoError(t, err)

	err = s.RunRecorders(ctx,
		ports.RecorderFunc{ID: "gps", Fn: func(context.Context) (domain.Result, error) {
			return domain.NewStepResult("gps"), nil
		}},
		ports.RecorderFunc{ID: "noop", Fn: func(context.Context) (domain.Result, error) {
			return nil, nil
		}},
	)
	require.NoError(t, err)

	st, err := store.Load(ctx, s.ID())
	require.NoError(t, err)
	_, ok := st.Result.AsyncResult("gps")
	assert.True(t, ok, "recorded results are persisted")
	_, ok = st.Result.AsyncResult("noop")
	assert.False(t, ok)

	boom := errors.New("boom")
	err = s.RunRecorders(ctx, ports.RecorderFunc{ID: "broken", Fn: func(context.Context) (domain.Result, error) {
		return nil, boom
	}})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "recorder broken")
}

// failingStore rejects every save.
type failingStore struct{ *memory.Store }

func (failingStore) Save(context.Context, string, *domain.State) error {
	return errors.New("disk full")
}

func TestSession_PersistFailure(t *testing.T) {
	ctx := context.Background()
	_, err := session.Start(ctx, mustGraph(t, linear()), session.WithStore(failingStore{memory.NewStore()}))
	assert.ErrorContains(t, err, "disk full")
}
