package runner

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/dsl"
	"github.com/aretw0/quire/pkg/graph"
	"github.com/aretw0/quire/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intakeSession(t *testing.T, opts ...session.Option) *session.Session {
	t.Helper()
	b := dsl.New("intake")
	b.Instruction("welcome").Title("Welcome to Quire")
	b.Question("age", domain.AnswerInteger).Title("How old are you?")
	b.Question("color", domain.AnswerString).Title("Favourite color").
		Choices(true, domain.Choice{Text: "Red", Value: domain.String("red")}, domain.Choice{Text: "Blue", Value: domain.String("blue")})
	b.Completion("done").Title("Goodbye").Always(domain.ExitBranch)
	a, err := b.Build()
	require.NoError(t, err)
	g, err := graph.New(a)
	require.NoError(t, err)
	s, err := session.Start(context.Background(), g, opts...)
	require.NoError(t, err)
	return s
}

func runWithTimeout(t *testing.T, r *Runner, s Session) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- r.Run(t.Context(), s) }()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Runner timed out")
		return nil
	}
}

func TestRunner_Run_BasicFlow(t *testing.T) {
	s := intakeSession(t)
	in := bytes.NewBufferString("\nabc\n42\n2\n\n")
	out := &bytes.Buffer{}

	r := NewRunner(WithIO(in, out))
	require.NoError(t, runWithTimeout(t, r, s))

	assert.Equal(t, domain.StatusCompleted, s.Status())
	prev, ok := s.PreviousResult("color")
	require.True(t, ok)
	assert.True(t, prev.(*domain.AnswerResult).Answer().Equal(domain.String("blue")))

	text := out.String()
	assert.Contains(t, text, "Welcome to Quire")
	assert.Contains(t, text, "[2/4] How old are you?")
	assert.Contains(t, text, "not an integer", "invalid answers are reported and retried")
	assert.Contains(t, text, "  2) Blue")
	assert.Contains(t, text, "Goodbye")
	assert.Contains(t, text, "[completed] intake")
}

func TestRunner_Run_RecoverableErrors(t *testing.T) {
	s := intakeSession(t)
	// Forward without an answer, then an unknown custom action, then quit.
	in := bytes.NewBufferString("\n\n:launch\nquit\n")
	out := &bytes.Buffer{}

	r := NewRunner(WithIO(in, out))
	require.NoError(t, runWithTimeout(t, r, s))

	text := out.String()
	assert.Contains(t, text, domain.ErrAnswerRequired.Error())
	assert.Contains(t, text, domain.ErrUnhandledAction.Error())
	assert.Contains(t, text, "Session "+s.ID()+" saved.")
	assert.Equal(t, domain.StatusActive, s.Status())
	assert.Equal(t, "age", s.View().Identifier)
}

func TestRunner_Run_BackAndClear(t *testing.T) {
	s := intakeSession(t)
	in := bytes.NewBufferString("\n30\n:back\n:clear\nquit\n")

	r := NewRunner(WithIO(in, io.Discard))
	require.NoError(t, runWithTimeout(t, r, s))

	v := s.View()
	assert.Equal(t, "age", v.Identifier)
	assert.Nil(t, v.Answer)
}

func TestRunner_Run_Pause(t *testing.T) {
	s := intakeSession(t)
	in := bytes.NewBufferString("\n:pause\n")
	out := &bytes.Buffer{}

	require.NoError(t, runWithTimeout(t, NewRunner(WithIO(in, out)), s))
	assert.Equal(t, domain.StatusPaused, s.Status())
	assert.Contains(t, out.String(), "paused")
}

func TestRunner_Run_Headless(t *testing.T) {
	s := intakeSession(t)
	in := strings.NewReader(`{"action":"goForward"}
{"answer":7}
not json
{"answer":"red"}
{"action":"goForward"}
`)
	out := &bytes.Buffer{}

	r := NewRunner(WithIO(in, out), WithHeadless(true))
	require.NoError(t, runWithTimeout(t, r, s))

	assert.Equal(t, domain.StatusCompleted, s.Status())
	text := out.String()
	assert.Contains(t, text, `"identifier":"welcome"`)
	assert.Contains(t, text, `"system":"invalid command`)
	assert.Contains(t, text, `"status":"completed"`)
}

func TestRunner_Run_AnswerPolicy(t *testing.T) {
	s := intakeSession(t)
	in := strings.NewReader(`{"action":"goForward"}
{"answer":7}
{"answer":"crimson"}
{"answer":"red\u001b"}
{"action":"goForward"}
`)
	out := &bytes.Buffer{}

	r := NewRunner(WithIO(in, out), WithHeadless(true), WithAnswerPolicy(AnswerPolicy{MaxTextSize: 4}))
	require.NoError(t, runWithTimeout(t, r, s))

	assert.Contains(t, out.String(), ErrInputTooLarge.Error())
	assert.Equal(t, domain.StatusCompleted, s.Status())
	prev, ok := s.PreviousResult("color")
	require.True(t, ok)
	assert.True(t, prev.(*domain.AnswerResult).Answer().Equal(domain.String("red")), "control characters are stripped")
}

func TestRunner_Run_EOF(t *testing.T) {
	s := intakeSession(t)
	require.NoError(t, runWithTimeout(t, NewRunner(WithIO(strings.NewReader(""), io.Discard)), s))
	assert.Equal(t, domain.StatusActive, s.Status())
}

func TestRunner_Run_ContextCancelled(t *testing.T) {
	s := intakeSession(t)
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- NewRunner(WithIO(pr, io.Discard)).Run(ctx, s) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Runner did not stop on cancellation")
	}
}

func TestRunner_TerminatedSession(t *testing.T) {
	s := intakeSession(t)
	require.NoError(t, s.Cancel(context.Background()))

	out := &bytes.Buffer{}
	require.NoError(t, runWithTimeout(t, NewRunner(WithIO(strings.NewReader(""), out)), s))
	assert.Contains(t, out.String(), "[cancelled]")
}
