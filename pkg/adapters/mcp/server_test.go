package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/quire"
	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/dsl"
	"github.com/aretw0/quire/pkg/ports"
	"github.com/aretw0/quire/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *quire.Engine) {
	t.Helper()
	b := dsl.New("intake")
	b.Instruction("welcome").Title("Welcome")
	b.Question("age", domain.AnswerInteger).Title("How old are you?")
	b.Question("name", domain.AnswerString).Optional()
	b.Completion("done").Always(domain.ExitBranch)
	loader, err := b.Loader()
	require.NoError(t, err)
	eng, err := quire.New("", quire.WithLoader(loader))
	require.NoError(t, err)
	return NewServer(eng), eng
}

func TestServer_FullRun(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	list, err := s.handleListAssessments(ctx, req, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, []string{"intake"}, list.Assessments)

	resp, err := s.handleStart(ctx, req, StartArgs{AssessmentID: "intake", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "welcome", resp.View.Identifier)

	resp, err = s.handlePerform(ctx, req, ActionArgs{SessionID: "s1", Action: "goForward"})
	require.NoError(t, err)
	assert.Equal(t, "age", resp.View.Identifier)

	_, err = s.handleAnswer(ctx, req, AnswerArgs{SessionID: "s1", Value: `"not a number"`})
	assert.ErrorIs(t, err, domain.ErrInvalidAnswer)

	resp, err = s.handleAnswer(ctx, req, AnswerArgs{SessionID: "s1", Value: "41", Then: "goForward"})
	require.NoError(t, err)
	assert.Equal(t, "name", resp.View.Identifier)

	resp, err = s.handleAnswer(ctx, req, AnswerArgs{SessionID: "s1", Value: "Ada Lovelace"})
	require.NoError(t, err)
	require.NotNil(t, resp.View.Answer)
	assert.True(t, resp.View.Answer.Equal(domain.String("Ada Lovelace")), "bare text is a string answer")

	resp, err = s.handleAnswer(ctx, req, AnswerArgs{SessionID: "s1", Value: "null"})
	require.NoError(t, err)
	assert.Nil(t, resp.View.Answer, "null clears the answer")

	resp, err = s.handlePerform(ctx, req, ActionArgs{SessionID: "s1", Action: "skip"})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.View.Identifier)

	resp, err = s.handlePerform(ctx, req, ActionArgs{SessionID: "s1", Action: "goForward"})
	require.NoError(t, err)
	assert.True(t, resp.View.Terminal)
	assert.Equal(t, domain.StatusCompleted, resp.View.Status)

	st, err := s.handleSnapshot(ctx, req, SessionArgs{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, st.Status)

	sessions, err := s.handleListSessions(ctx, req, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, sessions.Sessions)
}

func TestServer_PauseResume(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	_, err := s.handleStart(ctx, req, StartArgs{AssessmentID: "intake", SessionID: "p"})
	require.NoError(t, err)
	resp, err := s.handlePerform(ctx, req, ActionArgs{SessionID: "p", Action: "pause"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, resp.View.Status)

	_, err = s.handlePerform(ctx, req, ActionArgs{SessionID: "p", Action: "goForward"})
	assert.ErrorIs(t, err, domain.ErrPaused)

	resp, err = s.handleResume(ctx, req, SessionArgs{SessionID: "p"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, resp.View.Status)
	assert.Equal(t, "welcome", resp.View.Identifier)
}

func TestServer_Errors(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	_, err := s.handleView(ctx, req, SessionArgs{SessionID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = s.handleStart(ctx, req, StartArgs{})
	assert.Error(t, err)

	_, err = s.handleStart(ctx, req, StartArgs{AssessmentID: "nope"})
	assert.ErrorIs(t, err, domain.ErrAssessmentNotFound)

	_, err = s.handlePerform(ctx, req, ActionArgs{SessionID: "ghost"})
	assert.Error(t, err)
}

func TestServer_Graph(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleStart(ctx, mcp.CallToolRequest{}, StartArgs{AssessmentID: "intake", SessionID: "g"})
	require.NoError(t, err)

	chart, err := s.renderGraph(ctx, GraphArgs{AssessmentID: "intake"})
	require.NoError(t, err)
	assert.Contains(t, chart, "graph TD")
	assert.Contains(t, chart, "welcome --> age")
	assert.NotContains(t, chart, "classDef")

	chart, err = s.renderGraph(ctx, GraphArgs{SessionID: "g"})
	require.NoError(t, err)
	assert.Contains(t, chart, "class welcome current;")

	_, err = s.renderGraph(ctx, GraphArgs{})
	assert.Error(t, err)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"assessment_id": "intake"}
	res, err := s.handleGraph(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "graph TD")
}

// engineOnly hides the Graph method of *quire.Engine.
type engineOnly struct{ ports.Engine }

func TestServer_GraphUnsupported(t *testing.T) {
	_, eng := newTestServer(t)
	s := NewServer(engineOnly{eng})
	_, err := s.renderGraph(context.Background(), GraphArgs{AssessmentID: "intake"})
	assert.ErrorIs(t, err, ErrNoGraphSource)
}

func TestServer_Resources(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	_, err := s.handleStart(ctx, mcp.CallToolRequest{}, StartArgs{AssessmentID: "intake", SessionID: "r"})
	require.NoError(t, err)

	req := mcp.ReadResourceRequest{}
	req.Params.URI = sessionURIPrefix + "r"
	contents, err := s.readSession(ctx, req)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text := contents[0].(mcp.TextResourceContents)
	assert.Equal(t, "application/json", text.MIMEType)
	var st domain.State
	require.NoError(t, json.Unmarshal([]byte(text.Text), &st))
	assert.Equal(t, "r", st.SessionID)

	req.Params.URI = "quire://other/r"
	_, err = s.readSession(ctx, req)
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.Value
	}{
		{"42", domain.Int(42)},
		{"true", domain.Bool(true)},
		{`[1, "a"]`, domain.Array(domain.Int(1), domain.String("a"))},
		{"hello world", domain.String("hello world")},
		{`"quoted"`, domain.String("quoted")},
		{"null", domain.Null()},
		{"bell\x07", domain.String("bell")},
	}
	s := &Server{}
	for _, tt := range tests {
		got, err := s.parseValue(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.True(t, got.Equal(tt.want), "parseValue(%q) = %s", tt.raw, got)
	}

	s = &Server{policy: runner.AnswerPolicy{MaxTextSize: 4, MaxItems: 1}}
	_, err := s.parseValue("hello world")
	assert.ErrorIs(t, err, runner.ErrInputTooLarge)
	_, err = s.parseValue("[1, 2]")
	assert.ErrorIs(t, err, runner.ErrTooManyItems)
	assert.ErrorIs(t, err, domain.ErrInvalidAnswer)
}
