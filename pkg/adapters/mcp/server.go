package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/quire"
	"github.com/aretw0/quire/internal/logging"
	mermaid "github.com/aretw0/quire/internal/presentation/graph"
	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/graph"
	"github.com/aretw0/quire/pkg/ports"
	"github.com/aretw0/quire/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	assessmentsURI     = "quire://assessments"
	sessionURIPrefix   = "quire://sessions/"
	sessionURITemplate = sessionURIPrefix + "{session_id}"
)

// ErrNoGraphSource is returned by get_graph when the engine cannot expose graphs.
var ErrNoGraphSource = errors.New("engine does not expose step graphs")

// GraphSource is implemented by engines that can hand out indexed step
// graphs (*quire.Engine does). It powers the get_graph tool.
type GraphSource interface {
	Graph(ctx context.Context, assessmentID string) (*graph.Graph, error)
}

// StepResponse is the unified result of every navigation tool.
type StepResponse struct {
	View *domain.StepView `json:"view" jsonschema_description:"The current step of the session"`
}

// AssessmentsResponse lists loadable assessments.
type AssessmentsResponse struct {
	Assessments []string `json:"assessments"`
}

// SessionsResponse lists stored sessions.
type SessionsResponse struct {
	Sessions []string `json:"sessions"`
}

// Tool arguments. Field names double as the MCP argument names.
type (
	SessionArgs struct {
		SessionID string `json:"session_id"`
	}
	StartArgs struct {
		AssessmentID string `json:"assessment_id"`
		SessionID    string `json:"session_id,omitempty"`
	}
	AnswerArgs struct {
		SessionID string `json:"session_id"`
		Value     string `json:"value"`
		Then      string `json:"then,omitempty"`
	}
	ActionArgs struct {
		SessionID string `json:"session_id"`
		Action    string `json:"action"`
	}
	GraphArgs struct {
		AssessmentID string `json:"assessment_id,omitempty"`
		SessionID    string `json:"session_id,omitempty"`
	}
)

// Server exposes an Engine as an MCP server.
type Server struct {
	engine    ports.Engine
	logger    *slog.Logger
	policy    runner.AnswerPolicy
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAnswerPolicy bounds answers passed to the answer tool.
func WithAnswerPolicy(p runner.AnswerPolicy) Option {
	return func(s *Server) {
		s.policy = p
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine ports.Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("quire-mcp", strings.TrimSpace(quire.Version), server.WithResourceCapabilities(false, false)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, e.g. for in-process transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		// Create a timeout context for the graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_assessments",
		mcp.WithDescription("List the assessments that can be started."),
		mcp.WithOutputSchema[AssessmentsResponse](),
	), mcp.NewStructuredToolHandler(s.handleListAssessments))

	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List stored session IDs."),
		mcp.WithOutputSchema[SessionsResponse](),
	), mcp.NewStructuredToolHandler(s.handleListSessions))

	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a fresh run of an assessment and return its first step."),
		mcp.WithString("assessment_id", mcp.Required(), mcp.Description("Assessment to run")),
		mcp.WithString("session_id", mcp.Description("Session ID to use (generated when omitted)")),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("view_step",
		mcp.WithDescription("Render the current step of a session without changing it."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), mcp.NewStructuredToolHandler(s.handleView))

	s.mcpServer.AddTool(mcp.NewTool("answer",
		mcp.WithDescription("Record an answer for the current step. The value is JSON (42, true, \"text\", [1,2]); "+
			"bare text is taken as a string and null clears the answer."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Answer value as JSON")),
		mcp.WithString("then", mcp.Description("Button action to perform after recording, e.g. goForward")),
	), mcp.NewStructuredToolHandler(s.handleAnswer))

	s.mcpServer.AddTool(mcp.NewTool("perform_action",
		mcp.WithDescription("Trigger a button action: goForward, goBackward, skip, pause, cancel, reviewInstructions or a custom action."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("action", mcp.Required(), mcp.Description("Button action")),
	), mcp.NewStructuredToolHandler(s.handlePerform))

	s.mcpServer.AddTool(mcp.NewTool("resume_session",
		mcp.WithDescription("Resume a paused or interrupted session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), mcp.NewStructuredToolHandler(s.handleResume))

	s.mcpServer.AddTool(mcp.NewTool("get_snapshot",
		mcp.WithDescription("Return the persisted state of a session, result tree included."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), mcp.NewStructuredToolHandler(s.handleSnapshot))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Render an assessment as a Mermaid flowchart. With a session ID, visited and current steps are highlighted."),
		mcp.WithString("assessment_id", mcp.Description("Assessment to render (defaults to the session's)")),
		mcp.WithString("session_id", mcp.Description("Session whose progress to overlay")),
	), s.handleGraph)
}

func (s *Server) handleListAssessments(ctx context.Context, _ mcp.CallToolRequest, _ struct{}) (AssessmentsResponse, error) {
	ids, err := s.engine.Assessments(ctx)
	if err != nil {
		return AssessmentsResponse{}, err
	}
	if ids == nil {
		ids = []string{}
	}
	return AssessmentsResponse{Assessments: ids}, nil
}

func (s *Server) handleListSessions(ctx context.Context, _ mcp.CallToolRequest, _ struct{}) (SessionsResponse, error) {
	ids, err := s.engine.Sessions(ctx)
	if err != nil {
		return SessionsResponse{}, err
	}
	if ids == nil {
		ids = []string{}
	}
	return SessionsResponse{Sessions: ids}, nil
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args StartArgs) (StepResponse, error) {
	if args.AssessmentID == "" {
		return StepResponse{}, errors.New("assessment_id is required")
	}
	return step(s.engine.Start(ctx, args.AssessmentID, args.SessionID))
}

func (s *Server) handleView(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (StepResponse, error) {
	return step(s.engine.View(ctx, args.SessionID))
}

func (s *Server) handleAnswer(ctx context.Context, _ mcp.CallToolRequest, args AnswerArgs) (StepResponse, error) {
	value, err := s.parseValue(args.Value)
	if err != nil {
		s.logger.Warn("MCP answer: input rejected", "err", err, "size", len(args.Value))
		return StepResponse{}, fmt.Errorf("input rejected: %w", err)
	}
	view, err := s.engine.Answer(ctx, args.SessionID, value)
	if err != nil || args.Then == "" {
		return step(view, err)
	}
	return step(s.engine.Perform(ctx, args.SessionID, domain.ParseButtonAction(args.Then)))
}

func (s *Server) handlePerform(ctx context.Context, _ mcp.CallToolRequest, args ActionArgs) (StepResponse, error) {
	if args.Action == "" {
		return StepResponse{}, errors.New("action is required")
	}
	return step(s.engine.Perform(ctx, args.SessionID, domain.ParseButtonAction(args.Action)))
}

func (s *Server) handleResume(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (StepResponse, error) {
	return step(s.engine.Resume(ctx, args.SessionID))
}

func (s *Server) handleSnapshot(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (*domain.State, error) {
	return s.engine.Snapshot(ctx, args.SessionID)
}

func (s *Server) handleGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args GraphArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	chart, err := s.renderGraph(ctx, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(chart), nil
}

func (s *Server) renderGraph(ctx context.Context, args GraphArgs) (string, error) {
	src, ok := s.engine.(GraphSource)
	if !ok {
		return "", ErrNoGraphSource
	}
	var overlay *mermaid.GraphOverlay
	if args.SessionID != "" {
		st, err := s.engine.Snapshot(ctx, args.SessionID)
		if err != nil {
			return "", err
		}
		if args.AssessmentID == "" {
			args.AssessmentID = st.AssessmentID
		}
		overlay = mermaid.OverlayFromState(st)
	}
	if args.AssessmentID == "" {
		return "", errors.New("assessment_id or session_id is required")
	}
	g, err := src.Graph(ctx, args.AssessmentID)
	if err != nil {
		return "", err
	}
	return mermaid.GenerateMermaid(g, overlay), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(assessmentsURI, "Available assessments",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.engine.Assessments(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list assessments: %w", err)
		}
		return jsonResource(assessmentsURI, AssessmentsResponse{Assessments: ids})
	})

	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(sessionURITemplate, "Session snapshot",
		mcp.WithTemplateDescription("Persisted state of a session, result tree included"),
		mcp.WithTemplateMIMEType("application/json"),
	), s.readSession)
}

func (s *Server) readSession(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	id := strings.TrimPrefix(uri, sessionURIPrefix)
	if id == "" || id == uri {
		return nil, fmt.Errorf("invalid session URI %q", uri)
	}
	st, err := s.engine.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return jsonResource(uri, st)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

// parseValue reads an answer as JSON and falls back to the raw text as a
// string, then cleans it with the server's policy.
func (s *Server) parseValue(raw string) (domain.Value, error) {
	var v domain.Value
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		v = domain.String(raw)
	}
	return s.policy.Clean(nil, v)
}

func step(view *domain.StepView, err error) (StepResponse, error) {
	if err != nil {
		return StepResponse{}, err
	}
	return StepResponse{View: view}, nil
}
