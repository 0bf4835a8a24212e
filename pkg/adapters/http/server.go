package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/quire"
	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/ports"
	"github.com/aretw0/quire/pkg/runner"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodySize bounds request bodies; answers are further limited by the server's AnswerPolicy.
const maxBodySize = 1 << 20

// Watcher is implemented by engines that signal definition changes.
type Watcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// Server exposes an Engine over HTTP.
type Server struct {
	Engine  ports.Engine
	Streams *StreamManager
	Logger  *slog.Logger
	Policy  runner.AnswerPolicy
}

// Option configures the handler built by NewHandler.
type Option func(*config)

type config struct {
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	policy   runner.AnswerPolicy
}

// WithLogger sets the request logger. Defaults to a discarding logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithMetrics mounts GET /metrics serving the given gatherer.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(c *config) { c.gatherer = g }
}

// WithAnswerPolicy bounds submitted answers. Defaults to runner.DefaultAnswerPolicy.
func WithAnswerPolicy(p runner.AnswerPolicy) Option {
	return func(c *config) { c.policy = p }
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine ports.Engine, opts ...Option) http.Handler {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		Engine:  engine,
		Streams: NewStreamManager(cfg.logger),
		Logger:  cfg.logger,
		Policy:  cfg.policy,
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/assessments", s.ListAssessments)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.StartSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.ViewSession)
			r.Delete("/", s.DeleteSession)
			r.Get("/snapshot", s.GetSnapshot)
			r.Post("/answer", s.Answer)
			r.Post("/actions/{action}", s.Perform)
			r.Post("/resume", s.Resume)
		})
	})

	if cfg.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{}))
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "quire-http",
		"version": strings.TrimSpace(quire.Version),
	})
}

// ListAssessments handles GET /assessments.
func (s *Server) ListAssessments(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Assessments(r.Context())
	if err != nil {
		s.fail(w, r, "list assessments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"assessments": nonNil(ids)})
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Sessions(r.Context())
	if err != nil {
		s.fail(w, r, "list sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": nonNil(ids)})
}

// StartRequest is the body of POST /sessions.
type StartRequest struct {
	AssessmentID string `json:"assessment_id"`
	SessionID    string `json:"session_id,omitempty"`
}

// StartSession handles POST /sessions.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if err := decodeBody(r, &body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.Logger.Warn("StartSession: invalid request body", "error", err)
		return
	}
	if body.AssessmentID == "" {
		http.Error(w, "assessment_id is required", http.StatusBadRequest)
		return
	}
	view, err := s.Engine.Start(r.Context(), body.AssessmentID, body.SessionID)
	if err != nil {
		s.fail(w, r, "start", err)
		return
	}
	s.publish(r.Context(), view.SessionID, nil)
	writeJSON(w, http.StatusCreated, view)
}

// ViewSession handles GET /sessions/{sessionID}.
func (s *Server) ViewSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.Engine.View(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, "view", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetSnapshot handles GET /sessions/{sessionID}/snapshot.
func (s *Server) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	st, err := s.Engine.Snapshot(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, "snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// DeleteSession handles DELETE /sessions/{sessionID}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.fail(w, r, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AnswerRequest is the body of POST /sessions/{sessionID}/answer.
// A null value clears the current answer.
type AnswerRequest struct {
	Value domain.Value `json:"value"`
}

// Answer handles POST /sessions/{sessionID}/answer.
func (s *Server) Answer(w http.ResponseWriter, r *http.Request) {
	var body AnswerRequest
	if err := decodeBody(r, &body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.Logger.Warn("Answer: invalid request body", "error", err)
		return
	}

	value, err := s.Policy.Clean(nil, body.Value)
	if err != nil {
		s.Logger.Warn("Answer: input rejected", "error", err)
		s.fail(w, r, "answer", err)
		return
	}

	id := chi.URLParam(r, "sessionID")
	s.mutate(w, r, "answer", id, func(ctx context.Context) (*domain.StepView, error) {
		return s.Engine.Answer(ctx, id, value)
	})
}

// Perform handles POST /sessions/{sessionID}/actions/{action}.
func (s *Server) Perform(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	action := domain.ParseButtonAction(chi.URLParam(r, "action"))
	s.mutate(w, r, "perform", id, func(ctx context.Context) (*domain.StepView, error) {
		return s.Engine.Perform(ctx, id, action)
	})
}

// Resume handles POST /sessions/{sessionID}/resume.
func (s *Server) Resume(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	s.mutate(w, r, "resume", id, func(ctx context.Context) (*domain.StepView, error) {
		return s.Engine.Resume(ctx, id)
	})
}

// mutate runs fn and broadcasts the resulting state diff to subscribers.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op, sessionID string, fn func(context.Context) (*domain.StepView, error)) {
	ctx := r.Context()
	var before *domain.State
	if s.Streams.HasSubscribers(sessionID) {
		before, _ = s.Engine.Snapshot(ctx, sessionID)
	}
	view, err := fn(ctx)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	s.publish(ctx, sessionID, before)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) publish(ctx context.Context, sessionID string, before *domain.State) {
	if !s.Streams.HasSubscribers(sessionID) {
		return
	}
	after, err := s.Engine.Snapshot(ctx, sessionID)
	if err != nil {
		s.Logger.Warn("publish: snapshot failed", "session_id", sessionID, "error", err)
		return
	}
	diff := domain.Diff(before, after)
	if diff == nil {
		s.Logger.Debug("publish: no diff calculated", "session_id", sessionID)
		return
	}
	if b, err := json.Marshal(diff); err == nil {
		s.Streams.Broadcast(sessionID, string(b))
	}
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	var graphErr *domain.GraphError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrAssessmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTerminated), errors.Is(err, domain.ErrPaused),
		errors.Is(err, domain.ErrPauseDisabled), errors.Is(err, domain.ErrExhausted),
		errors.Is(err, domain.ErrNoInstructions):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAnswerRequired), errors.Is(err, domain.ErrInvalidAnswer),
		errors.Is(err, domain.ErrNoInput):
		return http.StatusUnprocessableEntity
	case errors.As(err, &graphErr), errors.Is(err, domain.ErrUnhandledAction):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.Logger.Error("request failed", "op", op, "path", r.URL.Path, "error", err)
	} else {
		s.Logger.Debug("request rejected", "op", op, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.UseNumber()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
