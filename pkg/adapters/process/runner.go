package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/ports"
)

// EnvPrefix prefixes the environment variables describing the action call.
const EnvPrefix = "QUIRE_"

// Runner executes local processes for custom button actions.
// It follows a Strict Registry pattern for security (Allow-Listing):
// only registered actions run, and call data is passed through the
// environment, never as command flags.
type Runner struct {
	mu       sync.RWMutex
	registry map[domain.ButtonAction]RegisteredProcess
	baseDir  string
	grace    time.Duration
}

// RegisteredProcess defines an allowed command execution.
type RegisteredProcess struct {
	Command string
	Args    []string
	Env     map[string]string
	// Then is performed after the output is recorded as the answer.
	Then domain.ButtonAction
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(tools map[string]ProcessConfig) RunnerOption {
	return func(r *Runner) {
		for name, tool := range tools {
			r.registry[domain.ParseButtonAction(name)] = RegisteredProcess{
				Command: tool.Command,
				Args:    tool.Args,
				Env:     tool.Environment,
				Then:    domain.ParseButtonAction(tool.Then),
			}
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithGracePeriod bounds how long a cancelled process may take to exit
// before it is killed.
func WithGracePeriod(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.grace = d
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[domain.ButtonAction]RegisteredProcess),
		grace:    5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list under an action name.
func (r *Runner) Register(action domain.ButtonAction, command string, args ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registry[action] = RegisteredProcess{Command: command, Args: args}
}

// RegisterProcess adds a fully described command.
func (r *Runner) RegisterProcess(action domain.ButtonAction, proc RegisteredProcess) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registry[action] = proc
}

// Actions lists the registered action names.
func (r *Runner) Actions() []domain.ButtonAction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ButtonAction, 0, len(r.registry))
	for a := range r.registry {
		out = append(out, a)
	}
	return out
}

// Handle runs the process registered for call.Action and records its output
// as the answer of the current step. It satisfies session.ActionHandler.
func (r *Runner) Handle(ctx context.Context, call domain.ActionCall) (domain.ActionResponse, error) {
	r.mu.RLock()
	proc, ok := r.registry[call.Action]
	r.mu.RUnlock()
	if !ok {
		return domain.ActionResponse{}, fmt.Errorf("%w: no process registered for %s", domain.ErrUnhandledAction, call.Action)
	}

	out, err := r.run(ctx, proc, callEnv(call))
	if err != nil {
		return domain.ActionResponse{}, fmt.Errorf("action %s: %w", call.Action, err)
	}
	resp := domain.ActionResponse{Then: proc.Then}
	if call.Node != nil && call.Node.AcceptsInput() {
		resp.Answer = &out
	}
	return resp, nil
}

// Recorder wraps a registered process as an AsyncRecorder whose output
// becomes an answer result named id.
func (r *Runner) Recorder(id string, action domain.ButtonAction) ports.AsyncRecorder {
	return ports.RecorderFunc{
		ID: id,
		Fn: func(ctx context.Context) (domain.Result, error) {
			r.mu.RLock()
			proc, ok := r.registry[action]
			r.mu.RUnlock()
			if !ok {
				return nil, fmt.Errorf("%w: no process registered for %s", domain.ErrUnhandledAction, action)
			}
			out, err := r.run(ctx, proc, []string{EnvPrefix + "RECORDER=" + id})
			if err != nil {
				return nil, err
			}
			res := domain.NewAnswerResult(id, answerTypeOf(out))
			res.SetAnswer(&out)
			return res, nil
		},
	}
}

func (r *Runner) run(ctx context.Context, proc RegisteredProcess, env []string) (domain.Value, error) {
	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir
	cmd.WaitDelay = r.grace

	cmd.Env = cmd.Environ()
	for k, v := range proc.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Env = append(cmd.Env, env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Value{}, fmt.Errorf("execution cancelled: %w", ctxErr)
		}
		return domain.Value{}, fmt.Errorf("execution failed: %w. Stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseOutput(stdout.String()), nil
}

// parseOutput decodes JSON output and falls back to the trimmed text.
func parseOutput(output string) domain.Value {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return domain.Null()
	}
	var v domain.Value
	if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
		return v
	}
	return domain.String(trimmed)
}

func callEnv(call domain.ActionCall) []string {
	env := []string{
		EnvPrefix + "SESSION_ID=" + call.SessionID,
		EnvPrefix + "ACTION=" + string(call.Action),
		EnvPrefix + "PATH=" + strings.Join(call.Path, "/"),
	}
	if call.Answer != nil {
		if b, err := json.Marshal(call.Answer); err == nil {
			env = append(env, EnvPrefix+"ANSWER="+string(b))
		}
	}
	return env
}

func answerTypeOf(v domain.Value) domain.AnswerType {
	switch v.Kind() {
	case domain.KindBoolean:
		return domain.AnswerType{Kind: domain.AnswerBoolean}
	case domain.KindInteger:
		return domain.AnswerType{Kind: domain.AnswerInteger}
	case domain.KindNumber:
		return domain.AnswerType{Kind: domain.AnswerNumber}
	case domain.KindArray:
		return domain.AnswerType{Kind: domain.AnswerArray}
	case domain.KindObject:
		return domain.AnswerType{Kind: domain.AnswerObject}
	}
	return domain.AnswerType{Kind: domain.AnswerString}
}
