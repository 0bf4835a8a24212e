package runner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/quire/pkg/domain"
)

// MockIOHandler for testing middleware inputs/outputs
type MockIOHandler struct {
	Prompts        []string
	ConfirmAnswer  bool
	ConfirmErr     error
	CapturedSystem []string
}

func (m *MockIOHandler) Output(ctx context.Context, view domain.StepView) (bool, error) {
	return true, nil
}

func (m *MockIOHandler) Input(ctx context.Context) (Command, error) {
	return Command{}, nil
}

func (m *MockIOHandler) Confirm(ctx context.Context, prompt string) (bool, error) {
	m.Prompts = append(m.Prompts, prompt)
	return m.ConfirmAnswer, m.ConfirmErr
}

func (m *MockIOHandler) SystemOutput(ctx context.Context, msg string) error {
	m.CapturedSystem = append(m.CapturedSystem, msg)
	return nil
}

type countingHandler struct{ calls int }

func (c *countingHandler) Handle(ctx context.Context, call domain.ActionCall) (domain.ActionResponse, error) {
	c.calls++
	return domain.ActionResponse{Then: domain.ActionGoForward}, nil
}

func TestConfirmationMiddleware_Allow(t *testing.T) {
	mock := &MockIOHandler{ConfirmAnswer: true}
	interceptor := ConfirmationMiddleware(mock)

	allowed, err := interceptor(context.Background(), domain.ActionCall{Action: "delete_db", Path: []string{"sec", "q"}})
	if err != nil {
		t.Fatalf("Middleware error: %v", err)
	}
	if !allowed {
		t.Error("Expected execution to be allowed")
	}
	if len(mock.Prompts) != 1 || !strings.Contains(mock.Prompts[0], "'delete_db' on step sec/q") {
		t.Errorf("Unexpected prompt: %v", mock.Prompts)
	}
}

func TestConfirmationMiddleware_Deny(t *testing.T) {
	mock := &MockIOHandler{ConfirmAnswer: false}
	allowed, err := ConfirmationMiddleware(mock)(context.Background(), domain.ActionCall{Action: "delete_db"})
	if err != nil {
		t.Fatalf("Middleware error: %v", err)
	}
	if allowed {
		t.Error("Expected execution to be denied")
	}
}

func TestConfirmationMiddleware_BuiltInsPass(t *testing.T) {
	mock := &MockIOHandler{}
	allowed, _ := ConfirmationMiddleware(mock)(context.Background(), domain.ActionCall{Action: domain.ActionGoForward})
	if !allowed || len(mock.Prompts) != 0 {
		t.Error("built-in navigation should never be confirmed")
	}
}

func TestGuard(t *testing.T) {
	next := &countingHandler{}
	boom := errors.New("boom")

	tests := []struct {
		name        string
		interceptor ActionInterceptor
		wantErr     error
		wantCalls   int
	}{
		{"auto approve", AutoApproveMiddleware(), nil, 1},
		{"allow list hit", AllowList("share"), nil, 1},
		{"allow list miss", AllowList("other"), ErrActionDenied, 0},
		{"interceptor failure", func(context.Context, domain.ActionCall) (bool, error) { return false, boom }, boom, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next.calls = 0
			resp, err := Guard(next, tt.interceptor).Handle(context.Background(), domain.ActionCall{Action: "share"})
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if next.calls != tt.wantCalls {
				t.Errorf("handler called %d times, want %d", next.calls, tt.wantCalls)
			}
			if err == nil && resp.Then != domain.ActionGoForward {
				t.Errorf("response not passed through: %+v", resp)
			}
		})
	}
}

func TestMultiInterceptor_StopsAtFirstDenial(t *testing.T) {
	var order []string
	record := func(name string, allow bool) ActionInterceptor {
		return func(context.Context, domain.ActionCall) (bool, error) {
			order = append(order, name)
			return allow, nil
		}
	}
	allowed, err := MultiInterceptor(record("a", true), record("b", false), record("c", true))(context.Background(), domain.ActionCall{})
	if err != nil || allowed {
		t.Fatalf("got %v, %v", allowed, err)
	}
	if strings.Join(order, ",") != "a,b" {
		t.Errorf("order = %v", order)
	}
}
