package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/session"
)

// ErrActionDenied is returned when an interceptor blocks a custom action.
var ErrActionDenied = errors.New("action denied")

// ActionInterceptor is a middleware that can allow or block a custom action
// before its handler runs. It returns true if execution should proceed.
type ActionInterceptor func(ctx context.Context, call domain.ActionCall) (bool, error)

// HandlerFunc adapts a function to session.ActionHandler.
type HandlerFunc func(ctx context.Context, call domain.ActionCall) (domain.ActionResponse, error)

func (f HandlerFunc) Handle(ctx context.Context, call domain.ActionCall) (domain.ActionResponse, error) {
	return f(ctx, call)
}

// Guard puts interceptors in front of an action handler.
func Guard(next session.ActionHandler, interceptors ...ActionInterceptor) session.ActionHandler {
	check := MultiInterceptor(interceptors...)
	return HandlerFunc(func(ctx context.Context, call domain.ActionCall) (domain.ActionResponse, error) {
		allowed, err := check(ctx, call)
		if err != nil {
			return domain.ActionResponse{}, fmt.Errorf("action interceptor error: %w", err)
		}
		if !allowed {
			return domain.ActionResponse{}, fmt.Errorf("%w: %s", ErrActionDenied, call.Action)
		}
		return next.Handle(ctx, call)
	})
}

// MultiInterceptor chains multiple interceptors.
func MultiInterceptor(interceptors ...ActionInterceptor) ActionInterceptor {
	return func(ctx context.Context, call domain.ActionCall) (bool, error) {
		for _, interceptor := range interceptors {
			allowed, err := interceptor(ctx, call)
			if err != nil {
				return false, err // System Error
			}
			if !allowed {
				return false, nil // Blocked by policy
			}
		}
		return true, nil
	}
}

// ConfirmationMiddleware asks the user through the handler before a custom
// action runs. Built-in navigation is never intercepted.
func ConfirmationMiddleware(handler IOHandler) ActionInterceptor {
	return func(ctx context.Context, call domain.ActionCall) (bool, error) {
		if !call.Action.IsCustom() {
			return true, nil
		}
		prompt := fmt.Sprintf("Run action '%s' on step %s?", call.Action, strings.Join(call.Path, "/"))
		return handler.Confirm(ctx, prompt)
	}
}

// AllowList permits only the named custom actions.
func AllowList(actions ...domain.ButtonAction) ActionInterceptor {
	allowed := make(map[domain.ButtonAction]bool, len(actions))
	for _, a := range actions {
		allowed[a] = true
	}
	return func(ctx context.Context, call domain.ActionCall) (bool, error) {
		return !call.Action.IsCustom() || allowed[call.Action], nil
	}
}

// AutoApproveMiddleware allows everything.
func AutoApproveMiddleware() ActionInterceptor {
	return func(ctx context.Context, call domain.ActionCall) (bool, error) {
		return true, nil
	}
}
