package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/quire/pkg/domain"
)

// ActionFunction defines the signature for a custom button action implementation.
type ActionFunction func(ctx context.Context, call domain.ActionCall) (domain.ActionResponse, error)

// Registry manages the app-defined button actions.
type Registry struct {
	mu      sync.RWMutex
	actions map[domain.ButtonAction]ActionFunction
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[domain.ButtonAction]ActionFunction),
	}
}

// Register adds an action to the registry.
// If an action with the same name exists, it is overwritten.
func (r *Registry) Register(action domain.ButtonAction, fn ActionFunction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[action] = fn
}

// Handle looks up the action by name and executes it.
// Returns an error wrapping domain.ErrUnhandledAction if the action is not registered.
func (r *Registry) Handle(ctx context.Context, call domain.ActionCall) (domain.ActionResponse, error) {
	r.mu.RLock()
	fn, ok := r.actions[call.Action]
	r.mu.RUnlock()

	if !ok {
		return domain.ActionResponse{}, fmt.Errorf("%w: %s", domain.ErrUnhandledAction, call.Action)
	}

	return fn(ctx, call)
}

// Actions returns the registered action names, sorted.
func (r *Registry) Actions() []domain.ButtonAction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ButtonAction, 0, len(r.actions))
	for a := range r.actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
