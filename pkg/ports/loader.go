package ports

import (
	"context"

	"github.com/aretw0/quire/pkg/domain"
)

// DefinitionLoader supplies already-parsed assessment definitions.
// This allows the storage layer (Loam, FS, Memory) to be decoupled.
type DefinitionLoader interface {
	// Load returns the assessment with the given identifier.
	// Returns domain.ErrAssessmentNotFound if there is none.
	Load(ctx context.Context, id string) (*domain.Assessment, error)

	// List returns the identifiers of all available assessments, sorted.
	List(ctx context.Context) ([]string, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying definitions change.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
