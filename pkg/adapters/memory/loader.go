package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/quire/pkg/definition"
	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/graph"
)

// Loader implements ports.DefinitionLoader using an in-memory map.
type Loader struct {
	mu          sync.RWMutex
	assessments map[string]*domain.Assessment
}

// NewLoader decodes raw YAML or JSON definitions. Keys are informative;
// assessments are registered under their own identifier.
func NewLoader(data map[string]string) (*Loader, error) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	l := &Loader{assessments: make(map[string]*domain.Assessment, len(data))}
	for _, k := range keys {
		a, err := definition.Decode([]byte(data[k]))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		if err := l.Add(a); err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
	}
	return l, nil
}

// NewFromAssessments creates a loader from domain objects.
func NewFromAssessments(assessments ...*domain.Assessment) (*Loader, error) {
	l := &Loader{assessments: make(map[string]*domain.Assessment, len(assessments))}
	for _, a := range assessments {
		if err := l.Add(a); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add indexes and registers an assessment, replacing any previous one with the same identifier.
func (l *Loader) Add(a *domain.Assessment) error {
	if a == nil || a.Identifier == "" {
		return fmt.Errorf("assessment missing identifier")
	}
	if _, err := graph.New(a); err != nil {
		return fmt.Errorf("assessment %s: %w", a.Identifier, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.assessments[a.Identifier] = a.Clone()
	return nil
}

// Load returns a copy of the assessment.
func (l *Loader) Load(ctx context.Context, id string) (*domain.Assessment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.assessments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAssessmentNotFound, id)
	}
	return a.Clone(), nil
}

// List returns all available assessment IDs.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]string, 0, len(l.assessments))
	for k := range l.assessments {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
