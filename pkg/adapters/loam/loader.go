// Package loam loads assessment definitions from a Loam repository: one
// Markdown (frontmatter), JSON or YAML document per assessment.
package loam

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/quire/pkg/definition"
	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/graph"
)

// watchPattern selects every document the loader can read.
const watchPattern = "**/*.{md,json,yaml,yml}"

// Loader adapts the Loam library to the ports.DefinitionLoader interface.
type Loader struct {
	Repo *loam.TypedRepository[definition.AssessmentDocument]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[definition.AssessmentDocument]) *Loader {
	return &Loader{Repo: repo}
}

// Open initializes a Loam repository at dir and wraps it in a Loader.
func Open(dir string, opts ...loam.Option) (*Loader, error) {
	repo, err := loam.Init(dir, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open definitions at %s: %w", dir, err)
	}
	return New(loam.NewTypedRepository[definition.AssessmentDocument](repo)), nil
}

// Load reads, converts and validates the assessment with the given identifier.
// The document body, when present, becomes the root's detail text.
func (l *Loader) Load(ctx context.Context, id string) (*domain.Assessment, error) {
	var (
		name    string
		data    definition.AssessmentDocument
		content string
		found   bool
	)
	if doc, err := l.Repo.Get(ctx, id); err == nil && documentID(doc.ID, doc.Data.ID) == id {
		name, data, content, found = doc.ID, doc.Data, doc.Content, true
	} else {
		// The identifier may come from frontmatter rather than the file name.
		docs, err := l.Repo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("loam list failed: %w", err)
		}
		for _, doc := range docs {
			if documentID(doc.ID, doc.Data.ID) == id {
				name, data, content, found = doc.ID, doc.Data, doc.Content, true
				break
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", domain.ErrAssessmentNotFound, id)
	}

	data.ID = id
	if data.Detail == "" {
		data.Detail = strings.TrimSpace(content)
	}

	a, err := data.Assessment()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if _, err := graph.New(a); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return a, nil
}

// List returns the identifiers of every document in the repository, sorted.
// Two documents resolving to the same identifier are an error.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id := documentID(doc.ID, doc.Data.ID)
		if existingPath, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existingPath, doc.ID)
		}
		seen[id] = doc.ID
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// documentID prefers the declared id and falls back to the file's base name.
func documentID(docID, declared string) string {
	if declared != "" {
		return trimExtension(declared)
	}
	return path.Base(trimExtension(docID))
}

func trimExtension(id string) string {
	id = filepath.ToSlash(id)
	if ext := path.Ext(id); ext != "" {
		return strings.TrimSuffix(id, ext)
	}
	return id
}

// Watch implements ports.Watchable. Bursts of file events coalesce into a
// single pending signal.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := l.Repo.Watch(ctx, watchPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch, nil
}
