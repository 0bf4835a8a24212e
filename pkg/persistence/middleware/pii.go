package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/ports"
)

// Mask replaces redacted answer values.
const Mask = "***"

type piiMiddleware struct {
	next     ports.StateStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks answers before they are
// persisted. An answer is masked whole when its step identifier matches one
// of the patterns; object answers additionally get matching keys masked.
// Masking is one-way, so wrap stores that hold audit copies, not the store
// sessions resume from.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.StateStore) ports.StateStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, sessionID string, state *domain.State) error {
	// Work on a deep copy; the caller keeps using the original.
	cloned := state.Clone()
	if cloned.Result != nil {
		m.maskCollection(cloned.Result.Collection())
	}
	return m.next.Save(ctx, sessionID, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) maskCollection(c *domain.CollectionResult) {
	for _, r := range c.PathHistory() {
		m.maskResult(r)
	}
	for _, r := range c.AsyncResults() {
		m.maskResult(r)
	}
}

func (m *piiMiddleware) maskResult(r domain.Result) {
	switch v := r.(type) {
	case *domain.AnswerResult:
		answer := v.Answer()
		if answer == nil {
			return
		}
		var masked domain.Value
		if m.matches(v.Identifier) {
			masked = domain.String(Mask)
		} else {
			masked = m.maskValue(*answer)
		}
		v.SetAnswer(&masked)
	case domain.BranchNodeResult:
		m.maskCollection(v.Collection())
	}
}

func (m *piiMiddleware) maskValue(v domain.Value) domain.Value {
	switch v.Kind() {
	case domain.KindObject:
		fields := make(map[string]domain.Value, len(v.Keys()))
		for _, k := range v.Keys() {
			field, _ := v.Field(k)
			if m.matches(k) {
				fields[k] = domain.String(Mask)
			} else {
				fields[k] = m.maskValue(field)
			}
		}
		return domain.Object(fields)
	case domain.KindArray:
		items := v.Items()
		out := make([]domain.Value, len(items))
		for i, item := range items {
			out[i] = m.maskValue(item)
		}
		return domain.Array(out...)
	}
	return v
}

func (m *piiMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
