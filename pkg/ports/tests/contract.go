package tests

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/graph"
	"github.com/aretw0/quire/pkg/ports"
)

// DefinitionLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.DefinitionLoader.
// expected lists the assessment identifiers the loader was seeded with.
func DefinitionLoaderContractTest(t *testing.T, loader ports.DefinitionLoader, expected []string) {
	t.Helper()
	ctx := context.Background()

	t.Run("Load_Success", func(t *testing.T) {
		for _, id := range expected {
			a, err := loader.Load(ctx, id)
			if err != nil {
				t.Fatalf("unexpected error loading %s: %v", id, err)
			}
			if a.Identifier != id {
				t.Errorf("identifier mismatch: got %q, want %q", a.Identifier, id)
			}
			if a.Kind != domain.KindAssessment {
				t.Errorf("%s: root kind %q, want %q", id, a.Kind, domain.KindAssessment)
			}
			if _, err := graph.New(a); err != nil {
				t.Errorf("%s: loaded definition does not index: %v", id, err)
			}
		}
	})

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := loader.Load(ctx, "non-existent-assessment")
		if !errors.Is(err, domain.ErrAssessmentNotFound) {
			t.Errorf("expected ErrAssessmentNotFound, got %v", err)
		}
	})

	t.Run("Load_ReturnsCopies", func(t *testing.T) {
		if len(expected) == 0 {
			t.Skip("no assessments")
		}
		a, err := loader.Load(ctx, expected[0])
		if err != nil {
			t.Fatal(err)
		}
		a.Title = "mutated"
		again, err := loader.Load(ctx, expected[0])
		if err != nil {
			t.Fatal(err)
		}
		if again.Title == "mutated" {
			t.Error("loader shares definitions between callers")
		}
	})

	t.Run("List", func(t *testing.T) {
		ids, err := loader.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing assessments: %v", err)
		}
		if !slices.IsSorted(ids) {
			t.Errorf("list is not sorted: %v", ids)
		}
		for _, id := range expected {
			if !slices.Contains(ids, id) {
				t.Errorf("assessment %s missing from list", id)
			}
		}
	})
}
