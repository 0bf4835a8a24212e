package dsl

import (
	"fmt"

	"github.com/aretw0/quire/pkg/adapters/memory"
	"github.com/aretw0/quire/pkg/domain"
)

// Builder manages the assessment construction.
type Builder struct {
	*ScopeBuilder
	version string
	minutes int
	errs    []error
}

// New creates a builder for an assessment with the given identifier.
func New(identifier string) *Builder {
	b := &Builder{}
	b.ScopeBuilder = &ScopeBuilder{
		node:    domain.Node{Identifier: identifier, Kind: domain.KindAssessment},
		builder: b,
	}
	return b
}

// Version sets the version recorded as the result's versionString.
func (b *Builder) Version(v string) *Builder {
	b.version = v
	return b
}

// EstimatedMinutes sets the expected duration shown to respondents.
func (b *Builder) EstimatedMinutes(m int) *Builder {
	b.minutes = m
	return b
}

// Title sets the assessment title.
func (b *Builder) Title(title string) *Builder {
	b.node.Title = title
	return b
}

// Build assembles the assessment definition.
func (b *Builder) Build() (*domain.Assessment, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("dsl: %w", b.errs[0])
	}
	return &domain.Assessment{
		Node:             b.ScopeBuilder.build(),
		Version:          b.version,
		EstimatedMinutes: b.minutes,
	}, nil
}

// MustBuild is Build for definitions known to be valid.
func (b *Builder) MustBuild() *domain.Assessment {
	a, err := b.Build()
	if err != nil {
		panic(err)
	}
	return a
}

// Loader compiles the assessment into a memory definition loader.
func (b *Builder) Loader() (*memory.Loader, error) {
	a, err := b.Build()
	if err != nil {
		return nil, err
	}
	loader, err := memory.NewFromAssessments(a)
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return loader, nil
}

func (b *Builder) fail(err error) {
	b.errs = append(b.errs, err)
}
