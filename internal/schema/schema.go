package schema

import (
	"context"
	"fmt"

	extension "github.com/hanpama/gqlguard/internal/extension"
	language "github.com/hanpama/gqlguard/internal/language"
	validation "github.com/hanpama/gqlguard/internal/validation"
)

// Schema is a validated GraphQL schema together with the extensions attached
// to it. It is immutable once built and shared by every request.
type Schema struct {
	ast        *language.Schema
	extensions []extension.Extension
	rules      []validation.Rule
}

// New builds a schema from a single SDL string.
func New(sdl string, extensions ...extension.Extension) (*Schema, error) {
	return Build([]*language.Source{{Name: "schema.graphql", Input: sdl}}, extensions...)
}

// Load reads every source from d and builds a schema from them.
func Load(ctx context.Context, d Discovery, extensions ...extension.Extension) (*Schema, error) {
	metas, err := d.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	if len(metas) == 0 {
		return nil, fmt.Errorf("no schema sources found")
	}
	sources := make([]*language.Source, 0, len(metas))
	for _, m := range metas {
		input, err := d.ReadSource(ctx, m.Name)
		if err != nil {
			return nil, err
		}
		sources = append(sources, &language.Source{Name: m.Name, Input: input})
	}
	return Build(sources, extensions...)
}

// Build validates sources and attaches extensions. Every extension's Validate
// hook runs once here; the first failure is returned.
func Build(sources []*language.Source, extensions ...extension.Extension) (*Schema, error) {
	s, err := language.LoadSchema(sources...)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	out := &Schema{ast: s, extensions: extensions}
	for _, ext := range extensions {
		if err := ext.Validate(s); err != nil {
			return nil, fmt.Errorf("extension %s: %w", ext.ExtensionName(), err)
		}
		if rp, ok := ext.(extension.RuleProvider); ok {
			out.rules = append(out.rules, rp.ValidationRules()...)
		}
	}
	return out, nil
}

// AST returns the underlying parsed schema.
func (s *Schema) AST() *language.Schema { return s.ast }

// Extensions returns the attached extensions in attach order.
func (s *Schema) Extensions() []extension.Extension { return s.extensions }

// ValidationRules returns the rules contributed by every extension, in attach
// order.
func (s *Schema) ValidationRules() []validation.Rule { return s.rules }

// Render produces SDL for the schema.
func (s *Schema) Render() string { return language.FormatSchema(s.ast) }
