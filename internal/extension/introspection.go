package extension

import (
	"fmt"

	astutil "github.com/hanpama/gqlguard/internal/astutil"
	docindex "github.com/hanpama/gqlguard/internal/docindex"
	language "github.com/hanpama/gqlguard/internal/language"
	validation "github.com/hanpama/gqlguard/internal/validation"
)

// DisableIntrospection rejects documents that query the schema through
// __schema or __type. __typename stays allowed.
type DisableIntrospection struct{}

func (DisableIntrospection) ExtensionName() string           { return "DisableIntrospection" }
func (DisableIntrospection) Validate(*language.Schema) error { return nil }
func (DisableIntrospection) ValidationRules() []validation.Rule {
	return []validation.Rule{NoSchemaIntrospection}
}

// NoSchemaIntrospection reports every __schema and __type field reachable from
// an operation.
var NoSchemaIntrospection = validation.Rule{
	Name: "NoSchemaIntrospection",
	New: func(c *validation.Context) {
		idx := docindex.Build(c.Document())
		for _, name := range idx.Names() {
			op, _ := idx.Operation(name)
			w := introspectionWalker{ctx: c, index: idx, visited: map[string]bool{}}
			w.walk(op.SelectionSet, nil)
		}
	},
}

type introspectionWalker struct {
	ctx     *validation.Context
	index   *docindex.Index
	visited map[string]bool
}

func (w *introspectionWalker) walk(set language.SelectionSet, path *astutil.Path) {
	for _, sel := range set {
		switch s := sel.(type) {
		case *language.Field:
			p := path.Add(astutil.ResponseName(s))
			if s.Name == "__schema" || s.Name == "__type" {
				w.ctx.Report(&language.Error{
					Message: fmt.Sprintf("GraphQL introspection has been disabled, but the requested query contained the field '%s'.", s.Name),
					Path:    p.ASTPath(),
					Locations: []language.Location{
						{Line: s.Position.Line, Column: s.Position.Column},
					},
				})
				continue
			}
			w.walk(s.SelectionSet, p)
		case *language.InlineFragment:
			w.walk(s.SelectionSet, path)
		case *language.FragmentSpread:
			if w.visited[s.Name] {
				continue
			}
			w.visited[s.Name] = true
			if frag, ok := w.index.Fragment(s.Name); ok {
				w.walk(frag.SelectionSet, path)
			}
		}
	}
}
