package depthlimit

import (
	"fmt"

	astutil "github.com/hanpama/gqlguard/internal/astutil"
	docindex "github.com/hanpama/gqlguard/internal/docindex"
	language "github.com/hanpama/gqlguard/internal/language"
	validation "github.com/hanpama/gqlguard/internal/validation"
)

// Node is one of *language.Field, *language.FragmentSpread,
// *language.InlineFragment, *language.FragmentDefinition or
// *language.OperationDefinition.
type Node any

// DetermineDepth returns the selection depth below node, counting from
// depthSoFar.
//
// Once depthSoFar exceeds maxDepth the branch is reported on ctx as exceeding
// the limit of operationName and depthSoFar is returned without walking
// further, so each offending branch is reported once. Fragment spreads are
// transparent: they add no level of their own.
//
// DetermineDepth panics if node is not one of the Node kinds or names a
// fragment that fragments does not contain. Both are excluded by structural
// validation.
func DetermineDepth(node Node, fragments *docindex.Index, depthSoFar, maxDepth int, ctx *validation.Context, operationName string, shouldIgnore ShouldIgnore) int {
	w := &walker{
		fragments:     fragments,
		maxDepth:      maxDepth,
		ctx:           ctx,
		operationName: operationName,
		shouldIgnore:  shouldIgnore,
	}
	return w.determineDepth(node, depthSoFar, nil)
}

type walker struct {
	fragments     *docindex.Index
	maxDepth      int
	ctx           *validation.Context
	operationName string
	shouldIgnore  ShouldIgnore
}

func (w *walker) determineDepth(node Node, depthSoFar int, path *astutil.Path) int {
	if depthSoFar > w.maxDepth {
		if f, ok := node.(*language.Field); ok {
			path = path.Add(astutil.ResponseName(f))
		}
		w.ctx.Report(&language.Error{
			Message:   fmt.Sprintf("'%s' exceeds maximum operation depth of %d", w.operationName, w.maxDepth),
			Path:      path.ASTPath(),
			Locations: locationOf(node),
		})
		return depthSoFar
	}

	switch n := node.(type) {
	case *language.Field:
		if astutil.IsIntrospectionKey(n.Name) || w.ignored(n) || len(n.SelectionSet) == 0 {
			return 0
		}
		return 1 + w.selectionSetDepth(n.SelectionSet, depthSoFar+1, path.Add(astutil.ResponseName(n)))
	case *language.FragmentSpread:
		frag, ok := w.fragments.Fragment(n.Name)
		if !ok {
			panic(fmt.Errorf("depth crawler: unknown fragment %q", n.Name))
		}
		return w.determineDepth(frag, depthSoFar, path)
	case *language.InlineFragment:
		return w.selectionSetDepth(n.SelectionSet, depthSoFar, path)
	case *language.FragmentDefinition:
		return w.selectionSetDepth(n.SelectionSet, depthSoFar, path)
	case *language.OperationDefinition:
		return w.selectionSetDepth(n.SelectionSet, depthSoFar, path)
	default:
		panic(fmt.Errorf("depth crawler cannot handle: %T", node))
	}
}

// ignored resolves every argument of f, so it is consulted after the
// introspection check.
func (w *walker) ignored(f *language.Field) bool {
	if w.shouldIgnore == nil {
		return false
	}
	return w.shouldIgnore(IgnoreContext{
		FieldName: astutil.ResponseName(f),
		FieldArgs: astutil.FieldArguments(f),
		Node:      f,
		Context:   w.ctx,
	})
}

func (w *walker) selectionSetDepth(set language.SelectionSet, depthSoFar int, path *astutil.Path) int {
	deepest := 0
	for _, sel := range set {
		if d := w.determineDepth(sel, depthSoFar, path); d > deepest {
			deepest = d
		}
	}
	return deepest
}

func locationOf(node Node) []language.Location {
	var pos *language.Position
	switch n := node.(type) {
	case *language.Field:
		pos = n.Position
	case *language.FragmentSpread:
		pos = n.Position
	case *language.InlineFragment:
		pos = n.Position
	case *language.FragmentDefinition:
		pos = n.Position
	case *language.OperationDefinition:
		pos = n.Position
	}
	if pos == nil {
		return nil
	}
	return []language.Location{{Line: pos.Line, Column: pos.Column}}
}
