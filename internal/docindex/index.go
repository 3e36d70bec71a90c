// Package docindex builds the per-document lookup tables used by the
// validation rules: fragments by name and operations by name.
package docindex

import (
	language "github.com/hanpama/gqlguard/internal/language"
)

// AnonymousOperation is the name under which an unnamed operation is indexed.
const AnonymousOperation = "anonymous"

// Index holds the fragment and operation tables for one document. It is built
// once per validation pass and never modified afterwards.
type Index struct {
	fragments  map[string]*language.FragmentDefinition
	operations map[string]*language.OperationDefinition
	order      []string
}

// Build indexes doc in a single pass over its definitions. Later definitions
// replace earlier ones with the same name.
func Build(doc *language.QueryDocument) *Index {
	idx := &Index{
		fragments:  make(map[string]*language.FragmentDefinition, len(doc.Fragments)),
		operations: make(map[string]*language.OperationDefinition, len(doc.Operations)),
	}
	for _, frag := range doc.Fragments {
		idx.fragments[frag.Name] = frag
	}
	for _, op := range doc.Operations {
		name := OperationName(op)
		if _, seen := idx.operations[name]; !seen {
			idx.order = append(idx.order, name)
		}
		idx.operations[name] = op
	}
	return idx
}

// OperationName returns the index key of op.
func OperationName(op *language.OperationDefinition) string {
	if op.Name == "" {
		return AnonymousOperation
	}
	return op.Name
}

// Fragment looks up a fragment definition by name.
func (idx *Index) Fragment(name string) (*language.FragmentDefinition, bool) {
	f, ok := idx.fragments[name]
	return f, ok
}

// Fragments returns the fragment table. Callers must not modify it.
func (idx *Index) Fragments() map[string]*language.FragmentDefinition { return idx.fragments }

// Operation looks up an operation by its index key.
func (idx *Index) Operation(name string) (*language.OperationDefinition, bool) {
	op, ok := idx.operations[name]
	return op, ok
}

// Names returns operation keys in first-seen document order.
func (idx *Index) Names() []string { return idx.order }

// Len is the number of distinct operation keys.
func (idx *Index) Len() int { return len(idx.order) }
