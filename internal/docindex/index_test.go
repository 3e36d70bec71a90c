package docindex

import (
	"testing"

	"github.com/stretchr/testify/require"

	language "github.com/hanpama/gqlguard/internal/language"
)

func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

func TestBuild(t *testing.T) {
	doc := mustParseQuery(t, `
		query A { ...F }
		mutation B { x }
		subscription C { y }
		{ z }
		fragment F on Query { a }
		fragment G on Query { b }
	`)
	idx := Build(doc)

	require.Equal(t, []string{"A", "B", "C", AnonymousOperation}, idx.Names())
	require.Equal(t, 4, idx.Len())

	op, ok := idx.Operation(AnonymousOperation)
	require.True(t, ok)
	require.Equal(t, language.Query, op.Operation)

	op, ok = idx.Operation("B")
	require.True(t, ok)
	require.Equal(t, language.Mutation, op.Operation)

	f, ok := idx.Fragment("G")
	require.True(t, ok)
	require.Equal(t, "G", f.Name)
	require.Len(t, idx.Fragments(), 2)

	_, ok = idx.Fragment("missing")
	require.False(t, ok)
}

func TestBuildLastWriteWins(t *testing.T) {
	doc := mustParseQuery(t, `
		query A { first }
		{ anon1 }
		query A { second }
		{ anon2 }
		fragment F on Query { one }
		fragment F on Query { two }
	`)
	idx := Build(doc)

	require.Equal(t, []string{"A", AnonymousOperation}, idx.Names())
	op, _ := idx.Operation("A")
	require.Equal(t, "second", op.SelectionSet[0].(*language.Field).Name)
	op, _ = idx.Operation(AnonymousOperation)
	require.Equal(t, "anon2", op.SelectionSet[0].(*language.Field).Name)
	f, _ := idx.Fragment("F")
	require.Equal(t, "two", f.SelectionSet[0].(*language.Field).Name)
}

func TestBuildEmptyDocument(t *testing.T) {
	idx := Build(&language.QueryDocument{})
	require.Empty(t, idx.Names())
	require.Empty(t, idx.Fragments())
}
