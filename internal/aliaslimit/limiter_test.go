package aliaslimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	language "github.com/hanpama/gqlguard/internal/language"
	validation "github.com/hanpama/gqlguard/internal/validation"
)

func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

func validate(t *testing.T, maxAliases int, query string) language.ErrorList {
	t.Helper()
	l, err := New(maxAliases)
	require.NoError(t, err)
	return validation.Validate(context.Background(), nil, mustParseQuery(t, query), l.ValidationRules()...)
}

func TestCountAliases(t *testing.T) {
	for _, tc := range []struct {
		name  string
		query string
		want  int
	}{
		{"none", `{ a b { c } }`, 0},
		{"top level", `{ x: a y: a }`, 2},
		{"alias equal to field name", `{ a: a }`, 1},
		{"same-name aliases", `{ a: a b: b c }`, 2},
		{"nested under plain fields", `{ a { b { c { d { e: f } } } } }`, 1},
		{"inside inline fragment", `{ a { ... on T { x: b ... on U { y: c } } } }`, 2},
		{"across operations", `query A { x: a } query B { y: b z: c }`, 3},
		{"spread not followed", `{ ...F ...F ...F } fragment F on Query { x: a }`, 1},
		{"fragment definitions counted where defined", `{ a } fragment F on Query { x: a y: b }`, 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CountAliases(mustParseQuery(t, tc.query)))
		})
	}
}

func TestAliasLimit(t *testing.T) {
	errs := validate(t, 2, `query Q { a: x b: y { c: z } }`)
	require.Len(t, errs, 1)
	require.Equal(t, "3 aliases found. Allowed: 2", errs[0].Message)
	require.Equal(t, "MaxAliasesLimiter", errs[0].Rule)

	require.Empty(t, validate(t, 3, `query Q { a: x b: y { c: z } }`))

	errs = validate(t, 1, `{ a: a b: b }`)
	require.Len(t, errs, 1)
	require.Equal(t, "2 aliases found. Allowed: 1", errs[0].Message)
}

func TestAliasLimitReportsOncePerDocument(t *testing.T) {
	errs := validate(t, 1, `query A { a: x b: y } query B { c: x d: y }`)
	require.Len(t, errs, 1)
	require.Equal(t, "4 aliases found. Allowed: 1", errs[0].Message)
}

func TestNewRejectsNonPositiveCount(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
}

func TestLimiterIsAnExtension(t *testing.T) {
	l, err := New(15)
	require.NoError(t, err)
	require.Equal(t, "MaxAliasesLimiter", l.ExtensionName())
	require.Len(t, l.ValidationRules(), 1)
}
