package validation

import (
	"context"
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

func mustLoadSchema(t *testing.T, sdl string) *language.Schema {
	t.Helper()
	s, err := language.LoadSchema(&language.Source{Name: "schema.graphql", Input: sdl})
	require.NoError(t, err)
	return s
}

func messages(errs language.ErrorList) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Message
	}
	return out
}

func TestRuleReportsThroughContext(t *testing.T) {
	doc := mustParseQuery(t, "{ a }")
	calls := 0
	rule := Rule{Name: "Always", New: func(c *Context) {
		calls++
		require.Same(t, doc, c.Document())
		field := c.Document().Operations[0].SelectionSet[0].(*language.Field)
		c.ReportError("nope", field.Position)
	}}

	errs := Validate(context.Background(), nil, doc, rule)
	require.Equal(t, 1, calls)
	require.Len(t, errs, 1)
	require.Equal(t, "nope", errs[0].Message)
	require.Equal(t, "Always", errs[0].Rule)
	require.Equal(t, []language.Location{{Line: 1, Column: 3}}, errs[0].Locations)
}

func TestRulesRunInOrderAndKeepGoing(t *testing.T) {
	doc := mustParseQuery(t, "{ a }")
	var order []string
	mk := func(name string) Rule {
		return Rule{Name: name, New: func(c *Context) {
			order = append(order, name)
			c.ReportError(name)
		}}
	}
	errs := Validate(context.Background(), nil, doc, mk("first"), mk("second"))
	require.Equal(t, []string{"first", "second"}, order)
	require.Equal(t, []string{"first", "second"}, messages(errs))
}

func TestUnknownFragmentStopsExtensionRules(t *testing.T) {
	doc := mustParseQuery(t, "{ ...Missing }")
	ran := false
	errs := Validate(context.Background(), nil, doc, Rule{Name: "x", New: func(*Context) { ran = true }})
	require.False(t, ran)
	require.Equal(t, []string{`Unknown fragment "Missing".`}, messages(errs))
	require.Equal(t, "KnownFragmentNames", errs[0].Rule)
}

func TestFragmentCycles(t *testing.T) {
	doc := mustParseQuery(t, `
		{ ...A }
		fragment A on Query { ...A }
		fragment B on Query { c { ...C } }
		fragment C on Query { ...B }
	`)
	errs := Validate(context.Background(), nil, doc)
	require.Equal(t, []string{
		`Cannot spread fragment "A" within itself.`,
		`Cannot spread fragment "B" within itself via "C".`,
	}, messages(errs))
}

func TestSchemaValidationRunsFirst(t *testing.T) {
	s := mustLoadSchema(t, "type Query { hello: String }")
	ran := false
	rule := Rule{Name: "x", New: func(*Context) { ran = true }}

	errs := Validate(context.Background(), s, mustParseQuery(t, "{ nope }"), rule)
	require.NotEmpty(t, errs)
	require.False(t, ran)

	errs = Validate(context.Background(), s, mustParseQuery(t, "{ hello }"), rule)
	require.Empty(t, errs)
	require.True(t, ran)
}
