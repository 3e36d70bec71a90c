// Package validation runs extension-provided rules over a parsed document.
package validation

import (
	"context"

	"github.com/vektah/gqlparser/v2/validator"

	language "github.com/hanpama/gqlguard/internal/language"
)

// StructuralRules are the checks every document must pass before extension
// rules may walk it when no schema is available.
var StructuralRules = []Rule{KnownFragmentNames, NoFragmentCycles}

// Validate checks document and returns every diagnostic reported.
//
// With a schema, the standard GraphQL validation rules run first; without one
// only StructuralRules do. Extension rules only run on documents that pass this
// stage, so they can assume every fragment spread resolves and no fragment
// spreads itself.
func Validate(ctx context.Context, schema *language.Schema, document *language.QueryDocument, rules ...Rule) language.ErrorList {
	c := NewContext(ctx, schema, document)
	if schema != nil {
		if errs := validator.Validate(schema, document); len(errs) > 0 {
			return errs
		}
	} else {
		for _, r := range StructuralRules {
			c.run(r)
		}
		if c.HasErrors() {
			return c.Errors()
		}
	}
	for _, r := range rules {
		c.run(r)
	}
	return c.Errors()
}
