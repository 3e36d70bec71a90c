// Package aliaslimit limits the number of aliased fields in a document.
package aliaslimit

import (
	"fmt"

	astutil "github.com/hanpama/gqlguard/internal/astutil"
	extension "github.com/hanpama/gqlguard/internal/extension"
	language "github.com/hanpama/gqlguard/internal/language"
	validation "github.com/hanpama/gqlguard/internal/validation"
)

// MaxAliasesLimiter is an extension rejecting documents with more than
// MaxAliasCount aliases.
type MaxAliasesLimiter struct {
	extension.AddValidationRules

	MaxAliasCount int
}

func New(maxAliasCount int) (*MaxAliasesLimiter, error) {
	if maxAliasCount < 1 {
		return nil, fmt.Errorf("max alias count must be positive, got %d", maxAliasCount)
	}
	return &MaxAliasesLimiter{
		AddValidationRules: extension.AddValidationRules{
			Name:  "MaxAliasesLimiter",
			Rules: []validation.Rule{NewRule(maxAliasCount)},
		},
		MaxAliasCount: maxAliasCount,
	}, nil
}

// NewRule builds the rule counting aliases across every operation and fragment
// definition of a document. A single error is reported when the total exceeds
// maxAliasCount.
func NewRule(maxAliasCount int) validation.Rule {
	return validation.Rule{
		Name: "MaxAliasesLimiter",
		New: func(c *validation.Context) {
			total := CountAliases(c.Document())
			if total > maxAliasCount {
				c.ReportError(fmt.Sprintf("%d aliases found. Allowed: %d", total, maxAliasCount))
			}
		},
	}
}

// CountAliases sums the aliases of every executable definition in doc. Each
// fragment is counted once where it is defined, however often it is spread.
func CountAliases(doc *language.QueryDocument) int {
	total := 0
	for _, op := range doc.Operations {
		total += CountFieldsWithAlias(op.SelectionSet)
	}
	for _, frag := range doc.Fragments {
		total += CountFieldsWithAlias(frag.SelectionSet)
	}
	return total
}

// CountFieldsWithAlias counts aliased fields reachable through field and
// inline fragment selections. Fragment spreads are not followed.
func CountFieldsWithAlias(set language.SelectionSet) int {
	n := 0
	for _, sel := range set {
		switch s := sel.(type) {
		case *language.Field:
			if astutil.HasAlias(s) {
				n++
			}
			n += CountFieldsWithAlias(s.SelectionSet)
		case *language.InlineFragment:
			n += CountFieldsWithAlias(s.SelectionSet)
		}
	}
	return n
}
