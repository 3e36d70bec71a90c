// Package depthlimit limits how deeply the operations of a document may nest
// field selections.
package depthlimit

import (
	"fmt"

	docindex "github.com/hanpama/gqlguard/internal/docindex"
	extension "github.com/hanpama/gqlguard/internal/extension"
	language "github.com/hanpama/gqlguard/internal/language"
	validation "github.com/hanpama/gqlguard/internal/validation"
)

// IgnoreContext describes a field being considered by a ShouldIgnore
// predicate.
type IgnoreContext struct {
	// FieldName is the response name: the alias when there is one.
	FieldName string
	// FieldArgs holds the literal argument values. Variables resolve to an
	// empty map.
	FieldArgs map[string]any
	Node      *language.Field
	Context   *validation.Context
}

// ShouldIgnore reports whether a field and everything below it should be left
// out of depth accounting.
type ShouldIgnore func(IgnoreContext) bool

// Callback receives the depth of every operation in a validated document.
type Callback func(depths map[string]int)

// QueryDepthLimiter is an extension rejecting operations nested deeper than
// MaxDepth.
//
//	limiter, err := depthlimit.New(4)
//	s, err := schema.New(sdl, limiter)
type QueryDepthLimiter struct {
	extension.AddValidationRules

	MaxDepth int
}

type options struct {
	callback     Callback
	shouldIgnore ShouldIgnore
}

type Option func(*options)

// WithCallback registers cb to be called once per validation with the depth of
// every operation, including operations over the limit.
func WithCallback(cb Callback) Option { return func(o *options) { o.callback = cb } }

// WithShouldIgnore stops depth accounting at fields for which fn returns true.
func WithShouldIgnore(fn ShouldIgnore) Option { return func(o *options) { o.shouldIgnore = fn } }

// New returns a limiter allowing at most maxDepth levels of nested fields.
func New(maxDepth int, opts ...Option) (*QueryDepthLimiter, error) {
	if maxDepth < 1 {
		return nil, fmt.Errorf("max depth must be positive, got %d", maxDepth)
	}
	var o options
	for _, f := range opts {
		f(&o)
	}
	return &QueryDepthLimiter{
		AddValidationRules: extension.AddValidationRules{
			Name:  "QueryDepthLimiter",
			Rules: []validation.Rule{NewRule(maxDepth, o.shouldIgnore, o.callback)},
		},
		MaxDepth: maxDepth,
	}, nil
}

// NewRule builds the validation rule used by QueryDepthLimiter. The
// configuration is fixed when the rule is created.
func NewRule(maxDepth int, shouldIgnore ShouldIgnore, callback Callback) validation.Rule {
	return validation.Rule{
		Name: "QueryDepthLimiter",
		New: func(c *validation.Context) {
			idx := docindex.Build(c.Document())
			depths := make(map[string]int, idx.Len())
			for _, name := range idx.Names() {
				op, _ := idx.Operation(name)
				depths[name] = DetermineDepth(op, idx, 0, maxDepth, c, name, shouldIgnore)
			}
			if callback != nil {
				callback(depths)
			}
		},
	}
}
