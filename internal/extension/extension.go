// Package extension defines how request-time extensions attach to a schema
// and hook into parsing, validation and upstream responses.
package extension

import (
	"context"

	language "github.com/hanpama/gqlguard/internal/language"
	validation "github.com/hanpama/gqlguard/internal/validation"
)

// Extension is anything that can be attached to a schema.
type Extension interface {
	ExtensionName() string
	// Validate is called once when the extension is attached. A non-nil error
	// aborts schema construction.
	Validate(schema *language.Schema) error
}

// RuleProvider contributes validation rules that run on every request.
type RuleProvider interface {
	ValidationRules() []validation.Rule
}

type (
	// ParseFunc turns a request source into a document.
	ParseFunc func(ctx context.Context, source string) (*language.QueryDocument, *language.Error)
	// ValidateFunc validates a parsed document built from source.
	ValidateFunc func(ctx context.Context, source string, doc *language.QueryDocument) language.ErrorList
)

// ParseInterceptor wraps the parse step.
type ParseInterceptor interface {
	InterceptParse(next ParseFunc) ParseFunc
}

// ValidationInterceptor wraps the validation step.
type ValidationInterceptor interface {
	InterceptValidation(next ValidateFunc) ValidateFunc
}

// ResponseInterceptor rewrites an upstream response body before it is sent to
// the client.
type ResponseInterceptor interface {
	InterceptResponse(body []byte) []byte
}

// AddValidationRules is an extension that contributes a fixed list of rules.
// Limiters embed it.
type AddValidationRules struct {
	Name  string
	Rules []validation.Rule
}

var (
	_ Extension    = (*AddValidationRules)(nil)
	_ RuleProvider = (*AddValidationRules)(nil)
)

// NewAddValidationRules returns an extension adding rules to every validation.
func NewAddValidationRules(rules ...validation.Rule) *AddValidationRules {
	return &AddValidationRules{Name: "AddValidationRules", Rules: rules}
}

func (a *AddValidationRules) ExtensionName() string              { return a.Name }
func (a *AddValidationRules) Validate(*language.Schema) error    { return nil }
func (a *AddValidationRules) ValidationRules() []validation.Rule { return a.Rules }
