package validation

import (
	"context"

	language "github.com/hanpama/gqlguard/internal/language"
)

// Context is the state of one validation pass over one document. It is
// request-scoped and must not be shared between concurrent passes.
type Context struct {
	ctx      context.Context
	schema   *language.Schema
	document *language.QueryDocument
	rule     string
	errors   language.ErrorList
}

// NewContext returns a Context for validating document. schema may be nil when
// the document is checked without a schema.
func NewContext(ctx context.Context, schema *language.Schema, document *language.QueryDocument) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{ctx: ctx, schema: schema, document: document}
}

func (c *Context) Context() context.Context          { return c.ctx }
func (c *Context) Schema() *language.Schema          { return c.schema }
func (c *Context) Document() *language.QueryDocument { return c.document }
func (c *Context) Errors() language.ErrorList        { return c.errors }
func (c *Context) HasErrors() bool                   { return len(c.errors) > 0 }

// ReportError records a diagnostic located at the given nodes.
func (c *Context) ReportError(message string, at ...*language.Position) {
	err := &language.Error{Message: message}
	for _, pos := range at {
		if pos == nil {
			continue
		}
		err.Locations = append(err.Locations, language.Location{Line: pos.Line, Column: pos.Column})
	}
	c.Report(err)
}

// Report records err, tagging it with the running rule's name.
func (c *Context) Report(err *language.Error) {
	if err.Rule == "" {
		err.Rule = c.rule
	}
	c.errors = append(c.errors, err)
}

func (c *Context) run(r Rule) {
	c.rule = r.Name
	defer func() { c.rule = "" }()
	r.New(c)
}
