// Package pipeline parses and validates incoming GraphQL requests against a
// schema and its attached extensions.
package pipeline

import (
	"context"
	"net/http"
	"time"

	eventbus "github.com/hanpama/gqlguard/internal/eventbus"
	events "github.com/hanpama/gqlguard/internal/events"
	extension "github.com/hanpama/gqlguard/internal/extension"
	language "github.com/hanpama/gqlguard/internal/language"
	schema "github.com/hanpama/gqlguard/internal/schema"
	validation "github.com/hanpama/gqlguard/internal/validation"
)

// Request is one GraphQL operation request as received by the proxy.
type Request struct {
	Query         string
	OperationName string
	// Method is the HTTP method the request arrived with. Mutations are
	// rejected for GET.
	Method string
}

// Prepared is the outcome of Prepare. Errors is empty when the request may be
// forwarded.
type Prepared struct {
	Document  *language.QueryDocument
	Operation *language.OperationDefinition
	Errors    language.ErrorList
}

// OperationType returns the resolved operation type, or "" when none was
// resolved.
func (p *Prepared) OperationType() string {
	if p.Operation == nil {
		return ""
	}
	return string(p.Operation.Operation)
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	schema   *schema.Schema
	parse    extension.ParseFunc
	validate extension.ValidateFunc
}

// New composes the parse and validate steps with every interceptor attached
// to s. The first attached extension is the outermost wrapper.
func New(s *schema.Schema) *Pipeline {
	p := &Pipeline{schema: s}
	p.parse = func(_ context.Context, source string) (*language.QueryDocument, *language.Error) {
		return language.ParseQuery(source)
	}
	rules := s.ValidationRules()
	p.validate = func(ctx context.Context, _ string, doc *language.QueryDocument) language.ErrorList {
		return validation.Validate(ctx, s.AST(), doc, rules...)
	}
	exts := s.Extensions()
	for i := len(exts) - 1; i >= 0; i-- {
		if pi, ok := exts[i].(extension.ParseInterceptor); ok {
			p.parse = pi.InterceptParse(p.parse)
		}
		if vi, ok := exts[i].(extension.ValidationInterceptor); ok {
			p.validate = vi.InterceptValidation(p.validate)
		}
	}
	return p
}

// Schema returns the schema the pipeline validates against.
func (p *Pipeline) Schema() *schema.Schema { return p.schema }

// Validate parses and validates a whole document. The document is nil when
// parsing failed.
func (p *Pipeline) Validate(ctx context.Context, source string) (*language.QueryDocument, language.ErrorList) {
	start := time.Now()
	eventbus.Publish(ctx, events.ParseStart{})
	doc, perr := p.parse(ctx, source)
	eventbus.Publish(ctx, events.ParseFinish{Err: perr, Duration: time.Since(start)})
	if perr != nil {
		return nil, language.ErrorList{perr}
	}

	start = time.Now()
	eventbus.Publish(ctx, events.ValidationStart{})
	errs := p.validate(ctx, source, doc)
	eventbus.Publish(ctx, events.ValidationFinish{Errors: errs, Duration: time.Since(start)})
	return doc, errs
}

// Prepare parses and validates req and resolves the operation to forward.
func (p *Pipeline) Prepare(ctx context.Context, req Request) *Prepared {
	out := &Prepared{}
	doc, errs := p.Validate(ctx, req.Query)
	out.Document = doc
	if len(errs) > 0 {
		out.Errors = errs
		return out
	}

	op, err := resolveOperation(doc, req.OperationName)
	if err != nil {
		out.Errors = language.ErrorList{err}
		return out
	}
	out.Operation = op
	if req.Method == http.MethodGet && op.Operation == language.Mutation {
		out.Errors = language.ErrorList{{Message: "mutations are not allowed when using GET"}}
	}
	return out
}

func resolveOperation(doc *language.QueryDocument, name string) (*language.OperationDefinition, *language.Error) {
	if name != "" {
		if op := doc.Operations.ForName(name); op != nil {
			return op, nil
		}
		return nil, &language.Error{Message: `Unknown operation named "` + name + `".`}
	}
	if len(doc.Operations) == 1 {
		return doc.Operations[0], nil
	}
	return nil, &language.Error{Message: "Can't get GraphQL operation type"}
}
