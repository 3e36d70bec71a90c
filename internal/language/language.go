package language

import (
	"errors"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/lexer"
	"github.com/vektah/gqlparser/v2/parser"
)

// ParseQuery parses an executable document. Syntax errors are returned as *Error.
func ParseQuery(source string) (*QueryDocument, *Error) {
	return ParseNamedQuery("", source)
}

// ParseNamedQuery is ParseQuery with a source name used in error locations.
func ParseNamedQuery(name, source string) (*QueryDocument, *Error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, AsError(err)
	}
	return doc, nil
}

// LoadSchema parses and validates SDL sources together with the built-in prelude.
func LoadSchema(sources ...*Source) (*Schema, error) {
	s, err := gqlparser.LoadSchema(sources...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FormatSchema renders a schema back to SDL.
func FormatSchema(s *Schema) string {
	var b strings.Builder
	formatter.NewFormatter(&b).FormatSchema(s)
	return b.String()
}

// CountTokens returns the number of lexical tokens in source, ignoring comments
// and the end-of-file marker. It stops counting once limit is exceeded when
// limit is positive.
func CountTokens(source string, limit int) (int, *Error) {
	lex := lexer.New(&ast.Source{Input: source})
	n := 0
	for {
		tok, err := lex.ReadToken()
		if err != nil {
			return n, AsError(err)
		}
		if tok.Kind == lexer.EOF {
			return n, nil
		}
		if tok.Kind == lexer.Comment {
			continue
		}
		n++
		if limit > 0 && n > limit {
			return n, nil
		}
	}
}

// AsError converts any parser or validator error into a GraphQL error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ge *gqlerror.Error
	if errors.As(err, &ge) {
		return ge
	}
	return &Error{Message: err.Error()}
}
