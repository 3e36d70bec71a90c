package astutil

import (
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/lexer"

	language "github.com/hanpama/gqlguard/internal/language"
)

// ResolveLiteralValue converts a literal AST value into a Go value. The result
// is one of bool, int64, float64, string, []any or map[string]any. Values that
// are not literals (variables, enums, null) resolve to an empty map.
func ResolveLiteralValue(v *language.Value) any {
	if v == nil {
		return map[string]any{}
	}
	switch v.Kind {
	case language.StringValue, language.BlockValue:
		return v.Raw
	case language.IntValue:
		if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return n
		}
		f, _ := strconv.ParseFloat(v.Raw, 64)
		return f
	case language.FloatValue:
		f, _ := strconv.ParseFloat(v.Raw, 64)
		return f
	case language.BooleanValue:
		return v.Raw == "true"
	case language.ListValue:
		out := make([]any, 0, len(v.Children))
		for _, c := range v.Children {
			out = append(out, ResolveLiteralValue(c.Value))
		}
		return out
	case language.ObjectValue:
		out := make(map[string]any, len(v.Children))
		for _, c := range v.Children {
			out[c.Name] = ResolveLiteralValue(c.Value)
		}
		return out
	}
	return map[string]any{}
}

// FieldArguments maps each argument of f to its resolved literal value.
func FieldArguments(f *language.Field) map[string]any {
	out := make(map[string]any, len(f.Arguments))
	for _, arg := range f.Arguments {
		out[arg.Name] = ResolveLiteralValue(arg.Value)
	}
	return out
}

// ResponseName is the key a field occupies in the response.
func ResponseName(f *language.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// HasAlias reports whether f was written with an alias. The parser fills Alias
// with the field name when none is given, so the source is re-lexed from the
// field's position: an alias is present when a colon follows the first name.
// Without source text only aliases differing from the name are detected.
func HasAlias(f *language.Field) bool {
	if f.Alias == "" {
		return false
	}
	pos := f.Position
	if pos == nil || pos.Src == nil || pos.Start < 0 || pos.Start >= len(pos.Src.Input) {
		return f.Alias != f.Name
	}
	lex := lexer.New(&ast.Source{Input: pos.Src.Input[pos.Start:]})
	names := 0
	for {
		tok, err := lex.ReadToken()
		if err != nil || tok.Kind == lexer.EOF {
			return f.Alias != f.Name
		}
		switch tok.Kind {
		case lexer.Comment:
			continue
		case lexer.Name:
			if names++; names > 1 {
				return false
			}
		default:
			return names == 1 && tok.Kind == lexer.Colon
		}
	}
}
