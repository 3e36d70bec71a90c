package extension

import (
	"context"
	"fmt"

	language "github.com/hanpama/gqlguard/internal/language"
)

// MaxTokensLimiter rejects documents with more lexical tokens than MaxTokens
// before they reach the parser.
type MaxTokensLimiter struct {
	MaxTokens int
}

func NewMaxTokensLimiter(maxTokens int) (*MaxTokensLimiter, error) {
	if maxTokens < 1 {
		return nil, fmt.Errorf("max tokens must be positive, got %d", maxTokens)
	}
	return &MaxTokensLimiter{MaxTokens: maxTokens}, nil
}

func (l *MaxTokensLimiter) ExtensionName() string           { return "MaxTokensLimiter" }
func (l *MaxTokensLimiter) Validate(*language.Schema) error { return nil }

func (l *MaxTokensLimiter) InterceptParse(next ParseFunc) ParseFunc {
	return func(ctx context.Context, source string) (*language.QueryDocument, *language.Error) {
		n, err := language.CountTokens(source, l.MaxTokens)
		if err == nil && n > l.MaxTokens {
			return nil, &language.Error{
				Message: fmt.Sprintf("Syntax Error: Document contains more than %d tokens. Parsing aborted.", l.MaxTokens),
			}
		}
		// Lexer errors are left to the parser, which reports them with context.
		return next(ctx, source)
	}
}
