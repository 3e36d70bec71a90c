package extension

import (
	"context"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"

	language "github.com/hanpama/gqlguard/internal/language"
)

// ParserCache keeps parsed documents keyed by a hash of their source.
//
// Schema validation annotates the document it walks, so a cached document is
// validated under its entry lock.
type ParserCache struct {
	cache *lru.Cache
}

type cachedDocument struct {
	mu  sync.Mutex
	doc *language.QueryDocument
}

func NewParserCache(size int) (*ParserCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("parser cache: %w", err)
	}
	return &ParserCache{cache: c}, nil
}

func (p *ParserCache) ExtensionName() string           { return "ParserCache" }
func (p *ParserCache) Validate(*language.Schema) error { return nil }

// Len reports how many documents are cached.
func (p *ParserCache) Len() int { return p.cache.Len() }

func (p *ParserCache) InterceptParse(next ParseFunc) ParseFunc {
	return func(ctx context.Context, source string) (*language.QueryDocument, *language.Error) {
		key := xxhash.Sum64String(source)
		if v, ok := p.cache.Get(key); ok {
			return v.(*cachedDocument).doc, nil
		}
		doc, err := next(ctx, source)
		if err != nil {
			return nil, err
		}
		p.cache.Add(key, &cachedDocument{doc: doc})
		return doc, nil
	}
}

func (p *ParserCache) InterceptValidation(next ValidateFunc) ValidateFunc {
	return func(ctx context.Context, source string, doc *language.QueryDocument) language.ErrorList {
		if v, ok := p.cache.Peek(xxhash.Sum64String(source)); ok {
			entry := v.(*cachedDocument)
			if entry.doc == doc {
				entry.mu.Lock()
				defer entry.mu.Unlock()
			}
		}
		return next(ctx, source, doc)
	}
}

// ValidationCache remembers the validation outcome of each source. Rules with
// side effects, such as a depth limiter callback, do not run on a hit.
type ValidationCache struct {
	cache *lru.Cache
}

func NewValidationCache(size int) (*ValidationCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("validation cache: %w", err)
	}
	return &ValidationCache{cache: c}, nil
}

func (v *ValidationCache) ExtensionName() string           { return "ValidationCache" }
func (v *ValidationCache) Validate(*language.Schema) error { return nil }

// Len reports how many results are cached.
func (v *ValidationCache) Len() int { return v.cache.Len() }

func (v *ValidationCache) InterceptValidation(next ValidateFunc) ValidateFunc {
	return func(ctx context.Context, source string, doc *language.QueryDocument) language.ErrorList {
		key := xxhash.Sum64String(source)
		if cached, ok := v.cache.Get(key); ok {
			return cached.(language.ErrorList)
		}
		errs := next(ctx, source, doc)
		v.cache.Add(key, errs)
		return errs
	}
}
