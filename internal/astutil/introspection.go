package astutil

import (
	"fmt"
	"strings"

	language "github.com/hanpama/gqlguard/internal/language"
)

// IsIntrospectionKey reports whether key names a member of the introspection
// system. Names starting with "__" are reserved for it.
func IsIntrospectionKey(key any) bool {
	if s, ok := key.(string); ok {
		return strings.HasPrefix(s, "__")
	}
	return strings.HasPrefix(fmt.Sprint(key), "__")
}

// Path is a response path stored leaf first. The root is a nil *Path.
type Path struct {
	Prev *Path
	Key  any
}

// Add returns a new path with key appended below p.
func (p *Path) Add(key any) *Path {
	return &Path{Prev: p, Key: key}
}

// AsList returns the keys from root to leaf.
func (p *Path) AsList() []any {
	var keys []any
	for cur := p; cur != nil; cur = cur.Prev {
		keys = append(keys, cur.Key)
	}
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys
}

// ASTPath converts p into the form used by GraphQL errors.
func (p *Path) ASTPath() language.Path {
	keys := p.AsList()
	if len(keys) == 0 {
		return nil
	}
	out := make(language.Path, 0, len(keys))
	for _, k := range keys {
		switch v := k.(type) {
		case int:
			out = append(out, language.PathIndex(v))
		case string:
			out = append(out, language.PathName(v))
		default:
			out = append(out, language.PathName(fmt.Sprint(v)))
		}
	}
	return out
}

// IsIntrospectionField reports whether any segment of the response path is an
// introspection key.
func IsIntrospectionField(path *Path) bool {
	for cur := path; cur != nil; cur = cur.Prev {
		if IsIntrospectionKey(cur.Key) {
			return true
		}
	}
	return false
}
