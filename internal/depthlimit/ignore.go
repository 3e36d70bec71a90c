package depthlimit

import (
	"fmt"
	"regexp"
)

// IgnoreFields builds a ShouldIgnore from field matchers. Each rule is a field
// name (string), a *regexp.Regexp matched against the field name, or a
// func(string) bool. Matching uses the schema field name, not the alias.
func IgnoreFields(rules ...any) (ShouldIgnore, error) {
	matchers := make([]func(string) bool, 0, len(rules))
	for _, rule := range rules {
		switch r := rule.(type) {
		case string:
			matchers = append(matchers, func(name string) bool { return name == r })
		case *regexp.Regexp:
			matchers = append(matchers, r.MatchString)
		case func(string) bool:
			matchers = append(matchers, r)
		default:
			return nil, fmt.Errorf("invalid ignore option: %T", rule)
		}
	}
	return func(ic IgnoreContext) bool {
		for _, m := range matchers {
			if m(ic.Node.Name) {
				return true
			}
		}
		return false
	}, nil
}
