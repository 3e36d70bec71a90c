package validation

import (
	"fmt"
	"strings"

	language "github.com/hanpama/gqlguard/internal/language"
)

// KnownFragmentNames reports fragment spreads that name no fragment defined in
// the document.
var KnownFragmentNames = Rule{
	Name: "KnownFragmentNames",
	New: func(c *Context) {
		doc := c.Document()
		var visit func(set language.SelectionSet)
		visit = func(set language.SelectionSet) {
			for _, sel := range set {
				switch s := sel.(type) {
				case *language.Field:
					visit(s.SelectionSet)
				case *language.InlineFragment:
					visit(s.SelectionSet)
				case *language.FragmentSpread:
					if doc.Fragments.ForName(s.Name) == nil {
						c.ReportError(fmt.Sprintf("Unknown fragment %q.", s.Name), s.Position)
					}
				}
			}
		}
		for _, op := range doc.Operations {
			visit(op.SelectionSet)
		}
		for _, frag := range doc.Fragments {
			visit(frag.SelectionSet)
		}
	},
}

// NoFragmentCycles reports fragments that spread themselves, directly or
// through other fragments.
var NoFragmentCycles = Rule{
	Name: "NoFragmentCycles",
	New: func(c *Context) {
		doc := c.Document()
		done := map[string]bool{}
		for _, frag := range doc.Fragments {
			if done[frag.Name] {
				continue
			}
			detectCycles(c, doc, frag, []string{frag.Name}, map[string]bool{frag.Name: true}, done)
			done[frag.Name] = true
		}
	},
}

func detectCycles(c *Context, doc *language.QueryDocument, frag *language.FragmentDefinition, stack []string, onStack, done map[string]bool) {
	for _, spread := range collectSpreads(frag.SelectionSet, nil) {
		if onStack[spread.Name] {
			if spread.Name == stack[0] {
				c.ReportError(cycleMessage(stack), spread.Position)
			}
			continue
		}
		if done[spread.Name] {
			continue
		}
		next := doc.Fragments.ForName(spread.Name)
		if next == nil {
			continue
		}
		onStack[spread.Name] = true
		detectCycles(c, doc, next, append(stack, spread.Name), onStack, done)
		delete(onStack, spread.Name)
	}
}

func collectSpreads(set language.SelectionSet, out []*language.FragmentSpread) []*language.FragmentSpread {
	for _, sel := range set {
		switch s := sel.(type) {
		case *language.Field:
			out = collectSpreads(s.SelectionSet, out)
		case *language.InlineFragment:
			out = collectSpreads(s.SelectionSet, out)
		case *language.FragmentSpread:
			out = append(out, s)
		}
	}
	return out
}

func cycleMessage(stack []string) string {
	if len(stack) == 1 {
		return fmt.Sprintf("Cannot spread fragment %q within itself.", stack[0])
	}
	via := make([]string, 0, len(stack)-1)
	for _, name := range stack[1:] {
		via = append(via, fmt.Sprintf("%q", name))
	}
	return fmt.Sprintf("Cannot spread fragment %q within itself via %s.", stack[0], strings.Join(via, ", "))
}
