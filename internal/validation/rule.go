package validation

// Rule is a named validation rule. New is called once per validated document
// with a fresh Context; the rule performs its whole analysis and reports all of
// its diagnostics before New returns.
//
// Rules close over their configuration when they are created, so a single Rule
// value can be shared by any number of concurrent validation passes.
type Rule struct {
	Name string
	New  func(*Context)
}
