// Package labels parses the comma-separated label strings attached to a
// pull request or workflow dispatch into structured matrix filters.
package labels

import (
	"slices"
	"strings"
)

// Filter categories. Each maps to a field of a matrix entry, except
// CategoryDirectives which carries control flags instead of match values.
const (
	CategoryPlatform   = "platform"
	CategoryPython     = "python"
	CategoryBuild      = "build"
	CategoryArch       = "arch"
	CategoryLibc       = "libc"
	CategoryDirectives = "directives"
)

// Directive values recognized under CategoryDirectives.
const (
	DirectiveSkip   = "skip"
	DirectiveDryRun = "dry-run"
)

// DefaultSkipLabels are bare labels (no category prefix) that translate
// to the skip directive.
var DefaultSkipLabels = []string{"documentation"}

var categories = []string{
	CategoryPlatform,
	CategoryPython,
	CategoryBuild,
	CategoryArch,
	CategoryLibc,
	CategoryDirectives,
}

// Set is an unordered collection of label values.
type Set map[string]struct{}

// NewSet builds a Set from its arguments.
func NewSet(values ...string) Set {
	s := make(Set, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Has reports whether v is in the set. Safe on a nil Set.
func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Add inserts v into the set.
func (s Set) Add(v string) {
	s[v] = struct{}{}
}

// FilterSet maps a category to the set of accepted values. A missing or
// empty category imposes no constraint.
type FilterSet map[string]Set

// Directives returns the directive set, or nil when no labels were
// parsed. Safe on a nil FilterSet.
func (f FilterSet) Directives() Set {
	return f[CategoryDirectives]
}

// Parse turns a comma-separated list of "category:value" labels into a
// FilterSet. Tokens matching an extraSkip label translate to the skip
// directive. "ci" is accepted as an alias for "directives". Tokens with
// an unknown category or no ":" separator are dropped. An empty input
// yields a nil FilterSet, meaning no filtering at all.
func Parse(raw string, extraSkip []string) FilterSet {
	if raw == "" {
		return nil
	}

	result := make(FilterSet, len(categories))
	for _, category := range categories {
		result[category] = NewSet()
	}

	for _, label := range strings.Split(raw, ",") {
		label = strings.TrimSpace(label)

		if slices.Contains(extraSkip, label) {
			result[CategoryDirectives].Add(DirectiveSkip)
			continue
		}

		category, value, ok := strings.Cut(label, ":")
		if !ok {
			continue
		}
		if category == "ci" {
			category = CategoryDirectives
		}
		if set, known := result[category]; known {
			set.Add(value)
		}
	}

	return result
}
