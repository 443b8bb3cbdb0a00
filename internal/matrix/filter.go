package matrix

import (
	"strings"

	"matrixgen/internal/labels"
)

// Filter returns the entries satisfying every active label category.
// Categories combine with AND; values within a category with OR, except
// build, which is a required-subset test.
func Filter(entries []Entry, filters labels.FilterSet) []Entry {
	if len(filters) == 0 {
		return entries
	}
	kept := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if shouldInclude(entry, filters) {
			kept = append(kept, entry)
		}
	}
	return kept
}

func shouldInclude(entry Entry, filters labels.FilterSet) bool {
	// skip is absolute: nothing survives it.
	if filters.Directives().Has(labels.DirectiveSkip) {
		return false
	}

	if set := filters[labels.CategoryPlatform]; len(set) > 0 && !set.Has(entry.Platform) {
		return false
	}
	if set := filters[labels.CategoryPython]; len(set) > 0 && !set.Has(entry.Python) {
		return false
	}
	if set := filters[labels.CategoryArch]; len(set) > 0 && !set.Has(entry.Arch) {
		return false
	}

	// A libc filter only constrains entries that carry a libc dimension;
	// darwin and windows targets have none and must not be filtered out.
	if set := filters[labels.CategoryLibc]; len(set) > 0 && entry.Libc != "" && !set.Has(entry.Libc) {
		return false
	}

	// Every requested build token must be present in the entry's
	// "+"-joined option string; extra tokens on the entry are fine.
	if set := filters[labels.CategoryBuild]; len(set) > 0 {
		tokens := labels.NewSet(strings.Split(entry.BuildOptions, "+")...)
		for want := range set {
			if !tokens.Has(want) {
				return false
			}
		}
	}

	return true
}
