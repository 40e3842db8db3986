package catalog

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Identified is any record addressable by a string id.
type Identified interface {
	GetID() string
}

// FilterProducts returns the products whose name, description, category or
// any feature contains query, ignoring case. Order is preserved. An empty
// query returns all products; no match returns an empty, non-nil slice.
//
// Matching lowercases both sides and compares substrings; it does not fold
// ("ss" does not match "ß") and does not trim the query.
func FilterProducts(all []Product, query string) []Product {
	if query == "" {
		out := make([]Product, len(all))
		copy(out, all)
		return out
	}

	// A Caser carries state and is not safe for concurrent use.
	lower := cases.Lower(language.Und)
	needle := lower.String(query)

	contains := func(s string) bool {
		return strings.Contains(lower.String(s), needle)
	}

	out := []Product{}
	for _, p := range all {
		if productMatches(p, contains) {
			out = append(out, p)
		}
	}
	return out
}

func productMatches(p Product, contains func(string) bool) bool {
	if contains(p.Name) || contains(p.Description) || contains(p.Category) {
		return true
	}
	for _, f := range p.Features {
		if contains(f) {
			return true
		}
	}
	return false
}

// FindByID returns the record with the given id. Absence is reported through
// ok rather than an error; callers render a not-found state.
func FindByID[T Identified](all []T, id string) (T, bool) {
	for _, item := range all {
		if item.GetID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}
