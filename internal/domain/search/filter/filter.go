package filter

import (
	"fmt"
	"sort"

	"github.com/nooikko/nightreign-query/internal/domain/category"
)

// MaxTypes is the maximum number of categories a filter may name.
const MaxTypes = 16

// Filters restricts results to a set of content categories.
// The zero value matches everything.
type Filters struct {
	types []category.Category
}

// New validates and creates Filters. Duplicates are removed and the
// remaining categories are kept sorted so equal filters render identically.
func New(types ...category.Category) (Filters, error) {
	if len(types) > MaxTypes {
		return Filters{}, fmt.Errorf("too many type filters (max %d)", MaxTypes)
	}
	seen := make(map[category.Category]struct{}, len(types))
	out := make([]category.Category, 0, len(types))
	for _, t := range types {
		if !t.IsValid() {
			return Filters{}, fmt.Errorf("%w: %q", category.ErrUnknownCategory, t)
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return Filters{types: out}, nil
}

// Parse builds Filters from raw strings, rejecting unknown categories.
func Parse(raw ...string) (Filters, error) {
	types := make([]category.Category, 0, len(raw))
	for _, r := range raw {
		c, err := category.Parse(r)
		if err != nil {
			return Filters{}, err
		}
		types = append(types, c)
	}
	return New(types...)
}

// Types returns the allowed categories.
func (f Filters) Types() []category.Category { return f.types }

// IsEmpty reports whether the filter places no restriction.
func (f Filters) IsEmpty() bool { return len(f.types) == 0 }

// Matches reports whether c passes the filter.
func (f Filters) Matches(c category.Category) bool {
	if f.IsEmpty() {
		return true
	}
	for _, t := range f.types {
		if t == c {
			return true
		}
	}
	return false
}
