package database

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// AnyOf is a filter value that matches when the field equals any one of
// its candidates.
type AnyOf []any

type fieldFilter struct {
	key   string
	path  jp.Expr
	value any
}

type filterSet []fieldFilter

// compileFilters parses JSONPath keys up front so a bad expression fails
// before the store lock is taken.
func compileFilters(filters map[string]any) (filterSet, error) {
	set := make(filterSet, 0, len(filters))
	for key, value := range filters {
		f := fieldFilter{key: key, value: value}
		if strings.HasPrefix(key, "$") {
			x, err := jp.ParseString(key)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrInvalidFilter, key, err)
			}
			f.path = x
		}
		set = append(set, f)
	}
	return set, nil
}

func (fs filterSet) match(rec Record) bool {
	for _, f := range fs {
		if !f.match(rec) {
			return false
		}
	}
	return true
}

func (f fieldFilter) match(rec Record) bool {
	if f.path == nil {
		actual, ok := rec[f.key]
		if !ok {
			// an absent field reads as null
			return f.accepts(nil)
		}
		return f.accepts(actual)
	}

	for _, actual := range f.path.Get(map[string]any(rec)) {
		if f.accepts(actual) {
			return true
		}
	}
	return false
}

func (f fieldFilter) accepts(actual any) bool {
	candidates, ok := f.value.(AnyOf)
	if !ok {
		return valuesEqual(actual, f.value)
	}
	for _, c := range candidates {
		if valuesEqual(actual, c) {
			return true
		}
	}
	return false
}
