package key

import (
	"maps"
	"slices"
)

// Args holds the arguments of one call to a memoized function.
type Args struct {
	Positional []any
	Keyword    map[string]any
}

// Positional returns Args with only positional arguments.
func Positional(v ...any) Args {
	return Args{Positional: v}
}

// With returns a copy of a with the keyword argument name set to v.
// The receiver's keyword map is never modified.
func (a Args) With(name string, v any) Args {
	kw := make(map[string]any, len(a.Keyword)+1)
	maps.Copy(kw, a.Keyword)
	kw[name] = v
	return Args{Positional: a.Positional, Keyword: kw}
}

// Arg returns the i-th positional argument, or nil when out of range.
func (a Args) Arg(i int) any {
	if i < 0 || i >= len(a.Positional) {
		return nil
	}
	return a.Positional[i]
}

// Kw returns the keyword argument name.
func (a Args) Kw(name string) (any, bool) {
	v, ok := a.Keyword[name]
	return v, ok
}

// keywordNames returns the keyword names in canonical (sorted) order.
func (a Args) keywordNames() []string {
	if len(a.Keyword) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(a.Keyword))
}
