package pattern

import (
	"maps"
	"slices"
	"strings"
)

// Combinator decides how value lists of several wildcards are combined.
type Combinator int

const (
	// Product combines every value of every wildcard (cartesian product).
	Product Combinator = iota
	// Zip combines the i-th values of all wildcards, truncating to the
	// shortest list.
	Zip
)

// Expand formats template once per combination of values. Every
// placeholder must have an entry in values; doubled braces become single
// braces. Keys are combined in sorted order, the last key varying fastest.
func Expand(template string, values map[string][]string, comb Combinator) ([]string, error) {
	segs, err := parse(template)
	if err != nil {
		return nil, err
	}
	for _, s := range segs {
		if s.isWildcard() {
			if _, ok := values[s.name]; !ok {
				return nil, &WildcardError{Name: s.name, Template: template}
			}
		}
	}

	keys := slices.Sorted(maps.Keys(values))
	var combos []Wildcards
	switch comb {
	case Zip:
		combos = zipCombos(keys, values)
	default:
		combos = productCombos(keys, values)
	}

	out := make([]string, 0, len(combos))
	for _, wc := range combos {
		var b strings.Builder
		for _, s := range segs {
			if s.isWildcard() {
				b.WriteString(wc[s.name])
			} else {
				b.WriteString(s.literal)
			}
		}
		out = append(out, b.String())
	}
	return out, nil
}

func zipCombos(keys []string, values map[string][]string) []Wildcards {
	if len(keys) == 0 {
		return []Wildcards{{}}
	}
	n := -1
	for _, k := range keys {
		if n < 0 || len(values[k]) < n {
			n = len(values[k])
		}
	}
	combos := make([]Wildcards, 0, n)
	for i := 0; i < n; i++ {
		wc := make(Wildcards, len(keys))
		for _, k := range keys {
			wc[k] = values[k][i]
		}
		combos = append(combos, wc)
	}
	return combos
}

func productCombos(keys []string, values map[string][]string) []Wildcards {
	combos := []Wildcards{{}}
	for _, k := range keys {
		next := make([]Wildcards, 0, len(combos)*len(values[k]))
		for _, c := range combos {
			for _, v := range values[k] {
				wc := c.Clone()
				wc[k] = v
				next = append(next, wc)
			}
		}
		combos = next
	}
	return combos
}
