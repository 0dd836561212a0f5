// Package namedlist provides an ordered sequence whose items or contiguous
// ranges of items can be addressed by name.
package namedlist

import (
	"fmt"
	"slices"
)

// span is the half-open range [start, end) covered by a name. single marks a
// name bound to exactly one item, which Get returns unwrapped.
type span struct {
	start, end int
	single     bool
}

// List is an ordered collection with optional names. The zero value is an
// empty list ready to use.
type List[T any] struct {
	items []T
	names map[string]span
	order []string
}

// New returns a list holding items, without names.
func New[T any](items ...T) *List[T] {
	return &List[T]{items: slices.Clone(items)}
}

// Len returns the number of items.
func (l *List[T]) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// Items returns the items in order. The slice must not be modified.
func (l *List[T]) Items() []T {
	if l == nil {
		return nil
	}
	return l.items
}

// At returns the item at index i.
func (l *List[T]) At(i int) T { return l.items[i] }

// Append adds items at the end.
func (l *List[T]) Append(items ...T) {
	l.items = append(l.items, items...)
}

// SetName binds name to the single item at index.
func (l *List[T]) SetName(name string, index int) {
	l.bind(name, span{start: index, end: index + 1, single: true})
}

// SetRange binds name to items [start, end). An empty range is allowed and
// resolves to an empty slice.
func (l *List[T]) SetRange(name string, start, end int) {
	l.bind(name, span{start: start, end: end})
}

// AddName binds name to the last item.
func (l *List[T]) AddName(name string) {
	l.SetName(name, len(l.items)-1)
}

func (l *List[T]) bind(name string, s span) {
	if l.names == nil {
		l.names = map[string]span{}
	}
	if _, ok := l.names[name]; !ok {
		l.order = append(l.order, name)
	}
	l.names[name] = s
}

// Names returns the bound names in binding order.
func (l *List[T]) Names() []string {
	if l == nil {
		return nil
	}
	return slices.Clone(l.order)
}

// HasName reports whether name is bound.
func (l *List[T]) HasName(name string) bool {
	if l == nil {
		return false
	}
	_, ok := l.names[name]
	return ok
}

// Get returns the items bound to name. For a single-item name the slice has
// exactly one element and single is true.
func (l *List[T]) Get(name string) (items []T, single bool, ok bool) {
	if l == nil {
		return nil, false, false
	}
	s, ok := l.names[name]
	if !ok {
		return nil, false, false
	}
	return l.items[s.start:s.end], s.single, true
}

// Index returns the range bound to name.
func (l *List[T]) Index(name string) (start, end int, ok bool) {
	if l == nil {
		return 0, 0, false
	}
	s, ok := l.names[name]
	return s.start, s.end, ok
}

// NameOf returns the name covering index i, preferring single-item names.
func (l *List[T]) NameOf(i int) (string, bool) {
	if l == nil {
		return "", false
	}
	found := ""
	for _, n := range l.order {
		s := l.names[n]
		if i < s.start || i >= s.end {
			continue
		}
		if s.single {
			return n, true
		}
		if found == "" {
			found = n
		}
	}
	return found, found != ""
}

// Group is one entry of Groups: either a named single item, a named range or
// an unnamed item.
type Group[T any] struct {
	Name  string
	Items []T
	Range bool
}

// Groups walks the list front to back, yielding every named range once and
// every unnamed item on its own.
func (l *List[T]) Groups() []Group[T] {
	if l == nil {
		return nil
	}
	starts := map[int]string{}
	for _, n := range l.order {
		s := l.names[n]
		if s.end <= s.start {
			continue
		}
		if prev, ok := starts[s.start]; ok && l.names[prev].end >= s.end {
			continue
		}
		starts[s.start] = n
	}
	var out []Group[T]
	for i := 0; i < len(l.items); {
		if n, ok := starts[i]; ok {
			s := l.names[n]
			out = append(out, Group[T]{Name: n, Items: l.items[s.start:s.end], Range: !s.single})
			i = s.end
			continue
		}
		out = append(out, Group[T]{Items: l.items[i : i+1]})
		i++
	}
	return out
}

// Insert replaces the item at index with items. Names after index are
// shifted; a single-item name at index becomes a range over the new items.
func (l *List[T]) Insert(index int, items []T) error {
	if index < 0 || index >= len(l.items) {
		return fmt.Errorf("namedlist: insert index %d out of range [0,%d)", index, len(l.items))
	}
	delta := len(items) - 1
	next := make([]T, 0, len(l.items)+delta)
	next = append(next, l.items[:index]...)
	next = append(next, items...)
	next = append(next, l.items[index+1:]...)
	l.items = next

	for n, s := range l.names {
		switch {
		case s.start > index:
			s.start += delta
			s.end += delta
		case s.start == index && s.single:
			s.end = index + len(items)
			s.single = len(items) == 1
		case s.start <= index && s.end > index:
			s.end += delta
		}
		l.names[n] = s
	}
	return nil
}

// Clone returns an independent copy. Items are copied shallowly.
func (l *List[T]) Clone() *List[T] {
	if l == nil {
		return &List[T]{}
	}
	c := &List[T]{items: slices.Clone(l.items), order: slices.Clone(l.order)}
	if l.names != nil {
		c.names = make(map[string]span, len(l.names))
		for k, v := range l.names {
			c.names[k] = v
		}
	}
	return c
}

// Map returns a list with f applied to every item and the same names.
func Map[T, U any](l *List[T], f func(T) U) *List[U] {
	out := &List[U]{}
	if l == nil {
		return out
	}
	out.items = make([]U, len(l.items))
	for i, it := range l.items {
		out.items[i] = f(it)
	}
	out.order = slices.Clone(l.order)
	if l.names != nil {
		out.names = make(map[string]span, len(l.names))
		for k, v := range l.names {
			out.names[k] = v
		}
	}
	return out
}

// Named is a name/items pair used for rendering and serialization.
type Named[T any] struct {
	Name  string `json:"name"`
	Items []T    `json:"items"`
}

// Dict returns the named entries in binding order.
func (l *List[T]) Dict() []Named[T] {
	var out []Named[T]
	for _, n := range l.Names() {
		items, _, _ := l.Get(n)
		out = append(out, Named[T]{Name: n, Items: slices.Clone(items)})
	}
	return out
}
