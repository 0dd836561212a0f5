package namedlist

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGet_SingleAndRange(t *testing.T) {
	l := New("a", "b", "c", "d")
	l.SetName("first", 0)
	l.SetRange("middle", 1, 3)

	items, single, ok := l.Get("first")
	if !ok || !single || items[0] != "a" {
		t.Errorf("first = %v %v %v", items, single, ok)
	}
	items, single, ok = l.Get("middle")
	if !ok || single {
		t.Fatalf("middle = %v %v %v", items, single, ok)
	}
	if diff := cmp.Diff([]string{"b", "c"}, items); diff != "" {
		t.Errorf("middle (-want +got):\n%s", diff)
	}
	if _, _, ok := l.Get("missing"); ok {
		t.Error("missing name resolved")
	}
}

func TestAddName(t *testing.T) {
	var l List[int]
	l.Append(1, 2)
	l.AddName("two")
	if n, ok := l.NameOf(1); !ok || n != "two" {
		t.Errorf("NameOf(1) = %q %v", n, ok)
	}
	if _, ok := l.NameOf(0); ok {
		t.Error("index 0 has no name")
	}
}

func TestGroups(t *testing.T) {
	l := New("x", "a1", "a2", "y", "z")
	l.SetRange("a", 1, 3)
	l.SetName("z", 4)

	got := l.Groups()
	want := []Group[string]{
		{Items: []string{"x"}},
		{Name: "a", Items: []string{"a1", "a2"}, Range: true},
		{Items: []string{"y"}},
		{Name: "z", Items: []string{"z"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("groups (-want +got):\n%s", diff)
	}
}

func TestInsert(t *testing.T) {
	l := New("a", "dyn", "b")
	l.SetName("d", 1)
	l.SetName("last", 2)

	if err := l.Insert(1, []string{"d1", "d2", "d3"}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "d1", "d2", "d3", "b"}, l.Items()); diff != "" {
		t.Errorf("items (-want +got):\n%s", diff)
	}
	items, single, _ := l.Get("d")
	if single || len(items) != 3 {
		t.Errorf("d = %v single=%v", items, single)
	}
	items, single, _ = l.Get("last")
	if !single || items[0] != "b" {
		t.Errorf("last = %v single=%v", items, single)
	}
	if err := l.Insert(9, nil); err == nil {
		t.Error("expected out of range error")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	l := New(1, 2)
	l.SetName("one", 0)
	c := l.Clone()
	c.Append(3)
	c.SetName("three", 2)
	if l.Len() != 2 || l.HasName("three") {
		t.Error("clone shares state with original")
	}
}

func TestMap(t *testing.T) {
	l := New(1, 2, 3)
	l.SetRange("tail", 1, 3)
	m := Map(l, func(i int) string { return string(rune('a' + i)) })
	items, _, ok := m.Get("tail")
	if !ok {
		t.Fatal("names not carried over")
	}
	if diff := cmp.Diff([]string{"c", "d"}, items); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
