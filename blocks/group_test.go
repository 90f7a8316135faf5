package blocks

import (
	"reflect"
	"testing"
)

func TestGroup_AppendKeepsFirstAppearanceOrder(t *testing.T) {
	g := NewGroup[string]()
	g.Append("b", "1")
	g.Append("a", "2")
	g.Append("b", "3")

	if got, want := g.Keys(), []string{"b", "a"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	e, ok := g.Get("b")
	if !ok {
		t.Fatal("Get(b) missing")
	}
	if got, want := e.Items(), []string{"1", "3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Items() = %v, want %v", got, want)
	}
}

func TestGroup_Collapse(t *testing.T) {
	g := NewGroup[int]()
	g.Append("one", 1)
	g.Append("two", 1)
	g.Append("two", 2)
	g.Append("other", 7)
	g.Collapse("one", "two", "missing")

	if v, ok := mustEntry(t, g, "one").Single(); !ok || v != 1 {
		t.Errorf("one: Single() = %v, %v; want 1, true", v, ok)
	}
	if _, ok := mustEntry(t, g, "two").Single(); ok {
		t.Error("two: collapsed although it has two values")
	}
	if _, ok := mustEntry(t, g, "other").Single(); ok {
		t.Error("other: collapsed although it is not preferred")
	}

	data, err := g.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if got, want := string(data), `{"one":1,"two":[1,2],"other":[7]}`; got != want {
		t.Errorf("MarshalJSON() = %s, want %s", got, want)
	}
}

func TestGroup_Empty(t *testing.T) {
	g := NewGroup[any]()
	data, err := g.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("MarshalJSON() = %s, want {}", data)
	}

	var nilGroup *Group[any]
	if nilGroup.Len() != 0 || len(nilGroup.Keys()) != 0 {
		t.Error("nil group is not empty")
	}
}

func TestEntry_MarshalNoEscape(t *testing.T) {
	g := NewGroup[string]()
	g.Append("k", "<a href=\"/x\">&</a>")
	g.Collapse("k")
	data, err := g.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if got, want := string(data), `{"k":"<a href=\"/x\">&</a>"}`; got != want {
		t.Errorf("MarshalJSON() = %s, want %s", got, want)
	}
}

func mustEntry[T any](t *testing.T, g *Group[T], key string) *Entry[T] {
	t.Helper()
	e, ok := g.Get(key)
	if !ok {
		t.Fatalf("Get(%q) missing", key)
	}
	return e
}
