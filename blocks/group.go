package blocks

import (
	"bytes"
	"iter"

	"github.com/elliotchance/orderedmap/v3"
)

// Entry holds all values collected for a single type key. Collapsed entry
// (exactly one value among preferred singleton keys) serializes as bare value,
// all others as an array.
type Entry[T any] struct {
	items  []T
	single bool
}

// Single returns the value of collapsed entry.
func (e *Entry[T]) Single() (T, bool) {
	if e == nil || !e.single {
		var zero T
		return zero, false
	}
	return e.items[0], true
}

// Items returns values in order of appearance, collapsed entry yields one
// element slice.
func (e *Entry[T]) Items() []T {
	if e == nil {
		return nil
	}
	return e.items
}

func (e *Entry[T]) Len() int {
	if e == nil {
		return 0
	}
	return len(e.items)
}

func (e *Entry[T]) MarshalJSON() ([]byte, error) {
	if v, ok := e.Single(); ok {
		return marshalNoEscape(v)
	}
	buf := new(bytes.Buffer)
	buf.WriteByte('[')
	for i, v := range e.Items() {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := marshalNoEscape(v)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Group maps type keys to entries, keys are kept in order of first appearance.
type Group[T any] struct {
	entries *orderedmap.OrderedMap[string, *Entry[T]]
}

func NewGroup[T any]() *Group[T] {
	return &Group[T]{entries: orderedmap.NewOrderedMap[string, *Entry[T]]()}
}

// Append adds value to the entry for key creating entry if necessary.
func (g *Group[T]) Append(key string, v T) {
	e, ok := g.entries.Get(key)
	if !ok {
		e = &Entry[T]{}
		g.entries.Set(key, e)
	}
	e.items = append(e.items, v)
}

// Collapse marks entries for listed keys as single when they hold exactly one
// value.
func (g *Group[T]) Collapse(keys ...string) {
	for _, k := range keys {
		if e, ok := g.entries.Get(k); ok && len(e.items) == 1 {
			e.single = true
		}
	}
}

func (g *Group[T]) Get(key string) (*Entry[T], bool) {
	if g == nil {
		return nil, false
	}
	return g.entries.Get(key)
}

func (g *Group[T]) Len() int {
	if g == nil {
		return 0
	}
	return g.entries.Len()
}

// All iterates over entries in order of first appearance of their keys.
func (g *Group[T]) All() iter.Seq2[string, *Entry[T]] {
	return func(yield func(string, *Entry[T]) bool) {
		if g == nil {
			return
		}
		for el := g.entries.Front(); el != nil; el = el.Next() {
			if !yield(el.Key, el.Value) {
				return
			}
		}
	}
}

func (g *Group[T]) Keys() []string {
	keys := make([]string, 0, g.Len())
	for k := range g.All() {
		keys = append(keys, k)
	}
	return keys
}

func (g *Group[T]) MarshalJSON() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte('{')
	first := true
	for k, e := range g.All() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := marshalNoEscape(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		data, err := e.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
