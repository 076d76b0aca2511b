package entity

import (
	"iter"
	"slices"
)

// Table is a normalized collection of records keyed by id. It remembers the
// order in which ids were first inserted and keeps that position across
// later upserts of the same id.
type Table[K comparable, T any] struct {
	items map[K]*T
	order []K
	merge func(dst *T, src T)
}

// Option configures a Table.
type Option[K comparable, T any] func(*Table[K, T])

// WithMerge overrides how an upsert of an existing id combines the stored
// record with the incoming one. The default overwrites every top-level field.
func WithMerge[K comparable, T any](merge func(dst *T, src T)) Option[K, T] {
	return func(t *Table[K, T]) {
		t.merge = merge
	}
}

// New creates an empty Table.
func New[K comparable, T any](opts ...Option[K, T]) *Table[K, T] {
	t := &Table[K, T]{
		items: make(map[K]*T),
		merge: func(dst *T, src T) { *dst = src },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Upsert inserts rec under id, or merges it into the existing record in
// place. The returned pointer is the stored record; created reports whether
// the id was new.
func (t *Table[K, T]) Upsert(id K, rec T) (stored *T, created bool) {
	if existing, ok := t.items[id]; ok {
		t.merge(existing, rec)
		return existing, false
	}
	stored = &rec
	t.items[id] = stored
	t.order = append(t.order, id)
	return stored, true
}

// Get returns the stored record for id.
func (t *Table[K, T]) Get(id K) (*T, bool) {
	rec, ok := t.items[id]
	return rec, ok
}

// Has reports whether id is present.
func (t *Table[K, T]) Has(id K) bool {
	_, ok := t.items[id]
	return ok
}

// Remove deletes id and its position. It reports whether anything was removed.
func (t *Table[K, T]) Remove(id K) bool {
	if _, ok := t.items[id]; !ok {
		return false
	}
	delete(t.items, id)
	if i := slices.Index(t.order, id); i >= 0 {
		t.order = slices.Delete(t.order, i, i+1)
	}
	return true
}

// Len returns the number of records.
func (t *Table[K, T]) Len() int {
	return len(t.items)
}

// OrderedIDs yields ids in insertion order. The sequence can be ranged over
// any number of times; each pass reflects the table at the time it starts.
func (t *Table[K, T]) OrderedIDs() iter.Seq[K] {
	return func(yield func(K) bool) {
		for _, id := range slices.Clone(t.order) {
			if !yield(id) {
				return
			}
		}
	}
}

// All yields (id, record) pairs in insertion order.
func (t *Table[K, T]) All() iter.Seq2[K, *T] {
	return func(yield func(K, *T) bool) {
		for _, id := range slices.Clone(t.order) {
			rec, ok := t.items[id]
			if !ok {
				continue
			}
			if !yield(id, rec) {
				return
			}
		}
	}
}
