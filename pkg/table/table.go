// Package table implements the insertion-ordered map (C4): TableMap owns
// the shared open-addressed hash index and the dense key array; Table
// layers a dense value array on top of a TableMap so multiple Tables can
// share one shape cheaply. Form/GForm chain Tables (or a GTable-backed
// dictionary) into a lexical scope, per §4.4.
package table

import (
	"github.com/sapf-lang/sapf/pkg/value"
	"github.com/sapf-lang/sapf/pkg/verr"
)

const emptySlot = -1

// TableMap is the shared shape: a power-of-two open-addressed index plus
// the insertion-ordered key array. Multiple Tables built from the same
// TableMap have an identical key set and order.
type TableMap struct {
	index []int32 // slot -> position in keys, or emptySlot
	keys  []value.V
	hash  []uint64
	cap   int
}

func NewTableMap(capacityHint int) *TableMap {
	c := 8
	for c < capacityHint {
		c <<= 1
	}
	idx := make([]int32, c)
	for i := range idx {
		idx[i] = emptySlot
	}
	return &TableMap{index: idx, cap: c}
}

func (m *TableMap) probe(hash uint64, key value.V) (slot int, found bool) {
	mask := uint64(m.cap - 1)
	slot = int(hash & mask)
	for {
		pos := m.index[slot]
		if pos == emptySlot {
			return slot, false
		}
		if m.hash[pos] == hash && m.keys[pos].Equal(key) {
			return slot, true
		}
		slot = (slot + 1) & int(mask)
	}
}

// Lookup returns the dense-array position for key, or -1 if absent.
func (m *TableMap) Lookup(key value.V, hash uint64) int {
	slot, found := m.probe(hash, key)
	if !found {
		return -1
	}
	return int(m.index[slot])
}

// growIfNeeded rehashes into double capacity once the index is more than
// half full, matching the growth trigger used throughout the codebase for
// open-addressed structures.
func (m *TableMap) growIfNeeded() {
	if len(m.keys)*2 < m.cap {
		return
	}
	newCap := m.cap * 2
	idx := make([]int32, newCap)
	for i := range idx {
		idx[i] = emptySlot
	}
	mask := uint64(newCap - 1)
	for pos, h := range m.hash {
		slot := int(h & mask)
		for idx[slot] != emptySlot {
			slot = (slot + 1) & int(mask)
		}
		idx[slot] = int32(pos)
	}
	m.index = idx
	m.cap = newCap
}

// insert appends key to the dense arrays, returning its new position.
// TableMap itself has no synchronization of its own; its only caller,
// Table.With, inserts into a freshly cloned TableMap (copy-on-write), so
// no shared shape is ever mutated.
func (m *TableMap) insert(key value.V, hash uint64) int {
	m.growIfNeeded()
	pos := len(m.keys)
	m.keys = append(m.keys, key.Retain())
	m.hash = append(m.hash, hash)
	slot, _ := m.probe(hash, key)
	m.index[slot] = int32(pos)
	return pos
}

func (m *TableMap) Len() int { return len(m.keys) }

func (m *TableMap) KeyAt(i int) value.V { return m.keys[i] }

// clone returns a TableMap with the same shape, ready to receive one more
// key — used by Table.With whenever it binds a new key, so the shape
// shared with other Tables is left untouched (copy-on-write extension).
func (m *TableMap) clone() *TableMap {
	c := &TableMap{
		index: append([]int32(nil), m.index...),
		keys:  append([]value.V(nil), m.keys...),
		hash:  append([]uint64(nil), m.hash...),
		cap:   m.cap,
	}
	return c
}

// Table is an immutable value array sharing a TableMap shape.
type Table struct {
	value.RefCounted
	shape  *TableMap
	values []value.V
}

func NewTable(shape *TableMap) *Table {
	if shape == nil {
		shape = NewTableMap(8)
	}
	return &Table{shape: shape, values: make([]value.V, shape.Len())}
}

func (t *Table) Kind() value.Kind { return value.KindTable }

func (t *Table) Get(key value.V) (value.V, bool) {
	pos := t.shape.Lookup(key, key.Hash())
	if pos < 0 || pos >= len(t.values) {
		return value.V{}, false
	}
	return t.values[pos], true
}

func (t *Table) MustGet(key value.V) (value.V, error) {
	v, ok := t.Get(key)
	if !ok {
		return value.V{}, verr.NotFoundf("key %s not found", key.Print())
	}
	return v, nil
}

// With returns a new Table with key bound to val. A rebind of an existing
// key keeps the shared shape; a new key gets a cloned shape with the key
// appended, so existing Tables sharing the old shape are unaffected.
func (t *Table) With(key value.V, val value.V) *Table {
	hash := key.Hash()
	pos := t.shape.Lookup(key, hash)
	if pos >= 0 {
		nv := append([]value.V(nil), t.values...)
		nv[pos] = val.Retain()
		return &Table{shape: t.shape, values: nv}
	}
	newShape := t.shape.clone()
	newPos := newShape.insert(key, hash)
	nv := make([]value.V, newPos+1)
	copy(nv, t.values)
	nv[newPos] = val.Retain()
	return &Table{shape: newShape, values: nv}
}

func (t *Table) Len() int { return len(t.values) }

func (t *Table) KeyAt(i int) value.V   { return t.shape.KeyAt(i) }
func (t *Table) ValueAt(i int) value.V { return t.values[i] }

func (t *Table) EqualV(other value.V) bool {
	o, ok := other.Obj.(*Table)
	if !ok || o.Len() != t.Len() {
		return false
	}
	for i := 0; i < t.Len(); i++ {
		if !t.KeyAt(i).Equal(o.KeyAt(i)) || !t.ValueAt(i).Equal(o.ValueAt(i)) {
			return false
		}
	}
	return true
}
