// Package varray implements Array (C5): growable contiguous storage of
// either V or Z, with the four read policies (at, wrap, clip, fold) and
// lexicographic comparison. Element type is fixed at creation and never
// changes thereafter.
package varray

import (
	"github.com/sapf-lang/sapf/pkg/value"
	"github.com/sapf-lang/sapf/pkg/verr"
)

// Array stores value.V elements.
type Array struct {
	value.RefCounted
	data []value.V
}

func NewArray(capacityHint int) *Array {
	return &Array{data: make([]value.V, 0, capacityHint)}
}

func FromSlice(vs []value.V) *Array {
	a := &Array{data: append([]value.V(nil), vs...)}
	for i := range a.data {
		a.data[i] = a.data[i].Retain()
	}
	return a
}

func (a *Array) Kind() value.Kind { return value.KindArray }
func (a *Array) Len() int         { return len(a.data) }

func (a *Array) Finalize() {
	for _, v := range a.data {
		v.Release()
	}
}

// Add appends one element, doubling capacity when full — the growth
// policy of §4.5.
func (a *Array) Add(v value.V) {
	if len(a.data) == cap(a.data) {
		grown := make([]value.V, len(a.data), growCap(cap(a.data)))
		copy(grown, a.data)
		a.data = grown
	}
	a.data = append(a.data, v.Retain())
}

func growCap(c int) int {
	if c == 0 {
		return 4
	}
	return c * 2
}

func (a *Array) At(i int) (value.V, error) {
	if i < 0 || i >= len(a.data) {
		return value.V{}, verr.OutOfRangef("array index %d out of [0,%d)", i, len(a.data))
	}
	return a.data[i], nil
}

// WrapAt uses Euclidean modulo so negative indices wrap sensibly.
func (a *Array) WrapAt(i int) value.V {
	n := len(a.data)
	if n == 0 {
		return value.Zero
	}
	m := i % n
	if m < 0 {
		m += n
	}
	return a.data[m]
}

func (a *Array) ClipAt(i int) value.V {
	n := len(a.data)
	if n == 0 {
		return value.Zero
	}
	if i < 0 {
		i = 0
	} else if i >= n {
		i = n - 1
	}
	return a.data[i]
}

// FoldAt mirrors across both ends (triangle wave), period 2(n-1).
func (a *Array) FoldAt(i int) value.V {
	n := len(a.data)
	if n == 0 {
		return value.Zero
	}
	if n == 1 {
		return a.data[0]
	}
	period := 2 * (n - 1)
	m := i % period
	if m < 0 {
		m += period
	}
	if m >= n {
		m = period - m
	}
	return a.data[m]
}

func (a *Array) EqualV(other value.V) bool {
	o, ok := other.Obj.(*Array)
	if !ok || len(o.data) != len(a.data) {
		return false
	}
	for i := range a.data {
		if !a.data[i].Equal(o.data[i]) {
			return false
		}
	}
	return true
}

// CompareV is lexicographic; shorter prefix is smaller on a tie, per
// §4.5.
func (a *Array) CompareV(other value.V) int {
	o, ok := other.Obj.(*Array)
	if !ok {
		return 1
	}
	n := len(a.data)
	if len(o.data) < n {
		n = len(o.data)
	}
	for i := 0; i < n; i++ {
		if c, err := a.data[i].Compare(o.data[i]); err == nil && c != 0 {
			return c
		}
	}
	switch {
	case len(a.data) < len(o.data):
		return -1
	case len(a.data) > len(o.data):
		return 1
	default:
		return 0
	}
}

func (a *Array) Print() string {
	s := "["
	for i, v := range a.data {
		if i > 0 {
			s += " "
		}
		s += v.Print()
	}
	return s + "]"
}

func (a *Array) Slice() []value.V { return a.data }
