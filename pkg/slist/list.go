// Package slist implements the lazy pull-driven stream (C6): a List is a
// spine cell in one of three states (Thunk, Filled, End); forcing runs the
// installed Gen and transitions the cell under a per-cell lock. Gen holds
// only a non-owning back-pointer to its installed List to avoid the
// List<->Gen ownership cycle flagged in the design notes, mirroring the
// weak-reference pattern used elsewhere in the corpus for the same
// problem shape.
package slist

import (
	"sync"

	"github.com/sapf-lang/sapf/pkg/value"
	"github.com/sapf-lang/sapf/pkg/verr"
)

// ElemKind fixes whether a List's blocks hold V or Z elements.
type ElemKind int

const (
	ElemV ElemKind = iota
	ElemZ
)

// Gen is a producer cell: pull fills the installed List's next block (or
// ends it). Gen is an interface so DSP generators outside this repo can
// still be written against it.
type Gen interface {
	// Pull runs one generation step against thread th, filling the
	// owning List's array (and possibly chaining a new thunk as next),
	// or marking end.
	Pull(th value.Thread) error
	// Done reports whether this generator has nothing further to
	// produce.
	Done() bool
	// Finite reports the generator's declared finiteness, propagated to
	// any List that wraps it (§4.6).
	Finite() bool
}

// state is the three-variant spine-cell state of §4.6.
type state int

const (
	stateThunk state = iota
	stateFilled
	stateEnd
)

// List is a spine cell. mu is the per-cell "spinlock" of §4.6; a
// sync.Mutex is substituted for a true spinlock (see DESIGN.md) since
// critical sections here are check-thunk-or-return-filled, not
// busy-wait-friendly workloads.
type List struct {
	value.RefCounted
	mu      sync.Mutex
	kind    ElemKind
	gen     Gen
	arrV    []value.V
	arrZ    []value.Z
	next    *List
	st      state
	finite  bool
}

func (l *List) Kind() value.Kind { return value.KindList }

// FromArrayV builds a finite, already-Filled list from a V slice — the
// canonical finite construction of §4.6/§8 ("a list constructed from an
// Array is finite").
func FromArrayV(vs []value.V) *List {
	l := &List{kind: ElemV, arrV: append([]value.V(nil), vs...), st: stateFilled, finite: true}
	for i := range l.arrV {
		l.arrV[i] = l.arrV[i].Retain()
	}
	return l
}

func FromArrayZ(zs []value.Z) *List {
	return &List{kind: ElemZ, arrZ: append([]value.Z(nil), zs...), st: stateFilled, finite: true}
}

// FromGen wraps a Gen in an unforced Thunk cell. The list's finiteness is
// inherited from the generator's declared finiteness, per §4.6.
func FromGen(kind ElemKind, g Gen) *List {
	l := &List{kind: kind, gen: g, st: stateThunk, finite: g.Finite()}
	if wb, ok := g.(interface{ SetList(*List) }); ok {
		wb.SetList(l)
	}
	return l
}

func (l *List) ElemKind() ElemKind { return l.kind }
func (l *List) Finite() bool       { return l.finite }

func (l *List) Finalize() {
	for _, v := range l.arrV {
		v.Release()
	}
	if l.next != nil {
		l.next.Release()
	}
	if f, ok := l.gen.(value.Finalizer); ok {
		f.Finalize()
	}
}

// link installs a previously unowned continuation as l's next, used by
// generators extending the spine lazily (§4.6).
func (l *List) link(next *List) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if next != nil {
		next.Retain()
	}
	l.next = next
}

// Force runs the Gen if l is a Thunk, transitioning to Filled or End.
// Idempotent: forcing an already-Filled or End cell is a no-op. Callers
// on the interpreter thread may block waiting for the lock; audio-thread
// code must never call Force on a cell it has not pre-reserved (§4.6).
func (l *List) Force(th value.Thread) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.st != stateThunk {
		return nil
	}
	if l.gen == nil {
		l.st = stateEnd
		return nil
	}
	if err := l.gen.Pull(th); err != nil {
		return err
	}
	if l.gen.Done() {
		if l.arrLen() == 0 {
			l.st = stateEnd
		} else {
			l.st = stateFilled
		}
		return nil
	}
	l.st = stateFilled
	return nil
}

func (l *List) arrLen() int {
	if l.kind == ElemV {
		return len(l.arrV)
	}
	return len(l.arrZ)
}

// HeadLen returns the number of elements currently materialized in this
// cell's array (valid after Force).
func (l *List) HeadLen() int { return l.arrLen() }

func (l *List) HeadV() []value.V { return l.arrV }
func (l *List) HeadZ() []value.Z { return l.arrZ }

// FillV (and FillZ) is called by the owning Gen to deposit a freshly produced
// block and optionally chain the next thunk. Must be called with l.mu
// held by the caller's Pull (Force already holds it while calling Pull).
func (l *List) FillV(block []value.V, next *List) {
	l.arrV = block
	for i := range l.arrV {
		l.arrV[i] = l.arrV[i].Retain()
	}
	if next != nil {
		next.Retain()
	}
	l.next = next
}

func (l *List) FillZ(block []value.Z, next *List) {
	l.arrZ = block
	if next != nil {
		next.Retain()
	}
	l.next = next
}

func (l *List) Next() *List { return l.next }

func (l *List) IsEnd() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st == stateEnd
}

// Pack forces thunks along the spine up to limit items, returning a
// single flat List. Packing an infinite list beyond limit returns
// (nil, nil) rather than an error — per §4.6, "the caller must already
// have confirmed finiteness when it matters."
func (l *List) Pack(th value.Thread, limit int) (*List, error) {
	switch l.kind {
	case ElemV:
		out := make([]value.V, 0, limit)
		cur := l
		for cur != nil {
			if err := cur.Force(th); err != nil {
				return nil, err
			}
			if cur.st == stateEnd {
				break
			}
			for _, v := range cur.arrV {
				if len(out) >= limit {
					return nil, nil
				}
				out = append(out, v)
			}
			cur = cur.next
		}
		return FromArrayV(out), nil
	default:
		out := make([]value.Z, 0, limit)
		cur := l
		for cur != nil {
			if err := cur.Force(th); err != nil {
				return nil, err
			}
			if cur.st == stateEnd {
				break
			}
			for _, z := range cur.arrZ {
				if len(out) >= limit {
					return nil, nil
				}
				out = append(out, z)
			}
			cur = cur.next
		}
		return FromArrayZ(out), nil
	}
}

// Length returns the total element count of a finite list, forcing its
// entire spine. Fails with IndefiniteOperation on an infinite list, per
// §7.
func (l *List) Length(th value.Thread) (int, error) {
	if !l.finite {
		return 0, verr.New(verr.IndefiniteOperation, "length of an infinite stream")
	}
	n := 0
	cur := l
	for cur != nil {
		if err := cur.Force(th); err != nil {
			return 0, err
		}
		if cur.st == stateEnd {
			break
		}
		n += cur.arrLen()
		cur = cur.next
	}
	return n, nil
}
