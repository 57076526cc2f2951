// Package cell implements the mutable single-cell primitives (C8): Ref,
// ZRef, Plug, and ZPlug. Ref/Plug use a mutex as the spec's "spinlock"
// (see DESIGN.md's Open Question decisions for why); ZRef is a lock-free
// atomic scalar.
package cell

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/sapf-lang/sapf/pkg/cursor"
	"github.com/sapf-lang/sapf/pkg/value"
)

// Ref holds a V under a mutex so reads observe a consistent scalar+object
// pair, per §3/§4.8.
type Ref struct {
	value.RefCounted
	mu  sync.Mutex
	val value.V
}

func NewRef(v value.V) *Ref { return &Ref{val: v.Retain()} }

func (r *Ref) Kind() value.Kind { return value.KindRef }

func (r *Ref) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.val.Release()
}

// Set atomically publishes a new value, releasing the previous one.
func (r *Ref) Set(v value.V) {
	r.mu.Lock()
	old := r.val
	r.val = v.Retain()
	r.mu.Unlock()
	old.Release()
}

// Deref returns the current value, retained for the caller.
func (r *Ref) Deref() value.V {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.val.Retain()
}

// ChaseV implements value.Chaser: one step of dereferencing.
func (r *Ref) ChaseV() value.V { return r.Deref() }

// ZRef is a plain atomic scalar cell, storing the raw bits of a float64.
type ZRef struct {
	value.RefCounted
	bits atomic.Uint64
}

func NewZRef(z value.Z) *ZRef {
	r := &ZRef{}
	r.bits.Store(math.Float64bits(z))
	return r
}

func (r *ZRef) Kind() value.Kind { return value.KindZRef }
func (r *ZRef) Set(z value.Z)    { r.bits.Store(math.Float64bits(z)) }
func (r *ZRef) Get() value.Z     { return math.Float64frombits(r.bits.Load()) }
func (r *ZRef) AsFloat() value.Z { return r.Get() }

// Plug is a mutable cell holding a source VIn cursor plus a monotonic
// change-counter, letting a consumer detect that the source was swapped
// between polls (§4.8).
type Plug struct {
	value.RefCounted
	mu      sync.Mutex
	cursor  cursor.VIn
	changes uint64
}

func NewPlug(v cursor.VIn) *Plug { return &Plug{cursor: v} }

func (p *Plug) Kind() value.Kind { return value.KindPlug }

func (p *Plug) Finalize() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor.Release()
}

// Set replaces the internal cursor and bumps the change-counter.
func (p *Plug) Set(v cursor.VIn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor.Release()
	p.cursor = v
	p.changes++
}

// Get reads both the cursor snapshot and the change-counter atomically.
// Consumers compare the returned counter against the last one they saw to
// detect a swap and avoid mixing samples from old and new sources within
// one output sample.
func (p *Plug) Get() (cursor.VIn, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor, p.changes
}

// ZPlug is the scalar-cursor counterpart of Plug.
type ZPlug struct {
	value.RefCounted
	mu      sync.Mutex
	cursor  cursor.ZIn
	changes uint64
}

func NewZPlug(z cursor.ZIn) *ZPlug { return &ZPlug{cursor: z} }

func (p *ZPlug) Kind() value.Kind { return value.KindZPlug }

func (p *ZPlug) Finalize() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor.Release()
}

func (p *ZPlug) Set(z cursor.ZIn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor.Release()
	p.cursor = z
	p.changes++
}

// Get returns an independently owned clone of the current cursor plus the
// change counter at the time of the read. The caller owns the returned
// cursor outright (Clone retains its backing list separately from the
// Plug's own copy) and must Release it once done.
func (p *ZPlug) Get() (cursor.ZIn, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor.Clone(), p.changes
}

// Changes reports the current change counter without cloning a cursor,
// for callers that only need to detect whether a swap happened.
func (p *ZPlug) Changes() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.changes
}
