// Package value implements the core tagged value V and the minimal Object
// surface every heap kind in the engine satisfies. The design follows the
// closed-sum-type redesign: Object itself carries only identity and
// lifetime (Kind, Retain, Release); everything else — printing, hashing,
// equality, ordering, indexing, dictionary access, application, and
// unary/binary operator dispatch — is an optional single-purpose interface
// that V's forwarding methods type-assert for, falling back to a
// documented default when a concrete kind doesn't implement it.
package value

import (
	"fmt"
	"hash/fnv"
	"math"
	"sync/atomic"
)

// Z is the system's sample type: every scalar V and every audio-rate
// buffer element is a Z.
type Z = float64

// Kind enumerates every concrete heap kind V can reference. It is closed:
// new kinds are not expected to be added by callers outside this module
// tree.
type Kind int

const (
	KindString Kind = iota
	KindFun
	KindPrim
	KindArray
	KindList
	KindTable
	KindForm
	KindGTable
	KindGForm
	KindRef
	KindZRef
	KindPlug
	KindZPlug
	KindTreeNode
	KindEachOp
	KindCode
	KindFunDef
)

func (k Kind) String() string {
	names := [...]string{
		"String", "Fun", "Prim", "Array", "List", "Table", "Form",
		"GTable", "GForm", "Ref", "ZRef", "Plug", "ZPlug", "TreeNode",
		"EachOp", "Code", "FunDef",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return "Unknown"
	}
	return names[k]
}

// Object is the minimal surface every heap kind must implement: identity
// (Kind) and lifetime (Retain/Release). Behavior beyond that is expressed
// through the optional capability interfaces below.
type Object interface {
	Kind() Kind
	Retain()
	// Release decrements the refcount and returns true if it reached
	// zero (the caller is then responsible for tearing the object down,
	// e.g. calling Finalize if the kind implements Finalizer).
	Release() bool
}

// RefCounted is embedded by every concrete Object implementation to
// provide the intrusive atomic refcount described in the spec: relaxed
// increments, acquire-release semantics on the decrement that reaches
// zero (guaranteed by atomic.Int32 on every architecture Go targets).
type RefCounted struct {
	n atomic.Int32
}

// Retain bumps the refcount. Zero-valued RefCounted starts at a count of
// zero; the first reference is taken by FromObject (or an explicit Retain).
func (r *RefCounted) Retain() { r.n.Add(1) }

// Release drops the refcount and reports whether it reached zero.
func (r *RefCounted) Release() bool { return r.n.Add(-1) == 0 }

// Count reports the current refcount. It exists for refcount-soundness
// tests (e.g. proving a lookup path returns a borrowed reference to
// exactly where it started); production code has no use for the raw
// count and should not branch on it.
func (r *RefCounted) Count() int32 { return r.n.Load() }

// Finalizer is implemented by kinds that must break non-owning back
// references before being collected — List and Gen use this to avoid the
// List<->Gen ownership cycle (see design notes).
type Finalizer interface {
	Finalize()
}

// Optional capability interfaces. A concrete kind implements whichever of
// these its behavior needs; V's methods below type-assert for them.

type Printer interface{ Print() string }

type Hasher interface{ Hash() uint64 }

type Equatable interface{ EqualV(other V) bool }

type Comparable interface{ CompareV(other V) int }

type Floater interface{ AsFloat() Z }

// Indexable covers the four read policies of §4.5: at, wrapAt, clipAt,
// foldAt (all bounds-safe by construction of the policy itself).
type Indexable interface {
	At(i int) (V, error)
	WrapAt(i int) V
	ClipAt(i int) V
	FoldAt(i int) V
	Len() int
}

// Dictionary is implemented by Table/Form/GTable/GForm style objects.
type Dictionary interface {
	Get(key V) (V, bool)
	MustGet(key V) (V, error)
}

// Applicable is implemented by Fun/Prim: calling a V as a function.
type Applicable interface {
	Apply(th Thread, argc int) error
}

// OperandUnary/OperandBinary back V.UnaryOp/V.BinaryOp for object kinds
// that override the scalar kernel dispatch (Array, List, String).
type OperandUnary interface {
	UnaryOpV(op int) (V, error)
}

type OperandBinary interface {
	BinaryOpV(op int, other V) (V, error)
}

// Chaser is implemented by Ref: chase steps through indirection.
type Chaser interface {
	ChaseV() V
}

// Thread is the minimal surface concrete kinds need to call back into the
// interpreter (e.g. Applicable.Apply needs somewhere to push results).
// Declaring it here, rather than importing pkg/interp, avoids an import
// cycle between value and the concrete-kind packages that both need "a
// thread" and are imported by pkg/interp itself.
type Thread interface {
	Push(v V) error
	Pop() (V, error)
	SampleRate() Z
}

// V is the two-word tagged union: Obj non-nil means the object branch;
// Obj nil means the scalar branch holds Num. The two branches never
// mix-interpret their bits.
type V struct {
	Obj Object
	Num Z
}

// Zero is the scalar zero value, the domain zero returned by out-of-range
// reads and the default of AsFloat on kinds without a numeric projection.
var Zero = V{}

func FromZ(z Z) V { return V{Num: z} }

func FromObject(o Object) V {
	if o != nil {
		o.Retain()
	}
	return V{Obj: o}
}

func (v V) IsScalar() bool { return v.Obj == nil }
func (v V) IsObject() bool { return v.Obj != nil }

func (v V) Is(k Kind) bool { return v.Obj != nil && v.Obj.Kind() == k }

// Retain increments the held object's refcount, if any. Called explicitly
// at the points where the source's C++ would run an implicit copy
// constructor: container stores, closure capture, and stack pushes of a
// value taken from elsewhere.
func (v V) Retain() V {
	if v.Obj != nil {
		v.Obj.Retain()
	}
	return v
}

// Release drops the held object's refcount, if any, finalizing the object
// when it reaches zero. Called explicitly at scope exit / pop-and-discard,
// mirroring the source's destructor call.
func (v V) Release() {
	if v.Obj == nil {
		return
	}
	if v.Obj.Release() {
		if f, ok := v.Obj.(Finalizer); ok {
			f.Finalize()
		}
	}
}

func (v V) AsFloat() Z {
	if v.Obj == nil {
		return v.Num
	}
	if f, ok := v.Obj.(Floater); ok {
		return f.AsFloat()
	}
	return 0
}

func (v V) At(i int) (V, error) {
	if v.Obj == nil {
		return V{}, WrongTypeErr(v, "Indexable")
	}
	if ix, ok := v.Obj.(Indexable); ok {
		return ix.At(i)
	}
	return V{}, WrongTypeErr(v, "Indexable")
}

func (v V) WrapAt(i int) V {
	if ix, ok := indexableOf(v); ok {
		return ix.WrapAt(i)
	}
	return Zero
}

func (v V) ClipAt(i int) V {
	if ix, ok := indexableOf(v); ok {
		return ix.ClipAt(i)
	}
	return Zero
}

func (v V) FoldAt(i int) V {
	if ix, ok := indexableOf(v); ok {
		return ix.FoldAt(i)
	}
	return Zero
}

func indexableOf(v V) (Indexable, bool) {
	if v.Obj == nil {
		return nil, false
	}
	ix, ok := v.Obj.(Indexable)
	return ix, ok
}

func (v V) Hash() uint64 {
	if v.Obj == nil {
		return math.Float64bits(v.Num)
	}
	if h, ok := v.Obj.(Hasher); ok {
		return h.Hash()
	}
	// Pointer identity fallback for kinds that don't define content
	// hashing (Fun, Prim, mutable cells): stable for the object's
	// lifetime, matching reference-identity semantics.
	h := fnv.New64a()
	fmt.Fprintf(h, "%p", v.Obj)
	return h.Sum64()
}

func (v V) Equal(other V) bool {
	if v.Obj == nil && other.Obj == nil {
		return v.Num == other.Num
	}
	if v.Obj == nil || other.Obj == nil {
		return false
	}
	if eq, ok := v.Obj.(Equatable); ok {
		return eq.EqualV(other)
	}
	return v.Obj == other.Obj
}

func (v V) Compare(other V) (int, error) {
	if v.Obj == nil && other.Obj == nil {
		switch {
		case v.Num < other.Num:
			return -1, nil
		case v.Num > other.Num:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if v.Obj != nil {
		if c, ok := v.Obj.(Comparable); ok {
			return c.CompareV(other), nil
		}
	}
	return 0, UndefinedOpErr(v, other, "compare")
}

func (v V) Print() string {
	if v.Obj == nil {
		return formatZ(v.Num)
	}
	if p, ok := v.Obj.(Printer); ok {
		return p.Print()
	}
	return v.Obj.Kind().String()
}

func (v V) Apply(th Thread, argc int) error {
	if v.Obj == nil {
		return WrongTypeErr(v, "Applicable")
	}
	if a, ok := v.Obj.(Applicable); ok {
		return a.Apply(th, argc)
	}
	return WrongTypeErr(v, "Applicable")
}

func (v V) Get(key V) (V, bool) {
	if v.Obj == nil {
		return V{}, false
	}
	if d, ok := v.Obj.(Dictionary); ok {
		return d.Get(key)
	}
	return V{}, false
}

func (v V) MustGet(key V) (V, error) {
	if v.Obj == nil {
		return V{}, WrongTypeErr(v, "Dictionary")
	}
	if d, ok := v.Obj.(Dictionary); ok {
		return d.MustGet(key)
	}
	return V{}, WrongTypeErr(v, "Dictionary")
}

// Chase force-derefs a Ref-like V up to n steps, matching non-Ref values.
func (v V) Chase(n int) V {
	cur := v
	for i := 0; i < n; i++ {
		c, ok := cur.Obj.(Chaser)
		if !ok {
			return cur
		}
		cur = c.ChaseV()
	}
	return cur
}
