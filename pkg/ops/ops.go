// Package ops implements per-type unary/binary operator dispatch (C12):
// scalar kernels, list double-dispatch, and reduce/scan/pairs combinators.
package ops

import (
	"math"

	"github.com/sapf-lang/sapf/pkg/slist"
	"github.com/sapf-lang/sapf/pkg/value"
	"github.com/sapf-lang/sapf/pkg/verr"
)

type UnaryOp int
type BinaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryAbs
	UnarySqrt
	UnaryReciprocal
)

const (
	BinaryAdd BinaryOp = iota
	BinarySub
	BinaryMul
	BinaryDiv
	BinaryMod
	BinaryMin
	BinaryMax
)

var unaryKernels = map[UnaryOp]func(value.Z) value.Z{
	UnaryNeg:        func(z value.Z) value.Z { return -z },
	UnaryAbs:        math.Abs,
	UnarySqrt:       math.Sqrt,
	UnaryReciprocal: func(z value.Z) value.Z { return 1 / z },
}

var binaryKernels = map[BinaryOp]func(a, b value.Z) value.Z{
	BinaryAdd: func(a, b value.Z) value.Z { return a + b },
	BinarySub: func(a, b value.Z) value.Z { return a - b },
	BinaryMul: func(a, b value.Z) value.Z { return a * b },
	// Division by zero yields ±Inf/NaN per IEEE-754; never throws (§8).
	BinaryDiv: func(a, b value.Z) value.Z { return a / b },
	BinaryMod: math.Mod,
	BinaryMin: math.Min,
	BinaryMax: math.Max,
}

// Unary applies op's scalar kernel to the scalar branch, or dispatches to
// the object's OperandUnary override.
func Unary(op UnaryOp, v value.V) (value.V, error) {
	if v.Obj == nil {
		k, ok := unaryKernels[op]
		if !ok {
			return value.V{}, verr.New(verr.UndefinedOperation, "no such unary op")
		}
		return value.FromZ(k(v.Num)), nil
	}
	if u, ok := v.Obj.(value.OperandUnary); ok {
		return u.UnaryOpV(int(op))
	}
	return value.V{}, value.WrongTypeErr(v, "OperandUnary")
}

// Binary dispatches per §4.12: scalar/scalar runs the kernel directly;
// a *slist.List argument goes straight to this package's ListBinary for
// the lazy combinator behavior; any other object on the left dispatches
// through its OperandBinary implementation.
func Binary(op BinaryOp, a, b value.V) (value.V, error) {
	if a.Obj == nil && b.Obj == nil {
		k, ok := binaryKernels[op]
		if !ok {
			return value.V{}, verr.New(verr.UndefinedOperation, "no such binary op")
		}
		return value.FromZ(k(a.Num, b.Num)), nil
	}
	if la, ok := a.Obj.(*slist.List); ok {
		return ListBinary(op, la, b)
	}
	if lb, ok := b.Obj.(*slist.List); ok {
		return ListBinary(op, lb, a)
	}
	if ob, ok := a.Obj.(value.OperandBinary); ok {
		return ob.BinaryOpV(int(op), b)
	}
	return value.V{}, value.UndefinedOpErr(a, b, "binary op")
}

func kernelFor(op BinaryOp) (func(a, b value.Z) value.Z, bool) {
	k, ok := binaryKernels[op]
	return k, ok
}

// ListBinary implements the list case of §4.12: it always builds a lazy
// combinator, even when both operands are already fully materialized (no
// eager pairwise path exists), pulling both inputs block by block,
// producing output blocks of equal
// length (via slist.Zip's shortest-finite-length rule generalized to an
// arbitrary kernel).
func ListBinary(op BinaryOp, list *slist.List, other value.V) (value.V, error) {
	kernel, ok := kernelFor(op)
	if !ok {
		return value.V{}, verr.New(verr.UndefinedOperation, "no such binary op")
	}
	otherList, otherIsList := other.Obj.(*slist.List)
	result := combine(list, otherList, otherIsList, other.AsFloat(), kernel)
	return value.FromObject(result), nil
}

type combineGen struct {
	a, b       *slist.List
	bIsList    bool
	bScalar    value.Z
	kernel     func(a, b value.Z) value.Z
	list       *slist.List
	finite     bool
}

func combine(a, b *slist.List, bIsList bool, bScalar value.Z, kernel func(a, b value.Z) value.Z) *slist.List {
	finite := a.Finite() || (bIsList && b.Finite())
	a.Retain()
	if bIsList {
		b.Retain()
	}
	g := &combineGen{a: a, b: b, bIsList: bIsList, bScalar: bScalar, kernel: kernel, finite: finite}
	return slist.FromGen(slist.ElemZ, g)
}

func (g *combineGen) SetList(l *slist.List) { g.list = l }
func (g *combineGen) Done() bool            { return false }
func (g *combineGen) Finite() bool          { return g.finite }

// Finalize releases the source lists combine retained on construction. The
// combineGen holds a and b directly (a raw producer-side reference, not one
// of the List<->Gen back-pointers list.go's package doc calls non-owning),
// so it owns a matching retain for as long as the wrapping list is alive.
func (g *combineGen) Finalize() {
	g.a.Release()
	if g.bIsList {
		g.b.Release()
	}
}

func (g *combineGen) Pull(th value.Thread) error {
	if err := g.a.Force(th); err != nil {
		return err
	}
	if g.a.IsEnd() {
		g.list.FillZ(nil, nil)
		return nil
	}
	aBlock := g.a.HeadZ()
	n := len(aBlock)
	var bBlock []value.Z
	var bNext *slist.List
	if g.bIsList {
		if err := g.b.Force(th); err != nil {
			return err
		}
		if g.b.IsEnd() {
			g.list.FillZ(nil, nil)
			return nil
		}
		bBlock = g.b.HeadZ()
		if len(bBlock) < n {
			n = len(bBlock)
		}
		bNext = g.b.Next()
	}
	out := make([]value.Z, n)
	for i := 0; i < n; i++ {
		bv := g.bScalar
		if g.bIsList {
			bv = bBlock[i]
		}
		out[i] = g.kernel(aBlock[i], bv)
	}
	var cont *slist.List
	aNext := g.a.Next()
	if aNext != nil && (!g.bIsList || bNext != nil) {
		cont = combine(aNext, bNext, g.bIsList, g.bScalar, g.kernel)
	}
	g.list.FillZ(out, cont)
	return nil
}
