// Package automap implements rank-polymorphic invocation of scalar
// primitives over list-shaped arguments (C11): resolving a mask of
// per-argument ranks at primitive-registration time (per the design
// notes), then, at call time, either invoking directly or constructing an
// EachOp wrapper that walks the outer structure.
package automap

import (
	"github.com/sapf-lang/sapf/pkg/slist"
	"github.com/sapf-lang/sapf/pkg/value"
)

// Rank is the per-argument automap tag of §4.11: 'a' (as-is), 'z'
// (automap over streams), 'k' (automap over all lists).
type Rank int

const (
	RankAsIs Rank = iota
	RankAutoStream
	RankAutoAll
)

// Mask is resolved once at primitive-registration time into a fixed
// per-argument rank vector, per the design notes' redesign of the
// dynamic tag-character dispatch.
type Mask []Rank

func (m Mask) wantsAutomap() bool {
	for _, r := range m {
		if r != RankAsIs {
			return true
		}
	}
	return false
}

// Kernel is the scalar primitive being automapped: it takes exactly
// len(Mask) scalar arguments and returns one scalar result.
type Kernel func(args []value.Z) value.Z

// shape classifies one argument's actual runtime shape for automap
// purposes.
type shape int

const (
	shapeScalar shape = iota
	shapeFiniteList
	shapeInfiniteList
)

func shapeOf(v value.V) shape {
	l, ok := v.Obj.(*slist.List)
	if !ok {
		return shapeScalar
	}
	if l.Finite() {
		return shapeFiniteList
	}
	return shapeInfiniteList
}

// Invoke applies kernel across args according to mask: a no-op broadcast
// when every argument is scalar and mask has no automap rank; otherwise
// it determines list lengths per §4.11's tie-break (scalars broadcast,
// finite lists set the length, infinite lists adapt to it) and returns
// either a scalar V or a List V.
func Invoke(th value.Thread, mask Mask, kernel Kernel, args []value.V) (value.V, error) {
	if !mask.wantsAutomap() {
		return value.FromZ(kernel(scalarsOf(args))), nil
	}

	allScalar := true
	shapes := make([]shape, len(args))
	for i, a := range args {
		if mask[i] == RankAsIs {
			shapes[i] = shapeScalar
			continue
		}
		shapes[i] = shapeOf(a)
		if shapes[i] != shapeScalar {
			allScalar = false
		}
	}
	if allScalar {
		return value.FromZ(kernel(scalarsOf(args))), nil
	}

	length := -1
	for i, s := range shapes {
		if s != shapeFiniteList {
			continue
		}
		n, err := args[i].Obj.(*slist.List).Length(th)
		if err != nil {
			return value.V{}, err
		}
		if length == -1 || n < length {
			length = n
		}
	}
	if length == -1 {
		// Every automapped argument is an infinite list: produce an
		// infinite lazy result (EachOp), never resolved eagerly.
		return newEachOp(mask, kernel, args), nil
	}

	out := make([]value.Z, length)
	cursors := make([]cursorLike, len(args))
	for i, a := range args {
		cursors[i] = newCursorLike(a)
	}
	scratch := make([]value.Z, len(args))
	for i := 0; i < length; i++ {
		for j := range cursors {
			scratch[j] = cursors[j].next(th)
		}
		out[i] = kernel(scratch)
	}
	return value.FromObject(slist.FromArrayZ(out)), nil
}

func scalarsOf(args []value.V) []value.Z {
	out := make([]value.Z, len(args))
	for i, a := range args {
		out[i] = a.AsFloat()
	}
	return out
}

// cursorLike advances a per-argument view for the fixed-length automap
// loop: a scalar repeats forever; a list-backed argument pulls one
// element at a time (broadcast is not cyclic, so a list shorter than the
// target length would run dry — callers only reach this path once length
// has already been bounded by the shortest finite list, per §4.11).
type cursorLike struct {
	scalar bool
	z      value.Z
	list   *slist.List
	block  []value.Z
	offset int
}

func newCursorLike(v value.V) cursorLike {
	if l, ok := v.Obj.(*slist.List); ok {
		return cursorLike{list: l}
	}
	return cursorLike{scalar: true, z: v.AsFloat()}
}

func (c *cursorLike) next(th value.Thread) value.Z {
	if c.scalar {
		return c.z
	}
	for c.offset >= len(c.block) {
		if c.list == nil {
			return 0
		}
		if err := c.list.Force(th); err != nil {
			return 0
		}
		if c.list.IsEnd() {
			return 0
		}
		c.block = c.list.HeadZ()
		c.offset = 0
		c.list = c.list.Next()
	}
	z := c.block[c.offset]
	c.offset++
	return z
}

// EachOp is the wrapper record produced when at least one automapped
// argument is an infinite stream: it walks the outer structure by pulling
// one element from each streamed argument per block and applying kernel,
// per §4.11. It is realized immediately as an infinite lazy List so the
// rest of the system treats its result exactly like any other stream.
type EachOp struct {
	mask   Mask
	kernel Kernel
	args   []value.V
}

func newEachOp(mask Mask, kernel Kernel, args []value.V) value.V {
	e := &EachOp{mask: mask, kernel: kernel, args: append([]value.V(nil), args...)}
	for i := range e.args {
		e.args[i] = e.args[i].Retain()
	}
	cursors := make([]cursorLike, len(e.args))
	for i, a := range e.args {
		cursors[i] = newCursorLike(a)
	}
	l := slist.FromGen(slist.ElemZ, &eachOpGen{e: e, cursors: cursors})
	return value.FromObject(l)
}

const blockSize = 64

type eachOpGen struct {
	e       *EachOp
	cursors []cursorLike
	list    *slist.List
}

func (g *eachOpGen) SetList(l *slist.List) { g.list = l }
func (g *eachOpGen) Done() bool            { return false }
func (g *eachOpGen) Finite() bool          { return false }

func (g *eachOpGen) Pull(th value.Thread) error {
	scratch := make([]value.Z, len(g.cursors))
	out := make([]value.Z, blockSize)
	for i := 0; i < blockSize; i++ {
		for j := range g.cursors {
			scratch[j] = g.cursors[j].next(th)
		}
		out[i] = g.e.kernel(scratch)
	}
	cont := slist.FromGen(slist.ElemZ, &eachOpGen{e: g.e, cursors: g.cursors})
	g.list.FillZ(out, cont)
	return nil
}
