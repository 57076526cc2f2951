package ops

import (
	"github.com/sapf-lang/sapf/pkg/slist"
	"github.com/sapf-lang/sapf/pkg/value"
	"github.com/sapf-lang/sapf/pkg/verr"
)

// Reduce folds a list with kernel and an initial accumulator. Reductions
// on infinite streams fail with IndefiniteOperation, per §4.12/§7.
func Reduce(th value.Thread, l *slist.List, init value.Z, kernel func(acc, x value.Z) value.Z) (value.Z, error) {
	if !l.Finite() {
		return 0, verr.New(verr.IndefiniteOperation, "reduce over an infinite stream")
	}
	acc := init
	cur := l
	for cur != nil {
		if err := cur.Force(th); err != nil {
			return 0, err
		}
		if cur.IsEnd() {
			break
		}
		for _, z := range cur.HeadZ() {
			acc = kernel(acc, z)
		}
		cur = cur.Next()
	}
	return acc, nil
}

// Scan returns the prefix-scan of l with kernel and init. Scans on
// infinite streams return an infinite lazy list rather than failing,
// per the design's resolved Open Question.
func Scan(l *slist.List, init value.Z, kernel func(acc, x value.Z) value.Z) *slist.List {
	l.Retain()
	g := &scanGen{src: l, acc: init, kernel: kernel, finite: l.Finite()}
	return slist.FromGen(slist.ElemZ, g)
}

type scanGen struct {
	src    *slist.List
	acc    value.Z
	kernel func(acc, x value.Z) value.Z
	list   *slist.List
	finite bool
}

func (g *scanGen) SetList(l *slist.List) { g.list = l }
func (g *scanGen) Done() bool            { return false }
func (g *scanGen) Finite() bool          { return g.finite }

// Finalize releases the source list Scan retained on construction; see
// combineGen.Finalize for why this Gen owns that reference.
func (g *scanGen) Finalize() { g.src.Release() }

func (g *scanGen) Pull(th value.Thread) error {
	if err := g.src.Force(th); err != nil {
		return err
	}
	if g.src.IsEnd() {
		g.list.FillZ(nil, nil)
		return nil
	}
	block := g.src.HeadZ()
	out := make([]value.Z, len(block))
	acc := g.acc
	for i, z := range block {
		acc = g.kernel(acc, z)
		out[i] = acc
	}
	var cont *slist.List
	if next := g.src.Next(); next != nil {
		cont = Scan(next, acc, g.kernel)
	}
	g.list.FillZ(out, cont)
	return nil
}

// Pairs returns a list of kernel(l[i], l[i+1]) for consecutive elements.
// Like Scan, Pairs on an infinite stream returns an infinite lazy list
// rather than a terminal checkpoint.
func Pairs(l *slist.List, kernel func(a, b value.Z) value.Z) *slist.List {
	return newPairs(l, kernel, 0, false)
}

func newPairs(l *slist.List, kernel func(a, b value.Z) value.Z, prev value.Z, havePrev bool) *slist.List {
	l.Retain()
	g := &pairsGen{src: l, kernel: kernel, prev: prev, havePrev: havePrev, finite: l.Finite()}
	return slist.FromGen(slist.ElemZ, g)
}

type pairsGen struct {
	src      *slist.List
	kernel   func(a, b value.Z) value.Z
	prev     value.Z
	havePrev bool
	list     *slist.List
	finite   bool
}

func (g *pairsGen) SetList(l *slist.List) { g.list = l }
func (g *pairsGen) Done() bool            { return false }
func (g *pairsGen) Finite() bool          { return g.finite }

// Finalize releases the source list Pairs/newPairs retained on
// construction; see combineGen.Finalize for why this Gen owns that
// reference.
func (g *pairsGen) Finalize() { g.src.Release() }

func (g *pairsGen) Pull(th value.Thread) error {
	if err := g.src.Force(th); err != nil {
		return err
	}
	if g.src.IsEnd() {
		g.list.FillZ(nil, nil)
		return nil
	}
	block := g.src.HeadZ()
	out := make([]value.Z, 0, len(block))
	prev := g.prev
	havePrev := g.havePrev
	for _, z := range block {
		if havePrev {
			out = append(out, g.kernel(prev, z))
		}
		prev = z
		havePrev = true
	}
	var cont *slist.List
	if next := g.src.Next(); next != nil {
		cont = newPairs(next, g.kernel, prev, havePrev)
	}
	g.list.FillZ(out, cont)
	return nil
}
