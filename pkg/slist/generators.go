package slist

import "github.com/sapf-lang/sapf/pkg/value"

// concatGen lazily appends a fixed queue of upstream lists end to end.
type concatGen struct {
	kind   ElemKind
	rest   []*List
	done   bool
	list   *List // non-owning back-pointer, see design notes
	finite bool
}

// Concat lazily appends lists in order; the result is finite iff every
// input is finite.
func Concat(kind ElemKind, lists ...*List) *List {
	finite := true
	for _, l := range lists {
		if !l.Finite() {
			finite = false
		}
	}
	g := &concatGen{kind: kind, rest: append([]*List(nil), lists...), finite: finite}
	return FromGen(kind, g)
}

func (g *concatGen) SetList(l *List) { g.list = l }
func (g *concatGen) Done() bool      { return g.done }
func (g *concatGen) Finite() bool    { return g.finite }

// Pull advances through g.rest one source list at a time, re-emitting
// each source's current block and re-queuing its continuation ahead of
// the remaining sources.
func (g *concatGen) Pull(th value.Thread) error {
	for len(g.rest) > 0 {
		head := g.rest[0]
		if err := head.Force(th); err != nil {
			return err
		}
		if head.IsEnd() {
			g.rest = g.rest[1:]
			continue
		}
		queue := g.rest[1:]
		if head.Next() != nil {
			queue = append([]*List{head.Next()}, queue...)
		}
		if len(queue) == 0 {
			switch g.kind {
			case ElemV:
				g.list.FillV(head.HeadV(), nil)
			default:
				g.list.FillZ(head.HeadZ(), nil)
			}
			g.done = true
			return nil
		}
		cont := &List{kind: g.kind, finite: g.finite}
		nextGen := &concatGen{kind: g.kind, rest: queue, finite: g.finite}
		nextGen.list = cont
		cont.gen = nextGen
		cont.st = stateThunk
		switch g.kind {
		case ElemV:
			g.list.FillV(head.HeadV(), cont)
		default:
			g.list.FillZ(head.HeadZ(), cont)
		}
		return nil
	}
	g.done = true
	return nil
}

// zipGen sums the elementwise Z values of a fixed set of upstream
// streams, terminating as soon as any source ends — the "shortest finite
// length" combination rule of §4.11 applied at the list level.
type zipGen struct {
	sources []*List
	done    bool
	list    *List
	finite  bool
}

// Zip lock-steps N Z-lists and sums them block by block.
func Zip(sources ...*List) *List {
	finite := false
	for _, s := range sources {
		if s.Finite() {
			finite = true
		}
	}
	g := &zipGen{sources: sources, finite: finite}
	return FromGen(ElemZ, g)
}

func (g *zipGen) SetList(l *List) { g.list = l }
func (g *zipGen) Done() bool      { return g.done }
func (g *zipGen) Finite() bool    { return g.finite }

func (g *zipGen) Pull(th value.Thread) error {
	n := -1
	blocks := make([][]value.Z, len(g.sources))
	for i, s := range g.sources {
		if err := s.Force(th); err != nil {
			return err
		}
		if s.IsEnd() {
			g.done = true
			return nil
		}
		blocks[i] = s.HeadZ()
		if n == -1 || len(blocks[i]) < n {
			n = len(blocks[i])
		}
	}
	if n <= 0 {
		g.done = true
		return nil
	}
	out := make([]value.Z, n)
	for i := 0; i < n; i++ {
		var sum value.Z
		for _, b := range blocks {
			sum += b[i]
		}
		out[i] = sum
	}
	nexts := make([]*List, len(g.sources))
	for i, s := range g.sources {
		nexts[i] = s.Next()
		if nexts[i] == nil {
			g.list.FillZ(out, nil)
			return nil
		}
	}
	cont := &List{kind: ElemZ, finite: g.finite}
	nextGen := &zipGen{sources: nexts, finite: g.finite}
	nextGen.list = cont
	cont.gen = nextGen
	cont.st = stateThunk
	g.list.FillZ(out, cont)
	return nil
}
