// Package cursor implements the uniform block-pull adapters over
// constants and lists (C7): ZIn, VIn, BothIn. Each is stack-allocated:
// held by value inside generator closures, never boxed onto the heap by
// this package itself.
package cursor

import (
	"github.com/sapf-lang/sapf/pkg/slist"
	"github.com/sapf-lang/sapf/pkg/value"
)

// ZIn is a cursor over a scalar-valued source: either a repeated
// constant, or a strong reference to a List plus an offset into its head
// array.
type ZIn struct {
	constant bool
	c        value.Z
	list     *slist.List
	offset   int
}

// ConstZIn builds a cursor that repeats c forever.
func ConstZIn(c value.Z) ZIn { return ZIn{constant: true, c: c} }

// ListZIn builds a cursor over a Z-element list, retaining it for the
// cursor's lifetime.
func ListZIn(l *slist.List) ZIn {
	l.Retain()
	return ZIn{list: l}
}

// Release drops the cursor's hold on its backing list, if any.
func (z *ZIn) Release() {
	if z.list != nil {
		z.list.Release()
		z.list = nil
	}
}

// Clone returns an independent copy of z, retaining its own reference to
// the backing list (if any) so the copy can be advanced separately from
// z without the two interfering with each other's Release calls. Used by
// pkg/cell.ZPlug.Get to hand callers a cursor they own outright rather
// than one that aliases the Plug's internal state.
func (z ZIn) Clone() ZIn {
	if z.list != nil {
		z.list.Retain()
	}
	return z
}

// FromV adapts a scalar or List-shaped V into a ZIn: a List becomes a
// live pulled cursor over its elements, a bare scalar becomes a
// constant-valued one. This is the standard way a lazy result becomes an
// audio-rate source, per §4.7/§6.2.
func FromV(v value.V) ZIn {
	if l, ok := v.Obj.(*slist.List); ok {
		return ListZIn(l)
	}
	return ConstZIn(v.AsFloat())
}

// Fill fills up to n scalar samples into out at the given stride,
// returning whether the stream is now done and updating n to the number
// actually produced. Short fills are legal at block boundaries, per
// §4.7.
func (z *ZIn) Fill(th value.Thread, n *int, out []value.Z, stride int) (bool, error) {
	if z.constant {
		count := *n
		for i := 0; i < count; i++ {
			out[i*stride] = z.c
		}
		return false, nil
	}
	produced := 0
	want := *n
	for produced < want {
		if z.list == nil {
			*n = produced
			return true, nil
		}
		if err := z.list.Force(th); err != nil {
			return false, err
		}
		if z.list.IsEnd() {
			old := z.list
			z.list = nil
			old.Release()
			*n = produced
			return true, nil
		}
		head := z.list.HeadZ()
		avail := len(head) - z.offset
		if avail <= 0 {
			next := z.list.Next()
			if next != nil {
				next.Retain()
			}
			z.list.Release()
			z.list = next
			z.offset = 0
			continue
		}
		take := want - produced
		if take > avail {
			take = avail
		}
		for i := 0; i < take; i++ {
			out[(produced+i)*stride] = head[z.offset+i]
		}
		produced += take
		z.offset += take
	}
	*n = produced
	return false, nil
}

// One pulls a single scalar element, returning the done flag.
func (z *ZIn) One(th value.Thread) (value.Z, bool, error) {
	n := 1
	var out [1]value.Z
	done, err := z.Fill(th, &n, out[:], 1)
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		return 0, true, nil
	}
	return out[0], done && n == 0, nil
}

// Link replaces the cursor's current list with l, preserving cursor
// state semantics (offset reset, since l is a different spine).
func (z *ZIn) Link(l *slist.List) {
	z.Release()
	if l != nil {
		l.Retain()
	}
	z.list = l
	z.offset = 0
	z.constant = false
}

// VIn is the V-valued counterpart of ZIn.
type VIn struct {
	constant bool
	c        value.V
	list     *slist.List
	offset   int
}

func ConstVIn(c value.V) VIn { return VIn{constant: true, c: c.Retain()} }

func ListVIn(l *slist.List) VIn {
	l.Retain()
	return VIn{list: l}
}

func (v *VIn) Release() {
	if v.constant {
		v.c.Release()
	}
	if v.list != nil {
		v.list.Release()
		v.list = nil
	}
}

func (v *VIn) Fill(th value.Thread, n *int, out []value.V, stride int) (bool, error) {
	if v.constant {
		count := *n
		for i := 0; i < count; i++ {
			out[i*stride] = v.c
		}
		return false, nil
	}
	produced := 0
	want := *n
	for produced < want {
		if v.list == nil {
			*n = produced
			return true, nil
		}
		if err := v.list.Force(th); err != nil {
			return false, err
		}
		if v.list.IsEnd() {
			old := v.list
			v.list = nil
			old.Release()
			*n = produced
			return true, nil
		}
		head := v.list.HeadV()
		avail := len(head) - v.offset
		if avail <= 0 {
			next := v.list.Next()
			if next != nil {
				next.Retain()
			}
			v.list.Release()
			v.list = next
			v.offset = 0
			continue
		}
		take := want - produced
		if take > avail {
			take = avail
		}
		for i := 0; i < take; i++ {
			out[(produced+i)*stride] = head[v.offset+i]
		}
		produced += take
		v.offset += take
	}
	*n = produced
	return false, nil
}

func (v *VIn) One(th value.Thread) (value.V, bool, error) {
	n := 1
	out := make([]value.V, 1)
	done, err := v.Fill(th, &n, out, 1)
	if err != nil {
		return value.V{}, false, err
	}
	if n == 0 {
		return value.V{}, true, nil
	}
	return out[0], done && n == 0, nil
}

func (v *VIn) Link(l *slist.List) {
	v.Release()
	if l != nil {
		l.Retain()
	}
	v.list = l
	v.offset = 0
	v.constant = false
}

// BothIn pairs a ZIn and a VIn advancing together, used by operators that
// need both a scalar view and a value view of the same conceptual source
// (e.g. a control-rate V-tagged stream also read at audio rate).
type BothIn struct {
	Z ZIn
	V VIn
}

func (b *BothIn) Release() {
	b.Z.Release()
	b.V.Release()
}
