package interp

import (
	"github.com/sapf-lang/sapf/pkg/automap"
	"github.com/sapf-lang/sapf/pkg/cell"
	"github.com/sapf-lang/sapf/pkg/cursor"
	"github.com/sapf-lang/sapf/pkg/midi"
	"github.com/sapf-lang/sapf/pkg/ops"
	"github.com/sapf-lang/sapf/pkg/slist"
	"github.com/sapf-lang/sapf/pkg/symbol"
	"github.com/sapf-lang/sapf/pkg/table"
	"github.com/sapf-lang/sapf/pkg/value"
	"github.com/sapf-lang/sapf/pkg/varray"
	"github.com/sapf-lang/sapf/pkg/verr"
)

// Install binds the standard primitive library into globals, the way the
// teacher's runtime bootstraps its builtin table before handing control to
// the REPL. Every entry here is reachable through OpApplyPrimitive/OpCall,
// so the operator-dispatch (C12), automap (C11), and cell (C8) packages are
// exercised by a running program rather than only by their own unit tests.
// midiState may be nil (e.g. in tests that never touch MIDI), in which
// case the midiCC primitive is simply not bound.
func Install(globals *table.GForm, symbols *symbol.Table, midiState *midi.State) {
	bind := func(name string, argc int, fn PrimFn) {
		globals.Set(symbol.FromString(symbols, name), value.FromObject(NewPrim(name, argc, fn)))
	}
	bindAutomap := func(name string, mask automap.Mask, kernel automap.Kernel) {
		globals.Set(symbol.FromString(symbols, name), value.FromObject(NewAutomapPrim(name, mask, kernel)))
	}

	binOp := func(name string, op ops.BinaryOp) {
		bind(name, 2, func(th *Thread) error {
			b, err := th.Pop()
			if err != nil {
				return err
			}
			a, err := th.Pop()
			if err != nil {
				b.Release()
				return err
			}
			result, err := ops.Binary(op, a, b)
			a.Release()
			b.Release()
			if err != nil {
				return err
			}
			pushErr := th.Push(result)
			result.Release()
			return pushErr
		})
	}
	binOp("+", ops.BinaryAdd)
	binOp("-", ops.BinarySub)
	binOp("*", ops.BinaryMul)
	binOp("/", ops.BinaryDiv)
	binOp("mod", ops.BinaryMod)
	binOp("min", ops.BinaryMin)
	binOp("max", ops.BinaryMax)

	unOp := func(name string, op ops.UnaryOp) {
		bind(name, 1, func(th *Thread) error {
			a, err := th.Pop()
			if err != nil {
				return err
			}
			result, err := ops.Unary(op, a)
			a.Release()
			if err != nil {
				return err
			}
			pushErr := th.Push(result)
			result.Release()
			return pushErr
		})
	}
	unOp("neg", ops.UnaryNeg)
	unOp("abs", ops.UnaryAbs)
	unOp("sqrt", ops.UnarySqrt)
	unOp("recip", ops.UnaryReciprocal)

	// clip is a 3-ary scalar kernel, which ops.Binary's double-dispatch
	// can't express (it only ever combines two operands) — automap's
	// N-ary Mask/Kernel machinery is what makes an arity-3 primitive
	// automap over list-shaped arguments at all, per §4.11.
	bindAutomap("clip", automap.Mask{automap.RankAutoStream, automap.RankAutoStream, automap.RankAutoStream},
		func(args []value.Z) value.Z {
			v, lo, hi := args[0], args[1], args[2]
			if v < lo {
				return lo
			}
			if v > hi {
				return hi
			}
			return v
		})

	// sum/integrate/delta wire pkg/ops's Reduce/Scan/Pairs combinators
	// into real, callable primitives over finite and infinite lists.
	addKernel := func(acc, x value.Z) value.Z { return acc + x }
	bind("sum", 1, func(th *Thread) error {
		v, err := th.Pop()
		if err != nil {
			return err
		}
		l, ok := v.Obj.(*slist.List)
		if !ok {
			v.Release()
			return value.WrongTypeErr(v, "List")
		}
		result, err := ops.Reduce(th, l, 0, addKernel)
		v.Release()
		if err != nil {
			return err
		}
		return th.Push(value.FromZ(result))
	})
	bind("integrate", 1, func(th *Thread) error {
		v, err := th.Pop()
		if err != nil {
			return err
		}
		l, ok := v.Obj.(*slist.List)
		if !ok {
			v.Release()
			return value.WrongTypeErr(v, "List")
		}
		result := ops.Scan(l, 0, addKernel)
		v.Release()
		out := value.FromObject(result)
		pushErr := th.Push(out)
		out.Release()
		return pushErr
	})
	bind("delta", 1, func(th *Thread) error {
		v, err := th.Pop()
		if err != nil {
			return err
		}
		l, ok := v.Obj.(*slist.List)
		if !ok {
			v.Release()
			return value.WrongTypeErr(v, "List")
		}
		result := ops.Pairs(l, func(a, b value.Z) value.Z { return b - a })
		v.Release()
		out := value.FromObject(result)
		pushErr := th.Push(out)
		out.Release()
		return pushErr
	})

	// ref/deref/setRef are the only production call sites that ever
	// construct a pkg/cell.Ref, per §4.8.
	bind("ref", 1, func(th *Thread) error {
		v, err := th.Pop()
		if err != nil {
			return err
		}
		r := cell.NewRef(v)
		v.Release()
		out := value.FromObject(r)
		pushErr := th.Push(out)
		out.Release()
		return pushErr
	})
	bind("deref", 1, func(th *Thread) error {
		v, err := th.Pop()
		if err != nil {
			return err
		}
		r, ok := v.Obj.(*cell.Ref)
		if !ok {
			v.Release()
			return value.WrongTypeErr(v, "Ref")
		}
		result := r.Deref()
		v.Release()
		pushErr := th.Push(result)
		result.Release()
		return pushErr
	})
	bind("setRef", 2, func(th *Thread) error {
		newVal, err := th.Pop()
		if err != nil {
			return err
		}
		v, err := th.Pop()
		if err != nil {
			newVal.Release()
			return err
		}
		r, ok := v.Obj.(*cell.Ref)
		if !ok {
			v.Release()
			newVal.Release()
			return value.WrongTypeErr(v, "Ref")
		}
		r.Set(newVal)
		v.Release()
		newVal.Release()
		return nil
	})

	// at/wrapAt/clipAt/foldAt expose §4.5's four read policies. value.V.At
	// (etc.) only dispatch to value.Indexable, which *slist.List cannot
	// satisfy directly — the four policy methods take no Thread, but a
	// List can only be read by forcing its spine, which does. So a List
	// argument here is packed against th first and the policy is applied
	// to the resulting flat, already-Indexable varray.Array; scalars and
	// Arrays fall straight through value.V.At untouched.
	index := func(name string, do func(v value.V, i int) (value.V, error)) {
		bind(name, 2, func(th *Thread) error {
			idxV, err := th.Pop()
			if err != nil {
				return err
			}
			i := int(idxV.AsFloat())
			idxV.Release()

			container, err := th.Pop()
			if err != nil {
				return err
			}
			target := container
			if l, ok := container.Obj.(*slist.List); ok {
				if !l.Finite() {
					container.Release()
					return verr.New(verr.IndefiniteOperation, name+" over an infinite stream")
				}
				n, err := l.Length(th)
				if err != nil {
					container.Release()
					return err
				}
				forced, err := l.Pack(th, n)
				if err != nil {
					container.Release()
					return err
				}
				forcedV := value.FromObject(forced)
				target = value.FromObject(listToArray(forced))
				forcedV.Release()
			}
			result, err := do(target, i)
			if target.Obj != container.Obj {
				target.Release()
			}
			container.Release()
			if err != nil {
				return err
			}
			return th.Push(result)
		})
	}
	index("at", func(v value.V, i int) (value.V, error) { return v.At(i) })
	index("wrapAt", func(v value.V, i int) (value.V, error) { return v.WrapAt(i), nil })
	index("clipAt", func(v value.V, i int) (value.V, error) { return v.ClipAt(i), nil })
	index("foldAt", func(v value.V, i int) (value.V, error) { return v.FoldAt(i), nil })

	// zplug/replug are the only production call sites that construct or
	// mutate a pkg/cell.ZPlug, giving §4.8's "swap a running audio
	// source's input live" behavior an actual primitive pair rather than
	// a component only its own unit test touches. Engine.Play adopts a
	// ZPlug leaf as a live-swappable output channel (audio/driver.go's
	// Player.Plug); replug is how a later call changes what that channel
	// is currently playing.
	bind("zplug", 1, func(th *Thread) error {
		v, err := th.Pop()
		if err != nil {
			return err
		}
		zin := cursor.FromV(v)
		v.Release()
		p := cell.NewZPlug(zin)
		out := value.FromObject(p)
		pushErr := th.Push(out)
		out.Release()
		return pushErr
	})
	bind("replug", 2, func(th *Thread) error {
		newVal, err := th.Pop()
		if err != nil {
			return err
		}
		v, err := th.Pop()
		if err != nil {
			newVal.Release()
			return err
		}
		p, ok := v.Obj.(*cell.ZPlug)
		if !ok {
			v.Release()
			newVal.Release()
			return value.WrongTypeErr(v, "ZPlug")
		}
		zin := cursor.FromV(newVal)
		newVal.Release()
		p.Set(zin)
		v.Release()
		return nil
	})

	// midiCC exposes one ChannelState.CC slot as an infinite, lag-smoothed
	// audio-rate stream, per §6.3's "read lock-free at audio rate" clause.
	// It is the only production reader of ChannelState's atomic fields
	// outside Router.Route's writer side.
	if midiState != nil {
		bind("midiCC", 4, func(th *Thread) error {
			lagV, err := th.Pop()
			if err != nil {
				return err
			}
			ccV, err := th.Pop()
			if err != nil {
				lagV.Release()
				return err
			}
			chV, err := th.Pop()
			if err != nil {
				lagV.Release()
				ccV.Release()
				return err
			}
			portV, err := th.Pop()
			if err != nil {
				lagV.Release()
				ccV.Release()
				chV.Release()
				return err
			}
			port := int(portV.AsFloat())
			channel := int(chV.AsFloat())
			cc := int(ccV.AsFloat())
			lag := lagV.AsFloat()
			portV.Release()
			chV.Release()
			ccV.Release()
			lagV.Release()

			cs := midiState.Channel(port, channel)
			if cs == nil {
				return verr.OutOfRangef("midiCC: no such port/channel %d/%d", port, channel)
			}
			if cc < 0 || cc >= 128 {
				return verr.OutOfRangef("midiCC: cc index %d out of [0,128)", cc)
			}
			stream := midi.NewCCStream(cs.CC[cc].Load, lag, th.SampleRate())
			out := value.FromObject(stream)
			pushErr := th.Push(out)
			out.Release()
			return pushErr
		})
	}
}

// listToArray flattens an already-Pack'd (single-cell, fully filled) List
// into an Array, letting the index primitives reuse Array's four read
// policies instead of duplicating them for List's dual V/Z storage.
func listToArray(l *slist.List) *varray.Array {
	if l.ElemKind() == slist.ElemV {
		return varray.FromSlice(l.HeadV())
	}
	zs := l.HeadZ()
	vs := make([]value.V, len(zs))
	for i, z := range zs {
		vs[i] = value.FromZ(z)
	}
	return varray.FromSlice(vs)
}
