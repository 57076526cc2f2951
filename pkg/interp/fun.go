package interp

import (
	"github.com/sapf-lang/sapf/pkg/automap"
	"github.com/sapf-lang/sapf/pkg/bytecode"
	"github.com/sapf-lang/sapf/pkg/table"
	"github.com/sapf-lang/sapf/pkg/value"
	"github.com/sapf-lang/sapf/pkg/verr"
)

// FunDef owns the compiled Code plus the arity metadata needed for quick
// frame setup: argument names, local slot count, captured-var count, and
// return count (§3).
type FunDef struct {
	value.RefCounted
	Code      *bytecode.Code
	ArgNames  []string
	NumLocals int
	NumVars   int
	NumLeaves int
	Help      string
	Name      string
	// Nested holds the FunDefs for closures literally created inside
	// this function's body; OpMakeClosure indexes into it.
	Nested []*FunDef
}

func (f *FunDef) Kind() value.Kind { return value.KindFunDef }
func (f *FunDef) Print() string    { return "FunDef(" + f.Name + ")" }

// Fun is a runtime closure: a reference to its FunDef, captured variable
// values, and a pointer to its lexical parent scope, per §3.
type Fun struct {
	value.RefCounted
	Def    *FunDef
	Vars   []value.V
	Parent *table.Form
}

func NewFun(def *FunDef, vars []value.V, parent *table.Form) *Fun {
	def.Retain()
	if parent != nil {
		parent.Retain()
	}
	vv := append([]value.V(nil), vars...)
	for i := range vv {
		vv[i] = vv[i].Retain()
	}
	return &Fun{Def: def, Vars: vv, Parent: parent}
}

func (f *Fun) Kind() value.Kind { return value.KindFun }
func (f *Fun) Print() string    { return "Fun(" + f.Def.Name + ")" }

func (f *Fun) Finalize() {
	f.Def.Release()
	if f.Parent != nil {
		f.Parent.Release()
	}
	for _, v := range f.Vars {
		v.Release()
	}
}

// Apply runs f's body on th with argc arguments already pushed, per the
// calling convention of §4.10.
func (f *Fun) Apply(th value.Thread, argc int) error {
	real, ok := th.(*Thread)
	if !ok {
		return errNotAThread
	}
	return real.callFun(f, argc)
}

// PrimFn is a built-in implemented in Go rather than compiled Code.
type PrimFn func(th *Thread) error

// Prim is a built-in callable: a name (for error messages) and a Go
// function implementing it, applied via OpApplyPrimitive. A Prim whose
// underlying operation is a plain scalar-in-scalar-out kernel also carries
// ScalarKernel and DefaultMask, letting OpMakeEachOp (§4.11) wrap it in an
// EachOpPrim under an explicit automap mask.
type Prim struct {
	value.RefCounted
	Name         string
	Argc         int
	Fn           PrimFn
	ScalarKernel automap.Kernel
	DefaultMask  automap.Mask
}

func NewPrim(name string, argc int, fn PrimFn) *Prim {
	return &Prim{Name: name, Argc: argc, Fn: fn}
}

// NewAutomapPrim builds a Prim whose Fn automaps kernel across mask before
// ever being explicitly wrapped, and which also exposes kernel/mask for
// OpMakeEachOp to rewrap under a different mask.
func NewAutomapPrim(name string, mask automap.Mask, kernel automap.Kernel) *Prim {
	p := &Prim{Name: name, Argc: len(mask), ScalarKernel: kernel, DefaultMask: mask}
	p.Fn = func(th *Thread) error {
		args := make([]value.V, p.Argc)
		for i := p.Argc - 1; i >= 0; i-- {
			v, err := th.Pop()
			if err != nil {
				return err
			}
			args[i] = v
		}
		result, err := automap.Invoke(th, mask, kernel, args)
		for _, a := range args {
			a.Release()
		}
		if err != nil {
			return err
		}
		return th.Push(result)
	}
	return p
}

func (p *Prim) Kind() value.Kind { return value.KindPrim }
func (p *Prim) Print() string    { return "Prim(" + p.Name + ")" }

func (p *Prim) Apply(th value.Thread, argc int) error {
	real, ok := th.(*Thread)
	if !ok {
		return errNotAThread
	}
	if argc != p.Argc {
		return arityError(p.Name, p.Argc, argc)
	}
	return p.Fn(real)
}

// EachOpPrim is the runtime value OpMakeEachOp produces: a scalar kernel
// rebound to an explicit automap mask, per §4.11's wrapper-creation
// opcode. Unlike a Prim built by NewAutomapPrim, its mask is chosen at
// each-op-creation time rather than fixed at registration time.
type EachOpPrim struct {
	value.RefCounted
	Name   string
	Mask   automap.Mask
	Kernel automap.Kernel
}

func newEachOpPrim(name string, mask automap.Mask, kernel automap.Kernel) *EachOpPrim {
	return &EachOpPrim{Name: name, Mask: mask, Kernel: kernel}
}

func (e *EachOpPrim) Kind() value.Kind { return value.KindEachOp }
func (e *EachOpPrim) Print() string    { return "EachOp(" + e.Name + ")" }

func (e *EachOpPrim) Apply(th value.Thread, argc int) error {
	if argc != len(e.Mask) {
		return arityError(e.Name, len(e.Mask), argc)
	}
	args := make([]value.V, argc)
	for i := argc - 1; i >= 0; i-- {
		v, err := th.Pop()
		if err != nil {
			return err
		}
		args[i] = v
	}
	result, err := automap.Invoke(th, e.Mask, e.Kernel, args)
	for _, a := range args {
		a.Release()
	}
	if err != nil {
		return err
	}
	return th.Push(result)
}

func maskFromString(s string) (automap.Mask, error) {
	mask := make(automap.Mask, len(s))
	for i, c := range s {
		switch c {
		case 'a':
			mask[i] = automap.RankAsIs
		case 'z':
			mask[i] = automap.RankAutoStream
		case 'k':
			mask[i] = automap.RankAutoAll
		default:
			return nil, verr.Newf(verr.Failed, "invalid automap rank %q", c)
		}
	}
	return mask, nil
}
