// Package interp implements the stack-machine interpreter (C10): Thread
// holds the evaluation stack, the current frame chain, and the closure/
// environment model; it dispatches the opcode vector defined in
// pkg/bytecode. Frame layout and the CallFrame/Interpreter split follow
// the teacher's vm/interpreter.go.
package interp

import (
	"fmt"

	"math"

	"github.com/google/uuid"

	"github.com/sapf-lang/sapf/pkg/bytecode"
	"github.com/sapf-lang/sapf/pkg/symbol"
	"github.com/sapf-lang/sapf/pkg/table"
	"github.com/sapf-lang/sapf/pkg/value"
	"github.com/sapf-lang/sapf/pkg/varray"
	"github.com/sapf-lang/sapf/pkg/verr"
)

const (
	defaultStackSize = 4096
	maxStackSize     = 1 << 20
)

var errNotAThread = verr.New(verr.Failed, "Apply called with a foreign Thread implementation")

func arityError(name string, want, got int) error {
	return verr.Newf(verr.StackUnderflow, "%s expects %d args, got %d", name, want, got)
}

// Frame is one call's activation record: the frame base pointer into the
// shared stack, the instruction pointer, the running Fun, and its scope,
// matching §4.10's frame-base/local-slot layout.
type Frame struct {
	fun   *Fun
	ip    int
	base  int // index of arg0 in Thread.stack
	scope *table.Form
}

// Thread is the interpreter state described in §3: a value stack, a
// locals frame, the current closure's var vector, the scope chain, a
// sample rate, and the opcode cursor (folded into Frame.ip here).
type Thread struct {
	id         uuid.UUID
	stack      []value.V
	sp         int
	frames     []*Frame
	sampleRate value.Z
	globals    *table.GForm
	dictScope  *table.Form
	symbols    *symbol.Table
}

// NewThread builds a Thread bound to globals for name resolution and
// symbols for interning the string literals baked into compiled Code —
// using the same table the globals were originally bound through is what
// makes a decoded literal's symbol compare equal (by identity) to the key
// it was stored under.
func NewThread(sampleRate value.Z, globals *table.GForm, symbols *symbol.Table) *Thread {
	return &Thread{
		id:         uuid.New(),
		stack:      make([]value.V, defaultStackSize),
		sampleRate: sampleRate,
		globals:    globals,
		symbols:    symbols,
	}
}

func (t *Thread) ID() uuid.UUID   { return t.id }
func (t *Thread) SampleRate() value.Z { return t.sampleRate }

// Push and Pop satisfy value.Thread so Fun/Prim.Apply can operate through
// the interface without importing this package.
func (t *Thread) Push(v value.V) error {
	if t.sp >= maxStackSize {
		return verr.New(verr.StackOverflow, "value stack overflow")
	}
	if t.sp >= len(t.stack) {
		grown := make([]value.V, len(t.stack)*2)
		copy(grown, t.stack)
		t.stack = grown
	}
	t.stack[t.sp] = v.Retain()
	t.sp++
	return nil
}

func (t *Thread) Pop() (value.V, error) {
	if t.sp == 0 {
		return value.V{}, verr.New(verr.StackUnderflow, "value stack underflow")
	}
	t.sp--
	v := t.stack[t.sp]
	t.stack[t.sp] = value.V{}
	return v, nil
}

func (t *Thread) Peek(depthFromTop int) (value.V, error) {
	idx := t.sp - 1 - depthFromTop
	if idx < 0 {
		return value.V{}, verr.New(verr.StackUnderflow, "value stack underflow")
	}
	return t.stack[idx], nil
}

func (t *Thread) currentFrame() *Frame {
	if len(t.frames) == 0 {
		return nil
	}
	return t.frames[len(t.frames)-1]
}

// callFun establishes a new Frame for f, using argc already-pushed
// arguments as the frame base, per the calling convention of §4.10, then
// runs the dispatch loop until that frame returns.
func (t *Thread) callFun(f *Fun, argc int) error {
	if argc != len(f.Def.ArgNames) {
		return arityError(f.Def.Name, len(f.Def.ArgNames), argc)
	}
	base := t.sp - argc
	if base < 0 {
		return verr.New(verr.StackUnderflow, "not enough arguments on stack")
	}
	// Reserve local slots beyond the arguments.
	for i := 0; i < f.Def.NumLocals-argc; i++ {
		if err := t.Push(value.Zero); err != nil {
			return err
		}
	}
	frame := &Frame{fun: f, base: base, scope: f.Parent}
	t.frames = append(t.frames, frame)
	defer func() { t.frames = t.frames[:len(t.frames)-1] }()

	err := t.run(frame)
	if err != nil {
		return err
	}
	return nil
}

// run executes frame's Code from its current ip until Return, per §4.10's
// single dispatch loop over the opcode vector.
func (t *Thread) run(frame *Frame) error {
	code := frame.fun.Def.Code
	instrs := code.Instructions
	for frame.ip < len(instrs) {
		op := bytecode.Opcode(instrs[frame.ip])
		switch op {
		case bytecode.OpPushLiteral:
			idx := int(code.ReadUint16(frame.ip + 1))
			lit, err := code.GetConstant(idx)
			if err != nil {
				return err
			}
			if err := t.Push(t.literalToV(lit)); err != nil {
				return err
			}
			frame.ip += 3

		case bytecode.OpPushScalar:
			bits := beUint64(instrs[frame.ip+1 : frame.ip+9])
			if err := t.Push(value.FromZ(math.Float64frombits(bits))); err != nil {
				return err
			}
			frame.ip += 9

		case bytecode.OpLoadLocal:
			idx := int(code.ReadUint16(frame.ip + 1))
			v := t.stack[frame.base+idx]
			if err := t.Push(v); err != nil {
				return err
			}
			frame.ip += 3

		case bytecode.OpStoreLocal:
			idx := int(code.ReadUint16(frame.ip + 1))
			v, err := t.Pop()
			if err != nil {
				return err
			}
			old := t.stack[frame.base+idx]
			t.stack[frame.base+idx] = v
			old.Release()
			frame.ip += 3

		case bytecode.OpLoadCapture:
			idx := int(code.ReadUint16(frame.ip + 1))
			if idx < 0 || idx >= len(frame.fun.Vars) {
				return verr.OutOfRangef("capture index %d out of range", idx)
			}
			if err := t.Push(frame.fun.Vars[idx]); err != nil {
				return err
			}
			frame.ip += 3

		case bytecode.OpStoreCapture:
			idx := int(code.ReadUint16(frame.ip + 1))
			v, err := t.Pop()
			if err != nil {
				return err
			}
			if idx >= 0 && idx < len(frame.fun.Vars) {
				old := frame.fun.Vars[idx]
				frame.fun.Vars[idx] = v
				old.Release()
			}
			frame.ip += 3

		case bytecode.OpLoadScope:
			idx := int(code.ReadUint16(frame.ip + 1))
			lit, err := code.GetConstant(idx)
			if err != nil {
				return err
			}
			key := symbol.FromString(t.symbols, lit.Str)
			scope := frame.scope
			if scope == nil {
				val, ok := t.globals.Get(key)
				key.Release()
				if !ok {
					return verr.NotFoundf("undefined: %s", lit.Str)
				}
				if err := t.Push(val); err != nil {
					return err
				}
			} else {
				val, err := scope.MustGet(key)
				key.Release()
				if err != nil {
					return err
				}
				if err := t.Push(val); err != nil {
					return err
				}
			}
			frame.ip += 3

		case bytecode.OpStoreScope:
			idx := int(code.ReadUint16(frame.ip + 1))
			lit, err := code.GetConstant(idx)
			if err != nil {
				return err
			}
			v, err := t.Pop()
			if err != nil {
				return err
			}
			t.globals.Set(symbol.FromString(t.symbols, lit.Str), v)
			frame.ip += 3

		case bytecode.OpCall:
			argc := int(instrs[frame.ip+1])
			callee, err := t.Pop()
			if err != nil {
				return err
			}
			applyErr := callee.Apply(t, argc)
			callee.Release()
			if applyErr != nil {
				return applyErr
			}
			frame.ip += 2

		case bytecode.OpApplyPrimitive:
			idx := int(code.ReadUint16(frame.ip + 1))
			lit, err := code.GetConstant(idx)
			if err != nil {
				return err
			}
			key := symbol.FromString(t.symbols, lit.Str)
			v, ok := t.globals.Get(key)
			key.Release()
			if !ok {
				return verr.NotFoundf("undefined primitive: %s", lit.Str)
			}
			prim, ok := v.Obj.(*Prim)
			if !ok {
				return value.WrongTypeErr(v, "Prim")
			}
			if err := prim.Apply(t, prim.Argc); err != nil {
				return err
			}
			frame.ip += 3

		case bytecode.OpReturn:
			return nil

		case bytecode.OpJumpIfFalse:
			cond, err := t.Pop()
			if err != nil {
				return err
			}
			target := int(code.ReadUint16(frame.ip + 1))
			if !truthy(cond) {
				frame.ip = frame.ip + 3 + target
			} else {
				frame.ip += 3
			}
			cond.Release()

		case bytecode.OpJump:
			target := int(code.ReadUint16(frame.ip + 1))
			frame.ip = frame.ip + 3 + target

		case bytecode.OpMakeClosure:
			idx := int(code.ReadUint16(frame.ip + 1))
			if idx < 0 || idx >= len(frame.fun.Def.Nested) {
				return verr.OutOfRangef("nested fundef index %d out of range", idx)
			}
			def := frame.fun.Def.Nested[idx]
			vars := make([]value.V, def.NumVars)
			for i := len(vars) - 1; i >= 0; i-- {
				v, err := t.Pop()
				if err != nil {
					return err
				}
				vars[i] = v
			}
			// NewFun borrows vars (it retains its own copy), so the
			// references this loop popped off the stack are still ours
			// to release once it returns.
			fun := NewFun(def, vars, frame.scope)
			for _, v := range vars {
				v.Release()
			}
			if err := t.Push(value.FromObject(fun)); err != nil {
				return err
			}
			frame.ip += 3

		case bytecode.OpMakeEachOp:
			idx := int(code.ReadUint16(frame.ip + 1))
			lit, err := code.GetConstant(idx)
			if err != nil {
				return err
			}
			callee, err := t.Pop()
			if err != nil {
				return err
			}
			prim, ok := callee.Obj.(*Prim)
			if !ok || prim.ScalarKernel == nil {
				callee.Release()
				return value.WrongTypeErr(callee, "automappable Prim")
			}
			mask, err := maskFromString(lit.Str)
			if err != nil {
				callee.Release()
				return err
			}
			wrapped := newEachOpPrim(prim.Name, mask, prim.ScalarKernel)
			callee.Release()
			if err := t.Push(value.FromObject(wrapped)); err != nil {
				return err
			}
			frame.ip += 3

		case bytecode.OpDictGet:
			key, err := t.Pop()
			if err != nil {
				return err
			}
			recv, err := t.Pop()
			if err != nil {
				key.Release()
				return err
			}
			v, err := recv.MustGet(key)
			key.Release()
			recv.Release()
			if err != nil {
				return err
			}
			if err := t.Push(v); err != nil {
				return err
			}
			frame.ip++

		case bytecode.OpDictSend:
			key, err := t.Pop()
			if err != nil {
				return err
			}
			recv, err := t.Pop()
			if err != nil {
				key.Release()
				return err
			}
			v, err := recv.MustGet(key)
			key.Release()
			recv.Release()
			if err != nil {
				return err
			}
			if err := v.Apply(t, 0); err != nil {
				return err
			}
			frame.ip++

		case bytecode.OpDup:
			v, err := t.Peek(0)
			if err != nil {
				return err
			}
			if err := t.Push(v); err != nil {
				return err
			}
			frame.ip++

		case bytecode.OpSwap:
			a, err := t.Pop()
			if err != nil {
				return err
			}
			b, err := t.Pop()
			if err != nil {
				return err
			}
			if err := t.Push(a); err != nil {
				return err
			}
			if err := t.Push(b); err != nil {
				return err
			}
			a.Release()
			b.Release()
			frame.ip++

		case bytecode.OpDrop:
			v, err := t.Pop()
			if err != nil {
				return err
			}
			v.Release()
			frame.ip++

		case bytecode.OpRotate:
			a, err := t.Pop()
			if err != nil {
				return err
			}
			b, err := t.Pop()
			if err != nil {
				return err
			}
			c, err := t.Pop()
			if err != nil {
				return err
			}
			if err := t.Push(b); err != nil {
				return err
			}
			if err := t.Push(a); err != nil {
				return err
			}
			if err := t.Push(c); err != nil {
				return err
			}
			a.Release()
			b.Release()
			c.Release()
			frame.ip++

		case bytecode.OpMakeArray:
			n := int(code.ReadUint16(frame.ip + 1))
			elems := make([]value.V, n)
			for i := n - 1; i >= 0; i-- {
				v, err := t.Pop()
				if err != nil {
					return err
				}
				elems[i] = v
			}
			// varray.FromSlice retains its own copies, so the elements
			// this loop popped off the stack are released once it returns.
			arr := varray.FromSlice(elems)
			for _, v := range elems {
				v.Release()
			}
			if err := t.Push(value.FromObject(arr)); err != nil {
				return err
			}
			frame.ip += 3

		default:
			return verr.Newf(verr.Failed, "unimplemented opcode %v", op)
		}
	}
	return nil
}

func truthy(v value.V) bool {
	if v.Obj == nil {
		return v.Num != 0
	}
	return true
}

func (t *Thread) literalToV(lit bytecode.Literal) value.V {
	switch lit.Kind {
	case bytecode.LitScalar:
		return value.FromZ(lit.Num)
	case bytecode.LitString:
		return symbol.FromString(t.symbols, lit.Str)
	default:
		return value.FromZ(0)
	}
}

func beUint64(b []byte) uint64 {
	var x uint64
	for _, c := range b {
		x = x<<8 | uint64(c)
	}
	return x
}

// Run applies fn (with no arguments) to completion, catching an
// unexpected fault at the top-level frame boundary and converting it into
// a Failed-kind error rather than propagating a Go panic, per §7.
func (t *Thread) Run(fn *Fun) (results []value.V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = verr.Newf(verr.Failed, "internal fault: %v", r)
		}
	}()
	base := t.sp
	if applyErr := fn.Apply(t, 0); applyErr != nil {
		return nil, applyErr
	}
	n := fn.Def.NumLeaves
	if n <= 0 {
		n = t.sp - base
	}
	out := make([]value.V, 0, n)
	for i := 0; i < n; i++ {
		v, popErr := t.Pop()
		if popErr != nil {
			break
		}
		out = append(out, v)
	}
	// results were popped in reverse order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (t *Thread) String() string {
	return fmt.Sprintf("Thread(%s)", t.id)
}
