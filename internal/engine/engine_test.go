package engine

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/sapf-lang/sapf/internal/config"
	"github.com/sapf-lang/sapf/pkg/bytecode"
	"github.com/sapf-lang/sapf/pkg/interp"
	"github.com/sapf-lang/sapf/pkg/verr"
)

func testConfig(t *testing.T, channelCap int) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.LogFile = filepath.Join(dir, "sapf.log")
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.ChannelCap = channelCap
	return cfg
}

func newTestEngine(t *testing.T, channelCap int) *Engine {
	t.Helper()
	e, err := New(testConfig(t, channelCap))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := e.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown: %v", err)
		}
	})
	return e
}

func f64Bytes(z float64) []byte {
	bits := math.Float64bits(z)
	return []byte{
		byte(bits >> 56), byte(bits >> 48), byte(bits >> 40), byte(bits >> 32),
		byte(bits >> 24), byte(bits >> 16), byte(bits >> 8), byte(bits),
	}
}

// buildArrayFun compiles pushing len(vals) scalars and packing them with
// OpMakeArray, the equivalent of `[v0 v1 ...]` — the §6.2 "finite VList of
// channels" case.
func buildArrayFun(vals []float64) *interp.Fun {
	code := bytecode.NewCode()
	for _, v := range vals {
		code.Emit(bytecode.OpPushScalar)
		code.Instructions = append(code.Instructions, f64Bytes(v)...)
	}
	code.EmitWithOperand(bytecode.OpMakeArray, uint16(len(vals)))
	code.Emit(bytecode.OpReturn)
	def := &interp.FunDef{Code: code, NumLeaves: 1, Name: "channelArray"}
	return interp.NewFun(def, nil, nil)
}

func TestPlayExpandsFiniteVListIntoOneChannelPerElement(t *testing.T) {
	e := newTestEngine(t, 32)
	fn := buildArrayFun([]float64{1, 2, 3})

	p, err := e.Play(fn)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Channels) != 3 {
		t.Fatalf("channels = %d, want 3", len(p.Channels))
	}
}

func TestPlayRejectsChannelCountOverCap(t *testing.T) {
	e := newTestEngine(t, 2)
	fn := buildArrayFun([]float64{1, 2, 3})

	if _, err := e.Play(fn); err == nil {
		t.Fatal("expected an error for a channel count over the configured cap")
	} else if verr.KindOf(err) != verr.OutOfRange {
		t.Fatalf("error kind = %v, want OutOfRange", verr.KindOf(err))
	}
}

// buildSingleZListArrayFun compiles `0 0 1 0 midiCC`: a bare indefinite
// ElemZ List, which is not itself the §6.2 multi-channel case (only a
// bare Array/finite-ElemV-List is) — this proves an indefinite ZList is
// left alone as one channel rather than triggering the indefinite-VList
// rejection meant for a top-level indefinite ElemV List.
func buildSingleZListArrayFun() *interp.Fun {
	code := bytecode.NewCode()
	push := func(z float64) {
		code.Emit(bytecode.OpPushScalar)
		code.Instructions = append(code.Instructions, f64Bytes(z)...)
	}
	push(0)
	push(0)
	push(1)
	push(0)
	idx := code.AddConstant(bytecode.Literal{Kind: bytecode.LitString, Str: "midiCC"})
	code.Instructions = append(code.Instructions, byte(bytecode.OpApplyPrimitive), byte(idx>>8), byte(idx))
	code.Emit(bytecode.OpReturn)
	def := &interp.FunDef{Code: code, NumLeaves: 1, Name: "singleZList"}
	return interp.NewFun(def, nil, nil)
}

func TestPlayTreatsABareZListAsOneChannel(t *testing.T) {
	e := newTestEngine(t, 32)
	fn := buildSingleZListArrayFun()

	p, err := e.Play(fn)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Channels) != 1 {
		t.Fatalf("channels = %d, want 1 (an infinite ZList is one channel, not an indefinite VList)", len(p.Channels))
	}
}

// buildZplugArrayFun compiles `[10 zplug 20]`: a two-element Array whose
// first element is a ZPlug. Engine.Play must expand it into two channels
// and register the ZPlug leaf as a live-swappable channel via Player.Plug.
func buildZplugArrayFun() *interp.Fun {
	code := bytecode.NewCode()
	code.Emit(bytecode.OpPushScalar)
	code.Instructions = append(code.Instructions, f64Bytes(10)...)
	idx := code.AddConstant(bytecode.Literal{Kind: bytecode.LitString, Str: "zplug"})
	code.Instructions = append(code.Instructions, byte(bytecode.OpApplyPrimitive), byte(idx>>8), byte(idx))
	code.Emit(bytecode.OpPushScalar)
	code.Instructions = append(code.Instructions, f64Bytes(20)...)
	code.EmitWithOperand(bytecode.OpMakeArray, 2)
	code.Emit(bytecode.OpReturn)
	def := &interp.FunDef{Code: code, NumLeaves: 1, Name: "zplugArray"}
	return interp.NewFun(def, nil, nil)
}

func TestPlayRegistersAZPlugLeafAsALiveSwappableChannel(t *testing.T) {
	e := newTestEngine(t, 32)
	fn := buildZplugArrayFun()

	p, err := e.Play(fn)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Channels) != 2 {
		t.Fatalf("channels = %d, want 2", len(p.Channels))
	}
	if p.Plugs == nil || p.Plugs[0] == nil {
		t.Fatal("expected channel 0 to be registered as a ZPlug-backed channel")
	}
	if p.Plugs[1] != nil {
		t.Fatal("expected channel 1 (a plain scalar) not to be plug-backed")
	}
}
