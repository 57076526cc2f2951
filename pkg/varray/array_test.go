package varray

import (
	"testing"

	"github.com/sapf-lang/sapf/pkg/value"
)

func vs(ns ...float64) []value.V {
	out := make([]value.V, len(ns))
	for i, n := range ns {
		out[i] = value.FromZ(n)
	}
	return out
}

func TestIndexingModes(t *testing.T) {
	a := FromSlice(vs(10, 20, 30))
	n := a.Len()

	for i := -5; i < 10; i++ {
		got := a.WrapAt(i)
		mod := i % n
		if mod < 0 {
			mod += n
		}
		want, _ := a.At(mod)
		if got.AsFloat() != want.AsFloat() {
			t.Fatalf("wrapAt(%d) = %v, want %v", i, got.AsFloat(), want.AsFloat())
		}
	}

	if v, _ := a.At(1); v.AsFloat() != 20 {
		t.Fatalf("at(1) = %v, want 20", v.AsFloat())
	}
	if v := a.WrapAt(3); v.AsFloat() != 10 {
		t.Fatalf("wrapAt(3) = %v, want 10", v.AsFloat())
	}
	if v := a.ClipAt(100); v.AsFloat() != 30 {
		t.Fatalf("clipAt(100) = %v, want 30", v.AsFloat())
	}
	if v := a.FoldAt(3); v.AsFloat() != 20 {
		t.Fatalf("foldAt(3) = %v, want 20", v.AsFloat())
	}
}

func TestFoldAtPeriodic(t *testing.T) {
	a := FromSlice(vs(1, 2, 3, 4))
	period := 2 * (a.Len() - 1)
	for i := 0; i < 20; i++ {
		if a.FoldAt(i).AsFloat() != a.FoldAt(i+period).AsFloat() {
			t.Fatalf("foldAt not periodic with period %d at i=%d", period, i)
		}
	}
}

func TestGrowthPreservesElements(t *testing.T) {
	a := NewArray(1)
	for i := 0; i < 100; i++ {
		a.Add(value.FromZ(float64(i)))
	}
	if a.Len() != 100 {
		t.Fatalf("expected length 100, got %d", a.Len())
	}
	for i := 0; i < 100; i++ {
		v, err := a.At(i)
		if err != nil || v.AsFloat() != float64(i) {
			t.Fatalf("element %d lost during growth: %v %v", i, v.AsFloat(), err)
		}
	}
}

func TestCompareLexicographic(t *testing.T) {
	a := FromSlice(vs(1, 2))
	b := FromSlice(vs(1, 2, 3))
	if a.CompareV(value.FromObject(b)) >= 0 {
		t.Fatal("shorter prefix should compare less on a tie")
	}
}
