package ops

import (
	"math"
	"testing"

	"github.com/sapf-lang/sapf/pkg/slist"
	"github.com/sapf-lang/sapf/pkg/value"
)

type fakeThread struct{}

func (fakeThread) Push(v value.V) error  { return nil }
func (fakeThread) Pop() (value.V, error) { return value.V{}, nil }
func (fakeThread) SampleRate() value.Z   { return 48000 }

func TestUnaryScalarKernels(t *testing.T) {
	got, err := Unary(UnaryNeg, value.FromZ(3))
	if err != nil || got.AsFloat() != -3 {
		t.Fatalf("neg(3) = %v, err = %v", got.AsFloat(), err)
	}
	got, err = Unary(UnarySqrt, value.FromZ(9))
	if err != nil || got.AsFloat() != 3 {
		t.Fatalf("sqrt(9) = %v, err = %v", got.AsFloat(), err)
	}
}

func TestBinaryScalarKernels(t *testing.T) {
	got, err := Binary(BinaryAdd, value.FromZ(2), value.FromZ(3))
	if err != nil || got.AsFloat() != 5 {
		t.Fatalf("2+3 = %v, err = %v", got.AsFloat(), err)
	}
	got, err = Binary(BinaryMul, value.FromZ(4), value.FromZ(5))
	if err != nil || got.AsFloat() != 20 {
		t.Fatalf("4*5 = %v, err = %v", got.AsFloat(), err)
	}
}

func TestDivisionByZeroNeverErrors(t *testing.T) {
	got, err := Binary(BinaryDiv, value.FromZ(1), value.FromZ(0))
	if err != nil {
		t.Fatalf("division by zero returned an error: %v", err)
	}
	if !math.IsInf(got.AsFloat(), 1) {
		t.Fatalf("1/0 = %v, want +Inf", got.AsFloat())
	}

	got, err = Binary(BinaryDiv, value.FromZ(0), value.FromZ(0))
	if err != nil {
		t.Fatalf("0/0 returned an error: %v", err)
	}
	if !math.IsNaN(got.AsFloat()) {
		t.Fatalf("0/0 = %v, want NaN", got.AsFloat())
	}
}

func TestListBinaryAgainstScalar(t *testing.T) {
	th := fakeThread{}
	l := slist.FromArrayZ([]value.Z{1, 2, 3})
	result, err := Binary(BinaryAdd, value.FromObject(l), value.FromZ(10))
	if err != nil {
		t.Fatal(err)
	}
	out := result.Obj.(*slist.List)
	if err := out.Force(th); err != nil {
		t.Fatal(err)
	}
	want := []value.Z{11, 12, 13}
	got := out.HeadZ()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestReduceFiniteList(t *testing.T) {
	th := fakeThread{}
	l := slist.FromArrayZ([]value.Z{1, 2, 3, 4})
	sum, err := Reduce(th, l, 0, func(acc, x value.Z) value.Z { return acc + x })
	if err != nil {
		t.Fatal(err)
	}
	if sum != 10 {
		t.Fatalf("sum = %v, want 10", sum)
	}
}

type countingGen struct {
	list *slist.List
	n    int
}

func (g *countingGen) SetList(l *slist.List) { g.list = l }
func (g *countingGen) Done() bool            { return false }
func (g *countingGen) Finite() bool          { return false }
func (g *countingGen) Pull(th value.Thread) error {
	g.n++
	cont := slist.FromGen(slist.ElemZ, &countingGen{n: g.n})
	g.list.FillZ([]value.Z{value.Z(g.n)}, cont)
	return nil
}

func TestReduceOverInfiniteListFails(t *testing.T) {
	th := fakeThread{}
	l := slist.FromGen(slist.ElemZ, &countingGen{})
	_, err := Reduce(th, l, 0, func(acc, x value.Z) value.Z { return acc + x })
	if err == nil {
		t.Fatal("expected IndefiniteOperation reducing an infinite stream")
	}
}

func TestScanFiniteListProducesPrefixSums(t *testing.T) {
	th := fakeThread{}
	l := slist.FromArrayZ([]value.Z{1, 2, 3})
	scanned := Scan(l, 0, func(acc, x value.Z) value.Z { return acc + x })
	if err := scanned.Force(th); err != nil {
		t.Fatal(err)
	}
	want := []value.Z{1, 3, 6}
	got := scanned.HeadZ()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestScanOverInfiniteListStaysLazyInsteadOfFailing(t *testing.T) {
	l := slist.FromGen(slist.ElemZ, &countingGen{})
	scanned := Scan(l, 0, func(acc, x value.Z) value.Z { return acc + x })
	if scanned.Finite() {
		t.Fatal("scan over an infinite source must remain infinite, not fail or terminate")
	}
}

func TestPairsAdjacentDifferences(t *testing.T) {
	th := fakeThread{}
	l := slist.FromArrayZ([]value.Z{1, 3, 6, 10})
	pairs := Pairs(l, func(a, b value.Z) value.Z { return b - a })
	if err := pairs.Force(th); err != nil {
		t.Fatal(err)
	}
	want := []value.Z{2, 3, 4}
	got := pairs.HeadZ()
	if len(got) != len(want) {
		t.Fatalf("got %d pairs, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d = %v, want %v", i, got[i], want[i])
		}
	}
}
