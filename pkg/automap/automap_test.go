package automap

import (
	"testing"

	"github.com/sapf-lang/sapf/pkg/slist"
	"github.com/sapf-lang/sapf/pkg/value"
)

type fakeThread struct{}

func (fakeThread) Push(v value.V) error  { return nil }
func (fakeThread) Pop() (value.V, error) { return value.V{}, nil }
func (fakeThread) SampleRate() value.Z   { return 48000 }

func add(args []value.Z) value.Z { return args[0] + args[1] }

func TestAllScalarIsNoOp(t *testing.T) {
	mask := Mask{RankAutoStream, RankAutoStream}
	result, err := Invoke(fakeThread{}, mask, add, []value.V{value.FromZ(2), value.FromZ(3)})
	if err != nil {
		t.Fatal(err)
	}
	if result.Obj != nil {
		t.Fatal("all-scalar automap should not produce a list")
	}
	if result.AsFloat() != 5 {
		t.Fatalf("got %v, want 5", result.AsFloat())
	}
}

func TestOneListBroadcastsScalars(t *testing.T) {
	mask := Mask{RankAutoStream, RankAutoStream}
	list := value.FromObject(slist.FromArrayZ([]value.Z{1, 2, 3}))
	result, err := Invoke(fakeThread{}, mask, add, []value.V{list, value.FromZ(10)})
	if err != nil {
		t.Fatal(err)
	}
	l, ok := result.Obj.(*slist.List)
	if !ok {
		t.Fatal("expected list result")
	}
	n, err := l.Length(fakeThread{})
	if err != nil || n != 3 {
		t.Fatalf("result length = %d, want 3", n)
	}
	l.Force(fakeThread{})
	got := l.HeadZ()
	want := []value.Z{11, 12, 13}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTwoFiniteListsShortestLength(t *testing.T) {
	mask := Mask{RankAutoStream, RankAutoStream}
	a := value.FromObject(slist.FromArrayZ([]value.Z{1, 2, 3, 4}))
	b := value.FromObject(slist.FromArrayZ([]value.Z{10, 20}))
	result, err := Invoke(fakeThread{}, mask, add, []value.V{a, b})
	if err != nil {
		t.Fatal(err)
	}
	l := result.Obj.(*slist.List)
	n, _ := l.Length(fakeThread{})
	if n != 2 {
		t.Fatalf("result length = %d, want min(4,2)=2", n)
	}
}
