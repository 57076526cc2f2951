package cursor

import (
	"testing"

	"github.com/sapf-lang/sapf/pkg/slist"
	"github.com/sapf-lang/sapf/pkg/value"
)

type fakeThread struct{}

func (fakeThread) Push(v value.V) error  { return nil }
func (fakeThread) Pop() (value.V, error) { return value.V{}, nil }
func (fakeThread) SampleRate() value.Z   { return 48000 }

func TestConstZInRepeats(t *testing.T) {
	z := ConstZIn(7)
	out := make([]value.Z, 5)
	n := 5
	done, err := z.Fill(fakeThread{}, &n, out, 1)
	if err != nil || done {
		t.Fatalf("const cursor should never signal done, got done=%v err=%v", done, err)
	}
	for i, v := range out {
		if v != 7 {
			t.Fatalf("element %d = %v, want 7", i, v)
		}
	}
}

func TestListZInDrainsAndSignalsDone(t *testing.T) {
	l := slist.FromArrayZ([]value.Z{1, 2, 3})
	z := ListZIn(l)
	defer z.Release()

	out := make([]value.Z, 5)
	n := 5
	done, err := z.Fill(fakeThread{}, &n, out, 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("produced %d elements, want 3 (short fill at end of finite list)", n)
	}
	if !done {
		t.Fatal("expected done after draining a finite list")
	}
	for i, want := range []value.Z{1, 2, 3} {
		if out[i] != want {
			t.Fatalf("element %d = %v, want %v", i, out[i], want)
		}
	}
}

func TestOnePullsSingleElement(t *testing.T) {
	l := slist.FromArrayZ([]value.Z{42})
	z := ListZIn(l)
	defer z.Release()

	v, done, err := z.One(fakeThread{})
	if err != nil {
		t.Fatal(err)
	}
	if v != 42 || done {
		t.Fatalf("got v=%v done=%v, want v=42 done=false", v, done)
	}

	_, done, err = z.One(fakeThread{})
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("expected done after exhausting a single-element list")
	}
}

func TestLinkReplacesBackingList(t *testing.T) {
	var z ZIn
	z.Link(slist.FromArrayZ([]value.Z{1, 2}))
	defer z.Release()

	out := make([]value.Z, 2)
	n := 2
	if _, err := z.Fill(fakeThread{}, &n, out, 1); err != nil {
		t.Fatal(err)
	}
	if out[0] != 1 || out[1] != 2 {
		t.Fatalf("got %v, want [1 2]", out)
	}
}

func TestVInFillsStructuredValues(t *testing.T) {
	l := slist.FromArrayV([]value.V{value.FromZ(1), value.FromZ(2)})
	v := ListVIn(l)
	defer v.Release()

	out := make([]value.V, 2)
	n := 2
	done, err := v.Fill(fakeThread{}, &n, out, 1)
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Fatal("should not report done on exact-length fill; done is signaled on the following pull")
	}
	if out[0].AsFloat() != 1 || out[1].AsFloat() != 2 {
		t.Fatalf("got %v %v, want 1 2", out[0].AsFloat(), out[1].AsFloat())
	}
}

func TestBothInReleaseIsIdempotentAcrossFields(t *testing.T) {
	var b BothIn
	b.Z.Link(slist.FromArrayZ([]value.Z{1}))
	b.V.Link(slist.FromArrayV([]value.V{value.FromZ(1)}))
	b.Release()
	b.Release()
}
