package value

import "testing"

type countingObject struct {
	RefCounted
	finalized *bool
}

func (c *countingObject) Kind() Kind { return KindString }
func (c *countingObject) Finalize()  { *c.finalized = true }

func TestRefcountSoundness(t *testing.T) {
	finalized := false
	obj := &countingObject{finalized: &finalized}
	v := FromObject(obj) // 1 live reference

	copies := make([]V, 5)
	for i := range copies {
		copies[i] = v.Retain()
	}
	if finalized {
		t.Fatal("finalized before all references released")
	}
	for _, c := range copies {
		c.Release()
	}
	if finalized {
		t.Fatal("finalized before the original reference released")
	}
	v.Release()
	if !finalized {
		t.Fatal("object not finalized after refcount reached zero")
	}
}

func TestScalarBranchNeverConflatesWithObject(t *testing.T) {
	s := FromZ(3.5)
	if s.IsObject() {
		t.Fatal("scalar V reported as object")
	}
	obj := &countingObject{finalized: new(bool)}
	o := FromObject(obj)
	if o.IsScalar() {
		t.Fatal("object V reported as scalar")
	}
	o.Release()
}
