package table

import (
	"testing"

	"github.com/sapf-lang/sapf/pkg/value"
)

func TestTableGetAfterWith(t *testing.T) {
	base := NewTable(nil)
	a := base.With(value.FromZ(1), value.FromZ(100))
	b := a.With(value.FromZ(2), value.FromZ(200))

	if v, ok := b.Get(value.FromZ(1)); !ok || v.AsFloat() != 100 {
		t.Fatalf("get(1) = %v ok=%v, want 100", v.AsFloat(), ok)
	}
	if v, ok := b.Get(value.FromZ(2)); !ok || v.AsFloat() != 200 {
		t.Fatalf("get(2) = %v ok=%v, want 200", v.AsFloat(), ok)
	}
	if _, ok := b.Get(value.FromZ(3)); ok {
		t.Fatal("expected miss for absent key")
	}
}

func TestTableWithIsPersistent(t *testing.T) {
	base := NewTable(nil)
	a := base.With(value.FromZ(1), value.FromZ(100))
	_ = a.With(value.FromZ(1), value.FromZ(999))

	if v, ok := a.Get(value.FromZ(1)); !ok || v.AsFloat() != 100 {
		t.Fatal("earlier Table must not observe a later With's rebind")
	}
}

func TestTableRebindExistingKey(t *testing.T) {
	base := NewTable(nil)
	a := base.With(value.FromZ(1), value.FromZ(100))
	b := a.With(value.FromZ(1), value.FromZ(101))

	if v, _ := b.Get(value.FromZ(1)); v.AsFloat() != 101 {
		t.Fatalf("rebind = %v, want 101", v.AsFloat())
	}
}

func TestFormWalksOutwardToParent(t *testing.T) {
	outer := NewForm(NewTable(nil).With(value.FromZ(1), value.FromZ(100)), nil)
	inner := NewForm(NewTable(nil).With(value.FromZ(2), value.FromZ(200)), outer)

	if v, err := inner.MustGet(value.FromZ(1)); err != nil || v.AsFloat() != 100 {
		t.Fatalf("expected inner scope to see outer binding, got %v err=%v", v.AsFloat(), err)
	}
	if v, err := inner.MustGet(value.FromZ(2)); err != nil || v.AsFloat() != 200 {
		t.Fatalf("expected own binding to resolve, got %v err=%v", v.AsFloat(), err)
	}
	if _, err := inner.MustGet(value.FromZ(3)); err == nil {
		t.Fatal("expected NotFound walking past the outermost form")
	}
}

func TestWithLocalDoesNotMutateParentForm(t *testing.T) {
	base := NewForm(NewTable(nil), nil)
	extended := base.WithLocal(value.FromZ(1), value.FromZ(42))

	if _, ok := base.Get(value.FromZ(1)); ok {
		t.Fatal("WithLocal must not mutate the original Form")
	}
	if v, ok := extended.Get(value.FromZ(1)); !ok || v.AsFloat() != 42 {
		t.Fatalf("extended form missing its own local: %v ok=%v", v.AsFloat(), ok)
	}
}

func TestGFormSetNewNameThenRebind(t *testing.T) {
	g := NewGForm(nil)
	g.Set(value.FromZ(1), value.FromZ(10))
	if v, ok := g.Get(value.FromZ(1)); !ok || v.AsFloat() != 10 {
		t.Fatalf("get after initial set = %v ok=%v, want 10", v.AsFloat(), ok)
	}
	g.Set(value.FromZ(1), value.FromZ(20))
	if v, ok := g.Get(value.FromZ(1)); !ok || v.AsFloat() != 20 {
		t.Fatalf("get after rebind = %v ok=%v, want 20", v.AsFloat(), ok)
	}
}

func TestGFormFallsThroughToParentForm(t *testing.T) {
	parent := NewForm(NewTable(nil).With(value.FromZ(1), value.FromZ(7)), nil)
	g := NewGForm(parent)
	if v, err := g.MustGet(value.FromZ(1)); err != nil || v.AsFloat() != 7 {
		t.Fatalf("expected GForm to fall through to its parent Form, got %v err=%v", v.AsFloat(), err)
	}
}
