package table

import (
	"sync"
	"sync/atomic"

	"github.com/sapf-lang/sapf/pkg/tree"
	"github.com/sapf-lang/sapf/pkg/value"
	"github.com/sapf-lang/sapf/pkg/verr"
)

// GTable is a container holding one atomic pointer to a TreeNode root, per
// §3. Global bindings are stored here rather than in a Table, since they
// need the persistent tree's lock-free concurrent read/impure-write path.
type GTable struct {
	value.RefCounted
	root   atomic.Pointer[tree.Node]
	serial tree.SerialCounter
}

func NewGTable() *GTable { return &GTable{} }

func (g *GTable) Kind() value.Kind { return value.KindGTable }

func (g *GTable) Get(key value.V) (value.V, bool) {
	return tree.Get(g.root.Load(), key, key.Hash())
}

func (g *GTable) MustGet(key value.V) (value.V, error) {
	return tree.MustGet(g.root.Load(), key, key.Hash())
}

// PutPure publishes a wholly new root — used at engine startup / bulk
// load when no concurrent readers exist yet.
func (g *GTable) PutPure(key, val value.V) {
	newRoot := tree.PutPure(g.root.Load(), key, val, key.Hash(), g.serial.Next)
	g.root.Store(newRoot)
}

// PutImpure is the steady-state global rebind path: a CAS-based subtree
// publish safe to run concurrently with lock-free readers, per §4.3 and
// §5's "writers use impure-put under normal circumstances" policy.
func (g *GTable) PutImpure(key, val value.V) {
	tree.PutImpure(&g.root, key, val, key.Hash(), g.serial.Next)
}

// Form is an immutable lexical scope: a Table plus an optional parent.
// Local frames and user records use Form.
type Form struct {
	value.RefCounted
	table  *Table
	parent *Form
}

func NewForm(t *Table, parent *Form) *Form {
	if parent != nil {
		parent.Retain()
	}
	return &Form{table: t, parent: parent}
}

func (f *Form) Kind() value.Kind { return value.KindForm }

func (f *Form) Finalize() {
	if f.parent != nil {
		f.parent.Release()
	}
}

// MustGet walks outward through parents, failing with NotFound at the
// outermost miss, per §4.4.
func (f *Form) MustGet(key value.V) (value.V, error) {
	for cur := f; cur != nil; cur = cur.parent {
		if v, ok := cur.table.Get(key); ok {
			return v, nil
		}
	}
	return value.V{}, verr.NotFoundf("undefined: %s", key.Print())
}

func (f *Form) Get(key value.V) (value.V, bool) {
	for cur := f; cur != nil; cur = cur.parent {
		if v, ok := cur.table.Get(key); ok {
			return v, true
		}
	}
	return value.V{}, false
}

// WithLocal returns a new Form with key bound in its own table, leaving
// parents shared (Form is immutable; binding a new local produces a new
// Form, matching the source's "user records use Form" semantics).
func (f *Form) WithLocal(key, val value.V) *Form {
	return &Form{table: f.table.With(key, val), parent: f.parent}
}

func (f *Form) Parent() *Form { return f.parent }

// ChaseForm repeatedly replaces the current form by its parent until
// depth n or the parent is null, per §4.4.
func (f *Form) ChaseForm(n int) *Form {
	cur := f
	for i := 0; i < n && cur.parent != nil; i++ {
		cur = cur.parent
	}
	return cur
}

func (f *Form) EqualV(other value.V) bool {
	o, ok := other.Obj.(*Form)
	if !ok {
		return false
	}
	a, b := f, o
	for a != nil && b != nil {
		if !a.table.EqualV(value.FromObject(b.table)) {
			return false
		}
		a, b = a.parent, b.parent
	}
	return a == nil && b == nil
}

// GForm is a scope whose own bindings live in a GTable (mutable per
// slot); its parent, if any, is an ordinary Form or GForm.
type GForm struct {
	value.RefCounted
	global *GTable
	parent *Form
	// mu guards the rare structural mutation of adding a brand-new
	// global name; ordinary rebinds of an existing name go through the
	// GTable's lock-free impure put instead.
	mu sync.Mutex
}

func NewGForm(parent *Form) *GForm {
	if parent != nil {
		parent.Retain()
	}
	g := &GForm{global: NewGTable(), parent: parent}
	g.global.Retain()
	return g
}

func (g *GForm) Kind() value.Kind { return value.KindGForm }

func (g *GForm) Finalize() {
	g.global.Release()
	if g.parent != nil {
		g.parent.Release()
	}
}

func (g *GForm) MustGet(key value.V) (value.V, error) {
	if v, ok := g.global.Get(key); ok {
		return v, nil
	}
	if g.parent != nil {
		return g.parent.MustGet(key)
	}
	return value.V{}, verr.NotFoundf("undefined: %s", key.Print())
}

func (g *GForm) Get(key value.V) (value.V, bool) {
	if v, ok := g.global.Get(key); ok {
		return v, true
	}
	if g.parent != nil {
		return g.parent.Get(key)
	}
	return value.V{}, false
}

// Set rebinds an existing global or, if key is new, adds it under the
// structural mutation lock.
func (g *GForm) Set(key, val value.V) {
	if _, ok := g.global.Get(key); ok {
		g.global.PutImpure(key, val)
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.global.Get(key); ok {
		g.global.PutImpure(key, val)
		return
	}
	g.global.PutPure(key, val)
}
