// Package symbol implements the interned-string table (C2): getsym maps a
// byte sequence to a stable-identity Symbol object, so pointer equality
// implies value equality for interned strings for the lifetime of the
// process. Grounded on the double-checked-locking Intern pattern of the
// teacher's SymbolTable.
package symbol

import (
	"hash/fnv"
	"sync"

	"github.com/sapf-lang/sapf/pkg/value"
)

// Symbol is an interned immutable UTF-8 string with a precomputed hash.
// It satisfies value.Object (KindString) plus the Printer, Hasher,
// Equatable, Comparable, and OperandBinary capability interfaces.
type Symbol struct {
	value.RefCounted
	text string
	hash uint64
}

func (s *Symbol) Kind() value.Kind { return value.KindString }
func (s *Symbol) String() string   { return s.text }
func (s *Symbol) Print() string    { return s.text }
func (s *Symbol) Hash() uint64     { return s.hash }
func (s *Symbol) Len() int         { return len(s.text) }

func (s *Symbol) EqualV(other value.V) bool {
	// Interned identity: equal bytes always share one Symbol, so
	// pointer comparison is sufficient and is what makes getsym's
	// contract (identity iff bytes equal) hold.
	o, ok := other.Obj.(*Symbol)
	return ok && o == s
}

func (s *Symbol) CompareV(other value.V) int {
	o, ok := other.Obj.(*Symbol)
	if !ok {
		return 1
	}
	switch {
	case s.text < o.text:
		return -1
	case s.text > o.text:
		return 1
	default:
		return 0
	}
}

func (s *Symbol) BinaryOpV(op int, other value.V) (value.V, error) {
	o, ok := other.Obj.(*Symbol)
	if !ok {
		return value.V{}, value.UndefinedOpErr(value.FromObject(s), other, "string op")
	}
	switch op {
	case OpConcat:
		return FromString(nil, s.text+o.text), nil
	default:
		return value.V{}, value.UndefinedOpErr(value.FromObject(s), other, "string op")
	}
}

// OpConcat is the only binary op strings define per §4.12 ("only defined
// for string-string; otherwise fails with undefined operation").
const OpConcat = 1

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64()
}

// Table is the process-wide intern table: a Go map keyed by the string's
// bytes, guarded by one RWMutex, promoted to a write lock only when the string
// is not already present (double-checked locking, matching the teacher's
// SymbolTable.Intern).
type Table struct {
	mu      sync.RWMutex
	byBytes map[string]*Symbol
}

func NewTable() *Table {
	return &Table{byBytes: make(map[string]*Symbol, 1024)}
}

// Intern returns the interned Symbol for s, creating it if this is the
// first occurrence of these bytes. The returned Symbol's identity never
// changes for the process's lifetime.
func (t *Table) Intern(s string) *Symbol {
	t.mu.RLock()
	if sym, ok := t.byBytes[s]; ok {
		t.mu.RUnlock()
		return sym
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if sym, ok := t.byBytes[s]; ok {
		return sym
	}
	sym := &Symbol{text: s, hash: hashBytes([]byte(s))}
	t.byBytes[s] = sym
	return sym
}

// Getsym is the spec's contract name for Intern, kept as an alias so
// callers reading against the spec's vocabulary find a matching symbol.
func (t *Table) Getsym(b []byte) *Symbol { return t.Intern(string(b)) }

// FromString wraps an already-known string as a V without necessarily
// going through the shared table (used for freshly computed strings, e.g.
// concatenation results, which are not required to be interned).
func FromString(t *Table, s string) value.V {
	if t != nil {
		return value.FromObject(t.Intern(s))
	}
	return value.FromObject(&Symbol{text: s, hash: hashBytes([]byte(s))})
}
