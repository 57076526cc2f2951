package tree

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sapf-lang/sapf/pkg/value"
)

func key(n int) value.V { return value.FromZ(value.Z(n)) }

func TestPurePutDeterminism(t *testing.T) {
	var serial SerialCounter
	var root *Node
	for _, n := range []int{5, 3, 9, 1, 7} {
		root = PutPure(root, key(n), key(n*10), uint64(n), serial.Next)
	}
	var seen []uint64
	InOrder(root, func(k, v value.V) {
		seen = append(seen, uint64(k.AsFloat()))
	})
	for i := 1; i < len(seen); i++ {
		if seen[i-1] >= seen[i] {
			t.Fatalf("in-order traversal not ascending by hash: %v", seen)
		}
	}
}

func TestGetAfterPut(t *testing.T) {
	var serial SerialCounter
	var root *Node
	root = PutPure(root, key(1), key(100), 1, serial.Next)
	root = PutPure(root, key(2), key(200), 2, serial.Next)
	v, ok := Get(root, key(1), 1)
	if !ok || v.AsFloat() != 100 {
		t.Fatalf("expected 100, got %v ok=%v", v.AsFloat(), ok)
	}
	if _, ok := Get(root, key(3), 3); ok {
		t.Fatal("expected miss for absent key")
	}
}

func TestPutImpureConcurrent(t *testing.T) {
	var root atomic.Pointer[Node]
	var serial SerialCounter
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			PutImpure(&root, key(n), key(n), uint64(n), serial.Next)
		}(i)
	}
	wg.Wait()
	for i := 0; i < 100; i++ {
		if _, ok := Get(root.Load(), key(i), uint64(i)); !ok {
			t.Fatalf("key %d missing after concurrent impure put", i)
		}
	}
}

func TestMustGetNotFound(t *testing.T) {
	if _, err := MustGet(nil, key(1), 1); err == nil {
		t.Fatal("expected NotFound error on empty tree")
	}
}

// countingObj is a minimal value.Object that records whether it has been
// finalized, letting a test observe the refcount actually reaching zero
// rather than just inspecting the Node tree's shape.
type countingObj struct {
	value.RefCounted
	finalized *int
}

func (c *countingObj) Kind() value.Kind { return value.KindString }
func (c *countingObj) Finalize()        { *c.finalized++ }

// TestPutPureOverwriteReleasesDisplacedKeyAndVal rebinds the same global
// (same underlying key object, two independently retained V wrappers,
// mirroring OpStoreScope's repeated symbol.FromString calls) and checks
// that putPure's overwrite branch releases both the displaced Val and the
// displaced Key rather than leaking the key's reference.
func TestPutPureOverwriteReleasesDisplacedKeyAndVal(t *testing.T) {
	var serial SerialCounter
	var keyFinal, val1Final, val2Final int
	keyObj := &countingObj{finalized: &keyFinal}
	val1Obj := &countingObj{finalized: &val1Final}
	val2Obj := &countingObj{finalized: &val2Final}

	k1 := value.FromObject(keyObj)
	k2 := value.FromObject(keyObj) // second owned reference to the same key object
	v1 := value.FromObject(val1Obj)
	v2 := value.FromObject(val2Obj)

	var root *Node
	root = PutPure(root, k1, v1, 42, serial.Next)
	root = PutPure(root, k2, v2, 42, serial.Next)

	if val1Final != 1 {
		t.Fatalf("displaced val finalize count = %d, want 1", val1Final)
	}
	if keyFinal != 0 {
		t.Fatal("key object finalized while the surviving node still references it")
	}

	root.Key.Release()
	if keyFinal != 1 {
		t.Fatalf("key finalize count after releasing the surviving reference = %d, want 1 (displaced reference was leaked)", keyFinal)
	}
	root.Val.Release()
	if val2Final != 1 {
		t.Fatalf("surviving val finalize count = %d, want 1", val2Final)
	}
}

// TestPutImpureOverwriteReleasesDisplacedKeyAndVal exercises the same
// key-overwrite path through PutImpure's CAS loop (putImpureStep) instead
// of PutPure.
func TestPutImpureOverwriteReleasesDisplacedKeyAndVal(t *testing.T) {
	var serial SerialCounter
	var keyFinal, val1Final int
	keyObj := &countingObj{finalized: &keyFinal}
	val1Obj := &countingObj{finalized: &val1Final}
	val2Obj := &countingObj{finalized: new(int)}

	k1 := value.FromObject(keyObj)
	k2 := value.FromObject(keyObj)
	v1 := value.FromObject(val1Obj)
	v2 := value.FromObject(val2Obj)

	var root atomic.Pointer[Node]
	PutImpure(&root, k1, v1, 7, serial.Next)
	PutImpure(&root, k2, v2, 7, serial.Next)

	if val1Final != 1 {
		t.Fatalf("displaced val finalize count = %d, want 1", val1Final)
	}
	if keyFinal != 0 {
		t.Fatal("key object finalized while the surviving node still references it")
	}

	root.Load().Key.Release()
	if keyFinal != 1 {
		t.Fatalf("key finalize count after releasing the surviving reference = %d, want 1 (displaced reference was leaked)", keyFinal)
	}
}
