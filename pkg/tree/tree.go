// Package tree implements the persistent ordered map (C3): an immutable
// binary search tree keyed by (63-bit hash, monotonic serial), with atomic
// child pointers so pure puts can path-copy while impure puts publish a
// replacement subtree with a single CAS, and readers never observe a
// half-built node. Grounded on the atomic-pointer traversal idiom in
// zephyrtronium-iolang's proto-list slots, adapted from a linked list to a
// binary tree.
package tree

import (
	"sync/atomic"

	"github.com/sapf-lang/sapf/pkg/value"
	"github.com/sapf-lang/sapf/pkg/verr"
)

// Node is one immutable tree node. Left/Right are atomic so concurrent
// readers doing a pure traversal see either the pre-put subtree or a
// fully initialized replacement, never a partially built one.
type Node struct {
	Key      value.V
	Val      value.V
	KeyHash  uint64 // top bit masked off: 63-bit as specified
	Serial   uint64
	Left     atomic.Pointer[Node]
	Right    atomic.Pointer[Node]
}

func maskHash(h uint64) uint64 { return h &^ (1 << 63) }

func newLeaf(key, val value.V, hash, serial uint64) *Node {
	return &Node{Key: key, Val: val, KeyHash: maskHash(hash), Serial: serial}
}

func cloneWith(n *Node, left, right *Node) *Node {
	c := &Node{Key: n.Key, Val: n.Val, KeyHash: n.KeyHash, Serial: n.Serial}
	c.Left.Store(left)
	c.Right.Store(right)
	return c
}

// Get performs an ordinary (hash, key) search using atomic loads on child
// pointers, safe to run concurrently with any Put.
func Get(root *Node, key value.V, hash uint64) (value.V, bool) {
	return get(root, key, maskHash(hash))
}

func get(n *Node, key value.V, hash uint64) (value.V, bool) {
	if n == nil {
		return value.V{}, false
	}
	if hash == n.KeyHash {
		if key.Equal(n.Key) {
			return n.Val, true
		}
		// Hash collision between distinct keys: the run of
		// equal-hash nodes may straddle both children (they are
		// ordered within the collision by serial, not by subtree
		// side), so both must be searched.
		if v, ok := get(n.Left.Load(), key, hash); ok {
			return v, true
		}
		return get(n.Right.Load(), key, hash)
	}
	if hash < n.KeyHash {
		return get(n.Left.Load(), key, hash)
	}
	return get(n.Right.Load(), key, hash)
}

// MustGet fails with NotFound when the key is absent, per §4.3.
func MustGet(root *Node, key value.V, hash uint64) (value.V, error) {
	if v, ok := Get(root, key, hash); ok {
		return v, nil
	}
	return value.V{}, verr.NotFoundf("key not found in tree")
}

// PutPure produces a new root by path-copying from the search target. When
// key is new this leaves the input tree and all of its nodes untouched,
// safe to call concurrently with readers of the old root. When key already
// exists the displaced node's Val is released as part of the path-copy, so
// overwriting an existing key requires the caller to hold the only
// reference to the pre-put root (GTable.PutPure's bulk-load contract).
func PutPure(root *Node, key, val value.V, hash uint64, nextSerial func() uint64) *Node {
	hash = maskHash(hash)
	return putPure(root, key, val, hash, nextSerial)
}

func putPure(n *Node, key, val value.V, hash uint64, nextSerial func() uint64) *Node {
	if n == nil {
		return newLeaf(key, val, hash, nextSerial())
	}
	switch {
	case hash == n.KeyHash && key.Equal(n.Key):
		replacement := cloneWith(&Node{Key: key, Val: val, KeyHash: n.KeyHash, Serial: n.Serial}, n.Left.Load(), n.Right.Load())
		n.Key.Release()
		n.Val.Release()
		return replacement
	case hash < n.KeyHash:
		newLeft := putPure(n.Left.Load(), key, val, hash, nextSerial)
		return cloneWith(n, newLeft, n.Right.Load())
	default:
		newRight := putPure(n.Right.Load(), key, val, hash, nextSerial)
		return cloneWith(n, n.Left.Load(), newRight)
	}
}

// PutImpure locates the target slot exactly as PutPure does, but instead
// of path-copying to the root, it builds only the new leaf/replacement
// node and publishes it into its parent's child slot with a CAS, retrying
// the whole descent from root if it loses the race. root is an
// *atomic.Pointer[Node] so PutImpure can retry against the latest root
// after a lost race, per §4.3's "CAS-like tree put" contract. When key
// already exists, the replaced node's Val is released once the CAS that
// unpublishes it succeeds.
func PutImpure(root *atomic.Pointer[Node], key, val value.V, hash uint64, nextSerial func() uint64) {
	hash = maskHash(hash)
	for {
		cur := root.Load()
		if cur == nil {
			leaf := newLeaf(key, val, hash, nextSerial())
			if root.CompareAndSwap(nil, leaf) {
				return
			}
			continue
		}
		if putImpureStep(root, cur, key, val, hash, nextSerial) {
			return
		}
		// lost a race somewhere along the path; retry from the top.
	}
}

func putImpureStep(parentSlot *atomic.Pointer[Node], n *Node, key, val value.V, hash uint64, nextSerial func() uint64) bool {
	if hash == n.KeyHash && key.Equal(n.Key) {
		replacement := cloneWith(&Node{Key: key, Val: val, KeyHash: n.KeyHash, Serial: n.Serial}, n.Left.Load(), n.Right.Load())
		if parentSlot.CompareAndSwap(n, replacement) {
			n.Key.Release()
			n.Val.Release()
			return true
		}
		return false
	}
	var slot *atomic.Pointer[Node]
	if hash < n.KeyHash {
		slot = &n.Left
	} else {
		slot = &n.Right
	}
	child := slot.Load()
	if child == nil {
		leaf := newLeaf(key, val, hash, nextSerial())
		return slot.CompareAndSwap(nil, leaf)
	}
	return putImpureStep(slot, child, key, val, hash, nextSerial)
}

// InOrder walks the tree yielding (hash, serial) ascending, per §4.3's
// ordering guarantee. Uses atomic loads throughout so it is safe to run
// concurrently with puts (it will see a consistent snapshot per node, not
// necessarily a single instant across the whole tree).
func InOrder(root *Node, fn func(key, val value.V)) {
	if root == nil {
		return
	}
	InOrder(root.Left.Load(), fn)
	fn(root.Key, root.Val)
	InOrder(root.Right.Load(), fn)
}

// SerialCounter hands out the monotonic serial numbers used to break ties
// between equal hashes.
type SerialCounter struct{ n atomic.Uint64 }

func (c *SerialCounter) Next() uint64 { return c.n.Add(1) }
