// Package art implements an in-memory, ordered Adaptive Radix Tree index in
// three variants sharing the node family and tree algorithms below: a
// single-threaded Tree, a coarse mutex-serialized SyncTree, and a
// lock-free-for-readers OLCTree based on optimistic version locking with
// QSBR-deferred reclamation.
package art

import (
	"sync/atomic"
	"unsafe"
)

// atomicHeaderPtr is the child-slot type used by every internal node kind.
// A plain store from the single-threaded and mutex variants and an atomic
// store made under the owning node's write lock in the OLC variant both go
// through the same slot type, so the node layout is shared by all three
// tree variants.
type atomicHeaderPtr = atomic.Pointer[header]

type kind uint8

const (
	kindLeaf kind = iota + 1
	kindNode4
	kindNode16
	kindNode48
	kindNode256
)

// header is the Go-native stand-in for spec.md §3's tagged node pointer.
// A machine precise GC cannot tolerate bits stolen from a live pointer's low
// bits (spec.md §9 acknowledges this and offers this as the alternative
// strategy), so instead every node kind embeds a header as its first field
// and a self-pointer lets the tree algorithms get back from a *header to
// the concrete node without relying on embedding-offset assumptions. Child
// slots hold atomic.Pointer[header]; an atomic store into that slot, made
// while holding the owning node's write lock, is where the optimistic-lock
// protocol's "replace the old subtree pointer atomically" step happens for
// the OLC variant, and a plain store serves the same role for the
// single-threaded and mutex variants.
type header struct {
	kind kind
	self unsafe.Pointer // points back to the owning concrete node
	lock optimisticLock // unused (stays permanently free) on leaves
	pfx  prefix         // unused on leaves
	count uint16        // child count; unused on leaves
}

func (h *header) asLeaf() *leaf       { return (*leaf)(h.self) }
func (h *header) asNode4() *node4     { return (*node4)(h.self) }
func (h *header) asNode16() *node16   { return (*node16)(h.self) }
func (h *header) asNode48() *node48   { return (*node48)(h.self) }
func (h *header) asNode256() *node256 { return (*node256)(h.self) }

// childCount returns the current number of populated children, reading
// through the kind-specific field without attempting the generic-dispatch
// cost of an interface call.
func (h *header) childCount() int { return int(h.count) }

// findChild dispatches to the kind-specific child lookup, returning the
// matching child's header pointer or nil.
func (h *header) findChild(c byte) *header {
	switch h.kind {
	case kindNode4:
		return h.asNode4().findChild(c)
	case kindNode16:
		return h.asNode16().findChild(c)
	case kindNode48:
		return h.asNode48().findChild(c)
	case kindNode256:
		return h.asNode256().findChild(c)
	default:
		return nil
	}
}

// childSlot returns the atomic pointer slot a child lives in, for callers
// that need to CAS or plain-store a replacement (grow/shrink/prefix-split
// results, or a newly inserted leaf).
func (h *header) childSlot(c byte) *atomicHeaderPtr {
	switch h.kind {
	case kindNode4:
		return h.asNode4().childSlot(c)
	case kindNode16:
		return h.asNode16().childSlot(c)
	case kindNode48:
		return h.asNode48().childSlot(c)
	case kindNode256:
		return h.asNode256().childSlot(c)
	default:
		return nil
	}
}

func (h *header) begin() (child *header, keyByte byte, ok bool) {
	switch h.kind {
	case kindNode4:
		return h.asNode4().begin()
	case kindNode16:
		return h.asNode16().begin()
	case kindNode48:
		return h.asNode48().begin()
	case kindNode256:
		return h.asNode256().begin()
	default:
		return nil, 0, false
	}
}

func (h *header) last() (child *header, keyByte byte, ok bool) {
	switch h.kind {
	case kindNode4:
		return h.asNode4().last()
	case kindNode16:
		return h.asNode16().last()
	case kindNode48:
		return h.asNode48().last()
	case kindNode256:
		return h.asNode256().last()
	default:
		return nil, 0, false
	}
}

func (h *header) next(afterKeyByte byte) (child *header, keyByte byte, ok bool) {
	switch h.kind {
	case kindNode4:
		return h.asNode4().next(afterKeyByte)
	case kindNode16:
		return h.asNode16().next(afterKeyByte)
	case kindNode48:
		return h.asNode48().next(afterKeyByte)
	case kindNode256:
		return h.asNode256().next(afterKeyByte)
	default:
		return nil, 0, false
	}
}

func (h *header) prior(beforeKeyByte byte) (child *header, keyByte byte, ok bool) {
	switch h.kind {
	case kindNode4:
		return h.asNode4().prior(beforeKeyByte)
	case kindNode16:
		return h.asNode16().prior(beforeKeyByte)
	case kindNode48:
		return h.asNode48().prior(beforeKeyByte)
	case kindNode256:
		return h.asNode256().prior(beforeKeyByte)
	default:
		return nil, 0, false
	}
}

func (h *header) gteKeyByte(b byte) (child *header, keyByte byte, ok bool) {
	switch h.kind {
	case kindNode4:
		return h.asNode4().gteKeyByte(b)
	case kindNode16:
		return h.asNode16().gteKeyByte(b)
	case kindNode48:
		return h.asNode48().gteKeyByte(b)
	case kindNode256:
		return h.asNode256().gteKeyByte(b)
	default:
		return nil, 0, false
	}
}

func (h *header) lteKeyByte(b byte) (child *header, keyByte byte, ok bool) {
	switch h.kind {
	case kindNode4:
		return h.asNode4().lteKeyByte(b)
	case kindNode16:
		return h.asNode16().lteKeyByte(b)
	case kindNode48:
		return h.asNode48().lteKeyByte(b)
	case kindNode256:
		return h.asNode256().lteKeyByte(b)
	default:
		return nil, 0, false
	}
}

// isFull reports whether the node is at its kind's capacity, so the caller
// must grow before adding another child.
func (h *header) isFull() bool {
	switch h.kind {
	case kindNode4:
		return h.count >= 4
	case kindNode16:
		return h.count >= 16
	case kindNode48:
		return h.count >= 48
	case kindNode256:
		return h.count >= 256
	default:
		return true
	}
}

// belowMin reports whether the node has dropped below its kind's declared
// minimum and must shrink.
func (h *header) belowMin() bool {
	switch h.kind {
	case kindNode16:
		return h.count < 5
	case kindNode48:
		return h.count < 17
	case kindNode256:
		return h.count < 49
	default:
		return false
	}
}

// belowMinAfterRemoving reports whether removing one more child would drop
// the node below its kind's minimum occupancy, used to decide whether a
// pending removal should shrink the node kind as part of the same step.
func (h *header) belowMinAfterRemoving() bool {
	switch h.kind {
	case kindNode16:
		return h.count-1 < 5
	case kindNode48:
		return h.count-1 < 17
	case kindNode256:
		return h.count-1 < 49
	default:
		return false
	}
}

// addChildDispatch inserts child under key byte c, assuming the caller has
// already verified the node is not full.
func (h *header) addChildDispatch(c byte, child *header) {
	switch h.kind {
	case kindNode4:
		h.asNode4().addChild(c, child)
	case kindNode16:
		h.asNode16().addChild(c, child)
	case kindNode48:
		h.asNode48().addChild(c, child)
	case kindNode256:
		h.asNode256().addChild(c, child)
	}
}

// removeChildInPlace removes the child at byte c without changing node
// kind, used when the count after removal still satisfies this kind's
// minimum occupancy.
func (h *header) removeChildInPlace(c byte) {
	switch h.kind {
	case kindNode4:
		h.asNode4().removeChild(c)
	case kindNode16:
		h.asNode16().removeChild(c)
	case kindNode48:
		h.asNode48().removeChild(c)
	case kindNode256:
		h.asNode256().removeChild(c)
	}
}

// growDispatch returns a new, larger node with this node's contents copied
// in. Called when the node is full and a caller needs to add one more
// child. node256 has no larger kind and returns itself unchanged (callers
// must never reach that case since node256.isFull() implies count==256,
// i.e. the tree already has a child for every possible byte).
func (h *header) growDispatch() *header {
	switch h.kind {
	case kindNode4:
		g := h.asNode4().grow()
		return &g.header
	case kindNode16:
		g := h.asNode16().grow()
		return &g.header
	case kindNode48:
		g := h.asNode48().grow()
		return &g.header
	default:
		return h
	}
}

// shrinkExcludingDispatch returns a new, smaller node with this node's
// contents copied in except for the child at byte c, used when removing
// that child would drop the node below its kind's minimum occupancy.
// node4 has no smaller kind and is never called this way (belowMin is
// always false for node4).
func (h *header) shrinkExcludingDispatch(c byte) *header {
	switch h.kind {
	case kindNode16:
		s := h.asNode16().shrink(c)
		return &s.header
	case kindNode48:
		s := h.asNode48().shrink(c)
		return &s.header
	case kindNode256:
		s := h.asNode256().shrink(c)
		return &s.header
	default:
		return h
	}
}

func longestPrefix(a, b []byte) int { return longestCommonPrefix(a, b) }
