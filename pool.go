package art

import (
	"sync"
	"sync/atomic"
)

// pool is a type-safe wrapper around sync.Pool, used by OLCTree to recycle
// node allocations once QSBR has established no reader can still be
// mid-traversal through them. A single struct instance being reused for a
// fresh allocation while a stale reader still holds its address would
// corrupt that reader's read-critical-section, unlike a bare Go GC
// collection which only reclaims once nothing at all can reach the object;
// QSBR is what makes that reuse safe here, not the garbage collector.
type pool[T any] struct {
	sync.Pool

	// TODO: remove once node recycling rates are characterized under load.
	totalAllocated atomic.Int64
	currentLive    atomic.Int64
}

func newPool[T any](reset func(*T)) *pool[T] {
	p := &pool[T]{}
	p.New = func() any {
		p.totalAllocated.Add(1)
		return new(T)
	}
	_ = reset
	return p
}

func (p *pool[T]) get() *T {
	p.currentLive.Add(1)
	return p.Pool.Get().(*T)
}

func (p *pool[T]) put(v *T) {
	p.currentLive.Add(-1)
	p.Pool.Put(v)
}

func (p *pool[T]) stats() (live, total int64) {
	return p.currentLive.Load(), p.totalAllocated.Load()
}

// nodePools bundles one pool per node kind plus leaves, all allocated
// lazily through OLCTree so the single-threaded Tree and SyncTree variants
// (which never recycle nodes, relying on the garbage collector alone like
// the teacher's immutable Tree does) pay nothing for it.
type nodePools struct {
	leaves   pool[leaf]
	node4s   pool[node4]
	node16s  pool[node16]
	node48s  pool[node48]
	node256s pool[node256]
}

func newNodePools() *nodePools {
	return &nodePools{
		leaves:   *newPool[leaf](nil),
		node4s:   *newPool[node4](nil),
		node16s:  *newPool[node16](nil),
		node48s:  *newPool[node48](nil),
		node256s: *newPool[node256](nil),
	}
}

func (p *nodePools) allocLeaf(key, value []byte) *leaf {
	l := p.leaves.get()
	*l = leaf{key: key, value: value}
	l.header.kind = kindLeaf
	l.header.self = unsafePointerOf(l)
	return l
}

func (p *nodePools) allocNode4() *node4 {
	n := p.node4s.get()
	*n = node4{}
	n.header.kind = kindNode4
	n.header.self = unsafePointerOf(n)
	return n
}

func (p *nodePools) allocNode16() *node16 {
	n := p.node16s.get()
	*n = node16{}
	n.header.kind = kindNode16
	n.header.self = unsafePointerOf(n)
	return n
}

func (p *nodePools) allocNode48() *node48 {
	n := p.node48s.get()
	*n = node48{}
	n.header.kind = kindNode48
	n.header.self = unsafePointerOf(n)
	return n
}

func (p *nodePools) allocNode256() *node256 {
	n := p.node256s.get()
	*n = node256{}
	n.header.kind = kindNode256
	n.header.self = unsafePointerOf(n)
	return n
}

// growPooled mirrors header.growDispatch but allocates the larger node from
// the pools instead of plainly, so OLCTree's grow path recycles the same way
// its shrink and leaf-replace paths do.
func (p *nodePools) growPooled(h *header) *header {
	switch h.kind {
	case kindNode4:
		n := h.asNode4()
		g := p.allocNode16()
		g.header.pfx = n.header.pfx
		for i := 0; i < int(n.count); i++ {
			g.index[i] = n.index[i]
			g.children[i].Store(n.children[i].Load())
		}
		g.count = n.count
		return &g.header
	case kindNode16:
		n := h.asNode16()
		g := p.allocNode48()
		g.header.pfx = n.header.pfx
		for i := 0; i < int(n.count); i++ {
			g.index[n.index[i]] = uint8(i + 1)
			g.children[i].Store(n.children[i].Load())
		}
		g.count = n.count
		return &g.header
	case kindNode48:
		n := h.asNode48()
		g := p.allocNode256()
		g.header.pfx = n.header.pfx
		for b := 0; b < 256; b++ {
			if n.index[b] > 0 {
				g.children[b].Store(n.children[n.index[b]-1].Load())
				g.count++
			}
		}
		return &g.header
	default:
		return h
	}
}

// reclaim recycles h's underlying allocation. Callers must only invoke this
// from a QSBR-deferred callback, once every thread has passed through a
// quiescent state after h was made unreachable and obsolete.
func (p *nodePools) reclaim(h *header) {
	switch h.kind {
	case kindLeaf:
		p.leaves.put(h.asLeaf())
	case kindNode4:
		p.node4s.put(h.asNode4())
	case kindNode16:
		p.node16s.put(h.asNode16())
	case kindNode48:
		p.node48s.put(h.asNode48())
	case kindNode256:
		p.node256s.put(h.asNode256())
	}
}
