package art

import "sync/atomic"

// Stats holds optional node-kind and maintenance counters, enabled with
// WithStats. All fields are point-in-time snapshots; readers should not
// assume consistency across fields under concurrent mutation.
type Stats struct {
	Leaves    int64
	Node4s    int64
	Node16s   int64
	Node48s   int64
	Node256s  int64
	Grows     int64
	Shrinks   int64
	Inserts   int64
	Removes   int64
	Updates   int64
}

// statCounters is embedded by every tree variant; its fields are only ever
// touched when config.stats is true, so disabled trees pay no cost beyond
// the eight no-op atomic adds being skipped entirely.
type statCounters struct {
	leaves, node4s, node16s, node48s, node256s atomic.Int64
	grows, shrinks, inserts, removes, updates  atomic.Int64
}

func (s *statCounters) snapshot() Stats {
	return Stats{
		Leaves:   s.leaves.Load(),
		Node4s:   s.node4s.Load(),
		Node16s:  s.node16s.Load(),
		Node48s:  s.node48s.Load(),
		Node256s: s.node256s.Load(),
		Grows:    s.grows.Load(),
		Shrinks:  s.shrinks.Load(),
		Inserts:  s.inserts.Load(),
		Removes:  s.removes.Load(),
		Updates:  s.updates.Load(),
	}
}

// recordNodeCreated is a no-op on a nil receiver, so callers that were
// built without WithStats can pass a nil *statCounters and skip every
// bookkeeping call for free.
func (s *statCounters) recordNodeCreated(k kind) {
	if s == nil {
		return
	}
	switch k {
	case kindLeaf:
		s.leaves.Add(1)
	case kindNode4:
		s.node4s.Add(1)
	case kindNode16:
		s.node16s.Add(1)
	case kindNode48:
		s.node48s.Add(1)
	case kindNode256:
		s.node256s.Add(1)
	}
}
