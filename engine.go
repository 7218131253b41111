package art

// engine.go holds the find/insert/remove algorithms shared by the
// single-threaded Tree directly and by SyncTree under its coarse mutex.
// The OLCTree variant reimplements the same shape with optimistic
// read-then-validate traversal instead of unconditional loads (see
// olctree.go); both walk the same node family and shrink through the same
// shrinkExcludingDispatch helper in node.go. Tree and SyncTree grow nodes
// through growDispatch, while OLCTree grows through its nodePools
// (pool.go).

// engineFind walks from root looking for key, returning its leaf or nil.
func engineFind(root *header, key []byte) *leaf {
	depth := 0
	cur := root
	for cur != nil {
		if cur.kind == kindLeaf {
			lf := cur.asLeaf()
			if lf.matches(key) {
				return lf
			}
			return nil
		}
		pfx := cur.pfx.slice()
		if len(key)-depth < len(pfx) || cur.pfx.sharedLength(key[depth:]) != len(pfx) {
			return nil
		}
		depth += len(pfx)
		if depth >= len(key) {
			return nil
		}
		cur = cur.findChild(key[depth])
		depth++
	}
	return nil
}

// engineInsert inserts or updates key/value under the subtree rooted at
// *slot, mutating the tree in place. upsert controls whether an existing
// key is overwritten (true) or reported as ErrDuplicateKey (false).
// Callers own concurrency control; this function assumes exclusive access
// to every node it touches.
// grew reports only true node-kind promotions (node4->node16 and so on),
// not every structural change that allocates a new node object; stats is
// nil when the caller was built without WithStats.
func engineInsert(slot *atomicHeaderPtr, depth int, key, value []byte, upsert bool, stats *statCounters) (oldValue []byte, replaced bool, grew bool, err error) {
	cur := slot.Load()
	if cur == nil {
		lf := newLeaf(key, value)
		stats.recordNodeCreated(kindLeaf)
		slot.Store(&lf.header)
		return nil, false, false, nil
	}

	if cur.kind == kindLeaf {
		lf := cur.asLeaf()
		if lf.matches(key) {
			if !upsert {
				return lf.value, true, false, ErrDuplicateKey
			}
			old := lf.value
			newLf := newLeaf(key, value)
			stats.recordNodeCreated(kindLeaf)
			slot.Store(&newLf.header)
			return old, true, false, nil
		}
		// Split the leaf into a node4 carrying the two leaves' common prefix.
		lcp := longestCommonPrefix(lf.key[depth:], key[depth:])
		split := newNode4()
		stats.recordNodeCreated(kindNode4)
		split.header.pfx.set(key[depth : depth+lcp])
		newLf := newLeaf(key, value)
		stats.recordNodeCreated(kindLeaf)
		split.addChild(lf.key[depth+lcp], cur)
		split.addChild(key[depth+lcp], &newLf.header)
		slot.Store(&split.header)
		return nil, false, false, nil
	}

	h := cur
	pfxLen := int(h.pfx.len)
	shifted := key[depth:]
	matched := h.pfx.sharedLength(shifted)
	if matched < pfxLen {
		// The new key diverges partway through this node's compressed
		// prefix: split the prefix itself, inserting a new node4 above the
		// truncated original node and the new leaf.
		split := newNode4()
		stats.recordNodeCreated(kindNode4)
		split.header.pfx.set(shifted[:matched])
		oldByte := h.pfx.bytes[matched]
		h.pfx.cut(matched + 1)
		newLf := newLeaf(key, value)
		stats.recordNodeCreated(kindLeaf)
		split.addChild(oldByte, h)
		split.addChild(shifted[matched], &newLf.header)
		slot.Store(&split.header)
		return nil, false, false, nil
	}

	depth += pfxLen
	c := key[depth]
	childSlot := h.childSlot(c)
	if childSlot != nil {
		return engineInsert(childSlot, depth+1, key, value, upsert, stats)
	}

	newLf := newLeaf(key, value)
	stats.recordNodeCreated(kindLeaf)
	if h.isFull() {
		grownHeader := h.growDispatch()
		stats.recordNodeCreated(grownHeader.kind)
		grownHeader.addChildDispatch(c, &newLf.header)
		slot.Store(grownHeader)
		return nil, false, true, nil
	}
	h.addChildDispatch(c, &newLf.header)
	return nil, false, false, nil
}

// engineRemove deletes key from the subtree rooted at *slot if present,
// collapsing single-child internal nodes and shrinking undersized nodes as
// it unwinds. Returns the removed value and whether it was found.
func engineRemove(slot *atomicHeaderPtr, depth int, key []byte, stats *statCounters) (oldValue []byte, ok, shrunk bool) {
	cur := slot.Load()
	if cur == nil {
		return nil, false, false
	}
	if cur.kind == kindLeaf {
		lf := cur.asLeaf()
		if !lf.matches(key) {
			return nil, false, false
		}
		slot.Store(nil)
		return lf.value, true, false
	}

	h := cur
	pfx := h.pfx.slice()
	if len(key)-depth < len(pfx) || h.pfx.sharedLength(key[depth:]) != len(pfx) {
		return nil, false, false
	}
	depth += len(pfx)
	if depth >= len(key) {
		return nil, false, false
	}
	c := key[depth]
	childSlot := h.childSlot(c)
	if childSlot == nil {
		return nil, false, false
	}

	childHeader := childSlot.Load()
	if childHeader != nil && childHeader.kind == kindLeaf && childHeader.asLeaf().matches(key) {
		oldValue = childHeader.asLeaf().value
		shrunk = removeChildAndMaybeShrink(slot, h, c, stats)
		return oldValue, true, shrunk
	}

	var childShrunk bool
	oldValue, ok, childShrunk = engineRemove(childSlot, depth+1, key, stats)
	if !ok {
		return oldValue, ok, false
	}
	shrunk = childShrunk
	if childSlot.Load() == nil {
		if removeChildAndMaybeShrink(slot, h, c, stats) {
			shrunk = true
		}
	}
	return oldValue, ok, shrunk
}

// removeChildAndMaybeShrink removes byte c from h, shrinking h to a
// smaller node kind if that drops it below minimum occupancy, then
// collapses h entirely if zero or one children remain, storing the result
// (or nil) into slot, which is the pointer that referenced h. Reports
// whether a node-kind shrink actually occurred.
func removeChildAndMaybeShrink(slot *atomicHeaderPtr, h *header, c byte, stats *statCounters) bool {
	var result *header
	shrunk := false
	if h.kind != kindLeaf && h.belowMinAfterRemoving() {
		result = h.shrinkExcludingDispatch(c)
		stats.recordNodeCreated(result.kind)
		shrunk = true
	} else {
		h.removeChildInPlace(c)
		result = h
	}

	switch result.childCount() {
	case 0:
		slot.Store(nil)
	case 1:
		child, keyByte, _ := result.begin()
		if child.kind == kindLeaf {
			slot.Store(child)
		} else {
			child.pfx.prepend(result.pfx, keyByte)
			slot.Store(child)
		}
	default:
		slot.Store(result)
	}
	return shrunk
}
