package art

// OLCIterator walks an OLCTree's contents without ever holding a persisted
// path stack across calls: a concurrent writer is free to retire and recycle
// any node a stack might otherwise have pointed at. Instead, per spec.md §9's
// "iterator restart on OLC" note, every Next/Prior call re-descends from the
// root looking for the smallest (or largest) key past whatever was last
// returned, validating each node's optimistic lock on the way down and
// restarting the whole descent from the top on any conflict. This costs
// O(depth) per step rather than O(1) amortized, the price paid for never
// blocking a concurrent writer and never touching a recycled node.
type OLCIterator struct {
	tree      *OLCTree
	hasBound  bool
	bound     []byte
	inclusive bool
	done      bool
}

// Iterator returns a new OLCIterator positioned before the tree's contents.
func (t *OLCTree) Iterator() *OLCIterator { return &OLCIterator{tree: t} }

// Next returns the smallest key greater than whatever this iterator last
// returned (or the smallest key overall, on the first call).
func (it *OLCIterator) Next() (key, value []byte, ok bool) { return it.advance(true) }

// Prior returns the largest key less than whatever this iterator last
// returned (or the largest key overall, on the first call).
func (it *OLCIterator) Prior() (key, value []byte, ok bool) { return it.advance(false) }

// SeekGE repositions the iterator so the next call to Next returns the
// smallest key >= key.
func (it *OLCIterator) SeekGE(key []byte) {
	it.bound = key
	it.hasBound = true
	it.inclusive = true
	it.done = false
}

// SeekLE repositions the iterator so the next call to Prior returns the
// largest key <= key.
func (it *OLCIterator) SeekLE(key []byte) {
	it.bound = key
	it.hasBound = true
	it.inclusive = true
	it.done = false
}

func (it *OLCIterator) advance(fwd bool) (key, value []byte, ok bool) {
	if it.done {
		return nil, nil, false
	}
	th := it.tree.domain.ThisThread()
	defer th.Quiescent()
	for {
		k, v, found, restart := it.tree.tryBoundedNext(it.bound, it.hasBound, it.inclusive, fwd)
		if restart {
			continue
		}
		if !found {
			it.done = true
			return nil, nil, false
		}
		it.bound = k
		it.hasBound = true
		it.inclusive = false
		return k, v, true
	}
}

// Scan visits every entry in the tree, ascending if fwd else descending.
func (t *OLCTree) Scan(visit Visitor, fwd bool) {
	it := t.Iterator()
	step := it.Next
	if !fwd {
		step = it.Prior
	}
	driveVisitor(step, visit)
}

// ScanFrom visits entries starting at the smallest key >= key (fwd) or the
// largest key <= key (!fwd).
func (t *OLCTree) ScanFrom(key []byte, visit Visitor, fwd bool) {
	it := t.Iterator()
	if fwd {
		it.SeekGE(key)
	} else {
		it.SeekLE(key)
	}
	step := it.Next
	if !fwd {
		step = it.Prior
	}
	driveVisitor(step, visit)
}

// ScanRange visits every entry between from and to; see Tree.ScanRange for
// the exact direction and boundary semantics, identical here.
func (t *OLCTree) ScanRange(from, to []byte, visit Visitor) {
	scanRange(t, from, to, visit)
}

// tryBoundedNext makes one optimistic attempt at finding the next entry
// past bound (or the absolute extreme, if !hasBound), in direction fwd.
func (t *OLCTree) tryBoundedNext(bound []byte, hasBound, inclusive, fwd bool) (key, value []byte, found, restart bool) {
	rg := t.rootLock.tryReadLock()
	if rg.mustRestart() {
		return nil, nil, false, true
	}
	root := t.root.Load()
	if !rg.check() {
		return nil, nil, false, true
	}
	if root == nil {
		return nil, nil, false, false
	}
	if !hasBound {
		return t.tryExtremeFrom(root, rg, fwd)
	}
	return t.tryBoundedDescend(root, rg, bound, inclusive, fwd)
}

// tryExtreme walks to the minimum (fwd) or maximum (!fwd) leaf under root,
// validating each node's read lock as it descends.
func (t *OLCTree) tryExtreme(root *header, parent readGuard, fwd bool) (lf *leaf, ok, restart bool) {
	cur := root
	for {
		if cur.kind == kindLeaf {
			l := cur.asLeaf()
			if !parent.check() {
				return nil, false, true
			}
			return l, true, false
		}
		nodeGuard := cur.lock.tryReadLock()
		if nodeGuard.mustRestart() {
			return nil, false, true
		}
		var child *header
		var has bool
		if fwd {
			child, _, has = cur.begin()
		} else {
			child, _, has = cur.last()
		}
		if !nodeGuard.check() {
			return nil, false, true
		}
		if !parent.check() {
			return nil, false, true
		}
		if !has {
			return nil, false, false
		}
		parent = nodeGuard
		cur = child
	}
}

func (t *OLCTree) tryExtremeFrom(root *header, parent readGuard, fwd bool) (key, value []byte, found, restart bool) {
	lf, ok, restart := t.tryExtreme(root, parent, fwd)
	if restart {
		return nil, nil, false, true
	}
	if !ok {
		return nil, nil, false, false
	}
	return lf.key, lf.value, true, false
}

// tryBoundedDescend mirrors seekFromRoot's prefix-divergence descent but
// validated with read locks at every step: it finds the smallest leaf whose
// key is > bound (or >= if inclusive), or symmetrically the largest leaf
// whose key is < bound (or <=) when !fwd.
func (t *OLCTree) tryBoundedDescend(root *header, parent readGuard, bound []byte, inclusive, fwd bool) (key, value []byte, found, restart bool) {
	cur := root
	depth := 0
	for {
		if cur.kind == kindLeaf {
			l := cur.asLeaf()
			cmp := compareBytes(l.key, bound)
			satisfies := cmp > 0 || (inclusive && cmp == 0)
			if !fwd {
				satisfies = cmp < 0 || (inclusive && cmp == 0)
			}
			if !parent.check() {
				return nil, nil, false, true
			}
			if !satisfies {
				return nil, nil, false, false
			}
			return l.key, l.value, true, false
		}

		nodeGuard := cur.lock.tryReadLock()
		if nodeGuard.mustRestart() {
			return nil, nil, false, true
		}
		pfx := cur.pfx.slice()
		shifted := safeSlice(bound, depth)
		shared := cur.pfx.sharedLength(shifted)
		if shared < len(pfx) {
			nodeByte := pfx[shared]
			var boundByte byte
			if shared < len(shifted) {
				boundByte = shifted[shared]
			}
			diverges := nodeByte >= boundByte
			if !fwd {
				diverges = nodeByte <= boundByte
			}
			if !nodeGuard.check() || !parent.check() {
				return nil, nil, false, true
			}
			if !diverges {
				return nil, nil, false, false
			}
			return t.tryExtremeFrom(cur, nodeGuard, fwd)
		}

		depth += len(pfx)
		if depth >= len(bound) {
			if !nodeGuard.check() || !parent.check() {
				return nil, nil, false, true
			}
			return t.tryExtremeFrom(cur, nodeGuard, fwd)
		}

		var child *header
		var has bool
		if fwd {
			child, _, has = cur.gteKeyByte(bound[depth])
		} else {
			child, _, has = cur.lteKeyByte(bound[depth])
		}
		if !nodeGuard.check() {
			return nil, nil, false, true
		}
		if !parent.check() {
			return nil, nil, false, true
		}
		if !has {
			return nil, nil, false, false
		}
		parent = nodeGuard
		cur = child
		depth++
	}
}

// Minimum returns the key/value pair with the smallest key, if any.
func (t *OLCTree) Minimum() (key, value []byte, ok bool) {
	th := t.domain.ThisThread()
	defer th.Quiescent()
	for {
		k, v, found, restart := t.tryBoundedNext(nil, false, false, true)
		if restart {
			continue
		}
		return k, v, found
	}
}

// Maximum returns the key/value pair with the largest key, if any.
func (t *OLCTree) Maximum() (key, value []byte, ok bool) {
	th := t.domain.ThisThread()
	defer th.Quiescent()
	for {
		k, v, found, restart := t.tryBoundedNext(nil, false, false, false)
		if restart {
			continue
		}
		return k, v, found
	}
}

// LongestPrefix returns the entry whose key is the longest prefix of key,
// mirroring longestPrefixUnder but validated against concurrent writers the
// way tryGet validates Get.
func (t *OLCTree) LongestPrefix(key []byte) (matchedKey, value []byte, ok bool) {
	th := t.domain.ThisThread()
	defer th.Quiescent()
	for {
		mk, mv, found, restart := t.tryLongestPrefix(key)
		if restart {
			continue
		}
		return mk, mv, found
	}
}

func (t *OLCTree) tryLongestPrefix(key []byte) (matchedKey, value []byte, found, restart bool) {
	rg := t.rootLock.tryReadLock()
	if rg.mustRestart() {
		return nil, nil, false, true
	}
	cur := t.root.Load()
	if !rg.check() {
		return nil, nil, false, true
	}
	if cur == nil {
		return nil, nil, false, false
	}

	parent := rg
	depth := 0
	var lastKey, lastValue []byte
	haveMatch := false
	for {
		if cur.kind == kindLeaf {
			lf := cur.asLeaf()
			if len(lf.key) <= len(key) && lf.matches(key[:len(lf.key)]) {
				lastKey, lastValue, haveMatch = lf.key, lf.value, true
			}
			if !parent.check() {
				return nil, nil, false, true
			}
			return lastKey, lastValue, haveMatch, false
		}

		nodeGuard := cur.lock.tryReadLock()
		if nodeGuard.mustRestart() {
			return nil, nil, false, true
		}
		pfx := cur.pfx.slice()
		shifted := safeSlice(key, depth)
		matched := cur.pfx.sharedLength(shifted)
		if matched < len(pfx) {
			if !nodeGuard.check() || !parent.check() {
				return nil, nil, false, true
			}
			return lastKey, lastValue, haveMatch, false
		}
		depth += len(pfx)
		if depth >= len(key) {
			if !nodeGuard.check() || !parent.check() {
				return nil, nil, false, true
			}
			return lastKey, lastValue, haveMatch, false
		}
		child := cur.findChild(key[depth])
		if !nodeGuard.check() {
			return nil, nil, false, true
		}
		if !parent.check() {
			return nil, nil, false, true
		}
		if child == nil {
			return lastKey, lastValue, haveMatch, false
		}
		parent = nodeGuard
		cur = child
		depth++
	}
}

// Clear empties the tree, retiring and deferring reclamation of every node
// it contained so a reader still mid-validation through any of them is
// forced to restart rather than observe a recycled struct.
func (t *OLCTree) Clear() {
	for {
		wg, ok := t.rootLock.tryWriteLockDirect()
		if !ok {
			continue
		}
		old := t.root.Load()
		t.root.Store(nil)
		wg.unlock()
		t.size = 0
		if old != nil {
			t.deferReclaimSubtree(old)
		}
		return
	}
}

// Empty reports whether the tree currently holds no keys.
func (t *OLCTree) Empty() bool { return t.Len() == 0 }

// deferReclaimSubtree retires every node in the subtree rooted at h
// (write-locking and obsoleting each internal node before deferring its
// reclamation) so a reader validating against any of them detects the
// change and restarts rather than running against a recycled allocation.
// Leaves carry no lock under OLC, so they are deferred directly. Returns
// the number of leaves the subtree contained.
func (t *OLCTree) deferReclaimSubtree(h *header) int {
	if h.kind == kindLeaf {
		t.deferReclaim(h)
		return 1
	}
	var wg writeGuard
	for {
		g, ok := h.lock.tryWriteLockDirect()
		if ok {
			wg = g
			break
		}
	}
	n := 0
	child, kb, has := h.begin()
	for has {
		n += t.deferReclaimSubtree(child)
		child, kb, has = h.next(kb)
	}
	wg.unlockAndObsolete()
	t.deferReclaim(h)
	return n
}

// DeletePrefix removes every key sharing prefix as a leading prefix,
// returning the number of keys removed.
func (t *OLCTree) DeletePrefix(prefix []byte) int {
	th := t.domain.ThisThread()
	defer th.Quiescent()
	for {
		wg, ok := t.rootLock.tryWriteLockDirect()
		if !ok {
			continue
		}
		removed, done := t.olcDeletePrefixAt(&t.root, wg, 0, prefix)
		if !done {
			continue
		}
		if removed > 0 {
			t.size -= int64(removed)
			if t.cfg.stats {
				t.stats.removes.Add(int64(removed))
			}
		}
		return removed
	}
}

// olcDeletePrefixAt mirrors deletePrefixUnder under write-lock coupling,
// deferring reclamation of every node an excised subtree contained.
func (t *OLCTree) olcDeletePrefixAt(slot *atomicHeaderPtr, guard writeGuard, depth int, prefixKey []byte) (removed int, done bool) {
	cur := slot.Load()
	if cur == nil {
		guard.release()
		return 0, true
	}
	if cur.kind == kindLeaf {
		lf := cur.asLeaf()
		if !lf.prefixMatches(prefixKey) {
			guard.release()
			return 0, true
		}
		slot.Store(nil)
		guard.unlock()
		t.deferReclaim(cur)
		return 1, true
	}

	h := cur
	pfx := h.pfx.slice()
	remaining := len(prefixKey) - depth
	if remaining <= len(pfx) {
		if longestCommonPrefix(pfx, safeSlice(prefixKey, depth)) != remaining {
			guard.release()
			return 0, true
		}
		slot.Store(nil)
		guard.unlock()
		return t.deferReclaimSubtree(h), true
	}
	if h.pfx.sharedLength(safeSlice(prefixKey, depth)) != len(pfx) {
		guard.release()
		return 0, true
	}
	depth += len(pfx)
	c := prefixKey[depth]
	childSlot := h.childSlot(c)
	if childSlot == nil {
		guard.release()
		return 0, true
	}

	childGuard, ok := h.lock.tryWriteLockDirect()
	if !ok {
		guard.release()
		return 0, false
	}
	guard.release()
	removed, done = t.olcDeletePrefixAt(childSlot, childGuard, depth+1, prefixKey)
	if !done {
		return 0, false
	}
	if removed > 0 && childSlot.Load() == nil {
		wg2, ok := h.lock.tryWriteLockDirect()
		if !ok {
			return removed, true
		}
		if childSlot.Load() == nil {
			t.olcRemoveChildAndMaybeShrink(slot, h, c)
		}
		wg2.release()
	}
	return removed, true
}
