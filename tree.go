package art

// Tree is the single-threaded ART variant: every method assumes exclusive
// access from one goroutine at a time and performs no internal
// synchronization, matching spec.md's baseline variant and the teacher's
// own unsynchronized node mutation style (minus its copy-on-write Txn
// machinery, which this mutable variant has no need for).
type Tree struct {
	root atomicHeaderPtr
	cfg  config
	size int
	stats statCounters

	lastMutated [][]byte
}

// New constructs an empty single-threaded Tree.
func New(opts ...Option) *Tree {
	return &Tree{cfg: newConfig(opts)}
}

// Len reports the number of keys currently stored.
func (t *Tree) Len() int { return t.size }

// Get looks up key, returning its value and whether it was found.
func (t *Tree) Get(key []byte) ([]byte, bool) {
	lf := engineFind(t.root.Load(), key)
	if lf == nil {
		return nil, false
	}
	return lf.value, true
}

// Insert adds key/value, returning ErrDuplicateKey if key already exists.
func (t *Tree) Insert(key, value []byte) error {
	_, _, err := t.put(key, value, false)
	return err
}

// Upsert adds or overwrites key/value, returning the previous value (if
// any) and whether an existing key was replaced.
func (t *Tree) Upsert(key, value []byte) (oldValue []byte, replaced bool) {
	oldValue, replaced, _ = t.put(key, value, true)
	return oldValue, replaced
}

func (t *Tree) put(key, value []byte, upsert bool) ([]byte, bool, error) {
	old, replaced, grew, err := engineInsert(&t.root, 0, key, value, upsert, t.statsOrNil())
	if err != nil {
		return old, replaced, err
	}
	if !replaced {
		t.size++
	}
	if t.cfg.stats {
		if replaced {
			t.stats.updates.Add(1)
		} else {
			t.stats.inserts.Add(1)
		}
		if grew {
			t.stats.grows.Add(1)
		}
	}
	if t.cfg.trackMutate {
		t.lastMutated = append(t.lastMutated, key)
	}
	return old, replaced, nil
}

// statsOrNil returns t's counters when WithStats is enabled, or nil so
// the engine's bookkeeping calls become free no-ops otherwise.
func (t *Tree) statsOrNil() *statCounters {
	if !t.cfg.stats {
		return nil
	}
	return &t.stats
}

// Remove deletes key, returning its value and whether it was present.
func (t *Tree) Remove(key []byte) ([]byte, bool) {
	old, ok, shrunk := engineRemove(&t.root, 0, key, t.statsOrNil())
	if ok {
		t.size--
		if t.cfg.stats {
			t.stats.removes.Add(1)
			if shrunk {
				t.stats.shrinks.Add(1)
			}
		}
		if t.cfg.trackMutate {
			t.lastMutated = append(t.lastMutated, key)
		}
	}
	return old, ok
}

// Stats returns a snapshot of node-kind and mutation counters. Only
// meaningful when the tree was built WithStats.
func (t *Tree) Stats() Stats { return t.stats.snapshot() }

// TrackedMutations returns the keys touched since the last call, clearing
// the internal buffer. Only meaningful when the tree was built
// WithTrackMutate.
func (t *Tree) TrackedMutations() [][]byte {
	out := t.lastMutated
	t.lastMutated = nil
	return out
}

// Iterator returns a forward/backward ordered iterator over the tree as it
// stands at the time of the call. Mutating the tree while an iterator from
// this method is in use is undefined, matching the teacher's own
// unsynchronized single-threaded Tree usage contract.
func (t *Tree) Iterator() *Iterator { return newIterator(t.root.Load()) }

// Scan visits every entry in the tree, ascending order if fwd else
// descending, invoking visit for each until it returns true or the tree is
// exhausted.
func (t *Tree) Scan(visit Visitor, fwd bool) {
	it := t.Iterator()
	step := it.Next
	if !fwd {
		step = it.Prior
	}
	driveVisitor(step, visit)
}

// ScanFrom visits entries starting at the smallest key >= key (fwd) or the
// largest key <= key (!fwd), continuing in that direction until visit
// returns true or the tree is exhausted.
func (t *Tree) ScanFrom(key []byte, visit Visitor, fwd bool) {
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

// ScanRange visits every entry between from and to, direction determined by
// comparing from against to: ascending and half-open [from,to) when
// from < to, descending and half-open (to,from] when from > to. The entry
// at to itself is never visited. A degenerate from == to range is empty.
func (t *Tree) ScanRange(from, to []byte, visit Visitor) {
	scanRange(t, from, to, visit)
}

// Clear empties the tree; Len reports 0 afterward. Accumulated Stats
// counters are left untouched, matching the original's db::clear().
func (t *Tree) Clear() {
	t.root.Store(nil)
	t.size = 0
	t.lastMutated = nil
}

// Empty reports whether the tree currently holds no keys.
func (t *Tree) Empty() bool { return t.size == 0 }

// Minimum returns the key/value pair with the smallest key, if any.
func (t *Tree) Minimum() (key, value []byte, ok bool) {
	return minimumUnder(t.root.Load())
}

// Maximum returns the key/value pair with the largest key, if any.
func (t *Tree) Maximum() (key, value []byte, ok bool) {
	return maximumUnder(t.root.Load())
}

// LongestPrefix returns the entry whose key is the longest prefix of the
// given key, grounded in the teacher's commented-out api_node.go
// LongestPrefix stub.
func (t *Tree) LongestPrefix(key []byte) (matchedKey, value []byte, ok bool) {
	return longestPrefixUnder(t.root.Load(), key)
}

// DeletePrefix removes every key that has prefix as a leading prefix,
// returning the number of keys removed. Grounded in the teacher's
// commented-out txn.go DeletePrefix stub and its own WalkPrefix.
func (t *Tree) DeletePrefix(prefix []byte) int {
	removed := deletePrefixUnder(&t.root, 0, prefix, t.statsOrNil())
	t.size -= removed
	if t.cfg.stats && removed > 0 {
		t.stats.removes.Add(int64(removed))
	}
	return removed
}

func minimumUnder(root *header) (key, value []byte, ok bool) {
	cur := root
	for cur != nil {
		if cur.kind == kindLeaf {
			lf := cur.asLeaf()
			return lf.key, lf.value, true
		}
		child, _, has := cur.begin()
		if !has {
			return nil, nil, false
		}
		cur = child
	}
	return nil, nil, false
}

func maximumUnder(root *header) (key, value []byte, ok bool) {
	cur := root
	for cur != nil {
		if cur.kind == kindLeaf {
			lf := cur.asLeaf()
			return lf.key, lf.value, true
		}
		child, _, has := cur.last()
		if !has {
			return nil, nil, false
		}
		cur = child
	}
	return nil, nil, false
}

func longestPrefixUnder(root *header, key []byte) (matchedKey, value []byte, ok bool) {
	depth := 0
	cur := root
	var lastMatch *leaf
	for cur != nil {
		if cur.kind == kindLeaf {
			lf := cur.asLeaf()
			if len(lf.key) <= len(key) && lf.matches(key[:len(lf.key)]) {
				lastMatch = lf
			}
			break
		}
		pfx := cur.pfx.slice()
		if len(key)-depth < len(pfx) || cur.pfx.sharedLength(key[depth:]) != len(pfx) {
			break
		}
		depth += len(pfx)
		if depth >= len(key) {
			break
		}
		cur = cur.findChild(key[depth])
		depth++
	}
	if lastMatch == nil {
		return nil, nil, false
	}
	return lastMatch.key, lastMatch.value, true
}

func deletePrefixUnder(slot *atomicHeaderPtr, depth int, prefixKey []byte, stats *statCounters) int {
	cur := slot.Load()
	if cur == nil {
		return 0
	}
	if cur.kind == kindLeaf {
		lf := cur.asLeaf()
		if lf.prefixMatches(prefixKey) {
			slot.Store(nil)
			return 1
		}
		return 0
	}
	h := cur
	pfx := h.pfx.slice()
	remaining := len(prefixKey) - depth
	if remaining <= len(pfx) {
		// prefixKey ends within (or exactly at) this node's compressed
		// prefix: either every descendant key matches, or none do.
		if longestCommonPrefix(pfx, safeSlice(prefixKey, depth)) != remaining {
			return 0
		}
		slot.Store(nil)
		return countLeaves(h)
	}
	if h.pfx.sharedLength(safeSlice(prefixKey, depth)) != len(pfx) {
		return 0
	}
	depth += len(pfx)
	c := prefixKey[depth]
	childSlot := h.childSlot(c)
	if childSlot == nil {
		return 0
	}
	removed := deletePrefixUnder(childSlot, depth+1, prefixKey, stats)
	if removed > 0 && childSlot.Load() == nil {
		removeChildAndMaybeShrink(slot, h, c, stats)
	}
	return removed
}

func safeSlice(b []byte, from int) []byte {
	if from >= len(b) {
		return nil
	}
	return b[from:]
}

func countLeaves(root *header) int {
	if root == nil {
		return 0
	}
	if root.kind == kindLeaf {
		return 1
	}
	n := 0
	child, keyByte, ok := root.begin()
	for ok {
		n += countLeaves(child)
		child, keyByte, ok = root.next(keyByte)
	}
	return n
}
