package art

import "sync"

// SyncTree is the coarse mutex-serialized variant from spec.md: a single
// sync.RWMutex guards the whole tree, so readers run concurrently with
// each other but exclude writers and each other excludes readers, same
// trade-off the teacher's immutable Tree/Txn split exists to avoid but
// without that design's copy-on-write allocation cost per write.
type SyncTree struct {
	mu   sync.RWMutex
	tree Tree
}

// NewSync constructs an empty SyncTree.
func NewSync(opts ...Option) *SyncTree {
	return &SyncTree{tree: Tree{cfg: newConfig(opts)}}
}

func (t *SyncTree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.size
}

func (t *SyncTree) Get(key []byte) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.Get(key)
}

func (t *SyncTree) Insert(key, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tree.Insert(key, value)
}

func (t *SyncTree) Upsert(key, value []byte) (oldValue []byte, replaced bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tree.Upsert(key, value)
}

func (t *SyncTree) Remove(key []byte) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tree.Remove(key)
}

func (t *SyncTree) DeletePrefix(prefix []byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tree.DeletePrefix(prefix)
}

// Scan holds the read lock for the duration of the walk, including every
// call to visit, mirroring Iterator's snapshot-for-the-lifetime contract.
func (t *SyncTree) Scan(visit Visitor, fwd bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.tree.Scan(visit, fwd)
}

func (t *SyncTree) ScanFrom(key []byte, visit Visitor, fwd bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.tree.ScanFrom(key, visit, fwd)
}

func (t *SyncTree) ScanRange(from, to []byte, visit Visitor) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.tree.ScanRange(from, to, visit)
}

func (t *SyncTree) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tree.Clear()
}

func (t *SyncTree) Empty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.Empty()
}

func (t *SyncTree) Minimum() (key, value []byte, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.Minimum()
}

func (t *SyncTree) Maximum() (key, value []byte, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.Maximum()
}

func (t *SyncTree) LongestPrefix(key []byte) (matchedKey, value []byte, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.LongestPrefix(key)
}

func (t *SyncTree) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.Stats()
}

func (t *SyncTree) TrackedMutations() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tree.TrackedMutations()
}

// Iterator returns a snapshot-consistent forward iterator. The iterator
// holds the read lock for its entire lifetime, so callers must call
// Close when finished walking to release it; this is the coarse variant's
// equivalent of the teacher's Txn-scoped read views.
func (t *SyncTree) Iterator() *SyncIterator {
	t.mu.RLock()
	return &SyncIterator{it: newIterator(t.tree.root.Load()), tree: t}
}

// SyncIterator wraps Iterator with the RWMutex read lock held for its
// lifetime.
type SyncIterator struct {
	it     *Iterator
	tree   *SyncTree
	closed bool
}

func (si *SyncIterator) Next() (key, value []byte, ok bool)  { return si.it.Next() }
func (si *SyncIterator) Prior() (key, value []byte, ok bool) { return si.it.Prior() }
func (si *SyncIterator) SeekGE(key []byte)                   { si.it.SeekGE(key) }
func (si *SyncIterator) SeekLE(key []byte)                   { si.it.SeekLE(key) }

// Close releases the read lock. Safe to call more than once.
func (si *SyncIterator) Close() {
	if si.closed {
		return
	}
	si.closed = true
	si.tree.mu.RUnlock()
}
