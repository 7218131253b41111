package art

// Iterator walks keys in ascending order using an explicit path stack
// rather than recursion, so Next can resume from wherever it left off
// instead of re-descending the tree on every call.
type Iterator struct {
	stack []iterFrame
}

type iterFrame struct {
	node    *header
	nextKey byte
	started bool
}

func newIterator(root *header) *Iterator {
	it := &Iterator{}
	if root != nil {
		it.stack = append(it.stack, iterFrame{node: root})
	}
	return it
}

// Next returns the next key/value pair in ascending order.
func (it *Iterator) Next() (key, value []byte, ok bool) {
	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]

		if top.node.kind == kindLeaf {
			lf := top.node.asLeaf()
			it.stack = it.stack[:len(it.stack)-1]
			return lf.key, lf.value, true
		}

		var child *header
		var kb byte
		var has bool
		if !top.started {
			top.started = true
			child, kb, has = top.node.begin()
		} else {
			child, kb, has = top.node.next(top.nextKey)
		}
		if !has {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		top.nextKey = kb
		it.stack = append(it.stack, iterFrame{node: child})
	}
	return nil, nil, false
}

// Prior returns the next key/value pair in descending order, mirroring
// Next but walking last()/prior() instead of begin()/next(). A single
// Iterator should be driven with either Next or Prior after a seek, not
// both, since the two share the same stack.
func (it *Iterator) Prior() (key, value []byte, ok bool) {
	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]

		if top.node.kind == kindLeaf {
			lf := top.node.asLeaf()
			it.stack = it.stack[:len(it.stack)-1]
			return lf.key, lf.value, true
		}

		var child *header
		var kb byte
		var has bool
		if !top.started {
			top.started = true
			child, kb, has = top.node.last()
		} else {
			child, kb, has = top.node.prior(top.nextKey)
		}
		if !has {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		top.nextKey = kb
		it.stack = append(it.stack, iterFrame{node: child})
	}
	return nil, nil, false
}

// SeekGE repositions the iterator so the next call to Next returns the
// smallest key >= key.
func (it *Iterator) SeekGE(key []byte) {
	it.stack = it.stack[:0]
	root := it.root()
	if root == nil {
		return
	}
	seekFromRoot(it, root, key, true)
}

// SeekLE repositions the iterator so the next call to Prior returns the
// largest key <= key.
func (it *Iterator) SeekLE(key []byte) {
	it.stack = it.stack[:0]
	root := it.root()
	if root == nil {
		return
	}
	seekFromRoot(it, root, key, false)
}

func (it *Iterator) root() *header {
	if len(it.stack) == 0 {
		return nil
	}
	return it.stack[0].node
}

// seekFromRoot rebuilds the stack to point just before the first element
// the subsequent Next()/Prior() calls should return, descending the
// gte/lte child chain at each level the way an ART "seek" operation does:
// follow the prefix while it matches, and once it diverges take whichever
// side of the divergence satisfies the bound.
func seekFromRoot(it *Iterator, root *header, key []byte, forward bool) {
	it.stack = it.stack[:0]
	depth := 0
	cur := root
	for cur != nil {
		if cur.kind == kindLeaf {
			lf := cur.asLeaf()
			cmp := compareBytes(lf.key, key)
			if (forward && cmp >= 0) || (!forward && cmp <= 0) {
				it.stack = append(it.stack, iterFrame{node: cur})
			}
			return
		}
		pfx := cur.pfx.slice()
		shifted := safeSlice(key, depth)
		shared := cur.pfx.sharedLength(shifted)
		if shared < len(pfx) {
			nodeByte := pfx[shared]
			var keyByte byte
			if shared < len(shifted) {
				keyByte = shifted[shared]
			}
			if (forward && nodeByte >= keyByte) || (!forward && nodeByte <= keyByte) {
				it.stack = append(it.stack, iterFrame{node: cur})
			}
			return
		}
		depth += len(pfx)
		if depth >= len(key) {
			it.stack = append(it.stack, iterFrame{node: cur})
			return
		}
		it.stack = append(it.stack, iterFrame{node: cur, started: true})
		top := &it.stack[len(it.stack)-1]
		var child *header
		var kb byte
		var has bool
		if forward {
			child, kb, has = cur.gteKeyByte(key[depth])
		} else {
			child, kb, has = cur.lteKeyByte(key[depth])
		}
		if !has {
			return
		}
		top.nextKey = kb
		if kb != key[depth] {
			// child lies strictly past the bound, so every key under it
			// satisfies the bound: start from its first (or last) element.
			it.stack = append(it.stack, iterFrame{node: child})
			return
		}
		depth++
		cur = child
	}
}

// Visitor is invoked once per entry visited by Scan/ScanFrom/ScanRange;
// returning true halts the scan before any further entries are visited.
type Visitor func(key, value []byte) bool

// driveVisitor repeatedly calls step until it runs out of entries or visit
// requests an early halt.
func driveVisitor(step func() (key, value []byte, ok bool), visit Visitor) {
	for {
		k, v, ok := step()
		if !ok {
			return
		}
		if visit(k, v) {
			return
		}
	}
}

// scanFromer is the subset of Tree/SyncTree/OLCTree that scanRange drives;
// factored out so all three variants share one ScanRange implementation.
type scanFromer interface {
	ScanFrom(key []byte, visit Visitor, fwd bool)
}

// scanRange computes direction from a byte-wise comparison of from and to
// and stops, without visiting, the moment the walk reaches to: half-open
// [from,to) ascending when from < to, half-open (to,from] descending when
// from > to. from == to visits nothing.
func scanRange(t scanFromer, from, to []byte, visit Visitor) {
	cmp := compareBytes(from, to)
	if cmp == 0 {
		return
	}
	fwd := cmp < 0
	t.ScanFrom(from, func(k, v []byte) bool {
		if fwd && compareBytes(k, to) >= 0 {
			return true
		}
		if !fwd && compareBytes(k, to) <= 0 {
			return true
		}
		return visit(k, v)
	}, fwd)
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
