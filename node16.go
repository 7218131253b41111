package art

import "sort"

// node16 holds 5-16 children with a sorted index searched by binary search,
// adapted from the teacher's node16.go. The teacher's comment notes real ART
// implementations use SIMD to compare all 16 index bytes at once; the
// golang.org/x/sys/cpu gates an alternate linear scan for that style of
// fast path (see findChildVectorStyle in simd.go), with sort.Search kept as
// the fallback on hosts without it.
type node16 struct {
	header
	index    [16]byte
	children [16]atomicHeaderPtr
}

func newNode16() *node16 {
	n := &node16{}
	n.header.kind = kindNode16
	n.header.self = unsafePointerOf(n)
	return n
}

func (n *node16) indexOf(c byte) int {
	idx := sort.Search(int(n.count), func(i int) bool { return n.index[i] >= c })
	if idx < int(n.count) && n.index[idx] == c {
		return idx
	}
	return -1
}

func (n *node16) findChild(c byte) *header {
	if hasVectorCompare {
		return n.findChildVectorStyle(c)
	}
	if idx := n.indexOf(c); idx >= 0 {
		return n.children[idx].Load()
	}
	return nil
}

func (n *node16) childSlot(c byte) *atomicHeaderPtr {
	if idx := n.indexOf(c); idx >= 0 {
		return &n.children[idx]
	}
	return nil
}

func (n *node16) addChild(c byte, child *header) {
	idx := sort.Search(int(n.count), func(i int) bool { return n.index[i] >= c })
	for i := int(n.count); i > idx; i-- {
		n.index[i] = n.index[i-1]
		n.children[i].Store(n.children[i-1].Load())
	}
	n.index[idx] = c
	n.children[idx].Store(child)
	n.count++
}

func (n *node16) removeChild(c byte) {
	idx := n.indexOf(c)
	if idx < 0 {
		return
	}
	for i := idx; i < int(n.count)-1; i++ {
		n.index[i] = n.index[i+1]
		n.children[i].Store(n.children[i+1].Load())
	}
	n.count--
	n.children[n.count].Store(nil)
}

func (n *node16) begin() (*header, byte, bool) {
	if n.count == 0 {
		return nil, 0, false
	}
	return n.children[0].Load(), n.index[0], true
}

func (n *node16) last() (*header, byte, bool) {
	if n.count == 0 {
		return nil, 0, false
	}
	i := n.count - 1
	return n.children[i].Load(), n.index[i], true
}

func (n *node16) next(after byte) (*header, byte, bool) {
	idx := sort.Search(int(n.count), func(i int) bool { return n.index[i] > after })
	if idx < int(n.count) {
		return n.children[idx].Load(), n.index[idx], true
	}
	return nil, 0, false
}

func (n *node16) prior(before byte) (*header, byte, bool) {
	idx := sort.Search(int(n.count), func(i int) bool { return n.index[i] >= before }) - 1
	if idx >= 0 {
		return n.children[idx].Load(), n.index[idx], true
	}
	return nil, 0, false
}

func (n *node16) gteKeyByte(b byte) (*header, byte, bool) {
	idx := sort.Search(int(n.count), func(i int) bool { return n.index[i] >= b })
	if idx < int(n.count) {
		return n.children[idx].Load(), n.index[idx], true
	}
	return nil, 0, false
}

func (n *node16) lteKeyByte(b byte) (*header, byte, bool) {
	idx := sort.Search(int(n.count), func(i int) bool { return n.index[i] > b }) - 1
	if idx >= 0 {
		return n.children[idx].Load(), n.index[idx], true
	}
	return nil, 0, false
}

// grow copies this node's contents into a fresh node48, used once the 17th
// child needs to be added. node48's index is a direct 256-byte byte-to-slot
// map (see node48.go), so growth rebuilds that map from the sorted index.
func (n *node16) grow() *node48 {
	n48 := newNode48()
	n48.header.pfx = n.header.pfx
	for i := 0; i < int(n.count); i++ {
		n48.index[n.index[i]] = uint8(i + 1)
		n48.children[i].Store(n.children[i].Load())
	}
	n48.count = n.count
	return n48
}

// shrink copies this node's contents, excluding the child at byte c, into a
// fresh node4, used once the child count drops to 4.
func (n *node16) shrink(excluding byte) *node4 {
	n4 := newNode4()
	n4.header.pfx = n.header.pfx
	for i := 0; i < int(n.count); i++ {
		if n.index[i] == excluding {
			continue
		}
		n4.index[n4.count] = n.index[i]
		n4.children[n4.count].Store(n.children[i].Load())
		n4.count++
	}
	return n4
}
