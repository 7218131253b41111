package art

import "golang.org/x/sys/cpu"

// hasVectorCompare reports whether the host can usefully run the branchless
// linear scan in node16's findChildVectorStyle instead of sort.Search. Real
// ART implementations use SIMD intrinsics to compare all 16 index bytes in
// one instruction; Go has no portable intrinsic for that, so this only
// gates a branch-predictor-friendly scan versus binary search, not actual
// SIMD codegen.
var hasVectorCompare = cpu.X86.HasSSE2 || cpu.ARM64.HasASIMD

// findChildVectorStyle scans the full index linearly with no early exit
// branch, which on CPUs addressed by hasVectorCompare outperforms
// sort.Search's data-dependent branching for n<=16. It is semantically
// identical to node16.indexOf and exists purely as an alternate code path
// selected once at lookup time.
func (n *node16) findChildVectorStyle(c byte) *header {
	var found int = -1
	for i := 0; i < int(n.count); i++ {
		if n.index[i] == c {
			found = i
		}
	}
	if found < 0 {
		return nil
	}
	return n.children[found].Load()
}
