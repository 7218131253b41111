// Package qsbr implements Quiescent-State-Based Reclamation: registered
// threads periodically declare a quiescent state (holding no pointers into
// QSBR-managed memory); deferred frees are only run once every registered
// thread has passed through a quiescent state since the free was requested.
//
// This stands in for the C/C++ "free the node" step of spec.md §4.H: Go has
// no manual deallocation, so a Request here is a thunk that drops the last
// references to an obsolete node (and, where a node pool is in use, returns
// its backing array to that pool) once it is safe to do so.
package qsbr

import (
	"sync"
	"sync/atomic"
)

// Request is a deferred reclamation action: clearing pointer fields on an
// obsolete node so the GC can collect it, and/or returning it to a pool.
type Request func()

const (
	epochShift       = 32
	threadCountShift = 16
	threadCountMask  = 0xFFFF
	remainingMask    = 0xFFFF
)

func pack(epoch, threadCount, remaining uint64) uint64 {
	return epoch<<epochShift | (threadCount&threadCountMask)<<threadCountShift | (remaining & remainingMask)
}

func unpack(w uint64) (epoch, threadCount, remaining uint64) {
	epoch = w >> epochShift
	threadCount = (w >> threadCountShift) & threadCountMask
	remaining = w & remainingMask
	return
}

// Domain is one independent QSBR instance: a tree variant owns one Domain
// and every goroutine that touches it must Register/Unregister. Per-thread
// lookup by goroutine id is handled separately by the sharded registry in
// registry.go; Domain itself only tracks the packed epoch/count/remaining word
// and the orphaned-request lists.
type Domain struct {
	word atomic.Uint64 // packed (epoch, threadCount, threadsRemainingThisEpoch)

	orphanedMu      sync.Mutex
	orphanedPrev    []Request
	orphanedCurrent []Request
}

// NewDomain creates an empty QSBR domain with no registered threads.
func NewDomain() *Domain {
	d := &Domain{}
	d.word.Store(pack(0, 0, 0))
	return d
}

// singleThreadMode reports whether at most one thread is registered, which
// enables the fast path described in spec.md §4.H: deferred requests may be
// freed immediately on the next quiescent() call without waiting a full
// two-epoch delay.
func (d *Domain) singleThreadMode() bool {
	_, count, _ := unpack(d.word.Load())
	return count <= 1
}

// Register creates per-thread state for the calling thread's use and adds
// it to the live thread count. The returned ThreadState must be released
// with Unregister when the thread is done participating.
func (d *Domain) Register() *ThreadState {
	t := &ThreadState{domain: d}

	for {
		old := d.word.Load()
		epoch, count, remaining := unpack(old)
		count++
		remaining++
		neu := pack(epoch, count, remaining)
		if d.word.CompareAndSwap(old, neu) {
			break
		}
	}
	// Sentinel "never signaled" value: a freshly registered thread must not
	// be mistaken for one that already signaled quiescence in whatever the
	// current epoch happens to be.
	t.lastSeenEpoch.Store(^uint64(0))

	return t
}

// Unregister removes a thread from the domain. Any deferred requests it
// still held are spliced onto the domain's orphan lists so they are not
// lost, per spec.md §4.H's "orphaned requests" behavior.
func (d *Domain) Unregister(t *ThreadState) {
	d.orphanedMu.Lock()
	d.orphanedPrev = append(d.orphanedPrev, t.previous...)
	d.orphanedCurrent = append(d.orphanedCurrent, t.current...)
	d.orphanedMu.Unlock()
	t.previous = nil
	t.current = nil

	for {
		old := d.word.Load()
		epoch, count, remaining := unpack(old)
		if count > 0 {
			count--
		}
		wasCounted := remaining > 0
		if wasCounted {
			remaining--
		}
		var neu uint64
		if remaining == 0 && wasCounted {
			epoch++
			remaining = count
			neu = pack(epoch, count, remaining)
			if d.word.CompareAndSwap(old, neu) {
				d.advanceOrphans()
				return
			}
			continue
		}
		neu = pack(epoch, count, remaining)
		if d.word.CompareAndSwap(old, neu) {
			return
		}
	}
}

// advanceOrphans drains orphanedPrev (now guaranteed safe to run) and
// promotes orphanedCurrent into orphanedPrev for the next epoch change.
func (d *Domain) advanceOrphans() {
	d.orphanedMu.Lock()
	toRun := d.orphanedPrev
	d.orphanedPrev = d.orphanedCurrent
	d.orphanedCurrent = nil
	d.orphanedMu.Unlock()

	for _, r := range toRun {
		r()
	}
}

// Epoch returns the domain's current epoch counter, chiefly for tests and
// statistics.
func (d *Domain) Epoch() uint64 {
	epoch, _, _ := unpack(d.word.Load())
	return epoch
}

// ThreadCount returns the number of currently registered threads.
func (d *Domain) ThreadCount() int {
	_, count, _ := unpack(d.word.Load())
	return int(count)
}
