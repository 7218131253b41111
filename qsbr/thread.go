package qsbr

import (
	"sync"
	"sync/atomic"

	"github.com/timandy/routine"

	"github.com/example/art/internal/artdebug"
)

// ThreadState is a single thread's (goroutine's) bookkeeping within a
// Domain: its two request intervals and the last epoch it observed, as
// spec.md §4.H describes.
type ThreadState struct {
	domain *Domain
	id     int64

	lastSeenEpoch atomic.Uint64
	quiescentSinceEpochChange atomic.Uint64

	// previous/current hold deferred Requests; they are only ever touched
	// by the owning goroutine (or, after Unregister, spliced under
	// orphanedMu), so no lock is needed here.
	previous []Request
	current  []Request

	paused bool
}

var registries sync.Map // *Domain -> *registry, lazily created per domain

func registryFor(d *Domain) *registry {
	if v, ok := registries.Load(d); ok {
		return v.(*registry)
	}
	r := newRegistry()
	actual, _ := registries.LoadOrStore(d, r)
	return actual.(*registry)
}

// ThisThread returns the calling goroutine's ThreadState within d,
// registering it on first use. This is the Go-native analogue of spec.md
// §6's `this_thread()` accessor.
func (d *Domain) ThisThread() *ThreadState {
	goid := routine.Goid()
	reg := registryFor(d)
	if t, ok := reg.get(goid); ok {
		return t
	}
	t := d.Register()
	t.id = goid
	reg.put(goid, t)
	return t
}

// UnregisterThisThread removes the calling goroutine from the domain. Call
// this when a goroutine is done performing operations against the domain's
// tree to avoid holding back reclamation indefinitely.
func (d *Domain) UnregisterThisThread() {
	goid := routine.Goid()
	reg := registryFor(d)
	if t, ok := reg.get(goid); ok {
		d.Unregister(t)
		reg.delete(goid)
	}
}

// Defer enqueues a reclamation action to run once every thread in the
// domain has passed a quiescent state since it was enqueued.
func (t *ThreadState) Defer(r Request) {
	if t.domain.singleThreadMode() {
		// Fast path from spec.md §4.H: with one registered thread there is
		// no concurrent reader to protect against, so free on the next
		// quiescent() call without the two-epoch delay. We still queue into
		// `current` rather than running inline, so a request enqueued
		// mid-traversal is not freed out from under the traversal itself.
		t.current = append(t.current, r)
		return
	}
	t.current = append(t.current, r)
}

// Quiescent declares that the calling thread currently holds no pointers
// into QSBR-managed memory, per spec.md §4.H's quiescent transition.
func (t *ThreadState) Quiescent() {
	artdebug.AssertNoActivePointers()

	// epoch is the epoch we are about to signal for. lastSeenEpoch must
	// record THIS value (not whatever the epoch becomes after our own
	// advance below), so that a lone or last-remaining thread can still
	// detect, on its very next call, that a new epoch has begun needing a
	// fresh signal.
	epoch := t.domain.Epoch()
	if t.lastSeenEpoch.Load() == epoch {
		// Already signaled this epoch; no-op.
		return
	}

	// Release-fence equivalent: Go's atomic ops on word already give the
	// necessary ordering; the decrement below is the release operation.
	advanced := t.domain.decrementRemaining()

	var toFree []Request
	if t.domain.singleThreadMode() {
		// Fast path: nobody else can hold a pointer into this domain's
		// memory, so both intervals are safe to free right away.
		toFree = append(t.previous, t.current...)
		t.previous = nil
		t.current = nil
	} else {
		toFree = t.previous
		t.previous = t.current
		t.current = nil
	}
	t.lastSeenEpoch.Store(epoch)
	t.quiescentSinceEpochChange.Add(1)

	if advanced {
		t.domain.advanceOrphans()
	}

	for _, r := range toFree {
		r()
	}
}

// decrementRemaining decrements threads-still-to-signal-this-epoch and, if
// it reaches zero, advances the epoch and resets the counter to
// threadCount. Returns true if this call advanced the epoch.
func (d *Domain) decrementRemaining() bool {
	for {
		old := d.word.Load()
		epoch, count, remaining := unpack(old)
		if remaining == 0 {
			// Nothing left to decrement this round (can happen right after
			// another thread just advanced the epoch); treat as already
			// on the new epoch.
			return false
		}
		remaining--
		if remaining == 0 {
			neu := pack(epoch+1, count, count)
			if d.word.CompareAndSwap(old, neu) {
				return true
			}
			continue
		}
		neu := pack(epoch, count, remaining)
		if d.word.CompareAndSwap(old, neu) {
			return false
		}
	}
}

// QuiescentOnReturn returns a scope guard that signals a quiescent state
// when it goes out of scope, mirroring spec.md §4.H's "quiescent state on
// scope exit" construct:
//
//	defer domain.ThisThread().QuiescentOnReturn()()
func (t *ThreadState) QuiescentOnReturn() func() {
	return t.Quiescent
}

// Pause marks the thread as not participating in reclamation accounting
// temporarily (e.g. it is about to block on I/O) so it does not hold back
// other threads' epoch advancement.
func (t *ThreadState) Pause() {
	if t.paused {
		return
	}
	t.paused = true
	for {
		old := t.domain.word.Load()
		epoch, count, remaining := unpack(old)
		newCount := count
		if newCount > 0 {
			newCount--
		}
		wasCounted := remaining > 0
		newRemaining := remaining
		if wasCounted {
			newRemaining--
		}
		if wasCounted && newRemaining == 0 && newCount > 0 {
			neu := pack(epoch+1, newCount, newCount)
			if t.domain.word.CompareAndSwap(old, neu) {
				t.domain.advanceOrphans()
				return
			}
			continue
		}
		neu := pack(epoch, newCount, newRemaining)
		if t.domain.word.CompareAndSwap(old, neu) {
			return
		}
	}
}

// Resume re-enters reclamation accounting after Pause, re-registering the
// thread's slot in the current epoch's remaining count.
func (t *ThreadState) Resume() {
	if !t.paused {
		return
	}
	t.paused = false
	for {
		old := t.domain.word.Load()
		epoch, count, remaining := unpack(old)
		neu := pack(epoch, count+1, remaining+1)
		if t.domain.word.CompareAndSwap(old, neu) {
			return
		}
	}
}

// PauseGuard returns an RAII-style pause/resume pair: call the returned
// func to resume.
func (t *ThreadState) PauseGuard() func() {
	t.Pause()
	return t.Resume
}
