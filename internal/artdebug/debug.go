//go:build debug

// Package artdebug holds diagnostics compiled in only under `-tags debug`:
// structural-invariant logging and the QSBR "active pointers registered for
// access" bookkeeping from spec.md §4.H. None of this runs in release
// builds.
package artdebug

import (
	"fmt"
	"os"
	"sync"

	"github.com/timandy/routine"
)

// Enabled is true when built with the debug tag.
const Enabled = true

var threadLocal = routine.NewThreadLocal[*goroutineState]()

type goroutineState struct {
	mu     sync.Mutex
	active map[uintptr]struct{}
}

func state() *goroutineState {
	s := threadLocal.Get()
	if s == nil {
		s = &goroutineState{active: make(map[uintptr]struct{})}
		threadLocal.Set(s)
	}
	return s
}

// Log prints a diagnostic line tagged with the calling goroutine's identity.
func Log(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[art debug goroutine=%d] "+format+"\n",
		append([]any{routine.Goid()}, args...)...)
}

// RegisterActivePointer records that the current goroutine holds a pointer
// into QSBR-managed memory, as spec.md §4.H's debug invariant requires.
func RegisterActivePointer(p uintptr) {
	s := state()
	s.mu.Lock()
	s.active[p] = struct{}{}
	s.mu.Unlock()
}

// ReleaseActivePointer undoes RegisterActivePointer.
func ReleaseActivePointer(p uintptr) {
	s := state()
	s.mu.Lock()
	delete(s.active, p)
	s.mu.Unlock()
}

// AssertNoActivePointers panics if the calling goroutine still holds
// registered pointers; QSBR's quiescent() call uses this to enforce that a
// thread never declares quiescence while holding live references.
func AssertNoActivePointers() {
	s := state()
	s.mu.Lock()
	n := len(s.active)
	s.mu.Unlock()
	if n != 0 {
		panic(fmt.Sprintf("art: quiescent() called with %d active pointer(s) still registered", n))
	}
}
