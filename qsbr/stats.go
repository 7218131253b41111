package qsbr

// QuiescentStatesSinceEpochChange returns how many of this thread's
// quiescent() calls signaled a quiescent state (repeat calls within an
// epoch it already signaled are not counted); the count is never reset.
// For statistics (spec.md §4.H per-thread state).
func (t *ThreadState) QuiescentStatesSinceEpochChange() uint64 {
	return t.quiescentSinceEpochChange.Load()
}

// Stats is a snapshot of domain-wide QSBR bookkeeping.
type Stats struct {
	Epoch               uint64
	ThreadCount         int
	OrphanedPrevious    int
	OrphanedCurrent     int
}

// Stats reports a point-in-time snapshot. It is racy with concurrent
// mutation by design (stats are advisory, not used for correctness).
func (d *Domain) Stats() Stats {
	epoch, count, _ := unpack(d.word.Load())
	d.orphanedMu.Lock()
	prev, cur := len(d.orphanedPrev), len(d.orphanedCurrent)
	d.orphanedMu.Unlock()
	return Stats{
		Epoch:            epoch,
		ThreadCount:      int(count),
		OrphanedPrevious: prev,
		OrphanedCurrent:  cur,
	}
}
