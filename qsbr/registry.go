package qsbr

import (
	"sync"

	"github.com/dolthub/maphash"
)

// registry is a sharded, hash-partitioned lookaside used by ThisThread to
// find a goroutine's ThreadState for a given Domain without serializing
// every lookup behind one mutex. Sharding key is the goroutine id; shard
// count is fixed so this stays allocation-free after warmup.
const registryShards = 32

type registryShard struct {
	mu sync.RWMutex
	m  map[int64]*ThreadState
}

type registry struct {
	hasher maphash.Hasher[int64]
	shards [registryShards]registryShard
}

func newRegistry() *registry {
	r := &registry{hasher: maphash.NewHasher[int64]()}
	for i := range r.shards {
		r.shards[i].m = make(map[int64]*ThreadState)
	}
	return r
}

func (r *registry) shardFor(goid int64) *registryShard {
	h := r.hasher.Hash(goid)
	return &r.shards[h%registryShards]
}

func (r *registry) get(goid int64) (*ThreadState, bool) {
	s := r.shardFor(goid)
	s.mu.RLock()
	t, ok := s.m[goid]
	s.mu.RUnlock()
	return t, ok
}

func (r *registry) put(goid int64, t *ThreadState) {
	s := r.shardFor(goid)
	s.mu.Lock()
	s.m[goid] = t
	s.mu.Unlock()
}

func (r *registry) delete(goid int64) {
	s := r.shardFor(goid)
	s.mu.Lock()
	delete(s.m, goid)
	s.mu.Unlock()
}
