package art

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOLCTreeInsertGetRemove(t *testing.T) {
	tr := NewOLC()
	for i := int32(0); i < 2000; i++ {
		require.NoError(t, tr.Insert(intKey(i), []byte(fmt.Sprint(i))))
	}
	for i := int32(0); i < 2000; i++ {
		v, ok := tr.Get(intKey(i))
		require.True(t, ok)
		assert.Equal(t, fmt.Sprint(i), string(v))
	}
	for i := int32(0); i < 2000; i += 2 {
		_, ok := tr.Remove(intKey(i))
		require.True(t, ok)
	}
	assert.Equal(t, int64(1000), tr.Len())
	for i := int32(1); i < 2000; i += 2 {
		_, ok := tr.Get(intKey(i))
		assert.True(t, ok)
	}
}

func TestOLCTreeDuplicateKeyRejected(t *testing.T) {
	tr := NewOLC()
	require.NoError(t, tr.Insert(intKey(1), []byte("a")))
	err := tr.Insert(intKey(1), []byte("b"))
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

// TestOLCTreeConcurrentWritersDistinctKeys stresses the writer-side
// hand-over-hand locking with many goroutines inserting disjoint key
// ranges concurrently, then verifies every key landed.
func TestOLCTreeConcurrentWritersDistinctKeys(t *testing.T) {
	tr := NewOLC()
	const workers = 16
	const perWorker = 500
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := int32(w*perWorker + i)
				require.NoError(t, tr.Insert(intKey(key), []byte(fmt.Sprint(key))))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, int64(workers*perWorker), tr.Len())
	for w := 0; w < workers; w++ {
		for i := 0; i < perWorker; i++ {
			key := int32(w*perWorker + i)
			v, ok := tr.Get(intKey(key))
			require.True(t, ok)
			assert.Equal(t, fmt.Sprint(key), string(v))
		}
	}
}

// TestOLCTreeReadersDuringWrites verifies readers never observe a panic or
// a torn value while writers concurrently upsert the same key range; it is
// a best-effort stress test for the optimistic read path's retry loop, not
// a full linearizability checker.
func TestOLCTreeReadersDuringWrites(t *testing.T) {
	tr := NewOLC()
	for i := int32(0); i < 200; i++ {
		require.NoError(t, tr.Insert(intKey(i), []byte(fmt.Sprint(i))))
	}

	stop := make(chan struct{})
	var writers, readers sync.WaitGroup

	for w := 0; w < 4; w++ {
		writers.Add(1)
		go func(w int) {
			defer writers.Done()
			for i := int32(0); ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				tr.Upsert(intKey(200+i%50), []byte(fmt.Sprint(i)))
			}
		}(w)
	}

	for r := 0; r < 8; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for i := 0; i < 20000; i++ {
				v, ok := tr.Get(intKey(int32(i % 250)))
				if ok {
					assert.NotEmpty(t, v)
				}
			}
		}()
	}

	readers.Wait()
	close(stop)
	writers.Wait()
}

func TestOLCTreeStatsTracksGrowth(t *testing.T) {
	tr := NewOLC(WithStats())
	for i := int32(0); i < 300; i++ {
		require.NoError(t, tr.Insert(intKey(i<<20), []byte(fmt.Sprint(i))))
	}
	stats := tr.Stats()
	assert.Greater(t, stats.Grows, int64(0))

	for i := int32(0); i < 295; i++ {
		_, ok := tr.Remove(intKey(i << 20))
		require.True(t, ok)
	}
	stats = tr.Stats()
	assert.Greater(t, stats.Shrinks, int64(0))
}
