package art

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/art/keycodec"
)

func TestTreeScanRangeDirections(t *testing.T) {
	tr := New()
	for _, v := range []int32{10, 20, 30, 40, 50} {
		tr.Upsert(intKey(v), []byte(fmt.Sprint(v)))
	}

	var fwd []string
	tr.ScanRange(intKey(15), intKey(45), func(_, v []byte) bool {
		fwd = append(fwd, string(v))
		return false
	})
	assert.Equal(t, []string{"20", "30", "40"}, fwd)

	var rev []string
	tr.ScanRange(intKey(45), intKey(15), func(_, v []byte) bool {
		rev = append(rev, string(v))
		return false
	})
	assert.Equal(t, []string{"40", "30", "20"}, rev)

	var none []string
	tr.ScanRange(intKey(20), intKey(20), func(_, v []byte) bool {
		none = append(none, string(v))
		return false
	})
	assert.Nil(t, none)
}

func TestTreeScanFromAndHalt(t *testing.T) {
	tr := New()
	for _, v := range []int32{1, 2, 3, 4, 5} {
		tr.Upsert(intKey(v), []byte(fmt.Sprint(v)))
	}
	var got []string
	tr.ScanFrom(intKey(3), func(_, v []byte) bool {
		got = append(got, string(v))
		return len(got) == 2
	}, true)
	assert.Equal(t, []string{"3", "4"}, got)
}

func TestTreeClearEmpty(t *testing.T) {
	tr := New()
	assert.True(t, tr.Empty())
	for i := int32(0); i < 50; i++ {
		tr.Upsert(intKey(i), []byte(fmt.Sprint(i)))
	}
	assert.False(t, tr.Empty())
	tr.Clear()
	assert.True(t, tr.Empty())
	assert.Equal(t, 0, tr.Len())
	_, ok := tr.Get(intKey(0))
	assert.False(t, ok)
}

func TestSyncTreeScanAndClear(t *testing.T) {
	tr := NewSync()
	var want []int32
	for i := int32(0); i < 100; i++ {
		require.NoError(t, tr.Insert(intKey(i), []byte(fmt.Sprint(i))))
		want = append(want, i)
	}
	var got []int32
	tr.Scan(func(k, _ []byte) bool {
		var d keycodec.Decoder
		d.Reset(k)
		got = append(got, d.DecodeInt32())
		return false
	}, true)
	assert.Equal(t, want, got)

	tr.Clear()
	assert.True(t, tr.Empty())
	assert.Equal(t, 0, tr.Len())
}

// TestOLCTreeScanOrderAfterConcurrentInserts is the scenario explicitly
// named for the OLC variant: scan its contents in ascending order after
// concurrent writers have finished inserting, confirming the restart-on-
// conflict iterator yields a fully sorted, duplicate-free sequence even
// though it never held a persisted path stack during the writes.
func TestOLCTreeScanOrderAfterConcurrentInserts(t *testing.T) {
	tr := NewOLC()
	const workers = 8
	const perWorker = 250
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				v := int32(w*perWorker + i)
				require.NoError(t, tr.Insert(intKey(v), []byte(fmt.Sprint(v))))
			}
		}(w)
	}
	wg.Wait()

	var got []int32
	tr.Scan(func(k, _ []byte) bool {
		var d keycodec.Decoder
		d.Reset(k)
		got = append(got, d.DecodeInt32())
		return false
	}, true)

	require.Equal(t, workers*perWorker, len(got))
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1], got[i])
	}
}

func TestOLCTreeScanFromSeeksBothDirections(t *testing.T) {
	tr := NewOLC()
	for _, v := range []int32{10, 20, 30, 40, 50} {
		require.NoError(t, tr.Insert(intKey(v), []byte(fmt.Sprint(v))))
	}

	var fwd []string
	tr.ScanFrom(intKey(25), func(_, v []byte) bool {
		fwd = append(fwd, string(v))
		return false
	}, true)
	assert.Equal(t, []string{"30", "40", "50"}, fwd)

	var rev []string
	tr.ScanFrom(intKey(25), func(_, v []byte) bool {
		rev = append(rev, string(v))
		return false
	}, false)
	assert.Equal(t, []string{"20", "10"}, rev)
}

func TestOLCTreeScanRangeDirections(t *testing.T) {
	tr := NewOLC()
	for _, v := range []int32{10, 20, 30, 40, 50} {
		require.NoError(t, tr.Insert(intKey(v), []byte(fmt.Sprint(v))))
	}
	var fwd []string
	tr.ScanRange(intKey(15), intKey(45), func(_, v []byte) bool {
		fwd = append(fwd, string(v))
		return false
	})
	assert.Equal(t, []string{"20", "30", "40"}, fwd)
}

func TestOLCTreeMinimumMaximumLongestPrefix(t *testing.T) {
	tr := NewOLC()
	for _, v := range []int32{50, 10, 90, 30, 70} {
		require.NoError(t, tr.Insert(intKey(v), []byte(fmt.Sprint(v))))
	}
	_, minVal, ok := tr.Minimum()
	require.True(t, ok)
	assert.Equal(t, "10", string(minVal))
	_, maxVal, ok := tr.Maximum()
	require.True(t, ok)
	assert.Equal(t, "90", string(maxVal))

	require.NoError(t, tr.Insert(strKey("foo"), []byte("foo-val")))
	require.NoError(t, tr.Insert(strKey("foobar"), []byte("foobar-val")))
	_, v, ok := tr.LongestPrefix(append(strKey("foobar"), []byte("baz")...))
	require.True(t, ok)
	assert.Equal(t, "foobar-val", string(v))
}

func TestOLCTreeDeletePrefix(t *testing.T) {
	tr := NewOLC()
	for _, w := range []string{"car", "cart", "carton", "carbon", "dog"} {
		require.NoError(t, tr.Insert(strKey(w), []byte(w)))
	}
	n := tr.DeletePrefix(strKey("car")[:3])
	assert.Equal(t, 4, n)
	_, ok := tr.Get(strKey("dog"))
	assert.True(t, ok)
	_, ok = tr.Get(strKey("cart"))
	assert.False(t, ok)
	assert.Equal(t, int64(1), tr.Len())
}

func TestOLCTreeClearEmpty(t *testing.T) {
	tr := NewOLC()
	assert.True(t, tr.Empty())
	for i := int32(0); i < 64; i++ {
		require.NoError(t, tr.Insert(intKey(i), []byte(fmt.Sprint(i))))
	}
	assert.False(t, tr.Empty())
	tr.Clear()
	assert.True(t, tr.Empty())
	assert.Equal(t, int64(0), tr.Len())
	_, ok := tr.Get(intKey(0))
	assert.False(t, ok)

	// The tree must remain fully usable after Clear: rootLock must not have
	// been left obsolete by the retire-on-clear path.
	require.NoError(t, tr.Insert(intKey(1), []byte("one")))
	v, ok := tr.Get(intKey(1))
	require.True(t, ok)
	assert.Equal(t, "one", string(v))
}

// TestOLCTreeRemainsUsableAfterGrowShrinkCycle guards against the
// lock-obsoletion bug where a parent's own lock, rather than the retiring
// node's, was marked permanently obsolete on every grow/shrink/replace:
// that bug would make every traversal through the parent restart forever
// the moment a second such event occurred anywhere beneath it.
func TestOLCTreeRemainsUsableAfterGrowShrinkCycle(t *testing.T) {
	tr := NewOLC(WithStats())
	for i := int32(0); i < 300; i++ {
		require.NoError(t, tr.Insert(intKey(i<<20), []byte(fmt.Sprint(i))))
	}
	for i := int32(0); i < 280; i++ {
		_, ok := tr.Remove(intKey(i << 20))
		require.True(t, ok)
	}
	// Repeated growth and shrink above must not have bricked any ancestor
	// lock: both a write and a read through the remaining keys must still
	// succeed promptly rather than spinning on a permanently obsolete lock.
	require.NoError(t, tr.Insert(intKey(1<<30), []byte("still-alive")))
	v, ok := tr.Get(intKey(1 << 30))
	require.True(t, ok)
	assert.Equal(t, "still-alive", string(v))
	for i := int32(280); i < 300; i++ {
		_, ok := tr.Get(intKey(i << 20))
		assert.True(t, ok)
	}
}

func TestOLCTreeScanMatchesRandomizedInserts(t *testing.T) {
	tr := NewOLC()
	var ints []int32
	rnd := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		v := rnd.Int31()
		ints = append(ints, v)
		tr.Upsert(intKey(v), []byte(fmt.Sprint(v)))
	}
	sort.Slice(ints, func(i, j int) bool { return ints[i] < ints[j] })

	var got []int32
	tr.Scan(func(k, _ []byte) bool {
		var d keycodec.Decoder
		d.Reset(k)
		got = append(got, d.DecodeInt32())
		return false
	}, true)
	require.Equal(t, len(ints), len(got))
	for i := range ints {
		assert.Equal(t, ints[i], got[i])
	}
}
