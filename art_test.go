package art

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/art/keycodec"
)

func intKey(v int32) []byte {
	var e keycodec.Encoder
	e.EncodeInt32(v)
	return append([]byte(nil), e.View()...)
}

func strKey(s string) []byte {
	var e keycodec.Encoder
	e.EncodeText([]byte(s), 32, 0)
	return append([]byte(nil), e.View()...)
}

func TestInsertGetSymmetry(t *testing.T) {
	tr := New()
	for i := int32(0); i < 2000; i++ {
		require.NoError(t, tr.Insert(intKey(i), []byte(fmt.Sprint(i))))
	}
	for i := int32(0); i < 2000; i++ {
		v, ok := tr.Get(intKey(i))
		require.True(t, ok)
		assert.Equal(t, fmt.Sprint(i), string(v))
	}
	_, ok := tr.Get(intKey(99999))
	assert.False(t, ok)
}

func TestInsertDuplicateKeyRejected(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Insert(intKey(1), []byte("a")))
	err := tr.Insert(intKey(1), []byte("b"))
	assert.ErrorIs(t, err, ErrDuplicateKey)
	v, _ := tr.Get(intKey(1))
	assert.Equal(t, "a", string(v))
}

func TestUpsertReplacesValue(t *testing.T) {
	tr := New()
	old, replaced := tr.Upsert(intKey(1), []byte("a"))
	assert.False(t, replaced)
	assert.Nil(t, old)
	old, replaced = tr.Upsert(intKey(1), []byte("b"))
	assert.True(t, replaced)
	assert.Equal(t, "a", string(old))
	v, _ := tr.Get(intKey(1))
	assert.Equal(t, "b", string(v))
}

func TestRemove(t *testing.T) {
	tr := New()
	for i := int32(0); i < 500; i++ {
		require.NoError(t, tr.Insert(intKey(i), []byte(fmt.Sprint(i))))
	}
	for i := int32(0); i < 500; i += 2 {
		v, ok := tr.Remove(intKey(i))
		require.True(t, ok)
		assert.Equal(t, fmt.Sprint(i), string(v))
	}
	for i := int32(0); i < 500; i++ {
		_, ok := tr.Get(intKey(i))
		if i%2 == 0 {
			assert.False(t, ok)
		} else {
			assert.True(t, ok)
		}
	}
	assert.Equal(t, 250, tr.Len())
}

// TestAgainstMapOracle exercises a randomized sequence of inserts, upserts
// and removes against both a Tree and a plain Go map, asserting they agree
// at every step.
func TestAgainstMapOracle(t *testing.T) {
	tr := New()
	oracle := map[int32][]byte{}
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 5000; i++ {
		k := int32(rnd.Intn(300))
		val := []byte(fmt.Sprintf("v%d-%d", k, i))
		switch rnd.Intn(3) {
		case 0:
			old, replaced := tr.Upsert(intKey(k), val)
			_, existed := oracle[k]
			assert.Equal(t, existed, replaced)
			oracle[k] = val
			_ = old
		case 1:
			_, ok := tr.Remove(intKey(k))
			_, existed := oracle[k]
			assert.Equal(t, existed, ok)
			delete(oracle, k)
		case 2:
			v, ok := tr.Get(intKey(k))
			want, existed := oracle[k]
			assert.Equal(t, existed, ok)
			if existed {
				assert.Equal(t, string(want), string(v))
			}
		}
	}
	assert.Equal(t, len(oracle), tr.Len())
	for k, want := range oracle {
		v, ok := tr.Get(intKey(k))
		require.True(t, ok)
		assert.Equal(t, string(want), string(v))
	}
}

func TestScanOrderMatchesSortedKeys(t *testing.T) {
	tr := New()
	var ints []int32
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		v := rnd.Int31()
		ints = append(ints, v)
		tr.Upsert(intKey(v), []byte(fmt.Sprint(v)))
	}
	sort.Slice(ints, func(i, j int) bool { return ints[i] < ints[j] })

	it := tr.Iterator()
	var got []int32
	for {
		k, _, ok := it.Next()
		if !ok {
			break
		}
		var d keycodec.Decoder
		d.Reset(k)
		got = append(got, d.DecodeInt32())
	}
	require.Equal(t, len(ints), len(got))
	for i := range ints {
		assert.Equal(t, ints[i], got[i])
	}
}

func TestScanOrderStrings(t *testing.T) {
	tr := New()
	words := []string{"bro", "brown", "brownie", "apple", "application", "banana"}
	for _, w := range words {
		tr.Upsert(strKey(w), []byte(w))
	}
	sorted := append([]string(nil), words...)
	sort.Strings(sorted)

	it := tr.Iterator()
	var got []string
	for {
		_, v, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, string(v))
	}
	assert.Equal(t, sorted, got)
}

func TestMinimumMaximum(t *testing.T) {
	tr := New()
	for _, v := range []int32{50, 10, 90, 30, 70} {
		tr.Upsert(intKey(v), []byte(fmt.Sprint(v)))
	}
	_, minVal, ok := tr.Minimum()
	require.True(t, ok)
	assert.Equal(t, "10", string(minVal))
	_, maxVal, ok := tr.Maximum()
	require.True(t, ok)
	assert.Equal(t, "90", string(maxVal))
}

func TestLongestPrefix(t *testing.T) {
	tr := New()
	tr.Upsert(strKey("foo"), []byte("foo-val"))
	tr.Upsert(strKey("foobar"), []byte("foobar-val"))

	_, v, ok := tr.LongestPrefix(append(strKey("foobar"), []byte("baz")...))
	require.True(t, ok)
	assert.Equal(t, "foobar-val", string(v))
}

func TestDeletePrefix(t *testing.T) {
	tr := New()
	for _, w := range []string{"car", "cart", "carton", "carbon", "dog"} {
		tr.Upsert(strKey(w), []byte(w))
	}
	n := tr.DeletePrefix(strKey("car")[:3])
	assert.Equal(t, 4, n)
	_, ok := tr.Get(strKey("dog"))
	assert.True(t, ok)
	_, ok = tr.Get(strKey("cart"))
	assert.False(t, ok)
}

func TestNodeGrowthAndShrinkRoundTrip(t *testing.T) {
	tr := New(WithStats())
	// Keys i<<20 spread over 19 distinct first bytes (16 keys each, 12 in
	// the last), growing the root node4 -> node16 -> node48 and each child
	// node4 -> node16.
	for i := int32(0); i < 300; i++ {
		require.NoError(t, tr.Insert(intKey(i<<20), []byte(fmt.Sprint(i))))
	}
	stats := tr.Stats()
	assert.Greater(t, stats.Grows, int64(0))

	for i := int32(0); i < 300; i++ {
		_, ok := tr.Remove(intKey(i << 20))
		require.True(t, ok)
	}
	assert.Equal(t, 0, tr.Len())
}

func TestNodeShrinkTracked(t *testing.T) {
	tr := New(WithStats())
	for i := int32(0); i < 300; i++ {
		require.NoError(t, tr.Insert(intKey(i<<20), []byte(fmt.Sprint(i))))
	}
	for i := int32(0); i < 295; i++ {
		_, ok := tr.Remove(intKey(i << 20))
		require.True(t, ok)
	}
	stats := tr.Stats()
	assert.Greater(t, stats.Shrinks, int64(0))
}

func TestSyncTreeConcurrentReadersWriters(t *testing.T) {
	st := NewSync()
	done := make(chan struct{})
	go func() {
		for i := int32(0); i < 1000; i++ {
			st.Upsert(intKey(i), []byte(fmt.Sprint(i)))
		}
		close(done)
	}()
	for i := 0; i < 1000; i++ {
		st.Get(intKey(int32(i % 50)))
	}
	<-done
	assert.Equal(t, 1000, st.Len())
}
